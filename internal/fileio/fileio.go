// Package fileio provides the concrete file-backed byte source and byte
// sink the sender and receiver binaries wire into the protocol core.
// Per spec §1, file I/O is an external collaborator: the core only
// depends on the io.Reader / io.Writer-shaped interfaces below.
package fileio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Source is the byte source the sender reads its file from.
type Source interface {
	io.Reader
	io.Closer
	// Name returns the base filename to carry in the filename-transport
	// header (SPEC_FULL.md §6.1).
	Name() string
}

type fileSource struct {
	f    *os.File
	name string
}

// OpenSource opens path for reading.
func OpenSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	return &fileSource{f: f, name: filepath.Base(path)}, nil
}

func (s *fileSource) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *fileSource) Close() error               { return s.f.Close() }
func (s *fileSource) Name() string               { return s.name }

// Sink is the byte sink the receiver flushes its reassembled buffer to.
// WriteAll is called exactly once, in Flushing, with the full contents
// in order.
type Sink interface {
	WriteAll(name string, data []byte) error
}

type dirSink struct {
	dir string
}

// NewDirSink returns a Sink that atomically writes into dir: the data is
// written to a randomly-named temp file in dir and renamed into place,
// so a reader never observes a partially written output file.
func NewDirSink(dir string) Sink {
	return &dirSink{dir: dir}
}

func (s *dirSink) WriteAll(name string, data []byte) error {
	if name == "" {
		name = "conn.bin"
	}
	tmp := filepath.Join(s.dir, fmt.Sprintf(".udptransfer-%s.part", uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp output file: %w", err)
	}
	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp output file into place: %w", err)
	}
	return nil
}
