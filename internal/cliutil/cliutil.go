// Package cliutil collects the small pieces of process glue shared by
// the three UDPtransfer binaries: logger construction and the exit-code
// convention (SPEC_FULL.md §7). None of it is part of the protocol core.
package cliutil

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Exit codes, per SPEC_FULL.md §7: 0 clean, 1 Failed state, 2 usage/flag
// error, 3 local I/O error.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitUsage   = 2
	ExitLocalIO = 3
)

// NewLogger builds the pretty console logger every binary starts with,
// mirroring telemetry/global-monitor's newLogger.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}))
}
