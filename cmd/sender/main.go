// Command udptransfer-send is the sender binary: streams one file to a
// receiver under the UDPtransfer protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/internal/cliutil"
	"github.com/PatrikValkovic/UDPtransfer/internal/fileio"
	"github.com/PatrikValkovic/UDPtransfer/pkg/sender"
	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	bind := flag.String("bind", "", "local bind address (IP:PORT); empty picks an ephemeral port")
	addr := flag.String("addr", "", "receiver address (IP:PORT)")
	packetSize := flag.Int("packet", 1400, "proposed packet size in bytes")
	windowSize := flag.Int("window", 16, "proposed sliding window size")
	timeout := flag.Duration("timeout", 500*time.Millisecond, "per-packet retransmission timeout")
	checksumSize := flag.Int("checksum", 4, "proposed checksum size in bytes")
	file := flag.StringP("file", "f", "", "source file to send")
	repetition := flag.Int("repetition", 10, "max retransmissions before giving up")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	verbose := flag.BoolP("verbose", "v", false, "verbose logging")
	help := flag.BoolP("help", "h", false, "show help and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return cliutil.ExitOK
	}
	if *addr == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "udptransfer-send: --addr and --file are required")
		flag.Usage()
		return cliutil.ExitUsage
	}

	log := cliutil.NewLogger(*verbose)

	remote, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-send: invalid --addr %q: %v\n", *addr, err)
		return cliutil.ExitUsage
	}

	var local *net.UDPAddr
	if *bind != "" {
		local, err = net.ResolveUDPAddr("udp", *bind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "udptransfer-send: invalid --bind %q: %v\n", *bind, err)
			return cliutil.ExitUsage
		}
	} else {
		local = &net.UDPAddr{}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()

	sock, err := backoff.Retry(ctx, func() (socket.Socket, error) {
		return socket.Listen(log, clock, local)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-send: bind socket: %v\n", err)
		return cliutil.ExitLocalIO
	}
	defer sock.Close()

	source, err := fileio.OpenSource(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-send: %v\n", err)
		return cliutil.ExitLocalIO
	}
	defer source.Close()

	if *metricsAddr != "" {
		go serveMetrics(log, *metricsAddr)
	}

	s := sender.New(sender.Config{
		Log:                  log,
		Clock:                clock,
		Socket:               sock,
		Remote:               remote,
		Source:               source,
		ProposedPacketSize:   *packetSize,
		ProposedWindowSize:   *windowSize,
		ProposedChecksumSize: *checksumSize,
		Timeout:              *timeout,
		MaxRetries:           *repetition,
	})

	if err := s.Run(ctx); err != nil {
		log.Error("transfer failed", "error", err, "state", s.State())
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return cliutil.ExitLocalIO
		}
		return cliutil.ExitFailed
	}
	return cliutil.ExitOK
}

func serveMetrics(log *slog.Logger, addr string) {
	log.Info("serving metrics", "addr", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server exited", "error", err)
	}
}
