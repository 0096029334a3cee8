// Command udptransfer-recv is the receiver binary: accepts one transfer
// under the UDPtransfer protocol and writes it to an output directory.
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
	"github.com/PatrikValkovic/UDPtransfer/pkg/receiver"
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
	bind := flag.String("bind", ":9000", "local bind address (IP:PORT)")
	packetSize := flag.Int("packet", 1400, "maximum packet size this receiver will accept")
	windowSize := flag.Int("window", 16, "local sliding window size")
	timeout := flag.Duration("timeout", 2*time.Second, "idle timeout while waiting for traffic")
	checksumSize := flag.Int("checksum", 4, "minimum checksum size this receiver will accept")
	dir := flag.StringP("dir", "d", ".", "output directory for the reassembled file")
	repetition := flag.Int("repetition", 10, "accepted but unused: the receiver never retransmits or gives up")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	verbose := flag.BoolP("verbose", "v", false, "verbose logging")
	help := flag.BoolP("help", "h", false, "show help and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return cliutil.ExitOK
	}

	log := cliutil.NewLogger(*verbose)

	local, err := net.ResolveUDPAddr("udp", *bind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-recv: invalid --bind %q: %v\n", *bind, err)
		return cliutil.ExitUsage
	}

	if info, err := os.Stat(*dir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "udptransfer-recv: --dir %q is not a directory\n", *dir)
		return cliutil.ExitUsage
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()

	sock, err := backoff.Retry(ctx, func() (socket.Socket, error) {
		return socket.Listen(log, clock, local)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-recv: bind socket: %v\n", err)
		return cliutil.ExitLocalIO
	}
	defer sock.Close()

	if *metricsAddr != "" {
		go serveMetrics(log, *metricsAddr)
	}

	r := receiver.New(receiver.Config{
		Log:             log,
		Clock:           clock,
		Socket:          sock,
		Sink:            fileio.NewDirSink(*dir),
		MaxPacketSize:   *packetSize,
		MinChecksumSize: *checksumSize,
		WindowSize:      *windowSize,
		IdleTimeout:     *timeout,
		MaxRetries:      *repetition,
	})

	log.Info("listening", "bind", local)
	if err := r.Run(ctx); err != nil {
		log.Error("transfer failed", "error", err, "state", r.State())
		var pathErr *os.PathError
		var linkErr *os.LinkError
		if errors.As(err, &pathErr) || errors.As(err, &linkErr) {
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
