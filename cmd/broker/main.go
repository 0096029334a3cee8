// Command udptransfer-broker is the fault-injecting relay: it sits
// between a sender and a receiver, forwarding datagrams while optionally
// dropping, delaying, or bit-flipping them, per spec §4.4.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/internal/cliutil"
	"github.com/PatrikValkovic/UDPtransfer/pkg/broker"
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
	senderBind := flag.String("sender_bind", ":9100", "local address facing the sender")
	receiverBind := flag.String("receiver_bind", ":9101", "local address facing the receiver")
	senderAddr := flag.String("sender_addr", "", "sender's address to relay receiver traffic to")
	receiverAddr := flag.String("receiver_addr", "", "receiver's address to relay sender traffic to")
	delayMean := flag.Duration("delay_mean", 0, "mean of the Gaussian forwarding delay")
	delayStd := flag.Duration("delay_std", 0, "standard deviation of the Gaussian forwarding delay")
	dropRate := flag.Float64("drop_rate", 0, "probability in [0,1] of dropping a datagram")
	modify := flag.Float64("modify", 0, "probability in [0,1] of flipping each byte of a forwarded datagram")
	seed := flag.Int64("seed", 0, "seed for the fault-injection RNG; 0 picks a random seed")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	verbose := flag.BoolP("verbose", "v", false, "verbose logging")
	help := flag.BoolP("help", "h", false, "show help and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return cliutil.ExitOK
	}
	if *senderAddr == "" || *receiverAddr == "" {
		fmt.Fprintln(os.Stderr, "udptransfer-broker: --sender_addr and --receiver_addr are required")
		flag.Usage()
		return cliutil.ExitUsage
	}
	if *dropRate < 0 || *dropRate > 1 || *modify < 0 || *modify > 1 {
		fmt.Fprintln(os.Stderr, "udptransfer-broker: --drop_rate and --modify must be in [0,1]")
		return cliutil.ExitUsage
	}

	log := cliutil.NewLogger(*verbose)

	senderBindAddr, err := net.ResolveUDPAddr("udp", *senderBind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-broker: invalid --sender_bind %q: %v\n", *senderBind, err)
		return cliutil.ExitUsage
	}
	receiverBindAddr, err := net.ResolveUDPAddr("udp", *receiverBind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-broker: invalid --receiver_bind %q: %v\n", *receiverBind, err)
		return cliutil.ExitUsage
	}
	senderPeerAddr, err := net.ResolveUDPAddr("udp", *senderAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-broker: invalid --sender_addr %q: %v\n", *senderAddr, err)
		return cliutil.ExitUsage
	}
	receiverPeerAddr, err := net.ResolveUDPAddr("udp", *receiverAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-broker: invalid --receiver_addr %q: %v\n", *receiverAddr, err)
		return cliutil.ExitUsage
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()

	senderSock, err := backoff.Retry(ctx, func() (socket.Socket, error) {
		return socket.Listen(log, clock, senderBindAddr)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-broker: bind sender-facing socket: %v\n", err)
		return cliutil.ExitLocalIO
	}
	defer senderSock.Close()

	receiverSock, err := backoff.Retry(ctx, func() (socket.Socket, error) {
		return socket.Listen(log, clock, receiverBindAddr)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		fmt.Fprintf(os.Stderr, "udptransfer-broker: bind receiver-facing socket: %v\n", err)
		return cliutil.ExitLocalIO
	}
	defer receiverSock.Close()

	if *metricsAddr != "" {
		go serveMetrics(log, *metricsAddr)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	b := broker.New(broker.Config{
		Log:            log,
		Clock:          clock,
		SenderSocket:   senderSock,
		ReceiverSocket: receiverSock,
		SenderAddr:     senderPeerAddr,
		ReceiverAddr:   receiverPeerAddr,
		DropRate:       *dropRate,
		Modify:         *modify,
		DelayMean:      *delayMean,
		DelayStd:       *delayStd,
		Rand:           rand.New(rand.NewSource(rngSeed)),
	})

	log.Info("relaying", "sender_bind", senderBindAddr, "receiver_bind", receiverBindAddr,
		"drop_rate", *dropRate, "modify", *modify, "seed", rngSeed)
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("broker exited", "error", err)
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
