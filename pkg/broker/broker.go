package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/PatrikValkovic/UDPtransfer/pkg/metrics"
	"github.com/PatrikValkovic/UDPtransfer/pkg/socket"
)

// Broker relays datagrams between a fixed sender address and a fixed
// receiver address through the drop/mutate/delay pipeline. It is
// stateless across datagrams: a delayed datagram is forwarded by its own
// goroutine and does not block the relay loop for its direction (spec
// §4.4, §5 concurrency model).
type Broker struct {
	cfg Config
	wg  sync.WaitGroup
}

// New constructs a Broker ready to Run.
func New(cfg Config) *Broker {
	cfg.setDefaults()
	return &Broker{cfg: cfg}
}

// Run relays in both directions until ctx is cancelled or a socket
// returns a non-timeout error.
func (b *Broker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		errs <- b.relay(ctx, "sender->receiver", b.cfg.SenderSocket, b.cfg.ReceiverSocket, b.cfg.ReceiverAddr)
	}()
	go func() {
		defer b.wg.Done()
		errs <- b.relay(ctx, "receiver->sender", b.cfg.ReceiverSocket, b.cfg.SenderSocket, b.cfg.SenderAddr)
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil && firstErr == nil && !errors.Is(err, context.Canceled) {
			firstErr = err
			cancel()
		}
	}
	b.wg.Wait()
	return firstErr
}

// relay reads datagrams off src and, for each one that survives the drop
// filter, applies mutation and a sampled delay before forwarding a copy
// out through dstSock to dst. dstSock is the socket bound facing the
// opposite peer, not src — a reply from that peer must see the relayed
// datagram's source address as dstSock's own bind, not src's, or the
// peer will address its response back at src instead of completing the
// round trip.
func (b *Broker) relay(ctx context.Context, label string, src, dstSock socket.Socket, dst *net.UDPAddr) error {
	buf := make([]byte, 65536)

	for {
		deadline := b.cfg.Clock.Now().Add(b.cfg.IdleTimeout)
		n, _, _, err := src.ReceiveFrom(ctx, deadline, buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("broker %s: receive: %w", label, err)
		}

		if shouldDrop(b.cfg.Rand, b.cfg.DropRate) {
			metrics.BrokerDropped.WithLabelValues(label).Inc()
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		if mutate(b.cfg.Rand, datagram, b.cfg.Modify) {
			metrics.BrokerMutated.WithLabelValues(label).Inc()
		}
		delay := sampleDelay(b.cfg.Rand, b.cfg.DelayMean, b.cfg.DelayStd)

		b.wg.Add(1)
		go b.forward(ctx, label, dstSock, dst, datagram, delay)
	}
}

func (b *Broker) forward(ctx context.Context, label string, dstSock socket.Socket, dst *net.UDPAddr, datagram []byte, delay time.Duration) {
	defer b.wg.Done()
	if delay > 0 {
		select {
		case <-b.cfg.Clock.After(delay):
		case <-ctx.Done():
			return
		}
	}
	if _, err := dstSock.SendTo(dst, datagram); err != nil {
		b.cfg.Log.Warn("broker: forward failed", "direction", label, "error", err)
		return
	}
	metrics.BrokerForwarded.WithLabelValues(label).Inc()
}
