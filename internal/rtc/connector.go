package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wavesend/wavesend/internal/signaling"
	"github.com/wavesend/wavesend/internal/transport"
	"github.com/wavesend/wavesend/pkg/protocol"
)

// Connector runs the offer/answer cycle against the signaling channel until
// a data channel opens or the attempt budget is spent. All negotiator
// callbacks and signaling messages are consumed by a single driver loop, so
// attempt state is never mutated concurrently.
type Connector struct {
	ch      signaling.Channel
	factory Factory
	cfg     Config
	log     *slog.Logger

	// pendingOffer carries a fresh offer that superseded the previous
	// attempt into the next one.
	pendingOffer *protocol.Signal
}

// NewConnector builds a Connector over an established signaling channel.
func NewConnector(ch signaling.Channel, factory Factory, cfg Config) *Connector {
	cfg = cfg.withDefaults()
	return &Connector{
		ch:      ch,
		factory: factory,
		cfg:     cfg,
		log:     cfg.Logger,
	}
}

// WaitForPeer blocks until the other peer joins the session. The sender
// calls this before its first offer.
func (c *Connector) WaitForPeer(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, open := <-c.ch.Recv():
			if !open {
				return signaling.ErrChannelClosed
			}
			switch sig.Type {
			case protocol.TypePeerJoined:
				return nil
			case protocol.TypePeerLeft:
				// Stale notification from a peer that came and went.
			case protocol.TypeError:
				return fmt.Errorf("%w: relay error: %s", ErrConnectionFailed, sig.Error)
			}
		}
	}
}

// Connect runs connection attempts until one yields an open transport.
// Transient failures (timeout, peer error, premature close) are retried up
// to the attempt budget with a fixed delay between attempts; ErrNoRouteFound
// and cancellation end the cycle immediately.
func (c *Connector) Connect(ctx context.Context, role string) (transport.Transport, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		tr, err := c.runAttempt(ctx, role, attempt)
		if err == nil {
			return tr, nil
		}
		if errors.Is(err, errSuperseded) {
			// The sender started over; the fresh offer is already queued
			// for the next attempt, so skip the retry delay.
			c.log.Debug("attempt superseded by fresh offer", "attempt", attempt)
			lastErr = ErrConnectionFailed
			continue
		}
		if errors.Is(err, ErrNoRouteFound) ||
			errors.Is(err, signaling.ErrChannelClosed) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		c.log.Warn("connection attempt failed", "attempt", attempt, "error", err)
		if attempt < c.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return nil, lastErr
}

// attemptEvent is a negotiator callback funneled into the driver loop.
type attemptEvent struct {
	candidate string
	tr        transport.Transport
	failed    bool
	noRoute   bool
}

func (c *Connector) runAttempt(ctx context.Context, role string, attempt int) (transport.Transport, error) {
	events := make(chan attemptEvent, 32)
	done := make(chan struct{})
	defer close(done)
	// push delivers a callback event unless the attempt already ended,
	// which makes late callbacks from torn-down attempts harmless.
	push := func(ev attemptEvent) {
		select {
		case events <- ev:
		case <-done:
		}
	}

	neg, err := c.factory(role, Callbacks{
		LocalCandidate: func(cand string) { push(attemptEvent{candidate: cand}) },
		Open:           func(tr transport.Transport) { push(attemptEvent{tr: tr}) },
		Failed:         func(noRoute bool) { push(attemptEvent{failed: true, noRoute: noRoute}) },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: build negotiator: %v", ErrConnectionFailed, err)
	}
	opened := false
	defer func() {
		if !opened {
			neg.Close()
		}
	}()

	timeout := time.NewTimer(c.cfg.AttemptTimeout)
	defer timeout.Stop()

	haveRemote := false
	var queued []string

	if role == protocol.RoleSender {
		offer, err := neg.CreateOffer(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create offer: %v", ErrConnectionFailed, err)
		}
		if err := c.ch.Send(protocol.Signal{Type: protocol.TypeOffer, SDP: offer}); err != nil {
			return nil, err
		}
	} else if c.pendingOffer != nil {
		sig := *c.pendingOffer
		c.pendingOffer = nil
		if err := c.applyOffer(ctx, neg, sig, &haveRemote, &queued); err != nil {
			return nil, err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, ErrNegotiationTimeout
		case ev := <-events:
			switch {
			case ev.tr != nil:
				opened = true
				c.log.Info("peer connected", "attempt", attempt)
				return ev.tr, nil
			case ev.failed:
				if ev.noRoute {
					return nil, ErrNoRouteFound
				}
				return nil, ErrConnectionFailed
			default:
				if err := c.ch.Send(protocol.Signal{Type: protocol.TypeIceCandidate, Candidate: ev.candidate}); err != nil {
					return nil, err
				}
			}
		case sig, open := <-c.ch.Recv():
			if !open {
				return nil, signaling.ErrChannelClosed
			}
			switch sig.Type {
			case protocol.TypeAnswer:
				if role != protocol.RoleSender || haveRemote {
					continue
				}
				if err := neg.AcceptAnswer(sig.SDP); err != nil {
					return nil, fmt.Errorf("%w: apply answer: %v", ErrConnectionFailed, err)
				}
				haveRemote = true
				c.flushQueued(neg, &queued)
			case protocol.TypeOffer:
				if role != protocol.RoleReceiver {
					continue
				}
				if haveRemote {
					offer := sig
					c.pendingOffer = &offer
					return nil, errSuperseded
				}
				if err := c.applyOffer(ctx, neg, sig, &haveRemote, &queued); err != nil {
					return nil, err
				}
			case protocol.TypeIceCandidate:
				if !haveRemote {
					queued = append(queued, sig.Candidate)
					continue
				}
				if err := neg.AddCandidate(sig.Candidate); err != nil {
					c.log.Warn("apply remote candidate failed", "error", err)
				}
			case protocol.TypePeerLeft:
				return nil, fmt.Errorf("%w: peer left", ErrConnectionFailed)
			case protocol.TypeError:
				return nil, fmt.Errorf("%w: relay error: %s", ErrConnectionFailed, sig.Error)
			}
		}
	}
}

// applyOffer sets the remote offer, flushes any candidates queued before it
// arrived in order, and sends the local answer back.
func (c *Connector) applyOffer(ctx context.Context, neg Negotiator, sig protocol.Signal, haveRemote *bool, queued *[]string) error {
	answer, err := neg.Answer(ctx, sig.SDP)
	if err != nil {
		return fmt.Errorf("%w: apply offer: %v", ErrConnectionFailed, err)
	}
	*haveRemote = true
	c.flushQueued(neg, queued)
	return c.ch.Send(protocol.Signal{Type: protocol.TypeAnswer, SDP: answer})
}

func (c *Connector) flushQueued(neg Negotiator, queued *[]string) {
	for _, cand := range *queued {
		if err := neg.AddCandidate(cand); err != nil {
			c.log.Warn("apply queued candidate failed", "error", err)
		}
	}
	*queued = nil
}
