// Package rtc drives connection establishment between the two peers of a
// session: offer/answer negotiation with trickle ICE over a signaling
// channel, bounded per-attempt timeouts and retries, and queuing of remote
// candidates that arrive before the remote description is applied. The
// underlying WebRTC machinery sits behind the Negotiator interface so the
// retry logic is testable without opening network sockets.
package rtc

import (
	"errors"
	"log/slog"
	"time"
)

// Defaults for the retry policy.
const (
	DefaultAttemptTimeout = 20 * time.Second
	DefaultMaxAttempts    = 4
	DefaultRetryDelay     = 1200 * time.Millisecond
)

var (
	// ErrNegotiationTimeout means a single attempt did not reach an open
	// data channel within the attempt timeout.
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	// ErrNoRouteFound means ICE gathering finished with zero usable
	// candidates. Retrying on the same network is futile; the fix is a
	// relay (TURN) server.
	ErrNoRouteFound = errors.New("no network route to peer found, consider configuring a TURN relay server")
	// ErrConnectionFailed is the generic negotiation failure.
	ErrConnectionFailed = errors.New("connection failed")

	// errSuperseded marks an attempt abandoned because the sender started
	// a fresh offer/answer cycle. Never surfaced to callers.
	errSuperseded = errors.New("attempt superseded")
)

// Config bounds the retry policy of a Connector.
type Config struct {
	AttemptTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
	Logger         *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
