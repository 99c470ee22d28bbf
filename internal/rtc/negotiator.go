package rtc

import (
	"context"

	"github.com/wavesend/wavesend/internal/transport"
)

// Callbacks are installed on a negotiator at construction, before any
// exchange starts. They may fire from arbitrary goroutines; the Connector
// funnels them into its single driver loop, and callbacks from a finished
// attempt become no-ops.
type Callbacks struct {
	// LocalCandidate fires for every local ICE candidate as it is
	// gathered (trickle).
	LocalCandidate func(candidate string)
	// Open fires once when the data channel to the peer is open. The
	// transport owns the underlying peer connection from then on.
	Open func(tr transport.Transport)
	// Failed fires when the attempt cannot succeed. noRoute is set when
	// ICE gathering completed with zero usable candidates.
	Failed func(noRoute bool)
}

// Negotiator drives the SDP side of a single connection attempt. A fresh
// one is built per attempt; Close tears the attempt down and is idempotent.
type Negotiator interface {
	// CreateOffer produces the local offer and starts candidate gathering.
	CreateOffer(ctx context.Context) (string, error)
	// Answer applies the remote offer and produces the local answer.
	Answer(ctx context.Context, offerSDP string) (string, error)
	// AcceptAnswer applies the remote answer on the offering side.
	AcceptAnswer(answerSDP string) error
	// AddCandidate applies a remote ICE candidate. Only valid once a
	// remote description has been applied.
	AddCandidate(candidate string) error
	Close() error
}

// Factory builds a negotiator for one attempt in the given role.
type Factory func(role string, cb Callbacks) (Negotiator, error)
