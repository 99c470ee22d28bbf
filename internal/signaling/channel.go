// Package signaling provides the client side of the signaling layer: an
// abstract message channel between the two peers of a session, with a
// relay-push realization over a WebSocket room and a relay-pull realization
// that polls the session registry HTTP surface. Both satisfy the same
// contract, so connection establishment does not care which is in use.
package signaling

import (
	"errors"

	"github.com/wavesend/wavesend/pkg/protocol"
)

// Channel is a bidirectional signaling path to the other peer of a session.
// Delivery is best effort: a message is eventually visible to a party that
// checks, and ordering follows the order the application observes.
type Channel interface {
	// Send delivers a signal to the other peer.
	Send(sig protocol.Signal) error

	// Recv returns the inbound signal stream. The channel is closed when
	// the signaling path shuts down.
	Recv() <-chan protocol.Signal

	// Close tears down the signaling path. Idempotent.
	Close() error
}

var (
	// ErrRoomFull means the relay room already has two members.
	ErrRoomFull = errors.New("signaling room is full")
	// ErrRoleTaken means the peer's role is already present in the room.
	ErrRoleTaken = errors.New("role already taken in signaling room")
	// ErrChannelClosed means the signaling path is gone.
	ErrChannelClosed = errors.New("signaling channel closed")
)

// mapRelayError converts a relay error code to a client error.
func mapRelayError(code string) error {
	switch code {
	case protocol.ErrCodeRoomFull:
		return ErrRoomFull
	case protocol.ErrCodeRoleTaken:
		return ErrRoleTaken
	default:
		return errors.New("relay error: " + code)
	}
}
