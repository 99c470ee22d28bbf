// Package protocol defines the wire formats shared by the wavesend relay
// server and its clients: the JSON signaling messages exchanged over the
// relay WebSocket, the session registry HTTP payloads, and the data-channel
// file transfer header.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Peer roles. A room holds at most one of each.
const (
	RoleSender   = "sender"
	RoleReceiver = "receiver"
)

// Signaling message types, client to relay.
const (
	TypeJoin         = "join"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeIceCandidate = "ice-candidate"
	TypeLeave        = "leave"
)

// Signaling message types, relay to client.
const (
	TypeJoined     = "joined"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeError      = "error"
)

// Signal is a tagged signaling message. Which fields are meaningful depends
// on Type; Validate enforces the required set per type so unparseable or
// incomplete messages are rejected on receipt instead of propagating.
type Signal struct {
	Type      string `json:"type"`
	RoomCode  string `json:"roomCode,omitempty"`
	Role      string `json:"role,omitempty"`
	PeerID    string `json:"peerId,omitempty"`
	SDP       string `json:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Error     string `json:"error,omitempty"`
}

var (
	ErrUnknownType  = errors.New("unknown signal type")
	ErrMissingField = errors.New("missing required field")
)

// ValidRole reports whether role is one of the two recognized peer roles.
func ValidRole(role string) bool {
	return role == RoleSender || role == RoleReceiver
}

// Validate checks that the message carries the fields its type requires.
// It is applied by the relay to every inbound client message.
func (s Signal) Validate() error {
	switch s.Type {
	case TypeJoin:
		if s.RoomCode == "" || s.PeerID == "" {
			return fmt.Errorf("%w: join requires roomCode and peerId", ErrMissingField)
		}
		if !ValidRole(s.Role) {
			return fmt.Errorf("join role must be %q or %q, got %q", RoleSender, RoleReceiver, s.Role)
		}
	case TypeOffer, TypeAnswer:
		if s.SDP == "" {
			return fmt.Errorf("%w: %s requires sdp", ErrMissingField, s.Type)
		}
	case TypeIceCandidate:
		if s.Candidate == "" {
			return fmt.Errorf("%w: ice-candidate requires candidate", ErrMissingField)
		}
	case TypeLeave:
		// No payload.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
	}
	return nil
}

// ParseSignal decodes and validates a raw signaling message.
func ParseSignal(data []byte) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return Signal{}, fmt.Errorf("decode signal: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

// OppositeRole returns the other peer role.
func OppositeRole(role string) string {
	if role == RoleSender {
		return RoleReceiver
	}
	return RoleSender
}

// NewError builds an error reply for a malformed or unroutable message.
func NewError(msg string) Signal {
	return Signal{Type: TypeError, Error: msg}
}

// Relay error codes carried in the error field of an error signal.
const (
	ErrCodeRoomFull       = "room_full"
	ErrCodeRoleTaken      = "role_taken"
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeBadSession     = "bad_session"
)
