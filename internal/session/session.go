// Package session implements the server-side registry mapping short
// human-enterable codes to transfer session state. Sessions carry the file
// metadata plus the signaling fields mutated by both peers during
// negotiation (offer, answer, append-only ICE candidate lists).
package session

import "time"

// DefaultTTL is the session lifetime for file transfers.
const DefaultTTL = 30 * time.Minute

// Session is a registered transfer session.
type Session struct {
	Code      string
	FileName  string
	FileSize  int64
	FileType  string
	CreatedAt time.Time
	ExpireAt  time.Time
	Active    bool

	SenderConnected   bool
	ReceiverConnected bool

	SenderOffer    string
	ReceiverAnswer string

	// Candidate lists are append-only: entries are only ever added, never
	// removed or reordered.
	SenderIceCandidates   []string
	ReceiverIceCandidates []string
}

// expired reports whether the session must be treated as absent.
func (s Session) expired(now time.Time) bool {
	return !s.Active || now.After(s.ExpireAt)
}

// Fields is a partial update applied to a session. Nil pointers are skipped;
// candidate fields append to their list, everything else overwrites.
type Fields struct {
	SenderOffer          *string
	ReceiverAnswer       *string
	SenderIceCandidate   *string
	ReceiverIceCandidate *string
	SenderConnected      *bool
	ReceiverConnected    *bool
	Active               *bool
}

// clone returns a copy safe to hand out after the store lock is released.
// The candidate slices are copied because the store appends to its own.
func (s Session) clone() Session {
	out := s
	out.SenderIceCandidates = append([]string(nil), s.SenderIceCandidates...)
	out.ReceiverIceCandidates = append([]string(nil), s.ReceiverIceCandidates...)
	return out
}
