package protocol

import "github.com/google/uuid"

// NewPeerID generates a unique peer identifier for a signaling session.
func NewPeerID() string {
	return uuid.NewString()
}
