package protocol

import "time"

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// CreateSessionResponse is the 201 body of POST /sessions.
type CreateSessionResponse struct {
	Code     string    `json:"code"`
	ExpireAt time.Time `json:"expireAt"`
}

// SessionView is the 200 body of GET /sessions/{code}. Candidate lists are
// append-only on the server; clients diff against the last index they saw.
type SessionView struct {
	FileName              string   `json:"fileName"`
	FileSize              int64    `json:"fileSize"`
	FileType              string   `json:"fileType"`
	SenderConnected       bool     `json:"senderConnected"`
	ReceiverConnected     bool     `json:"receiverConnected"`
	SenderOffer           string   `json:"senderOffer,omitempty"`
	ReceiverAnswer        string   `json:"receiverAnswer,omitempty"`
	SenderIceCandidates   []string `json:"senderIceCandidates"`
	ReceiverIceCandidates []string `json:"receiverIceCandidates"`
}

// UpdateSessionRequest is the body of PATCH /sessions/{code}. Nil pointers
// mean "not present"; candidate fields append, everything else overwrites.
type UpdateSessionRequest struct {
	SenderOffer          *string `json:"senderOffer,omitempty"`
	ReceiverAnswer       *string `json:"receiverAnswer,omitempty"`
	SenderIceCandidate   *string `json:"senderIceCandidate,omitempty"`
	ReceiverIceCandidate *string `json:"receiverIceCandidate,omitempty"`
	SenderConnected      *bool   `json:"senderConnected,omitempty"`
	ReceiverConnected    *bool   `json:"receiverConnected,omitempty"`
	Active               *bool   `json:"active,omitempty"`
}

// AckResponse is the generic success body for PATCH and DELETE.
type AckResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the JSON error body for non-2xx registry responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
