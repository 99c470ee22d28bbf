// Package transport defines the duplex message channel between two peers
// and its realizations. Upper layers (connection establishment, the chunked
// transfer engine) depend only on the Transport interface; the backing may
// be a directly negotiated data channel or an in-memory pipe in tests.
package transport

// Message is one discrete message on the channel. Text messages carry JSON
// control payloads (file-meta); binary messages carry file chunks.
type Message struct {
	Data []byte
	Text bool
}

// Transport is an open duplex message channel between two peers.
// Implementations must make Close idempotent and release any handlers or
// timers registered against the transport when it closes.
type Transport interface {
	// Send queues one message for delivery. Delivery is ordered and
	// reliable; Send fails once the transport is closed.
	Send(msg Message) error

	// OnMessage registers the receive handler. Messages are delivered in
	// arrival order, one handler invocation at a time.
	OnMessage(fn func(Message))

	// OnClose registers a handler invoked once when the channel closes,
	// whether locally or by the remote side.
	OnClose(fn func())

	// Close tears the channel down. Safe to call multiple times.
	Close() error

	// IsOpen reports whether the channel is currently usable.
	IsOpen() bool

	// BufferedAmount returns the number of outbound bytes queued but not
	// yet handed to the network. Senders use it for backpressure.
	BufferedAmount() uint64
}
