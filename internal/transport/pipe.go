package transport

import (
	"io"
	"sync"
)

// Pipe is an in-memory Transport for tests. NewPipePair links two ends:
// a message sent on one end is delivered, in order, to the handler on the
// other. The synthetic buffered amount is settable so backpressure behavior
// can be exercised without a real network.
type Pipe struct {
	mu       sync.Mutex
	peer     *Pipe
	handler  func(Message)
	closeFn  func()
	open     bool
	buffered uint64

	// SendHook, when set, observes every successful Send on this end.
	SendHook func(Message)
}

var _ Transport = (*Pipe)(nil)

// NewPipePair creates two connected pipe transports.
func NewPipePair() (*Pipe, *Pipe) {
	a := &Pipe{open: true}
	b := &Pipe{open: true}
	a.peer = b
	b.peer = a
	return a, b
}

// Send delivers the message to the peer's handler synchronously, which
// preserves emission order the way an ordered reliable channel would.
func (p *Pipe) Send(msg Message) error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return io.ErrClosedPipe
	}
	hook := p.SendHook
	peer := p.peer
	p.mu.Unlock()

	if hook != nil {
		hook(msg)
	}

	peer.mu.Lock()
	handler := peer.handler
	open := peer.open
	peer.mu.Unlock()
	if !open {
		return io.ErrClosedPipe
	}
	if handler != nil {
		handler(msg)
	}
	return nil
}

// OnMessage registers the receive handler for this end.
func (p *Pipe) OnMessage(fn func(Message)) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

// OnClose registers the close handler for this end.
func (p *Pipe) OnClose(fn func()) {
	p.mu.Lock()
	p.closeFn = fn
	p.mu.Unlock()
}

// Close closes both ends. Idempotent; each end's close handler fires once.
func (p *Pipe) Close() error {
	p.closeEnd()
	p.peer.closeEnd()
	return nil
}

func (p *Pipe) closeEnd() {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return
	}
	p.open = false
	fn := p.closeFn
	p.handler = nil
	p.closeFn = nil
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// IsOpen reports whether this end is open.
func (p *Pipe) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// BufferedAmount returns the synthetic buffered byte count.
func (p *Pipe) BufferedAmount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffered
}

// SetBufferedAmount sets the synthetic buffered byte count.
func (p *Pipe) SetBufferedAmount(n uint64) {
	p.mu.Lock()
	p.buffered = n
	p.mu.Unlock()
}
