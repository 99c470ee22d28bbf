package transport

import (
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"
)

// DataChannel adapts a pion DataChannel to the Transport interface. Closing
// the transport also closes the owners passed at construction, typically the
// parent PeerConnection.
type DataChannel struct {
	dc *webrtc.DataChannel

	closeOnce sync.Once
	closeErr  error
	owners    []io.Closer

	mu        sync.Mutex
	closeFn   func()
	closeSent bool
}

var _ Transport = (*DataChannel)(nil)

// NewDataChannel wraps an open data channel. owners are closed along with
// the channel, in order.
func NewDataChannel(dc *webrtc.DataChannel, owners ...io.Closer) *DataChannel {
	t := &DataChannel{dc: dc, owners: owners}
	dc.OnClose(func() {
		t.fireClose()
	})
	return t
}

// Send queues one message on the data channel.
func (t *DataChannel) Send(msg Message) error {
	if !t.IsOpen() {
		return io.ErrClosedPipe
	}
	var err error
	if msg.Text {
		err = t.dc.SendText(string(msg.Data))
	} else {
		err = t.dc.Send(msg.Data)
	}
	if err != nil {
		return fmt.Errorf("data channel send: %w", err)
	}
	return nil
}

// OnMessage registers the receive handler. pion serializes OnMessage
// callbacks per channel, which preserves arrival order.
func (t *DataChannel) OnMessage(fn func(Message)) {
	t.dc.OnMessage(func(m webrtc.DataChannelMessage) {
		fn(Message{Data: m.Data, Text: m.IsString})
	})
}

// OnClose registers the close handler.
func (t *DataChannel) OnClose(fn func()) {
	t.mu.Lock()
	t.closeFn = fn
	t.mu.Unlock()
}

func (t *DataChannel) fireClose() {
	t.mu.Lock()
	fn := t.closeFn
	fired := t.closeSent
	t.closeSent = true
	t.mu.Unlock()
	if !fired && fn != nil {
		fn()
	}
}

// Close tears down the channel and its owners. Idempotent.
func (t *DataChannel) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.dc.Close()
		for _, o := range t.owners {
			if err := o.Close(); err != nil && t.closeErr == nil {
				t.closeErr = err
			}
		}
		t.fireClose()
	})
	return t.closeErr
}

// IsOpen reports whether the channel is open.
func (t *DataChannel) IsOpen() bool {
	return t.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// BufferedAmount returns the bytes queued on the channel but not yet sent.
func (t *DataChannel) BufferedAmount() uint64 {
	return t.dc.BufferedAmount()
}
