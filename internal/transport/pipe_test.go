package transport

import (
	"bytes"
	"io"
	"sync"
	"testing"
)

func TestPipe_DeliversInOrder(t *testing.T) {
	a, b := NewPipePair()

	var mu sync.Mutex
	var got []Message
	b.OnMessage(func(m Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	for i := byte(0); i < 10; i++ {
		if err := a.Send(Message{Data: []byte{i}}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 10 {
		t.Fatalf("received %d messages, want 10", len(got))
	}
	for i, m := range got {
		if m.Data[0] != byte(i) {
			t.Errorf("message %d out of order: %v", i, m.Data)
		}
	}
}

func TestPipe_TextFlag(t *testing.T) {
	a, b := NewPipePair()

	var got Message
	b.OnMessage(func(m Message) { got = m })

	a.Send(Message{Data: []byte(`{"type":"file-meta"}`), Text: true})
	if !got.Text {
		t.Error("Text flag not preserved")
	}
	if !bytes.Equal(got.Data, []byte(`{"type":"file-meta"}`)) {
		t.Errorf("Data = %s", got.Data)
	}
}

func TestPipe_CloseIdempotent(t *testing.T) {
	a, b := NewPipePair()

	aClosed, bClosed := 0, 0
	a.OnClose(func() { aClosed++ })
	b.OnClose(func() { bClosed++ })

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	b.Close()

	if aClosed != 1 || bClosed != 1 {
		t.Errorf("close handlers fired a=%d b=%d, want 1 each", aClosed, bClosed)
	}
	if a.IsOpen() || b.IsOpen() {
		t.Error("both ends should report closed")
	}
	if err := a.Send(Message{Data: []byte("x")}); err != io.ErrClosedPipe {
		t.Errorf("Send after close error = %v, want ErrClosedPipe", err)
	}
}

func TestPipe_BufferedAmount(t *testing.T) {
	a, _ := NewPipePair()
	if a.BufferedAmount() != 0 {
		t.Errorf("initial BufferedAmount = %d", a.BufferedAmount())
	}
	a.SetBufferedAmount(1 << 20)
	if a.BufferedAmount() != 1<<20 {
		t.Errorf("BufferedAmount = %d, want %d", a.BufferedAmount(), 1<<20)
	}
}
