package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/wavesend/wavesend/internal/transport"
	"github.com/wavesend/wavesend/pkg/protocol"
)

// SendOptions tune a sender. Zero values use the package defaults.
type SendOptions struct {
	ChunkSize     int
	HighWaterMark uint64
	DrainPoll     time.Duration

	// OnProgress, when set, is called after each chunk with cumulative
	// bytes sent and the total.
	OnProgress func(sent, total int64)
}

func (o SendOptions) withDefaults() SendOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.HighWaterMark == 0 {
		o.HighWaterMark = DefaultHighWaterMark
	}
	if o.DrainPoll <= 0 {
		o.DrainPoll = DefaultDrainPoll
	}
	return o
}

// Sender streams files over a transport, one transfer at a time.
type Sender struct {
	t        transport.Transport
	opts     SendOptions
	inFlight atomic.Bool
}

// NewSender creates a sender bound to the transport.
func NewSender(t transport.Transport, opts SendOptions) *Sender {
	return &Sender{t: t, opts: opts.withDefaults()}
}

// SendFile opens path and streams it. Only one transfer may run on the
// connection at a time; a second concurrent call fails with
// ErrTransferInFlight.
func (s *Sender) SendFile(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	return s.Send(ctx, file, filepath.Base(path), info.Size())
}

// Send streams size bytes from r under the given name.
func (s *Sender) Send(ctx context.Context, r io.Reader, name string, size int64) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrTransferInFlight
	}
	defer s.inFlight.Store(false)

	if err := validFilename(name); err != nil {
		return err
	}

	meta, err := protocol.EncodeFileMeta(name, size)
	if err != nil {
		return err
	}
	if err := s.t.Send(transport.Message{Data: meta, Text: true}); err != nil {
		return s.classify(err)
	}

	buf := make([]byte, s.opts.ChunkSize)
	var sent int64
	for sent < size {
		if err := s.waitForDrain(ctx); err != nil {
			return err
		}

		want := int64(s.opts.ChunkSize)
		if remaining := size - sent; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(r, buf[:want])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFileRead, err)
		}

		// Each chunk must be its own message: copy so the transport can
		// hold the payload past this iteration.
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		if err := s.t.Send(transport.Message{Data: chunk}); err != nil {
			return s.classify(err)
		}

		sent += int64(n)
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(sent, size)
		}
	}

	return nil
}

// waitForDrain blocks while the transport's outbound buffer is above the
// high-water mark, re-checking on the drain poll interval.
func (s *Sender) waitForDrain(ctx context.Context) error {
	for s.t.BufferedAmount() > s.opts.HighWaterMark {
		if !s.t.IsOpen() {
			return ErrClosedPrematurely
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.DrainPoll):
		}
	}
	return nil
}

// classify maps a transport send failure to the engine's error taxonomy.
func (s *Sender) classify(err error) error {
	if !s.t.IsOpen() {
		return fmt.Errorf("%w: %v", ErrClosedPrematurely, err)
	}
	return err
}
