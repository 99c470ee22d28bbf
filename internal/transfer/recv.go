package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wavesend/wavesend/internal/transport"
	"github.com/wavesend/wavesend/pkg/protocol"
)

// RecvOptions tune a receiver.
type RecvOptions struct {
	// OnProgress, when set, is called after each chunk with cumulative
	// bytes received and the declared total.
	OnProgress func(received, total int64)
}

// Receiver reassembles one incoming transfer from a transport. It registers
// the transport's message and close handlers on construction; Wait blocks
// until the transfer finalizes, fails, or the context is cancelled.
type Receiver struct {
	t      transport.Transport
	outDir string
	opts   RecvOptions

	mu       sync.Mutex
	metaSeen bool
	meta     protocol.FileMeta
	chunks   [][]byte
	received int64
	finished bool

	done chan struct{}
	path string
	err  error
}

// NewReceiver creates a receiver that writes the finished file into outDir.
func NewReceiver(t transport.Transport, outDir string, opts RecvOptions) *Receiver {
	r := &Receiver{
		t:      t,
		outDir: outDir,
		opts:   opts,
		done:   make(chan struct{}),
	}
	t.OnMessage(r.handleMessage)
	t.OnClose(r.handleClose)
	return r
}

// Wait blocks until the transfer completes and returns the saved file path.
// Cancellation surfaces as the context's error, distinct from
// ErrClosedPrematurely.
func (r *Receiver) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.done:
		return r.path, r.err
	}
}

func (r *Receiver) handleMessage(msg transport.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}

	if !r.metaSeen {
		if !msg.Text {
			r.failLocked(ErrMetaExpected)
			return
		}
		meta, err := protocol.DecodeFileMeta(msg.Data)
		if err != nil {
			r.failLocked(fmt.Errorf("%w: %v", ErrMetaExpected, err))
			return
		}
		if err := validFilename(meta.Name); err != nil {
			r.failLocked(err)
			return
		}
		r.metaSeen = true
		r.meta = meta
		r.chunks = r.chunks[:0]
		r.received = 0
		if r.opts.OnProgress != nil {
			r.opts.OnProgress(0, meta.Size)
		}
		if meta.Size == 0 {
			r.finalizeLocked()
		}
		return
	}

	if msg.Text {
		// Unknown control message mid-transfer; ignore rather than abort.
		return
	}

	// The transport may reuse its receive buffer; keep our own copy.
	chunk := make([]byte, len(msg.Data))
	copy(chunk, msg.Data)
	r.chunks = append(r.chunks, chunk)
	r.received += int64(len(chunk))

	if r.opts.OnProgress != nil {
		r.opts.OnProgress(r.received, r.meta.Size)
	}

	if r.received > r.meta.Size {
		r.failLocked(ErrSizeOverrun)
		return
	}
	if r.received == r.meta.Size {
		r.finalizeLocked()
	}
}

func (r *Receiver) handleClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.failLocked(ErrClosedPrematurely)
}

// finalizeLocked concatenates the chunk buffer in arrival order into a
// temp file next to the destination, renames it into place once complete,
// and releases the buffers. A write failure leaves no partial file at the
// final path.
func (r *Receiver) finalizeLocked() {
	outPath := filepath.Join(r.outDir, r.meta.Name)
	out, err := os.CreateTemp(r.outDir, r.meta.Name+".part*")
	if err != nil {
		r.failLocked(fmt.Errorf("create output file: %w", err))
		return
	}
	tmpPath := out.Name()
	for _, chunk := range r.chunks {
		if _, err := out.Write(chunk); err != nil {
			out.Close()
			os.Remove(tmpPath)
			r.failLocked(fmt.Errorf("write output file: %w", err))
			return
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		r.failLocked(fmt.Errorf("close output file: %w", err))
		return
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		r.failLocked(fmt.Errorf("finalize output file: %w", err))
		return
	}

	r.chunks = nil
	r.finished = true
	r.path = outPath
	close(r.done)
}

func (r *Receiver) failLocked(err error) {
	r.chunks = nil
	r.finished = true
	r.err = err
	close(r.done)
}
