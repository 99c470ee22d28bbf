// Package transfer implements the chunked file transfer engine running on
// top of a transport.Transport. The sender emits one file-meta message and
// then fixed-size binary chunks in order, pausing while the transport's
// outbound buffer is above the high-water mark. The receiver accumulates
// chunks and finalizes when the declared byte count is reached; there is no
// end-of-transfer message.
package transfer

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultChunkSize is the per-message chunk size.
	DefaultChunkSize = 16 * 1024

	// DefaultHighWaterMark is the outbound buffer level above which the
	// sender pauses. Sending past it risks unbounded memory growth in the
	// transport layer.
	DefaultHighWaterMark = 16 * 1024 * 1024

	// DefaultDrainPoll is how often a paused sender re-checks the buffer.
	DefaultDrainPoll = 50 * time.Millisecond

	maxFilenameLength = 256
)

var (
	// ErrTransferInFlight means a transfer is already running on the
	// connection; at most one is allowed.
	ErrTransferInFlight = errors.New("transfer already in flight")
	// ErrClosedPrematurely means the channel closed before the declared
	// size was reached. Distinct from cancellation.
	ErrClosedPrematurely = errors.New("channel closed before transfer completed")
	// ErrFileRead means reading the source file failed mid-send.
	ErrFileRead = errors.New("file read error")
	// ErrMetaExpected means the first message was not file metadata.
	ErrMetaExpected = errors.New("expected file-meta as first message")
	// ErrSizeOverrun means more bytes arrived than the metadata declared.
	ErrSizeOverrun = errors.New("received more bytes than declared size")
	// ErrInvalidFilename means the announced filename is empty, too long,
	// or attempts path traversal.
	ErrInvalidFilename = errors.New("invalid filename")
)

// validFilename rejects names that are empty, over-long, or not a plain
// base name.
func validFilename(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidFilename
	}
	if len(name) > maxFilenameLength {
		return ErrInvalidFilename
	}
	return nil
}
