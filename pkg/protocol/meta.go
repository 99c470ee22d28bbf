package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeFileMeta is the first message a sender emits on an open data channel.
// It travels as a text message; every following binary message is one file
// chunk, in order. There is no end-of-transfer message: completion is
// inferred when the accumulated byte count reaches Size.
const TypeFileMeta = "file-meta"

// FileMeta announces the file about to be transferred.
type FileMeta struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

var ErrNotFileMeta = errors.New("not a file-meta message")

// EncodeFileMeta builds the metadata message for a file.
func EncodeFileMeta(name string, size int64) ([]byte, error) {
	return json.Marshal(FileMeta{Type: TypeFileMeta, Name: name, Size: size})
}

// DecodeFileMeta parses a metadata message, rejecting anything else.
func DecodeFileMeta(data []byte) (FileMeta, error) {
	var m FileMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return FileMeta{}, fmt.Errorf("decode file-meta: %w", err)
	}
	if m.Type != TypeFileMeta {
		return FileMeta{}, ErrNotFileMeta
	}
	if m.Name == "" {
		return FileMeta{}, fmt.Errorf("%w: file-meta requires name", ErrMissingField)
	}
	if m.Size < 0 {
		return FileMeta{}, fmt.Errorf("file-meta size must be non-negative, got %d", m.Size)
	}
	return m, nil
}
