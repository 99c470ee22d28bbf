package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wavesend/wavesend/pkg/protocol"
)

var (
	// ErrSessionNotFound maps a registry 404.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired maps a registry 410.
	ErrSessionExpired = errors.New("session expired")
)

// APIClient talks to the session registry HTTP surface.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient creates a registry client for the given server URL.
func NewAPIClient(serverURL string) *APIClient {
	serverURL = strings.TrimRight(serverURL, "/")
	if !strings.HasPrefix(serverURL, "http") {
		serverURL = "http://" + serverURL
	}
	return &APIClient{
		baseURL: serverURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession registers a new transfer session and returns its code.
func (c *APIClient) CreateSession(ctx context.Context, fileName string, fileSize int64, fileType string) (protocol.CreateSessionResponse, error) {
	body, err := json.Marshal(protocol.CreateSessionRequest{
		FileName: fileName,
		FileSize: fileSize,
		FileType: fileType,
	})
	if err != nil {
		return protocol.CreateSessionResponse{}, err
	}

	var out protocol.CreateSessionResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", body, http.StatusCreated, &out); err != nil {
		return protocol.CreateSessionResponse{}, err
	}
	return out, nil
}

// GetSession fetches the current session document.
func (c *APIClient) GetSession(ctx context.Context, code string) (protocol.SessionView, error) {
	var out protocol.SessionView
	if err := c.do(ctx, http.MethodGet, "/sessions/"+code, nil, http.StatusOK, &out); err != nil {
		return protocol.SessionView{}, err
	}
	return out, nil
}

// UpdateSession applies a partial update. Candidate fields append on the
// server; scalar fields overwrite.
func (c *APIClient) UpdateSession(ctx context.Context, code string, upd protocol.UpdateSessionRequest) error {
	body, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, "/sessions/"+code, body, http.StatusOK, nil)
}

// DeleteSession removes the session. Deleting an absent session succeeds.
func (c *APIClient) DeleteSession(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+code, nil, http.StatusOK, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body []byte, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case wantStatus:
	case http.StatusNotFound:
		return ErrSessionNotFound
	case http.StatusGone:
		return ErrSessionExpired
	default:
		var e protocol.ErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
