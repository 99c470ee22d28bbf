package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wavesend/wavesend/pkg/protocol"
)

var dialer = websocket.Dialer{
	HandshakeTimeout: 5 * time.Second,
}

// Socket is the relay-push signaling channel: a WebSocket connection into a
// two-member room on the relay. Messages from the other peer are forwarded
// by the relay as they arrive.
type Socket struct {
	conn   *websocket.Conn
	logger *slog.Logger
	recv   chan protocol.Signal

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

var _ Channel = (*Socket)(nil)

// DialSocket connects to the relay, joins the room for code under the given
// role, and waits for the relay's joined acknowledgement. A full room or a
// taken role surfaces as ErrRoomFull or ErrRoleTaken.
func DialSocket(ctx context.Context, serverURL, code, role, peerID string, logger *slog.Logger) (*Socket, error) {
	wsURL, err := buildWebSocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if len(body) > 0 {
				return nil, fmt.Errorf("websocket upgrade failed (%d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("websocket upgrade failed (%d)", resp.StatusCode)
		}
		return nil, err
	}

	s := &Socket{
		conn:   conn,
		logger: logger,
		recv:   make(chan protocol.Signal, 64),
		closed: make(chan struct{}),
	}

	join := protocol.Signal{Type: protocol.TypeJoin, RoomCode: code, Role: role, PeerID: peerID}
	if err := s.write(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	// The relay answers the join before anything else: joined on success,
	// error on a full room or role conflict.
	if err := s.awaitJoined(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

func (s *Socket) awaitJoined(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	_, message, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("await joined: %w", err)
	}
	var sig protocol.Signal
	if err := decodeSignal(message, &sig); err != nil {
		return fmt.Errorf("await joined: %w", err)
	}
	switch sig.Type {
	case protocol.TypeJoined:
		return nil
	case protocol.TypeError:
		return mapRelayError(sig.Error)
	default:
		return fmt.Errorf("unexpected reply to join: %q", sig.Type)
	}
}

// Send delivers a signal through the relay to the other peer.
func (s *Socket) Send(sig protocol.Signal) error {
	select {
	case <-s.closed:
		return ErrChannelClosed
	default:
	}
	return s.write(sig)
}

func (s *Socket) write(sig protocol.Signal) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(sig)
}

// Recv returns the inbound signal stream. The stream closes when the
// connection drops or Close is called.
func (s *Socket) Recv() <-chan protocol.Signal {
	return s.recv
}

func (s *Socket) readLoop() {
	defer func() {
		close(s.recv)
		s.Close()
	}()
	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var sig protocol.Signal
		if err := decodeSignal(message, &sig); err != nil {
			s.logger.Warn("dropping malformed signal", "error", err)
			continue
		}

		select {
		case s.recv <- sig:
		case <-s.closed:
			return
		}
	}
}

func (s *Socket) pingLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close sends a leave to the relay and tears the connection down.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.write(protocol.Signal{Type: protocol.TypeLeave})
		_ = s.conn.Close()
	})
	return nil
}

// decodeSignal parses a relay message. The relay forwards peer messages
// verbatim and adds its own types (joined, peer-joined, peer-left, error),
// so anything with a recognized type passes.
func decodeSignal(data []byte, out *protocol.Signal) error {
	var raw protocol.Signal
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}
	switch raw.Type {
	case protocol.TypeJoined, protocol.TypePeerJoined, protocol.TypePeerLeft, protocol.TypeError:
		*out = raw
		return nil
	}
	if err := raw.Validate(); err != nil {
		return err
	}
	*out = raw
	return nil
}

func buildWebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	scheme := strings.Replace(u.Scheme, "http", "ws", 1)
	if u.Scheme == "https" {
		scheme = "wss"
	}
	if scheme != "ws" && scheme != "wss" {
		scheme = "ws"
	}
	wsURL := url.URL{Scheme: scheme, Host: u.Host, Path: "/ws"}
	return wsURL.String(), nil
}
