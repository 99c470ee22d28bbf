package relay

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wavesend/wavesend/internal/peers"
	"github.com/wavesend/wavesend/internal/session"
	"github.com/wavesend/wavesend/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// joinTimeout bounds how long a fresh connection may sit idle before its
// join message arrives.
const joinTimeout = 10 * time.Second

// handleWebSocket upgrades the connection and runs the relay protocol: the
// first message must be a join naming the room code and role; after a
// successful join the connection receives the signals the opposite peer
// sends into the room until either side leaves or the session expires.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if ip := clientIP(r); ip != "" && !s.wsLimiter.Allow(ip) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(int64(s.opts.MaxMessageBytes))
	}

	var writeMu sync.Mutex
	sendSignal := func(sig protocol.Signal) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(sig)
	}

	idle := s.opts.WSIdleTimeout
	if idle > 0 {
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(idle))
			return nil
		})
		conn.SetPingHandler(func(appData string) error {
			conn.SetReadDeadline(time.Now().Add(idle))
			writeMu.Lock()
			err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
			writeMu.Unlock()
			return err
		})
	}

	join, ok := s.awaitJoin(conn, sendSignal)
	if !ok {
		return
	}

	code := join.RoomCode
	peer := peers.Peer{PeerID: join.PeerID, Role: join.Role}

	if _, err := s.store.Get(code); err != nil {
		_ = sendSignal(protocol.NewError(protocol.ErrCodeBadSession))
		return
	}

	leave, other, err := s.hub.Join(code, peer, sendSignal, func() { _ = conn.Close() })
	if err != nil {
		switch {
		case errors.Is(err, peers.ErrRoomFull):
			_ = sendSignal(protocol.NewError(protocol.ErrCodeRoomFull))
		case errors.Is(err, peers.ErrRoleConflict):
			_ = sendSignal(protocol.NewError(protocol.ErrCodeRoleTaken))
		default:
			s.log.Error("room join failed", "code", code, "error", err)
			_ = sendSignal(protocol.NewError(protocol.ErrCodeBadSession))
		}
		return
	}

	s.log.Info("peer joined", "code", code, "peer_id", peer.PeerID, "role", peer.Role)
	s.setConnected(code, peer.Role, true)

	defer func() {
		leave()
		s.setConnected(code, peer.Role, false)
		s.hub.SendToRole(code, protocol.OppositeRole(peer.Role), protocol.Signal{
			Type:   protocol.TypePeerLeft,
			PeerID: peer.PeerID,
			Role:   peer.Role,
		})
		s.log.Info("peer left", "code", code, "peer_id", peer.PeerID)
	}()

	// The joined ack goes out before any peer-joined notifications so the
	// client sees its own admission first.
	if err := sendSignal(protocol.Signal{Type: protocol.TypeJoined, RoomCode: code, Role: peer.Role}); err != nil {
		return
	}
	if other != nil {
		s.hub.SendToRole(code, peer.Role, protocol.Signal{
			Type:   protocol.TypePeerJoined,
			PeerID: other.PeerID,
			Role:   other.Role,
		})
	}
	s.hub.SendToRole(code, protocol.OppositeRole(peer.Role), protocol.Signal{
		Type:   protocol.TypePeerJoined,
		PeerID: peer.PeerID,
		Role:   peer.Role,
	})

	if idle > 0 {
		stopPing := make(chan struct{})
		defer close(stopPing)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-stopPing:
					return
				case <-ticker.C:
					writeMu.Lock()
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
					writeMu.Unlock()
				}
			}
		}()
	}

	s.readLoop(conn, sendSignal, code, peer)
}

// awaitJoin reads the first message and requires it to be a valid join.
func (s *Server) awaitJoin(conn *websocket.Conn, sendSignal func(protocol.Signal) error) (protocol.Signal, bool) {
	conn.SetReadDeadline(time.Now().Add(joinTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return protocol.Signal{}, false
	}
	sig, err := protocol.ParseSignal(raw)
	if err != nil || sig.Type != protocol.TypeJoin {
		_ = sendSignal(protocol.NewError(protocol.ErrCodeInvalidMessage))
		return protocol.Signal{}, false
	}
	if s.opts.WSIdleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.opts.WSIdleTimeout))
	} else {
		conn.SetReadDeadline(time.Time{})
	}
	return sig, true
}

// readLoop forwards the peer's signals to the opposite role until the
// connection drops or the peer leaves. Malformed messages draw an error
// reply but do not end the connection.
func (s *Server) readLoop(conn *websocket.Conn, sendSignal func(protocol.Signal) error, code string, peer peers.Peer) {
	for {
		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				s.log.Info("websocket idle timeout", "peer_id", peer.PeerID)
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Error("websocket read error", "error", err)
			}
			return
		}
		if s.opts.WSIdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.WSIdleTimeout))
		}
		if messageType != websocket.TextMessage {
			continue
		}

		sig, err := protocol.ParseSignal(raw)
		if err != nil {
			_ = sendSignal(protocol.NewError(protocol.ErrCodeInvalidMessage))
			continue
		}

		switch sig.Type {
		case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeIceCandidate:
			// Offers flow sender to receiver and answers the other way;
			// a description from the wrong role is a protocol error.
			if (sig.Type == protocol.TypeOffer && peer.Role != protocol.RoleSender) ||
				(sig.Type == protocol.TypeAnswer && peer.Role != protocol.RoleReceiver) {
				_ = sendSignal(protocol.NewError(protocol.ErrCodeInvalidMessage))
				continue
			}
			// The sender's identity comes from the join, not from whatever
			// the message claims.
			sig.RoomCode = code
			sig.Role = peer.Role
			sig.PeerID = peer.PeerID
			s.recordSignal(code, peer.Role, sig)
			s.hub.SendToRole(code, protocol.OppositeRole(peer.Role), sig)
		case protocol.TypeLeave:
			return
		default:
			_ = sendSignal(protocol.NewError(protocol.ErrCodeInvalidMessage))
		}
	}
}

// recordSignal mirrors relayed signals into the session registry so a peer
// polling the HTTP surface sees the same negotiation state as one on the
// socket. Registry errors are ignored; the live forward already happened.
func (s *Server) recordSignal(code, role string, sig protocol.Signal) {
	var fields session.Fields
	switch sig.Type {
	case protocol.TypeOffer:
		if role != protocol.RoleSender {
			return
		}
		fields.SenderOffer = &sig.SDP
	case protocol.TypeAnswer:
		if role != protocol.RoleReceiver {
			return
		}
		fields.ReceiverAnswer = &sig.SDP
	case protocol.TypeIceCandidate:
		if role == protocol.RoleSender {
			fields.SenderIceCandidate = &sig.Candidate
		} else {
			fields.ReceiverIceCandidate = &sig.Candidate
		}
	default:
		return
	}
	_ = s.store.Update(code, fields)
}

func (s *Server) setConnected(code, role string, connected bool) {
	var fields session.Fields
	if role == protocol.RoleSender {
		fields.SenderConnected = &connected
	} else {
		fields.ReceiverConnected = &connected
	}
	_ = s.store.Update(code, fields)
}
