// Package peers manages the relay's in-memory room table. A room is keyed by
// session code and holds at most two members, one sender and one receiver.
// The Hub owns the table exclusively; the WebSocket handler goes through
// Join, SendToRole and CloseRoom and never touches it directly.
package peers

import (
	"errors"
	"sync"
	"time"

	"github.com/wavesend/wavesend/pkg/protocol"
)

var (
	// ErrRoomFull means the room already holds two members.
	ErrRoomFull = errors.New("room is full")
	// ErrRoleConflict means a member with the same role is already present.
	ErrRoleConflict = errors.New("role already taken in room")
)

// Peer identifies a room member.
type Peer struct {
	PeerID string
	Role   string
}

// member holds a peer, its outbound queue and the hooks to tear it down.
type member struct {
	peer      Peer
	send      chan protocol.Signal
	done      chan struct{}
	closeConn func()
}

// Hub manages rooms in a thread-safe manner.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]*member // code -> role -> member
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*member)}
}

// Join adds a peer to the room for code. send is called from a dedicated
// writer goroutine for every queued signal; closeConn is invoked when the
// room is force-closed (session expiry). On success it returns the other
// member if one is already present, and a leave function that removes the
// peer and deletes the room once empty. Joining a full room or a room whose
// role slot is taken fails without side effects.
func (h *Hub) Join(code string, p Peer, send func(protocol.Signal) error, closeConn func()) (leave func(), other *Peer, err error) {
	h.mu.Lock()
	room := h.rooms[code]
	if room == nil {
		room = make(map[string]*member)
		h.rooms[code] = room
	}
	if len(room) >= 2 {
		h.mu.Unlock()
		return nil, nil, ErrRoomFull
	}
	if _, taken := room[p.Role]; taken {
		h.mu.Unlock()
		return nil, nil, ErrRoleConflict
	}

	m := &member{
		peer:      p,
		send:      make(chan protocol.Signal, 64),
		done:      make(chan struct{}),
		closeConn: closeConn,
	}
	room[p.Role] = m

	if existing, ok := room[protocol.OppositeRole(p.Role)]; ok {
		peer := existing.peer
		other = &peer
	}
	h.mu.Unlock()

	go func() {
		defer close(m.done)
		for sig := range m.send {
			if err := send(sig); err != nil {
				return
			}
		}
	}()

	leave = func() {
		h.mu.Lock()
		room, ok := h.rooms[code]
		if !ok || room[p.Role] != m {
			h.mu.Unlock()
			return
		}
		delete(room, p.Role)
		if len(room) == 0 {
			delete(h.rooms, code)
		}
		// Closed under the lock so SendToRole can never hit a closed
		// channel: once a send observes the member it holds the lock
		// until the signal is queued.
		close(m.send)
		h.mu.Unlock()

		select {
		case <-m.done:
		case <-time.After(time.Second):
		}
	}
	return leave, other, nil
}

// SendToRole queues a signal for the member holding role in the room for
// code. Returns false if no such member exists. The send is non-blocking;
// a member whose queue is full misses the signal rather than stalling the
// relay.
func (h *Hub) SendToRole(code, role string, sig protocol.Signal) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[code]
	if !ok {
		return false
	}
	m, ok := room[role]
	if !ok {
		return false
	}

	select {
	case m.send <- sig:
	default:
	}
	return true
}

// Member returns the peer holding role in the room for code, if present.
func (h *Hub) Member(code, role string) (Peer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[code]
	if !ok {
		return Peer{}, false
	}
	m, ok := room[role]
	if !ok {
		return Peer{}, false
	}
	return m.peer, true
}

// CloseRoom force-closes every connection in the room for code and deletes
// the room. Used when the backing session expires.
func (h *Hub) CloseRoom(code string) {
	h.mu.Lock()
	room, ok := h.rooms[code]
	if !ok {
		h.mu.Unlock()
		return
	}
	members := make([]*member, 0, len(room))
	for _, m := range room {
		members = append(members, m)
	}
	h.mu.Unlock()

	for _, m := range members {
		if m.closeConn != nil {
			m.closeConn()
		}
	}
}

// RoomCount returns the number of open rooms.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
