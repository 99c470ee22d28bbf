package session

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	codeLength   = 6
	codeAttempts = 50
)

var (
	// ErrNotFound means no session exists under the code.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means a session existed but its TTL has passed or it was
	// deactivated. Readers that observe this state delete the session.
	ErrExpired = errors.New("session expired")
	// ErrCodeExhausted means no free code was found within the attempt bound.
	ErrCodeExhausted = errors.New("code allocation exhausted")
)

// Store is a thread-safe in-memory session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	genCode  func() string
}

// NewStore creates a registry with the given TTL. A zero TTL uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	return NewStoreWithNow(ttl, time.Now)
}

// NewStoreWithNow creates a registry with a custom time source (for tests).
func NewStoreWithNow(ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
		genCode:  generateCode,
	}
}

// Create registers a new session for the given file and returns it. It
// generates a fresh code, retrying on collision with an active session up to
// the attempt bound; a code whose existing session has expired is reclaimed.
func (s *Store) Create(fileName string, fileSize int64, fileType string) (Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < codeAttempts; i++ {
		code := s.genCode()
		if existing, ok := s.sessions[code]; ok && !existing.expired(now) {
			continue
		}
		sess := &Session{
			Code:      code,
			FileName:  fileName,
			FileSize:  fileSize,
			FileType:  fileType,
			CreatedAt: now,
			ExpireAt:  now.Add(s.ttl),
			Active:    true,
		}
		s.sessions[code] = sess
		return sess.clone(), nil
	}

	return Session{}, ErrCodeExhausted
}

// Get returns the session under code. An expired or inactive session is
// deleted as a side effect and reported as ErrExpired; a later Get for the
// same code reports ErrNotFound.
func (s *Store) Get(code string) (Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return Session{}, ErrNotFound
	}
	if sess.expired(now) {
		delete(s.sessions, code)
		return Session{}, ErrExpired
	}
	return sess.clone(), nil
}

// Update applies a partial update under the same expiry rule as Get.
// Candidate fields append to their list so concurrent updates from both
// peers never lose entries; scalar fields overwrite.
func (s *Store) Update(code string, f Fields) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return ErrNotFound
	}
	if sess.expired(now) {
		delete(s.sessions, code)
		return ErrExpired
	}

	if f.SenderOffer != nil {
		sess.SenderOffer = *f.SenderOffer
	}
	if f.ReceiverAnswer != nil {
		sess.ReceiverAnswer = *f.ReceiverAnswer
	}
	if f.SenderIceCandidate != nil {
		sess.SenderIceCandidates = append(sess.SenderIceCandidates, *f.SenderIceCandidate)
	}
	if f.ReceiverIceCandidate != nil {
		sess.ReceiverIceCandidates = append(sess.ReceiverIceCandidates, *f.ReceiverIceCandidate)
	}
	if f.SenderConnected != nil {
		sess.SenderConnected = *f.SenderConnected
	}
	if f.ReceiverConnected != nil {
		sess.ReceiverConnected = *f.ReceiverConnected
	}
	if f.Active != nil {
		sess.Active = *f.Active
	}
	return nil
}

// Delete removes the session under code. Removing an absent session is not
// an error.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	delete(s.sessions, code)
	s.mu.Unlock()
}

// Count returns the number of stored sessions, expired ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes all sessions expired as of now and returns their codes so
// the caller can tear down any signaling rooms tied to them. The server
// runs this on a ticker; expired sessions are also reaped lazily by Get
// and Update.
func (s *Store) Sweep(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for code, sess := range s.sessions {
		if sess.expired(now) {
			delete(s.sessions, code)
			removed = append(removed, code)
		}
	}
	return removed
}

// generateCode produces a 6-digit numeric code.
func generateCode() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fallback if rand fails (should be extremely rare)
		return "000000"
	}
	n := binary.BigEndian.Uint32(b[:]) % 1000000
	return fmt.Sprintf("%06d", n)
}
