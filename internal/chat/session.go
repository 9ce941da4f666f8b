package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Turn is one conversation turn
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type session struct {
	mu       sync.Mutex
	turns    []Turn
	appended int
}

// Store holds per-user conversation history in memory. Sessions are created
// lazily on first append and live for the process lifetime; history is
// ephemeral scratch state, not a system of record.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	maxTurns int
}

// NewStore creates a session store. Each session keeps at most 2*maxTurns
// turns; older turns are evicted from the front.
func NewStore(maxTurns int) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*session),
		maxTurns: maxTurns,
	}
}

// capacity is the per-session turn bound
func (s *Store) capacity() int {
	return 2 * s.maxTurns
}

// get returns the session for a user, creating it if needed.
// Double-checked locking keeps the read path contention-free.
func (s *Store) get(userID uuid.UUID) *session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[userID]; ok {
		return sess
	}
	sess = &session{}
	s.sessions[userID] = sess
	return sess
}

// Append adds a turn to the user's session, evicting the oldest turns when
// the bound is exceeded. Appends for the same user are serialized.
func (s *Store) Append(userID uuid.UUID, role, content string) {
	sess := s.get(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turns = append(sess.turns, Turn{Role: role, Content: content})
	sess.appended++
	if excess := len(sess.turns) - s.capacity(); excess > 0 {
		sess.turns = append([]Turn(nil), sess.turns[excess:]...)
	}
}

// Snapshot returns a copy of the user's history in arrival order. Users
// without a session get an empty snapshot.
func (s *Store) Snapshot(userID uuid.UUID) []Turn {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	turns := make([]Turn, len(sess.turns))
	copy(turns, sess.turns)
	return turns
}

// TurnCount returns the number of turns currently stored for a user
func (s *Store) TurnCount(userID uuid.UUID) int {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.turns)
}

// AppendedTurns returns the cumulative number of turns ever appended to the
// user's session. Unlike TurnCount it keeps growing once eviction pins the
// stored length at the bound.
func (s *Store) AppendedTurns(userID uuid.UUID) int {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.appended
}

// Clear removes the user's session entirely. Idempotent.
func (s *Store) Clear(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
