package memstore

import (
	"sync"
	"time"

	"github.com/askidc/corpus-assistant/internal/core/domain"
)

// Store keeps bounded conversation history per session ID. Sessions
// are created lazily, hold at most maxTurns turns (oldest evicted
// first) and read as empty once the TTL has elapsed. Operations on the
// same session serialize on a per-session mutex; independent sessions
// do not contend.
type Store struct {
	ttl      time.Duration
	maxTurns int
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session

	stopOnce sync.Once
	stop     chan struct{}
}

type session struct {
	mu       sync.Mutex
	turns    []domain.Turn
	lastSeen time.Time
}

func New(ttl time.Duration, maxTurns int) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxTurns <= 0 {
		maxTurns = 20
	}
	s := &Store{
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) Append(sessionID string, turn domain.Turn) {
	if sessionID == "" {
		return
	}
	entry := s.getOrCreate(sessionID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := s.now()
	if s.expired(entry, now) {
		// An expired session restarts fresh on its next append.
		entry.turns = entry.turns[:0]
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}
	entry.turns = append(entry.turns, turn)
	if overflow := len(entry.turns) - s.maxTurns; overflow > 0 {
		entry.turns = append(entry.turns[:0], entry.turns[overflow:]...)
	}
	entry.lastSeen = now
}

// Recent returns up to maxTurns turns, oldest first. Expired or
// unknown sessions read as empty.
func (s *Store) Recent(sessionID string, maxTurns int) []domain.Turn {
	if sessionID == "" || maxTurns <= 0 {
		return nil
	}

	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if s.expired(entry, s.now()) {
		return nil
	}
	turns := entry.turns
	if maxTurns < len(turns) {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) getOrCreate(sessionID string) *session {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[sessionID]; ok {
		return entry
	}
	entry = &session{}
	s.sessions[sessionID] = entry
	return entry
}

func (s *Store) expired(entry *session, now time.Time) bool {
	return !entry.lastSeen.IsZero() && now.Sub(entry.lastSeen) > s.ttl
}

func (s *Store) janitor() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		entry.mu.Lock()
		dead := s.expired(entry, now)
		entry.mu.Unlock()
		if dead {
			delete(s.sessions, id)
		}
	}
}
