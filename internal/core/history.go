package core

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultHistorySize is how many sessions History keeps when no size is
// given.
const DefaultHistorySize = 100

// History keeps the most recent copy sessions in memory, newest last.
type History struct {
	mu       sync.RWMutex
	sessions []Session
	size     int
}

// NewHistory returns a History holding at most size sessions.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Record stores s, replacing an earlier record with the same ID. When full,
// the oldest session is dropped.
func (h *History) Record(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.sessions {
		if h.sessions[i].ID == s.ID {
			h.sessions[i] = s
			return
		}
	}
	if len(h.sessions) == h.size {
		copy(h.sessions, h.sessions[1:])
		h.sessions = h.sessions[:h.size-1]
	}
	h.sessions = append(h.sessions, s)
}

// Get returns the session with the given ID.
func (h *History) Get(id string) (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// Recent returns up to n sessions, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.sessions) {
		n = len(h.sessions)
	}
	out := make([]Session, 0, n)
	for i := len(h.sessions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.sessions[i])
	}
	return out
}

// Len returns the number of stored sessions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
