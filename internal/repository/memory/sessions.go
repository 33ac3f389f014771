package memory

import (
	"context"
	"sync"
	"time"

	"github.com/amberops/workspace/internal/domain"
)

// SessionRepository implements domain.SessionRepository in memory.
// Expired entries are hidden on read and removed by PurgeExpired.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for expiry checks
func (r *SessionRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *SessionRepository) Save(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *session
	r.sessions[session.ID] = &c
	return nil
}

func (r *SessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.Expired(r.now()) {
		return nil, domain.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) DeleteByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.PrincipalUserID == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// PurgeExpired drops expired sessions and returns how many were removed
func (r *SessionRepository) PurgeExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sessions, expired or not
func (r *SessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CountSessions returns the number of live sessions
func (r *SessionRepository) CountSessions(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	n := 0
	for _, s := range r.sessions {
		if !s.Expired(now) {
			n++
		}
	}
	return n, nil
}
