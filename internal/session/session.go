// Package session holds transient per-user form sessions.
//
// Sessions are keyed by user ID and fully independent across users; each
// user's events are processed one at a time, so the lock only guards the map
// against the TTL sweeper and concurrent users.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// DefaultTTL is how long an abandoned in-progress session survives before
// the sweeper discards it. Zero disables expiry.
const DefaultTTL = 30 * time.Minute

// Manager is an in-memory keyed store of active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	ttl      time.Duration
}

// NewManager creates a session manager with the given TTL (0 = never expire).
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*models.Session),
		ttl:      ttl,
	}
}

// Create starts a new session for the user, overwriting any prior
// in-progress session (last-write-wins, no merge).
func (m *Manager) Create(userID string, kind models.FormKind) *models.Session {
	now := time.Now()
	s := &models.Session{
		UserID:    userID,
		Kind:      kind,
		Values:    make(map[string]string),
		Phase:     models.PhaseCollecting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
	slog.Debug("session created", "userID", userID, "kind", kind)
	return s
}

// Get returns the user's active session, or nil if none exists or it has
// expired.
func (m *Manager) Get(userID string) *models.Session {
	m.mu.RLock()
	s := m.sessions[userID]
	m.mu.RUnlock()
	if s == nil {
		return nil
	}
	if m.expired(s, time.Now()) {
		m.Clear(userID)
		return nil
	}
	return s
}

// Touch refreshes the session's UpdatedAt so active users are not swept.
func (m *Manager) Touch(userID string) {
	m.mu.Lock()
	if s := m.sessions[userID]; s != nil {
		s.UpdatedAt = time.Now()
	}
	m.mu.Unlock()
}

// Clear discards the user's session, if any.
func (m *Manager) Clear(userID string) {
	m.mu.Lock()
	_, existed := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if existed {
		slog.Debug("session cleared", "userID", userID)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune removes expired sessions and returns how many were dropped.
func (m *Manager) Prune() int {
	if m.ttl <= 0 {
		return 0
	}
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		slog.Info("pruned expired sessions", "count", dropped)
	}
	return dropped
}

// StartSweeper runs Prune on the given interval until the context is done.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Prune()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) expired(s *models.Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl
}
