package session

import (
	"testing"
	"time"

	"github.com/gdcoding/IntakeBot/internal/models"
)

func TestCreateOverwritesPriorSession(t *testing.T) {
	m := NewManager(0)
	m.Create("u1", models.FormKindDelivery)
	s := m.Get("u1")
	if s == nil || s.Kind != models.FormKindDelivery {
		t.Fatalf("expected delivery session, got %+v", s)
	}
	s.Values["contract"] = "A-1"

	m.Create("u1", models.FormKindRefund)
	s = m.Get("u1")
	if s.Kind != models.FormKindRefund {
		t.Errorf("expected refund session after overwrite, got %s", s.Kind)
	}
	if len(s.Values) != 0 {
		t.Errorf("overwritten session must not inherit values: %v", s.Values)
	}
}

func TestGetAbsent(t *testing.T) {
	m := NewManager(0)
	if s := m.Get("nobody"); s != nil {
		t.Errorf("expected nil for absent session, got %+v", s)
	}
}

func TestClear(t *testing.T) {
	m := NewManager(0)
	m.Create("u1", models.FormKindPainting)
	m.Clear("u1")
	if m.Get("u1") != nil {
		t.Error("session survived Clear")
	}
	// Clearing an absent session is a no-op.
	m.Clear("u1")
}

func TestSessionsIndependentAcrossUsers(t *testing.T) {
	m := NewManager(0)
	m.Create("u1", models.FormKindDelivery)
	m.Create("u2", models.FormKindCheckin)
	m.Clear("u1")
	if m.Get("u2") == nil {
		t.Error("clearing u1 affected u2")
	}
}

func TestExpiry(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	s := m.Create("u1", models.FormKindDelivery)
	s.UpdatedAt = time.Now().Add(-time.Minute)
	if m.Get("u1") != nil {
		t.Error("expected expired session to be dropped on Get")
	}
	if m.Len() != 0 {
		t.Errorf("expired session still counted: %d", m.Len())
	}
}

func TestPrune(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	m.Create("old", models.FormKindDelivery)
	m.Create("fresh", models.FormKindRefund)
	m.mu.Lock()
	m.sessions["old"].UpdatedAt = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	if n := m.Prune(); n != 1 {
		t.Errorf("Prune dropped %d sessions, want 1", n)
	}
	if m.Get("fresh") == nil {
		t.Error("fresh session pruned")
	}
}

func TestPruneDisabled(t *testing.T) {
	m := NewManager(0)
	s := m.Create("u1", models.FormKindDelivery)
	s.UpdatedAt = time.Now().Add(-24 * time.Hour)
	if n := m.Prune(); n != 0 {
		t.Errorf("Prune with zero TTL dropped %d sessions", n)
	}
}
