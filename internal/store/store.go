// Package store provides storage backends for IntakeBot.
//
// It includes SQLite and PostgreSQL stores behind a common interface, plus an
// in-memory store used in tests and when no DSN is configured. The store is
// the persistence sink of the form workflow: it owns the per-kind sequence
// counters and the durable form records used for retry-by-lookup.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// Store is the persistence interface consumed by the bot and the workflow
// engine. Lookups return (nil, nil) when the record is absent; errors are
// reserved for storage failures.
type Store interface {
	// Users
	UpsertUser(u models.User) error
	GetUser(id string) (*models.User, error)
	ListUsers() ([]models.User, error)
	UpdateUserField(id, field, value string) error
	DeleteUser(id string) error
	SetUserApproved(id string, approved bool) error
	SetUserAdmin(id string, admin bool) error
	GetUserSettings(id string) (models.UserSettings, error)
	UpdateUserSettings(id string, s models.UserSettings) error

	// Forms
	NextFormNumber(kind models.FormKind) (int, error)
	SaveForm(f models.Form) error
	GetFormByKindAndNumber(kind models.FormKind, number int) (*models.Form, error)
	GetFormByID(id int64) (*models.Form, error)
	ListFormsByKind(kind models.FormKind) ([]models.Form, error)
	ListFormsByUser(userID string) ([]models.Form, error)
	UpdateFormField(id int64, field, value string) error
	DeleteForm(id int64) error

	UsageStats() (models.UsageStats, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures store creation.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the database DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the database DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store implementation.
type InMemoryStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	forms    map[int64]models.Form
	counters map[models.FormKind]int
	nextID   int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]models.User),
		forms:    make(map[int64]models.Form),
		counters: make(map[models.FormKind]int),
		nextID:   1,
	}
}

func (s *InMemoryStore) UpsertUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.users[u.ID]; ok && u.CreatedAt.IsZero() {
		u.CreatedAt = prev.CreatedAt
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *InMemoryStore) ListUsers() ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *InMemoryStore) UpdateUserField(id, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	switch field {
	case "fullname":
		u.FullName = value
	case "phone":
		u.Phone = value
	case "position":
		u.Position = value
	case "department":
		u.Department = value
	case "username":
		u.Username = value
	default:
		return models.ErrUserNotFound
	}
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *InMemoryStore) SetUserApproved(id string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Approved = approved
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) SetUserAdmin(id string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Admin = admin
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) GetUserSettings(id string) (models.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Settings, nil
}

func (s *InMemoryStore) UpdateUserSettings(id string, set models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Settings = set
	s.users[id] = u
	return nil
}

// NextFormNumber atomically increments and returns the per-kind counter.
// Numbers are never reused: a failed or abandoned submission permanently
// consumes its number.
func (s *InMemoryStore) NextFormNumber(kind models.FormKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[kind]++
	return s.counters[kind], nil
}

// SaveForm stores the form, replacing any prior record with the same kind
// and number (retry after a failed push re-saves the same record).
func (s *InMemoryStore) SaveForm(f models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.forms {
		if existing.Kind == f.Kind && existing.Number == f.Number {
			f.ID = id
			s.forms[id] = f
			return nil
		}
	}
	f.ID = s.nextID
	s.nextID++
	s.forms[f.ID] = f
	return nil
}

func (s *InMemoryStore) GetFormByKindAndNumber(kind models.FormKind, number int) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.forms {
		if f.Kind == kind && f.Number == number {
			return cloneForm(f), nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetFormByID(id int64) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, nil
	}
	return cloneForm(f), nil
}

func (s *InMemoryStore) ListFormsByKind(kind models.FormKind) ([]models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Form
	for _, f := range s.forms {
		if f.Kind == kind {
			out = append(out, *cloneForm(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *InMemoryStore) ListFormsByUser(userID string) ([]models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Form
	for _, f := range s.forms {
		if f.UserID == userID {
			out = append(out, *cloneForm(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) UpdateFormField(id int64, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return models.ErrFormNotFound
	}
	values := make(map[string]string, len(f.Values)+1)
	for k, v := range f.Values {
		values[k] = v
	}
	values[field] = value
	f.Values = values
	s.forms[id] = f
	return nil
}

func (s *InMemoryStore) DeleteForm(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, id)
	return nil
}

func (s *InMemoryStore) UsageStats() (models.UsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.UsageStats{FormsByKind: make(map[models.FormKind]int)}
	stats.TotalUsers = len(s.users)
	for _, u := range s.users {
		if u.Approved {
			stats.ApprovedUsers++
		}
		if u.Admin {
			stats.AdminUsers++
		}
	}
	for _, f := range s.forms {
		stats.FormsByKind[f.Kind]++
		stats.TotalForms++
	}
	return stats, nil
}

func (s *InMemoryStore) Close() error { return nil }

func cloneForm(f models.Form) *models.Form {
	values := make(map[string]string, len(f.Values))
	for k, v := range f.Values {
		values[k] = v
	}
	f.Values = values
	return &f
}
