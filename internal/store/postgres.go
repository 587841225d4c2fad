package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/gdcoding/IntakeBot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) UpsertUser(u models.User) error {
	u = withCreatedAt(u)
	settings, err := encodeSettings(u.Settings)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO users (user_id, username, fullname, phone, position, department, approved, admin, settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			fullname = EXCLUDED.fullname,
			phone = EXCLUDED.phone,
			position = EXCLUDED.position,
			department = EXCLUDED.department,
			approved = EXCLUDED.approved,
			admin = EXCLUDED.admin,
			settings = EXCLUDED.settings`,
		u.ID, u.Username, u.FullName, u.Phone, u.Position, u.Department, u.Approved, u.Admin, settings, u.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertUser failed", "error", err, "userID", u.ID)
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	slog.Debug("PostgresStore UpsertUser succeeded", "userID", u.ID)
	return nil
}

func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT user_id, username, fullname, phone, position, department, approved, admin, settings, created_at FROM users WHERE user_id = $1`, id)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT user_id, username, fullname, phone, position, department, approved, admin, settings, created_at FROM users ORDER BY created_at, user_id`)
	if err != nil {
		slog.Error("PostgresStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s *PostgresStore) UpdateUserField(id, field, value string) error {
	column, ok := userColumn(field)
	if !ok {
		return fmt.Errorf("unknown user field %q", field)
	}
	res, err := s.db.Exec(`UPDATE users SET `+column+` = $1 WHERE user_id = $2`, value, id)
	if err != nil {
		slog.Error("PostgresStore UpdateUserField failed", "error", err, "userID", id, "field", field)
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

func (s *PostgresStore) DeleteUser(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteUser failed", "error", err, "userID", id)
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	slog.Debug("PostgresStore DeleteUser succeeded", "userID", id)
	return nil
}

func (s *PostgresStore) SetUserApproved(id string, approved bool) error {
	res, err := s.db.Exec(`UPDATE users SET approved = $1 WHERE user_id = $2`, approved, id)
	if err != nil {
		slog.Error("PostgresStore SetUserApproved failed", "error", err, "userID", id)
		return fmt.Errorf("failed to set approved for user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

func (s *PostgresStore) SetUserAdmin(id string, admin bool) error {
	res, err := s.db.Exec(`UPDATE users SET admin = $1 WHERE user_id = $2`, admin, id)
	if err != nil {
		slog.Error("PostgresStore SetUserAdmin failed", "error", err, "userID", id)
		return fmt.Errorf("failed to set admin for user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

func (s *PostgresStore) GetUserSettings(id string) (models.UserSettings, error) {
	var raw string
	err := s.db.QueryRow(`SELECT settings FROM users WHERE user_id = $1`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return models.UserSettings{}, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserSettings failed", "error", err, "userID", id)
		return models.UserSettings{}, fmt.Errorf("failed to get settings for user %s: %w", id, err)
	}
	return decodeSettings(raw), nil
}

func (s *PostgresStore) UpdateUserSettings(id string, set models.UserSettings) error {
	raw, err := encodeSettings(set)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE users SET settings = $1 WHERE user_id = $2`, raw, id)
	if err != nil {
		slog.Error("PostgresStore UpdateUserSettings failed", "error", err, "userID", id)
		return fmt.Errorf("failed to update settings for user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

// NextFormNumber atomically increments and returns the per-kind sequence
// counter.
func (s *PostgresStore) NextFormNumber(kind models.FormKind) (int, error) {
	var seq int
	err := s.db.QueryRow(`
		INSERT INTO form_counters (kind, seq) VALUES ($1, 1)
		ON CONFLICT (kind) DO UPDATE SET seq = form_counters.seq + 1
		RETURNING seq`, string(kind)).Scan(&seq)
	if err != nil {
		slog.Error("PostgresStore NextFormNumber failed", "error", err, "kind", kind)
		return 0, fmt.Errorf("failed to allocate form number for %s: %w", kind, err)
	}
	slog.Debug("PostgresStore NextFormNumber succeeded", "kind", kind, "number", seq)
	return seq, nil
}

func (s *PostgresStore) SaveForm(f models.Form) error {
	values, err := encodeValues(f.Values)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO forms (kind, number, user_id, creator_fullname, field_values, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (kind, number) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			creator_fullname = EXCLUDED.creator_fullname,
			field_values = EXCLUDED.field_values`,
		string(f.Kind), f.Number, f.UserID, f.CreatorFullName, values, f.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveForm failed", "error", err, "kind", f.Kind, "number", f.Number)
		return fmt.Errorf("failed to save form %s #%d: %w", f.Kind, f.Number, err)
	}
	slog.Debug("PostgresStore SaveForm succeeded", "kind", f.Kind, "number", f.Number)
	return nil
}

func (s *PostgresStore) GetFormByKindAndNumber(kind models.FormKind, number int) (*models.Form, error) {
	row := s.db.QueryRow(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE kind = $1 AND number = $2`, string(kind), number)
	f, err := scanFormRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFormByKindAndNumber failed", "error", err, "kind", kind, "number", number)
		return nil, fmt.Errorf("failed to get form %s #%d: %w", kind, number, err)
	}
	return f, nil
}

func (s *PostgresStore) GetFormByID(id int64) (*models.Form, error) {
	row := s.db.QueryRow(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE id = $1`, id)
	f, err := scanFormRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFormByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get form %d: %w", id, err)
	}
	return f, nil
}

func (s *PostgresStore) ListFormsByKind(kind models.FormKind) ([]models.Form, error) {
	rows, err := s.db.Query(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE kind = $1 ORDER BY number`, string(kind))
	if err != nil {
		slog.Error("PostgresStore ListFormsByKind query failed", "error", err, "kind", kind)
		return nil, fmt.Errorf("failed to query forms for %s: %w", kind, err)
	}
	defer rows.Close()
	return collectForms(rows)
}

func (s *PostgresStore) ListFormsByUser(userID string) ([]models.Form, error) {
	rows, err := s.db.Query(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		slog.Error("PostgresStore ListFormsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query forms for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectForms(rows)
}

func (s *PostgresStore) UpdateFormField(id int64, field, value string) error {
	f, err := s.GetFormByID(id)
	if err != nil {
		return err
	}
	if f == nil {
		return models.ErrFormNotFound
	}
	f.Values[field] = value
	values, err := encodeValues(f.Values)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE forms SET field_values = $1 WHERE id = $2`, values, id)
	if err != nil {
		slog.Error("PostgresStore UpdateFormField failed", "error", err, "id", id, "field", field)
		return fmt.Errorf("failed to update form %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) DeleteForm(id int64) error {
	_, err := s.db.Exec(`DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteForm failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete form %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UsageStats() (models.UsageStats, error) {
	return usageStats(s.db)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
