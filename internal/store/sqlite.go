package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/gdcoding/IntakeBot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) UpsertUser(u models.User) error {
	u = withCreatedAt(u)
	settings, err := encodeSettings(u.Settings)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO users (user_id, username, fullname, phone, position, department, approved, admin, settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			fullname = excluded.fullname,
			phone = excluded.phone,
			position = excluded.position,
			department = excluded.department,
			approved = excluded.approved,
			admin = excluded.admin,
			settings = excluded.settings`,
		u.ID, u.Username, u.FullName, u.Phone, u.Position, u.Department, u.Approved, u.Admin, settings, u.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertUser failed", "error", err, "userID", u.ID)
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	slog.Debug("SQLiteStore UpsertUser succeeded", "userID", u.ID)
	return nil
}

func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT user_id, username, fullname, phone, position, department, approved, admin, settings, created_at FROM users WHERE user_id = ?`, id)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT user_id, username, fullname, phone, position, department, approved, admin, settings, created_at FROM users ORDER BY created_at, user_id`)
	if err != nil {
		slog.Error("SQLiteStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s *SQLiteStore) UpdateUserField(id, field, value string) error {
	column, ok := userColumn(field)
	if !ok {
		return fmt.Errorf("unknown user field %q", field)
	}
	res, err := s.db.Exec(`UPDATE users SET `+column+` = ? WHERE user_id = ?`, value, id)
	if err != nil {
		slog.Error("SQLiteStore UpdateUserField failed", "error", err, "userID", id, "field", field)
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

func (s *SQLiteStore) DeleteUser(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE user_id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteUser failed", "error", err, "userID", id)
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	slog.Debug("SQLiteStore DeleteUser succeeded", "userID", id)
	return nil
}

func (s *SQLiteStore) SetUserApproved(id string, approved bool) error {
	res, err := s.db.Exec(`UPDATE users SET approved = ? WHERE user_id = ?`, approved, id)
	if err != nil {
		slog.Error("SQLiteStore SetUserApproved failed", "error", err, "userID", id)
		return fmt.Errorf("failed to set approved for user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

func (s *SQLiteStore) SetUserAdmin(id string, admin bool) error {
	res, err := s.db.Exec(`UPDATE users SET admin = ? WHERE user_id = ?`, admin, id)
	if err != nil {
		slog.Error("SQLiteStore SetUserAdmin failed", "error", err, "userID", id)
		return fmt.Errorf("failed to set admin for user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

func (s *SQLiteStore) GetUserSettings(id string) (models.UserSettings, error) {
	var raw string
	err := s.db.QueryRow(`SELECT settings FROM users WHERE user_id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return models.UserSettings{}, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserSettings failed", "error", err, "userID", id)
		return models.UserSettings{}, fmt.Errorf("failed to get settings for user %s: %w", id, err)
	}
	return decodeSettings(raw), nil
}

func (s *SQLiteStore) UpdateUserSettings(id string, set models.UserSettings) error {
	raw, err := encodeSettings(set)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE users SET settings = ? WHERE user_id = ?`, raw, id)
	if err != nil {
		slog.Error("SQLiteStore UpdateUserSettings failed", "error", err, "userID", id)
		return fmt.Errorf("failed to update settings for user %s: %w", id, err)
	}
	return errIfNoRows(res, models.ErrUserNotFound)
}

// NextFormNumber atomically increments and returns the per-kind sequence
// counter. The single upsert-returning statement is the serialization point
// for concurrent confirmations of the same kind.
func (s *SQLiteStore) NextFormNumber(kind models.FormKind) (int, error) {
	var seq int
	err := s.db.QueryRow(`
		INSERT INTO form_counters (kind, seq) VALUES (?, 1)
		ON CONFLICT(kind) DO UPDATE SET seq = form_counters.seq + 1
		RETURNING seq`, string(kind)).Scan(&seq)
	if err != nil {
		slog.Error("SQLiteStore NextFormNumber failed", "error", err, "kind", kind)
		return 0, fmt.Errorf("failed to allocate form number for %s: %w", kind, err)
	}
	slog.Debug("SQLiteStore NextFormNumber succeeded", "kind", kind, "number", seq)
	return seq, nil
}

func (s *SQLiteStore) SaveForm(f models.Form) error {
	values, err := encodeValues(f.Values)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO forms (kind, number, user_id, creator_fullname, field_values, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, number) DO UPDATE SET
			user_id = excluded.user_id,
			creator_fullname = excluded.creator_fullname,
			field_values = excluded.field_values`,
		string(f.Kind), f.Number, f.UserID, f.CreatorFullName, values, f.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveForm failed", "error", err, "kind", f.Kind, "number", f.Number)
		return fmt.Errorf("failed to save form %s #%d: %w", f.Kind, f.Number, err)
	}
	slog.Debug("SQLiteStore SaveForm succeeded", "kind", f.Kind, "number", f.Number)
	return nil
}

func (s *SQLiteStore) GetFormByKindAndNumber(kind models.FormKind, number int) (*models.Form, error) {
	row := s.db.QueryRow(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE kind = ? AND number = ?`, string(kind), number)
	f, err := scanFormRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFormByKindAndNumber failed", "error", err, "kind", kind, "number", number)
		return nil, fmt.Errorf("failed to get form %s #%d: %w", kind, number, err)
	}
	return f, nil
}

func (s *SQLiteStore) GetFormByID(id int64) (*models.Form, error) {
	row := s.db.QueryRow(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE id = ?`, id)
	f, err := scanFormRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFormByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get form %d: %w", id, err)
	}
	return f, nil
}

func (s *SQLiteStore) ListFormsByKind(kind models.FormKind) ([]models.Form, error) {
	rows, err := s.db.Query(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE kind = ? ORDER BY number`, string(kind))
	if err != nil {
		slog.Error("SQLiteStore ListFormsByKind query failed", "error", err, "kind", kind)
		return nil, fmt.Errorf("failed to query forms for %s: %w", kind, err)
	}
	defer rows.Close()
	return collectForms(rows)
}

func (s *SQLiteStore) ListFormsByUser(userID string) ([]models.Form, error) {
	rows, err := s.db.Query(`SELECT id, kind, number, user_id, creator_fullname, field_values, created_at FROM forms WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListFormsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query forms for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectForms(rows)
}

func (s *SQLiteStore) UpdateFormField(id int64, field, value string) error {
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
	_, err = s.db.Exec(`UPDATE forms SET field_values = ? WHERE id = ?`, values, id)
	if err != nil {
		slog.Error("SQLiteStore UpdateFormField failed", "error", err, "id", id, "field", field)
		return fmt.Errorf("failed to update form %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteForm(id int64) error {
	_, err := s.db.Exec(`DELETE FROM forms WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteForm failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete form %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UsageStats() (models.UsageStats, error) {
	return usageStats(s.db)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
