package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// withCreatedAt stamps a creation time on the user when the caller left it
// unset.
func withCreatedAt(u models.User) models.User {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	return u
}

// userColumn maps a logical user field name to its column. It is the single
// whitelist guarding UpdateUserField against arbitrary column injection.
func userColumn(field string) (string, bool) {
	switch field {
	case "username", "fullname", "phone", "position", "department":
		return field, true
	}
	return "", false
}

// errIfNoRows converts a zero-row UPDATE into notFound.
func errIfNoRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func encodeSettings(s models.UserSettings) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode user settings: %w", err)
	}
	return string(raw), nil
}

// decodeSettings tolerates empty and malformed payloads, falling back to
// zero-value settings so a bad row never blocks the user.
func decodeSettings(raw string) models.UserSettings {
	var s models.UserSettings
	if raw == "" {
		return s
	}
	_ = json.Unmarshal([]byte(raw), &s)
	return s
}

func encodeValues(values map[string]string) (string, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode form values: %w", err)
	}
	return string(raw), nil
}

func decodeValues(raw string) (map[string]string, error) {
	values := make(map[string]string)
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode form values: %w", err)
	}
	return values, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(row rowScanner) (*models.User, error) {
	var u models.User
	var username, fullname, phone, position, department, settings sql.NullString
	err := row.Scan(&u.ID, &username, &fullname, &phone, &position, &department, &u.Approved, &u.Admin, &settings, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.FullName = fullname.String
	u.Phone = phone.String
	u.Position = position.String
	u.Department = department.String
	u.Settings = decodeSettings(settings.String)
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user failed: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users failed: %w", err)
	}
	return users, nil
}

func scanFormRow(row rowScanner) (*models.Form, error) {
	var f models.Form
	var kind string
	var values sql.NullString
	err := row.Scan(&f.ID, &kind, &f.Number, &f.UserID, &f.CreatorFullName, &values, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.Kind = models.FormKind(kind)
	decoded, err := decodeValues(values.String)
	if err != nil {
		return nil, err
	}
	f.Values = decoded
	return &f, nil
}

func collectForms(rows *sql.Rows) ([]models.Form, error) {
	var forms []models.Form
	for rows.Next() {
		f, err := scanFormRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form failed: %w", err)
		}
		forms = append(forms, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms failed: %w", err)
	}
	return forms, nil
}

// usageStats computes aggregate counts shared by the SQL-backed stores.
func usageStats(db *sql.DB) (models.UsageStats, error) {
	var stats models.UsageStats
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return stats, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE approved`).Scan(&stats.ApprovedUsers); err != nil {
		return stats, fmt.Errorf("failed to count approved users: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE admin`).Scan(&stats.AdminUsers); err != nil {
		return stats, fmt.Errorf("failed to count admin users: %w", err)
	}
	stats.FormsByKind = make(map[models.FormKind]int)
	rows, err := db.Query(`SELECT kind, COUNT(*) FROM forms GROUP BY kind`)
	if err != nil {
		return stats, fmt.Errorf("failed to count forms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return stats, fmt.Errorf("scan form count failed: %w", err)
		}
		stats.FormsByKind[models.FormKind(kind)] = n
		stats.TotalForms += n
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate form counts failed: %w", err)
	}
	return stats, nil
}
