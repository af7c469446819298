// Package store provides SQLite-backed persistence for the scoring service.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fentz26/reflex/internal/models"
)

// Sentinel errors for store operations.
var (
	ErrUsernameTaken = errors.New("username already exists")
	ErrUserNotFound  = errors.New("user not found")
)

// Store provides access to the scoreboard SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		best_time_ms REAL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		username TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_username ON audit(username);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- User Operations ---

// CreateUser registers a new username.
func (s *Store) CreateUser(username string) (*models.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRow(`SELECT id FROM users WHERE username = ?`, username).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existingID != "" {
		return nil, ErrUsernameTaken
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.Exec(
		`INSERT INTO users (id, username, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by username. It returns nil when no such user exists.
func (s *Store) GetUser(username string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(
		`SELECT id, username, best_time_ms, created_at, updated_at FROM users WHERE username = ?`,
		username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// RecordScore stores timeMs as the user's best if it beats the previous best.
// It returns the user as stored afterwards and whether the best changed.
func (s *Store) RecordScore(username string, timeMs float64) (*models.User, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRow(
		`SELECT id, username, best_time_ms, created_at, updated_at FROM users WHERE username = ?`,
		username,
	))
	if err == sql.ErrNoRows {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("query user: %w", err)
	}

	if user.BestTimeMs != nil && *user.BestTimeMs <= timeMs {
		return user, false, nil
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		`UPDATE users SET best_time_ms = ?, updated_at = ? WHERE id = ?`,
		timeMs, now, user.ID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("update best time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}

	user.BestTimeMs = &timeMs
	user.UpdatedAt = now
	return user, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var best sql.NullFloat64
	if err := row.Scan(&user.ID, &user.Username, &best, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if best.Valid {
		user.BestTimeMs = &best.Float64
	}
	return user, nil
}

// --- Audit Operations ---

// WriteAudit writes an audit record.
func (s *Store) WriteAudit(action, inputsHash, outcome, username, details string) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		Username:   username,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO audit (id, action, inputs_hash, outcome, username, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.InputsHash, entry.Outcome, entry.Username, entry.Details, entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit: %w", err)
	}
	return entry, nil
}

// ListAudit returns audit records for username, newest first. An empty
// username returns every record.
func (s *Store) ListAudit(username string) ([]models.AuditEntry, error) {
	query := `SELECT id, action, inputs_hash, outcome, username, details, timestamp FROM audit`
	var args []any
	if username != "" {
		query += ` WHERE username = ?`
		args = append(args, username)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var user, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &user, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Username = user.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
