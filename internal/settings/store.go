// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings persists user-level preferences in a local SQLite
// database. Values stored here take precedence over the config file and the
// environment.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/neontrader/neon-tui/internal/session"
)

// Keys understood by ApplySession.
const (
	KeyAutoLock       = "session.auto_lock"
	KeySessionTimeout = "session.session_timeout"
	KeyWarningLead    = "session.warning_lead"
)

// SessionKeys lists the session keys in display order.
var SessionKeys = []string{KeyAutoLock, KeySessionTimeout, KeyWarningLead}

var (
	// ErrUnknownKey is returned for keys the store does not manage.
	ErrUnknownKey = errors.New("unknown setting")

	// ErrInvalidValue is returned when a value cannot be parsed for its key.
	ErrInvalidValue = errors.New("invalid setting value")
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Entry is one stored setting.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store is a key-value settings table. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// DefaultPath returns ~/.neon/settings.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".neon", "settings.db")
	}
	return filepath.Join(home, ".neon", "settings.db")
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key. ok is false when the key is unset.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key after checking it parses for that key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := CheckValue(key, value); err != nil {
		return err
	}
	return s.put(ctx, s.db, key, value)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) put(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetSession stores a session duration only if the resulting configuration,
// overlaid on base, still validates. Nothing is written otherwise.
func (s *Store) SetSession(ctx context.Context, base session.Config, key, value string) (session.Config, error) {
	if err := CheckValue(key, value); err != nil {
		return base, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return base, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.put(ctx, tx, key, value); err != nil {
		return base, err
	}
	stored, err := s.sessionValues(ctx, tx)
	if err != nil {
		return base, err
	}
	merged, err := overlay(base, stored)
	if err != nil {
		return base, err
	}
	if err := tx.Commit(); err != nil {
		return base, fmt.Errorf("commit: %w", err)
	}
	return merged, nil
}

// Delete removes key. Deleting an unset key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Reset removes every stored setting.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings"); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// All returns every stored setting ordered by key.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value, updated_at FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.Key, &e.Value, &ts); err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		e.UpdatedAt = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ApplySession overlays the stored session durations on base. If the
// overlay does not validate, base is returned with the error.
func (s *Store) ApplySession(ctx context.Context, base session.Config) (session.Config, error) {
	stored, err := s.sessionValues(ctx, s.db)
	if err != nil {
		return base, err
	}
	merged, err := overlay(base, stored)
	if err != nil {
		return base, err
	}
	return merged, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) sessionValues(ctx context.Context, db querier) (map[string]time.Duration, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT key, value FROM settings WHERE key IN (?, ?, ?)",
		KeyAutoLock, KeySessionTimeout, KeyWarningLead)
	if err != nil {
		return nil, fmt.Errorf("read session settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Duration, len(SessionKeys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("read session settings: %w", err)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s = %q", ErrInvalidValue, key, value)
		}
		out[key] = d
	}
	return out, rows.Err()
}

func overlay(base session.Config, stored map[string]time.Duration) (session.Config, error) {
	cfg := base
	if d, ok := stored[KeyAutoLock]; ok {
		cfg.AutoLock = d
	}
	if d, ok := stored[KeySessionTimeout]; ok {
		cfg.SessionTimeout = d
	}
	if d, ok := stored[KeyWarningLead]; ok {
		cfg.WarningLead = d
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// CheckValue reports whether value is acceptable for key.
func CheckValue(key, value string) error {
	switch key {
	case KeyAutoLock, KeySessionTimeout, KeyWarningLead:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %s needs a positive duration such as 5m, got %q", ErrInvalidValue, key, value)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s (known: %v)", ErrUnknownKey, key, sortedKeys())
	}
}

func sortedKeys() []string {
	keys := append([]string(nil), SessionKeys...)
	sort.Strings(keys)
	return keys
}
