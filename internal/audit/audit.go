// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit records session lifecycle events to an append-only JSON-lines
// file. Every string field passes through the redactors before it is written,
// so bearer tokens and JWTs never reach disk.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/session"
)

// DefaultMaxFileSize is the default max file size before rotation (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Event types written to the audit log.
const (
	TypeSessionEstablished = "SESSION_ESTABLISHED"
	TypeSessionWarning     = "SESSION_WARNING"
	TypeSessionLocked      = "SESSION_LOCKED"
	TypeSessionUnlocked    = "SESSION_UNLOCKED"
	TypeSessionExpired     = "SESSION_EXPIRED"
	TypeSessionLogout      = "SESSION_LOGOUT"
	TypeLoginFailed        = "LOGIN_FAILED"
)

// =============================================================================
// AUDIT ENTRY
// =============================================================================

// Entry is a single audit log line.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	EventType        string    `json:"event_type"`
	UserID           string    `json:"user_id,omitempty"`
	Email            string    `json:"email,omitempty"`
	RemainingSeconds int       `json:"remaining_seconds,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// =============================================================================
// REDACTION
// =============================================================================

// Redactor replaces sensitive data in a string.
type Redactor interface {
	Redact(input string) string
	Name() string
}

// PatternRedactor redacts text matching a regex pattern.
type PatternRedactor struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// NewPatternRedactor creates a new pattern-based redactor.
func NewPatternRedactor(name string, pattern *regexp.Regexp, replace string) *PatternRedactor {
	return &PatternRedactor{name: name, pattern: pattern, replace: replace}
}

// Redact replaces matches with the replacement string.
func (r *PatternRedactor) Redact(input string) string {
	return r.pattern.ReplaceAllString(input, r.replace)
}

// Name returns the redactor name.
func (r *PatternRedactor) Name() string {
	return r.name
}

func defaultRedactors() []Redactor {
	return []Redactor{
		NewPatternRedactor("Bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.~+/=]+`), "Bearer [TOKEN_REDACTED]"),
		NewPatternRedactor("JWT", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"),
		NewPatternRedactor("Password", regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*\S+`), "[PASSWORD_REDACTED]"),
	}
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger is a thread-safe audit log writer.
type Logger struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	maxSize   int64
	redactors []Redactor
	now       func() time.Time
}

// NewLogger opens (or creates) the audit log at path.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &Logger{
		path:      path,
		file:      file,
		maxSize:   DefaultMaxFileSize,
		redactors: defaultRedactors(),
		now:       time.Now,
	}, nil
}

// DefaultPath returns ~/.neon/audit.log.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".neon", "audit.log")
	}
	return filepath.Join(home, ".neon", "audit.log")
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// SetMaxSize sets the maximum file size before rotation. Zero disables
// rotation.
func (l *Logger) SetMaxSize(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxSize = size
}

// Log writes one entry.
func (l *Logger) Log(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Email = l.redactLocked(e.Email)
	e.Reason = l.redactLocked(e.Reason)
	e.Error = l.redactLocked(e.Error)

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	if err := l.checkRotationLocked(); err != nil {
		return err
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// LogLoginFailure records a rejected login. Only the error code is kept.
func (l *Logger) LogLoginFailure(email string, err error) error {
	code := string(auth.CodeOf(err))
	if code == "" && auth.IsRetryable(err) {
		code = "unreachable"
	}
	return l.Log(Entry{EventType: TypeLoginFailed, Email: email, Error: code})
}

// Attach subscribes the logger to ctrl. Warning ticks are skipped. The
// returned function detaches it.
func (l *Logger) Attach(ctrl *session.Controller) func() {
	return ctrl.Subscribe(func(ev session.Event) {
		entry, ok := entryFor(ev)
		if !ok {
			return
		}
		_ = l.Log(entry)
	})
}

func entryFor(ev session.Event) (Entry, bool) {
	e := Entry{Timestamp: ev.At, UserID: ev.User.ID}
	switch ev.Kind {
	case session.EventSessionEstablished:
		e.EventType = TypeSessionEstablished
		e.Email = ev.User.Email
	case session.EventWarningRaised:
		e.EventType = TypeSessionWarning
		e.RemainingSeconds = ev.RemainingSeconds
	case session.EventLocked:
		e.EventType = TypeSessionLocked
	case session.EventUnlocked:
		e.EventType = TypeSessionUnlocked
	case session.EventSessionExpired:
		e.EventType = TypeSessionExpired
		e.Reason = ev.Reason
	case session.EventLoggedOut:
		e.EventType = TypeSessionLogout
	default:
		return Entry{}, false
	}
	return e, true
}

// Redact applies all redactors to input.
func (l *Logger) Redact(input string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.redactLocked(input)
}

func (l *Logger) redactLocked(input string) string {
	for _, r := range l.redactors {
		input = r.Redact(input)
	}
	return input
}

func (l *Logger) checkRotationLocked() error {
	if l.maxSize <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return nil
	}
	if info.Size() < l.maxSize {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}
	ext := filepath.Ext(l.path)
	rotated := fmt.Sprintf("%s_%s%s", strings.TrimSuffix(l.path, ext), l.now().Format("20060102_150405.000"), ext)
	if err := os.Rename(l.path, rotated); err != nil {
		l.file, _ = os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		l.file = nil
		return fmt.Errorf("failed to create new audit log after rotation: %w", err)
	}
	l.file = file
	return nil
}

// Close flushes and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Sync()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
