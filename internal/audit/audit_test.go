// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neontrader/neon-tui/internal/auth"
	"github.com/neontrader/neon-tui/internal/session"
)

type stubGateway struct{}

func (stubGateway) Login(context.Context, auth.Credentials) (auth.Grant, error) {
	return auth.Grant{Token: "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1LTEifQ.c2ln", Identity: auth.Identity{UserID: "u-1", Email: "a@b.io"}}, nil
}

func (stubGateway) Register(context.Context, auth.Registration) (auth.Grant, error) {
	return auth.Grant{}, auth.ErrDuplicateEmail
}

func (stubGateway) WhoAmI(context.Context, string) (auth.Identity, error) {
	return auth.Identity{UserID: "u-1"}, nil
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

func TestAttachRecordsLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	cfg := session.DefaultConfig()
	ctrl, err := session.NewController(cfg, stubGateway{})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	detach := l.Attach(ctrl)

	s, err := ctrl.Login(context.Background(), auth.Credentials{Email: "a@b.io", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	base := s.LastActivityAt
	ctrl.Evaluate(base.Add(cfg.AutoLock - 30*time.Second))
	ctrl.Evaluate(base.Add(cfg.AutoLock - 29*time.Second)) // tick, not audited
	ctrl.Evaluate(base.Add(cfg.AutoLock))
	ctrl.Evaluate(base.Add(cfg.SessionTimeout))
	detach()
	ctrl.Logout()

	entries := readEntries(t, path)
	want := []string{TypeSessionEstablished, TypeSessionWarning, TypeSessionLocked, TypeSessionExpired}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		if entries[i].EventType != w {
			t.Errorf("entry %d = %s, want %s", i, entries[i].EventType, w)
		}
		if entries[i].UserID != "u-1" {
			t.Errorf("entry %d user = %q", i, entries[i].UserID)
		}
	}
	if entries[1].RemainingSeconds != 30 {
		t.Errorf("warning remaining = %d, want 30", entries[1].RemainingSeconds)
	}
	if entries[3].Reason != session.ReasonIdleTimeout {
		t.Errorf("expiry reason = %q", entries[3].Reason)
	}

	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "eyJ") {
		t.Error("token material reached the audit log")
	}
}

func TestRedaction(t *testing.T) {
	l, err := NewLogger(filepath.Join(t.TempDir(), "audit.log"))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	tests := []struct {
		in, want string
	}{
		{"Authorization: Bearer abc.def-123", "Authorization: Bearer [TOKEN_REDACTED]"},
		{"token eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0.sig", "token [JWT_REDACTED]"},
		{"password=hunter2 ok", "[PASSWORD_REDACTED] ok"},
		{"nothing secret", "nothing secret"},
	}
	for _, tt := range tests {
		if got := l.Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogLoginFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	_ = l.LogLoginFailure("a@b.io", auth.NewError(auth.CodeInvalidCredentials, 401, "password=secret"))
	_ = l.LogLoginFailure("a@b.io", fmt.Errorf("%w: refused", auth.ErrUnreachable))
	l.Close()

	entries := readEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].EventType != TypeLoginFailed || entries[0].Error != "invalid_credentials" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Error != "unreachable" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()
	l.SetMaxSize(64)

	for i := 0; i < 5; i++ {
		if err := l.Log(Entry{EventType: TypeSessionLocked, UserID: fmt.Sprintf("user-%d", i)}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "audit_*.log"))
	if len(matches) == 0 {
		t.Error("expected rotated files")
	}
}

func TestLogAfterClose(t *testing.T) {
	l, err := NewLogger(filepath.Join(t.TempDir(), "audit.log"))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Log(Entry{EventType: TypeSessionLocked}); err != nil {
		t.Errorf("Log after Close = %v, want nil", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
