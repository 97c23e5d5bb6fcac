// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/neontrader/neon-tui/internal/session"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// BASIC OPERATIONS
// =============================================================================

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if _, ok, err := s.Get(ctx, KeyAutoLock); err != nil || ok {
		t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
	}

	if err := s.Set(ctx, KeyAutoLock, "2m"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, KeyAutoLock, "3m"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, KeyAutoLock)
	if err != nil || !ok || v != "3m" {
		t.Fatalf("Get = %q, %v, %v; want 3m", v, ok, err)
	}

	if err := s.Delete(ctx, KeyAutoLock); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, KeyAutoLock); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, KeyAutoLock); ok {
		t.Error("key survived Delete")
	}
}

func TestSetRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	tests := []struct {
		key, value string
		want       error
	}{
		{"session.colour", "blue", ErrUnknownKey},
		{KeyAutoLock, "soon", ErrInvalidValue},
		{KeyWarningLead, "-1m", ErrInvalidValue},
		{KeySessionTimeout, "0s", ErrInvalidValue},
	}
	for _, tt := range tests {
		err := s.Set(ctx, tt.key, tt.value)
		if !errors.Is(err, tt.want) {
			t.Errorf("Set(%s, %s) = %v, want %v", tt.key, tt.value, err, tt.want)
		}
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("rejected values were stored: %+v", all)
	}
}

func TestAllOrderedAndReset(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	for _, kv := range [][2]string{
		{KeyWarningLead, "30s"},
		{KeyAutoLock, "4m"},
		{KeySessionTimeout, "20m"},
	} {
		if err := s.Set(ctx, kv[0], kv[1]); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []string{KeyAutoLock, KeySessionTimeout, KeyWarningLead}
	if len(all) != len(want) {
		t.Fatalf("got %d entries", len(all))
	}
	for i, k := range want {
		if all[i].Key != k {
			t.Errorf("entry %d = %s, want %s", i, all[i].Key, k)
		}
		if !all[i].UpdatedAt.Equal(time.Unix(1700000000, 0)) {
			t.Errorf("entry %d updated_at = %v", i, all[i].UpdatedAt)
		}
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	all, _ = s.All(ctx)
	if len(all) != 0 {
		t.Errorf("Reset left %d entries", len(all))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, KeyAutoLock, "90s"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if v, ok, _ := s.Get(ctx, KeyAutoLock); !ok || v != "90s" {
		t.Errorf("after reopen Get = %q, %v", v, ok)
	}
}

// =============================================================================
// SESSION OVERLAY
// =============================================================================

func TestApplySession(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	base := session.DefaultConfig()

	got, err := s.ApplySession(ctx, base)
	if err != nil || got != base {
		t.Fatalf("empty store ApplySession = %+v, %v", got, err)
	}

	if err := s.Set(ctx, KeyAutoLock, "2m"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, KeyWarningLead, "20s"); err != nil {
		t.Fatal(err)
	}
	got, err = s.ApplySession(ctx, base)
	if err != nil {
		t.Fatalf("ApplySession: %v", err)
	}
	if got.AutoLock != 2*time.Minute || got.WarningLead != 20*time.Second {
		t.Errorf("overlay = %+v", got)
	}
	if got.SessionTimeout != base.SessionTimeout || got.TickInterval != base.TickInterval {
		t.Errorf("unset fields changed: %+v", got)
	}
}

func TestApplySessionInvalidFallsBack(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	base := session.DefaultConfig()

	// Individually valid, jointly out of order.
	if err := s.Set(ctx, KeyAutoLock, "30m"); err != nil {
		t.Fatal(err)
	}
	got, err := s.ApplySession(ctx, base)
	if !errors.Is(err, session.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if got != base {
		t.Errorf("got %+v, want base", got)
	}
}

func TestSetSessionIsTransactional(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	base := session.DefaultConfig()

	merged, err := s.SetSession(ctx, base, KeyAutoLock, "3m")
	if err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if merged.AutoLock != 3*time.Minute {
		t.Errorf("merged = %+v", merged)
	}

	_, err = s.SetSession(ctx, base, KeyWarningLead, "5m")
	if !errors.Is(err, session.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if _, ok, _ := s.Get(ctx, KeyWarningLead); ok {
		t.Error("invalid SetSession was committed")
	}
	if v, _, _ := s.Get(ctx, KeyAutoLock); v != "3m" {
		t.Errorf("earlier value lost: %q", v)
	}
}
