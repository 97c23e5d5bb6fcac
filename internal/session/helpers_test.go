// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/neontrader/neon-tui/internal/auth"
)

var t0 = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

func at(secs float64) time.Time {
	return t0.Add(time.Duration(secs * float64(time.Second)))
}

// =============================================================================
// FAKE CLOCK
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// =============================================================================
// FAKE GATEWAY
// =============================================================================

type fakeGateway struct {
	mu         sync.Mutex
	loginFn    func(auth.Credentials) (auth.Grant, error)
	registerFn func(auth.Registration) (auth.Grant, error)
	whoAmIFn   func(string) (auth.Identity, error)
	calls      map[string]int
}

var alice = auth.Identity{UserID: "u-alice", Email: "alice@example.com", Username: "alice"}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls: make(map[string]int),
		loginFn: func(c auth.Credentials) (auth.Grant, error) {
			if c.Password != "correct horse" {
				return auth.Grant{}, auth.NewError(auth.CodeInvalidCredentials, 401, "")
			}
			return auth.Grant{Token: "tok-1", Identity: alice}, nil
		},
		registerFn: func(r auth.Registration) (auth.Grant, error) {
			return auth.Grant{Token: "tok-new", Identity: auth.Identity{UserID: "u-new", Email: r.Email, Username: r.Username}}, nil
		},
		whoAmIFn: func(token string) (auth.Identity, error) {
			return alice, nil
		},
	}
}

func (g *fakeGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeGateway) inc(name string) {
	g.mu.Lock()
	g.calls[name]++
	g.mu.Unlock()
}

func (g *fakeGateway) Login(_ context.Context, c auth.Credentials) (auth.Grant, error) {
	g.inc("login")
	return g.loginFn(c)
}

func (g *fakeGateway) Register(_ context.Context, r auth.Registration) (auth.Grant, error) {
	g.inc("register")
	return g.registerFn(r)
}

func (g *fakeGateway) WhoAmI(_ context.Context, token string) (auth.Identity, error) {
	g.inc("whoami")
	return g.whoAmIFn(token)
}

// =============================================================================
// EVENT RECORDER
// =============================================================================

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// scenarioConfig is 5 minute auto-lock, 1 minute warning lead, 15 minute
// hard timeout.
func scenarioConfig() Config {
	return Config{
		AutoLock:       300000 * time.Millisecond,
		WarningLead:    60000 * time.Millisecond,
		SessionTimeout: 900000 * time.Millisecond,
		TickInterval:   time.Second,
	}
}

type fixture struct {
	ctrl  *Controller
	gw    *fakeGateway
	clock *fakeClock
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := newFakeGateway()
	clock := newFakeClock(t0)
	ctrl, err := NewController(scenarioConfig(), gw, WithClock(clock))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	rec := &recorder{}
	ctrl.Subscribe(rec.listen)
	return &fixture{ctrl: ctrl, gw: gw, clock: clock, rec: rec}
}

func (f *fixture) login(t *testing.T) Session {
	t.Helper()
	s, err := f.ctrl.Login(context.Background(), auth.Credentials{Email: alice.Email, Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return s
}

func equalKinds(got, want []EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
