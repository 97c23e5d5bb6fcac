// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neontrader/neon-tui/internal/auth"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the authentication state: the single session, its lock
// level and its activity timestamp. It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	cfg    Config
	gw     auth.Gateway
	clock  Clock
	logger *slog.Logger

	sess *Session
	lock LockState

	// gen changes whenever a session is created or destroyed, so results of
	// gateway calls made for an older session can be discarded.
	gen uint64

	// lastEval is the now of the most recent accepted Evaluate.
	lastEval time.Time

	listeners []listenerEntry
	nextID    int

	// pending holds event batches in transition order, queued under mu.
	// emitMu serializes draining it, so listeners observe events in order
	// and run without mu held.
	pending []eventBatch
	emitMu  sync.Mutex
}

type eventBatch struct {
	events    []Event
	listeners []Listener
}

type listenerEntry struct {
	id int
	fn Listener
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock sets the clock used for timestamps the caller does not supply
// (login, reauth completion).
func WithClock(clk Clock) ControllerOption {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger for transition logs.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a controller. cfg must satisfy Config.Validate.
func NewController(cfg Config, gw auth.Gateway, opts ...ControllerOption) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gw == nil {
		return nil, fmt.Errorf("session: nil gateway")
	}
	c := &Controller{
		cfg:    cfg,
		gw:     gw,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn for all future events and returns a function that
// removes it. Listeners run without the state lock, so they may call read
// accessors such as State, Token or Snapshot. They must not call methods
// that change state; those would wait on the delivery in progress.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// unlockAndEmit queues events, releases c.mu and delivers everything
// queued so far. It must be called with c.mu held. It returns once the
// batch has been delivered, by this goroutine or another.
func (c *Controller) unlockAndEmit(events []Event) {
	if len(events) == 0 {
		c.mu.Unlock()
		return
	}
	listeners := make([]Listener, len(c.listeners))
	for i, l := range c.listeners {
		listeners[i] = l.fn
	}
	c.pending = append(c.pending, eventBatch{events: events, listeners: listeners})
	c.mu.Unlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		b := c.pending[0]
		c.pending[0] = eventBatch{}
		c.pending = c.pending[1:]
		c.mu.Unlock()

		for _, ev := range b.events {
			c.logEvent(ev)
			for _, fn := range b.listeners {
				fn(ev)
			}
		}
	}
}

func (c *Controller) logEvent(ev Event) {
	attrs := []any{"event", ev.Kind.String(), "user_id", ev.User.ID}
	switch ev.Kind {
	case EventWarningTick:
		c.logger.Debug("session warning tick", append(attrs, "remaining_seconds", ev.RemainingSeconds)...)
		return
	case EventWarningRaised:
		attrs = append(attrs, "remaining_seconds", ev.RemainingSeconds)
	case EventSessionExpired:
		attrs = append(attrs, "reason", ev.Reason)
	}
	c.logger.Info("session transition", attrs...)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Login authenticates against the gateway and, on success, starts a new
// unlocked session. On failure no session is created and the current state
// is left as it was.
func (c *Controller) Login(ctx context.Context, creds auth.Credentials) (Session, error) {
	grant, err := c.gw.Login(ctx, creds)
	if err != nil {
		c.logger.Info("login failed", "code", string(auth.CodeOf(err)), "retryable", auth.IsRetryable(err))
		return Session{}, err
	}
	return c.establish(grant, c.clock.Now())
}

// Register creates an account and starts a session for it.
func (c *Controller) Register(ctx context.Context, reg auth.Registration) (Session, error) {
	if err := auth.ValidateRegistration(reg); err != nil {
		return Session{}, err
	}
	grant, err := c.gw.Register(ctx, reg)
	if err != nil {
		c.logger.Info("registration failed", "code", string(auth.CodeOf(err)), "retryable", auth.IsRetryable(err))
		return Session{}, err
	}
	return c.establish(grant, c.clock.Now())
}

func (c *Controller) establish(grant auth.Grant, now time.Time) (Session, error) {
	if grant.Token == "" || grant.Identity.UserID == "" {
		return Session{}, fmt.Errorf("%w: grant without token or user id", auth.ErrUnexpected)
	}

	c.mu.Lock()
	var events []Event
	if c.sess != nil {
		user := c.destroyLocked()
		events = append(events, Event{Kind: EventLoggedOut, At: now, User: user})
	}

	user := userFromIdentity(grant.Identity)
	c.sess = &Session{
		UserID:         user.ID,
		User:           user,
		CreatedAt:      now,
		LastActivityAt: now,
		token:          grant.Token,
	}
	c.lock = Unlocked
	c.gen++
	c.lastEval = now
	out := *c.sess
	events = append(events, Event{Kind: EventSessionEstablished, At: now, User: user})
	c.unlockAndEmit(events)
	return out, nil
}

// destroyLocked ends the current session and returns its user. c.mu must be
// held and a session must exist.
func (c *Controller) destroyLocked() CurrentUser {
	user := c.sess.User
	c.sess.token = ""
	c.sess = nil
	c.lock = Unlocked
	c.gen++
	return user
}

// =============================================================================
// ACTIVITY AND EVALUATION
// =============================================================================

// RecordActivity marks user presence at now. A pending warning is cleared.
// It does nothing without a session or while locked; the lock screen only
// yields through an unlock operation.
func (c *Controller) RecordActivity(now time.Time) {
	c.mu.Lock()
	if c.sess == nil || c.lock == Locked {
		c.mu.Unlock()
		return
	}
	if now.After(c.sess.LastActivityAt) {
		c.sess.LastActivityAt = now
	}
	var events []Event
	if c.lock == Warning {
		c.lock = Unlocked
		events = append(events, Event{Kind: EventWarningCleared, At: now, User: c.sess.User})
	}
	c.unlockAndEmit(events)
}

// ExtendSession is RecordActivity exposed as an explicit user action from
// the warning prompt.
func (c *Controller) ExtendSession(now time.Time) {
	c.RecordActivity(now)
}

// Evaluate applies the most severe transition the idle time calls for and
// returns the resulting state. Calls with a now older than the previous
// accepted call are ignored.
func (c *Controller) Evaluate(now time.Time) State {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return StateNoSession
	}
	if now.Before(c.lastEval) {
		st := stateOf(c.lock)
		c.mu.Unlock()
		return st
	}
	c.lastEval = now

	idle := now.Sub(c.sess.LastActivityAt)
	if idle < 0 {
		idle = 0
	}
	user := c.sess.User
	var events []Event

	switch {
	case idle >= c.cfg.SessionTimeout:
		c.destroyLocked()
		events = append(events, Event{Kind: EventSessionExpired, At: now, User: user, Reason: ReasonIdleTimeout})

	case idle >= c.cfg.AutoLock:
		if c.lock != Locked {
			c.lock = Locked
			events = append(events, Event{Kind: EventLocked, At: now, User: user})
		}

	case idle >= c.cfg.warnAt():
		remaining := RemainingSeconds(c.cfg.AutoLock - idle)
		switch c.lock {
		case Unlocked:
			c.lock = Warning
			events = append(events, Event{Kind: EventWarningRaised, At: now, User: user, RemainingSeconds: remaining})
		case Warning:
			events = append(events, Event{Kind: EventWarningTick, At: now, User: user, RemainingSeconds: remaining})
		}

	default:
		// Thresholds moved by Reconfigure can leave a stale warning behind.
		if c.lock == Warning {
			c.lock = Unlocked
			events = append(events, Event{Kind: EventWarningCleared, At: now, User: user})
		}
	}

	st := StateNoSession
	if c.sess != nil {
		st = stateOf(c.lock)
	}
	c.unlockAndEmit(events)
	return st
}

// =============================================================================
// LOCK AND UNLOCK
// =============================================================================

// Lock locks the session immediately, keeping the token.
func (c *Controller) Lock(now time.Time) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	var events []Event
	if c.lock != Locked {
		c.lock = Locked
		events = append(events, Event{Kind: EventLocked, At: now, User: c.sess.User})
	}
	c.unlockAndEmit(events)
	return nil
}

// QuickUnlock leaves the locked state without contacting the gateway.
func (c *Controller) QuickUnlock(now time.Time) error {
	c.mu.Lock()
	if err := c.checkUnlockableLocked(now); err != nil {
		c.unlockAndEmit(c.expireIfDueLocked(now))
		return err
	}
	events := c.unlockLocked(now)
	c.unlockAndEmit(events)
	return nil
}

// Reauth is the credential offered on the lock screen. An empty Password
// asks the gateway to confirm the held token instead.
type Reauth struct {
	Password string
	TOTPCode string
}

// UnlockWithReauth verifies the held session with the gateway before
// unlocking. The gateway call runs without holding the controller lock, so
// evaluation continues while it is in flight.
//
// Outcomes:
//   - token rejected: the session is destroyed and ErrSessionRevoked returned
//   - transport or credential error: returned as is, session stays locked
//   - session ended meanwhile: ErrSessionGone
func (c *Controller) UnlockWithReauth(ctx context.Context, r Reauth) error {
	now := c.clock.Now()
	c.mu.Lock()
	if err := c.checkUnlockableLocked(now); err != nil {
		c.unlockAndEmit(c.expireIfDueLocked(now))
		return err
	}
	gen := c.gen
	token := c.sess.token
	email := c.sess.User.Email
	userID := c.sess.UserID
	c.mu.Unlock()

	var (
		id       auth.Identity
		newToken string
		err      error
	)
	if r.Password == "" {
		id, err = c.gw.WhoAmI(ctx, token)
	} else {
		var grant auth.Grant
		grant, err = c.gw.Login(ctx, auth.Credentials{Email: email, Password: r.Password, TOTPCode: r.TOTPCode})
		id, newToken = grant.Identity, grant.Token
	}

	now = c.clock.Now()
	c.mu.Lock()
	if c.sess == nil || c.gen != gen {
		c.mu.Unlock()
		return ErrSessionGone
	}

	if err == nil && id.UserID != userID {
		err = fmt.Errorf("%w: %w", auth.ErrInvalidToken, ErrIdentityMismatch)
	}
	if err != nil {
		if auth.IsTokenRejected(err) {
			user := c.destroyLocked()
			c.unlockAndEmit([]Event{{Kind: EventSessionExpired, At: now, User: user, Reason: ReasonReauthRejected}})
			return fmt.Errorf("%w: %w", ErrSessionRevoked, err)
		}
		c.mu.Unlock()
		return err
	}

	if newToken != "" {
		c.sess.token = newToken
	}
	if events := c.expireIfDueLocked(now); len(events) > 0 {
		c.unlockAndEmit(events)
		return ErrSessionGone
	}
	var events []Event
	if c.lock == Locked {
		events = c.unlockLocked(now)
	}
	c.unlockAndEmit(events)
	return nil
}

func (c *Controller) checkUnlockableLocked(now time.Time) error {
	if c.sess == nil {
		return ErrNothingToUnlock
	}
	if c.idleLocked(now) >= c.cfg.SessionTimeout {
		return fmt.Errorf("%w: session expired", ErrNothingToUnlock)
	}
	if c.lock != Locked {
		return ErrNotLocked
	}
	return nil
}

// expireIfDueLocked destroys a session whose hard timeout has passed but
// has not been evaluated yet.
func (c *Controller) expireIfDueLocked(now time.Time) []Event {
	if c.sess == nil || c.idleLocked(now) < c.cfg.SessionTimeout {
		return nil
	}
	user := c.destroyLocked()
	return []Event{{Kind: EventSessionExpired, At: now, User: user, Reason: ReasonIdleTimeout}}
}

func (c *Controller) unlockLocked(now time.Time) []Event {
	c.lock = Unlocked
	if now.After(c.sess.LastActivityAt) {
		c.sess.LastActivityAt = now
	}
	return []Event{{Kind: EventUnlocked, At: now, User: c.sess.User}}
}

func (c *Controller) idleLocked(now time.Time) time.Duration {
	idle := now.Sub(c.sess.LastActivityAt)
	if idle < 0 {
		return 0
	}
	return idle
}

// =============================================================================
// TERMINATION
// =============================================================================

// Logout destroys the session. Calling it without a session is a no-op.
func (c *Controller) Logout() {
	now := c.clock.Now()
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	user := c.destroyLocked()
	c.unlockAndEmit([]Event{{Kind: EventLoggedOut, At: now, User: user}})
}

// Invalidate destroys the session after the backend rejected its token on
// some other endpoint (HTTP 401/403).
func (c *Controller) Invalidate(reason string) {
	now := c.clock.Now()
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	if reason == "" {
		reason = ReasonUnauthorized
	}
	user := c.destroyLocked()
	c.unlockAndEmit([]Event{{Kind: EventSessionExpired, At: now, User: user, Reason: reason}})
}

// =============================================================================
// CONFIGURATION AND READ ACCESS
// =============================================================================

// Reconfigure swaps thresholds. They apply from the next Evaluate.
func (c *Controller) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.logger.Info("session thresholds updated",
		"auto_lock", cfg.AutoLock, "session_timeout", cfg.SessionTimeout, "warning_lead", cfg.WarningLead)
	return nil
}

// Config returns the current thresholds.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return StateNoSession
	}
	return stateOf(c.lock)
}

// CurrentUser returns the signed-in user.
func (c *Controller) CurrentUser() (CurrentUser, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return CurrentUser{}, false
	}
	return c.sess.User, true
}

// Token returns the bearer token for protected requests. It is withheld
// while locked.
func (c *Controller) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.lock == Locked {
		return "", false
	}
	return c.sess.token, true
}

// Snapshot reports the state and the time left before each threshold.
func (c *Controller) Snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return Snapshot{State: StateNoSession}
	}
	idle := c.idleLocked(now)
	snap := Snapshot{
		State:       stateOf(c.lock),
		User:        c.sess.User,
		Idle:        idle,
		UntilExpiry: c.cfg.SessionTimeout - idle,
	}
	if c.lock != Locked && idle < c.cfg.AutoLock {
		snap.UntilLock = c.cfg.AutoLock - idle
	}
	if snap.UntilExpiry < 0 {
		snap.UntilExpiry = 0
	}
	return snap
}
