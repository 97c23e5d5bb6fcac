// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/neontrader/neon-tui/internal/auth"
)

// totpIssuer names the account in authenticator apps.
const totpIssuer = "Neon"

// user is a registered account.
type user struct {
	id           string
	email        string
	username     string
	passwordHash []byte
	totpSecret   string
	createdAt    time.Time
}

func (u *user) identity() auth.Identity {
	return auth.Identity{UserID: u.id, Email: u.email, Username: u.username}
}

// attempts tracks failed logins for one normalized email.
type attempts struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// userStore is an in-memory account table with failed-login lockout.
type userStore struct {
	mu         sync.Mutex
	byID       map[string]*user
	byEmail    map[string]*user
	byUsername map[string]*user
	failed     map[string]*attempts
	lastSweep  time.Time

	bcryptCost      int
	maxFailed       int
	lockoutDuration time.Duration
	now             func() time.Time

	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash []byte
}

func newUserStore(bcryptCost, maxFailed int, lockout time.Duration, now func() time.Time) *userStore {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("neon-dummy-password"), bcryptCost)
	return &userStore{
		byID:            make(map[string]*user),
		byEmail:         make(map[string]*user),
		byUsername:      make(map[string]*user),
		failed:          make(map[string]*attempts),
		bcryptCost:      bcryptCost,
		maxFailed:       maxFailed,
		lockoutDuration: lockout,
		now:             now,
		dummyHash:       dummy,
	}
}

// register validates and stores a new account.
func (s *userStore) register(reg auth.Registration) (*user, error) {
	if err := auth.ValidateRegistration(reg); err != nil {
		return nil, err
	}
	emailKey := auth.NormalizeEmail(reg.Email)
	nameKey := auth.NormalizeUsername(reg.Username)

	// Hash outside the lock; bcrypt is deliberately slow.
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[emailKey]; taken {
		return nil, auth.NewError(auth.CodeDuplicateEmail, 409, "email already registered")
	}
	if _, taken := s.byUsername[nameKey]; taken {
		return nil, auth.NewError(auth.CodeDuplicateUsername, 409, "username already taken")
	}
	u := &user{
		id:           uuid.NewString(),
		email:        emailKey,
		username:     reg.Username,
		passwordHash: hash,
		createdAt:    s.now(),
	}
	s.byID[u.id] = u
	s.byEmail[emailKey] = u
	s.byUsername[nameKey] = u
	return u, nil
}

// authenticate checks credentials, the second factor and the lockout.
// locked reports whether this call tripped the lockout.
func (s *userStore) authenticate(creds auth.Credentials) (u *user, locked bool, err error) {
	key := auth.NormalizeEmail(creds.Email)
	now := s.now()

	s.mu.Lock()
	s.sweepLocked(now)
	a := s.failed[key]
	if a != nil && now.Before(a.lockedUntil) {
		s.mu.Unlock()
		return nil, false, auth.NewError(auth.CodeAccountLocked, 423,
			fmt.Sprintf("too many failed attempts, retry after %s", a.lockedUntil.Sub(now).Round(time.Second)))
	}
	u = s.byEmail[key]
	s.mu.Unlock()

	hash := s.dummyHash
	if u != nil {
		hash = u.passwordHash
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)) != nil || u == nil {
		locked = s.recordFailure(key, now)
		return nil, locked, auth.NewError(auth.CodeInvalidCredentials, 401, "invalid email or password")
	}

	s.mu.Lock()
	secret := u.totpSecret
	s.mu.Unlock()
	if secret != "" {
		if creds.TOTPCode == "" {
			return nil, false, auth.NewError(auth.CodeTOTPRequired, 401, "authenticator code required")
		}
		ok, _ := totp.ValidateCustom(creds.TOTPCode, secret, now, totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if !ok {
			locked = s.recordFailure(key, now)
			return nil, locked, auth.NewError(auth.CodeInvalidTOTP, 401, "authenticator code rejected")
		}
	}

	s.mu.Lock()
	delete(s.failed, key)
	s.mu.Unlock()
	return u, false, nil
}

func (s *userStore) recordFailure(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.failed[key]
	if a == nil {
		a = &attempts{}
		s.failed[key] = a
	}
	a.failures++
	a.lastFailure = now
	if s.maxFailed > 0 && a.failures >= s.maxFailed {
		a.failures = 0
		a.lockedUntil = now.Add(s.lockoutDuration)
		return true
	}
	return false
}

// sweepLocked forgets failure counters that are past their lockout and
// have seen no failure for a full lockout period. Unknown emails would
// otherwise accumulate forever.
func (s *userStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.lockoutDuration {
		return
	}
	s.lastSweep = now
	for key, a := range s.failed {
		if !now.Before(a.lockedUntil) && now.Sub(a.lastFailure) >= s.lockoutDuration {
			delete(s.failed, key)
		}
	}
}

func (s *userStore) failedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed)
}

func (s *userStore) get(id string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	return u, ok
}

// enrollTOTP generates and stores a new second-factor secret.
func (s *userStore) enrollTOTP(id string) (auth.TOTPEnrollment, error) {
	s.mu.Lock()
	u, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return auth.TOTPEnrollment{}, auth.NewError(auth.CodeInvalidToken, 401, "unknown user")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: u.email,
	})
	if err != nil {
		return auth.TOTPEnrollment{}, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	s.mu.Lock()
	u.totpSecret = key.Secret()
	s.mu.Unlock()
	return auth.TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

func (s *userStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
