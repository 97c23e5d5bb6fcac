// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/neontrader/neon-tui/internal/appdata"
	"github.com/neontrader/neon-tui/internal/auth"
)

// Version is reported by /healthz. main overrides it with the build version.
var Version = "1.0.0"

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

// ============================================================================
// CONFIG
// ============================================================================

// Config configures the development backend.
type Config struct {
	Addr              string
	JWTSecret         string
	TokenTTL          time.Duration
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// AuthRatePerSec and AuthBurst bound credential endpoints per client IP.
	AuthRatePerSec float64
	AuthBurst      int

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// DefaultConfig returns the defaults used by `neon serve`.
func DefaultConfig() Config {
	return Config{
		Addr:              "127.0.0.1:8787",
		TokenTTL:          time.Hour,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AuthRatePerSec:    5,
		AuthBurst:         10,
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for token expiry, lockout and trade times.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the auth gateway and app data API.
type Server struct {
	cfg     Config
	router  chi.Router
	logger  *slog.Logger
	now     func() time.Time
	tokens  *TokenManager
	users   *userStore
	ledger  *ledger
	limiter *IPRateLimiter
	metrics *Metrics

	mu     sync.Mutex
	server *http.Server
}

// New builds a server. Zero-valued config fields take their defaults.
func New(cfg Config, opts ...Option) (*Server, error) {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AuthRatePerSec <= 0 {
		cfg.AuthRatePerSec = def.AuthRatePerSec
	}
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = def.AuthBurst
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = def.BcryptCost
	}

	s := &Server{
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	tokens, err := NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, s.now)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens
	s.users = newUserStore(cfg.BcryptCost, cfg.MaxFailedAttempts, cfg.LockoutDuration, s.now)
	s.ledger = newLedger(s.now)
	s.limiter = NewIPRateLimiter(cfg.AuthRatePerSec, cfg.AuthBurst)
	s.limiter.now = s.now

	s.setupRoutes()
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware)
	r.Use(LoggingMiddleware(s.logger, s.metrics))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(RateLimitMiddleware(s.limiter, s.metrics)).Post("/register", s.handleRegister)
			r.With(RateLimitMiddleware(s.limiter, s.metrics)).Post("/login", s.handleLogin)
			r.With(s.requireAuth).Get("/me", s.handleMe)
			r.With(s.requireAuth).Post("/totp/enroll", s.handleTOTPEnroll)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/portfolio", s.handlePortfolio)
			r.Get("/trades", s.handleTrades)
			r.Post("/trades", s.handlePlaceTrade)
			r.Put("/trades/{id}/close", s.handleCloseTrade)
			r.Get("/platforms", s.handlePlatforms)
			r.Post("/platforms", s.handleAddPlatform)
			r.Put("/platforms/{id}/test", s.handleTestPlatform)
			r.Get("/market/prices/multiple", s.handleQuotes)
			r.Get("/market/{symbol}", s.handleMarket)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, auth.NewError("not_found", http.StatusNotFound, "no such endpoint"))
	})
	s.router = r
}

// ============================================================================
// AUTH HANDLERS
// ============================================================================

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if !decodeBody(w, r, &reg) {
		return
	}
	u, err := s.users.register(reg)
	if err != nil {
		s.recordAuth("register", err)
		writeError(w, err)
		return
	}
	s.metrics.RegisteredUsers.Set(float64(s.users.count()))
	s.recordAuth("register", nil)
	s.logger.Info("user registered", "user_id", u.id)
	s.writeGrant(w, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}
	u, locked, err := s.users.authenticate(creds)
	if locked {
		s.metrics.Lockouts.Inc()
		s.logger.Warn("account locked after failed logins", "request_id", RequestIDFrom(r.Context()))
	}
	s.recordAuth("login", err)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeGrant(w, http.StatusOK, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	u, ok := s.users.get(claims.Subject)
	if !ok {
		writeError(w, auth.NewError(auth.CodeInvalidToken, http.StatusUnauthorized, "unknown user"))
		return
	}
	s.recordAuth("me", nil)
	writeJSON(w, http.StatusOK, auth.MeResponse{User: u.identity()})
}

func (s *Server) handleTOTPEnroll(w http.ResponseWriter, r *http.Request) {
	enrollment, err := s.users.enrollTOTP(claimsFrom(r.Context()).Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (s *Server) writeGrant(w http.ResponseWriter, status int, u *user) {
	token, err := s.tokens.Issue(u.id, u.email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, auth.Grant{Token: token, Identity: u.identity()})
}

func (s *Server) recordAuth(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(auth.CodeOf(err))
		if result == "" {
			result = string(auth.CodeInternal)
		}
	}
	s.metrics.AuthAttempts.WithLabelValues(op, result).Inc()
}

// ============================================================================
// DATA HANDLERS
// ============================================================================

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.portfolio(claimsFrom(r.Context()).Subject))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.trades(claimsFrom(r.Context()).Subject))
}

func (s *Server) handlePlaceTrade(w http.ResponseWriter, r *http.Request) {
	var req appdata.TradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.ledger.execute(claimsFrom(r.Context()).Subject, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.close(claimsFrom(r.Context()).Subject, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.platforms(claimsFrom(r.Context()).Subject))
}

func (s *Server) handleAddPlatform(w http.ResponseWriter, r *http.Request) {
	var req appdata.PlatformRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.ledger.addPlatform(claimsFrom(r.Context()).Subject, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleTestPlatform(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.testPlatform(claimsFrom(r.Context()).Subject, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleQuotes answers ?symbols=BTC,ETH with quotes in request order.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var quotes []appdata.Quote
	for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if sym = strings.TrimSpace(sym); sym == "" {
			continue
		}
		q, ok := appdata.MockQuote(sym)
		if !ok {
			writeError(w, fmt.Errorf("%w: %s", errUnknownSymbol, sym))
			return
		}
		quotes = append(quotes, q)
	}
	if len(quotes) == 0 {
		writeError(w, auth.NewError(auth.CodeBadRequest, http.StatusBadRequest, "symbols is required"))
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	q, ok := appdata.MockQuote(chi.URLParam(r, "symbol"))
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", errUnknownSymbol, chi.URLParam(r, "symbol")))
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Users   int    `json:"users"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version, Users: s.users.count()})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe binds cfg.Addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("server started", "addr", ln.Addr().String(), "version", Version)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, auth.NewError(auth.CodeBadRequest, http.StatusBadRequest, "malformed JSON body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error":{"code","message"}}. Messages never
// include tokens or passwords.
func writeError(w http.ResponseWriter, err error) {
	var gwErr *auth.Error
	switch {
	case errors.As(err, &gwErr):
	case errors.Is(err, auth.ErrPasswordMismatch):
		gwErr = auth.NewError(auth.CodePasswordMismatch, http.StatusBadRequest, "passwords do not match")
	case errors.Is(err, auth.ErrPasswordTooLong), errors.Is(err, bcrypt.ErrPasswordTooLong):
		gwErr = auth.NewError(auth.CodeWeakPassword, http.StatusBadRequest,
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	case errors.Is(err, auth.ErrWeakPassword):
		gwErr = auth.NewError(auth.CodeWeakPassword, http.StatusBadRequest,
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	case errors.Is(err, auth.ErrInvalidEmail):
		gwErr = auth.NewError(auth.CodeInvalidEmail, http.StatusBadRequest, "email address is not valid")
	case errors.Is(err, errUnknownSymbol):
		gwErr = auth.NewError("unknown_symbol", http.StatusNotFound, err.Error())
	case errors.Is(err, errUnknownTrade), errors.Is(err, errUnknownPlatform):
		gwErr = auth.NewError("not_found", http.StatusNotFound, err.Error())
	case errors.Is(err, errTradeClosed):
		gwErr = auth.NewError("trade_closed", http.StatusConflict, err.Error())
	case errors.Is(err, appdata.ErrInvalidTrade), errors.Is(err, appdata.ErrInvalidPlatform),
		errors.Is(err, errInsufficientFunds), errors.Is(err, errInsufficientUnits):
		gwErr = auth.NewError(auth.CodeBadRequest, http.StatusBadRequest, err.Error())
	default:
		gwErr = auth.NewError(auth.CodeInternal, http.StatusInternalServerError, "internal error")
	}

	var body auth.ErrorBody
	body.Error.Code = gwErr.Code
	body.Error.Message = strings.TrimSpace(gwErr.Message)
	writeJSON(w, gwErr.Status, body)
}
