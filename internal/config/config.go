// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/neontrader/neon-tui/internal/session"
	"github.com/neontrader/neon-tui/internal/util"
)

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as a Go duration string ("5m", "90s")
// in both TOML and JSON.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete neon configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Backend  BackendConfig  `toml:"backend" json:"backend"`
	Session  SessionConfig  `toml:"session" json:"session"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
	Audit    AuditConfig    `toml:"audit" json:"audit"`
	Settings SettingsConfig `toml:"settings" json:"settings"`
	Server   ServerConfig   `toml:"server" json:"server"`
	UI       UIConfig       `toml:"ui" json:"ui"`
}

// BackendConfig locates the auth gateway and app data API.
type BackendConfig struct {
	URL         string  `toml:"url" json:"url"`
	TimeoutSecs int     `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries  int     `toml:"max_retries" json:"max_retries"`
	RatePerSec  float64 `toml:"rate_per_sec" json:"rate_per_sec"`
}

// SessionConfig holds the inactivity thresholds.
type SessionConfig struct {
	AutoLock       Duration `toml:"auto_lock" json:"auto_lock"`
	SessionTimeout Duration `toml:"session_timeout" json:"session_timeout"`
	WarningLead    Duration `toml:"warning_lead" json:"warning_lead"`
	TickInterval   Duration `toml:"tick_interval" json:"tick_interval"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

// AuditConfig controls the session audit trail.
type AuditConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// SettingsConfig locates the user settings database.
type SettingsConfig struct {
	Path string `toml:"path" json:"path"`
}

// ServerConfig configures the local development backend.
type ServerConfig struct {
	Addr              string   `toml:"addr" json:"addr"`
	JWTSecret         string   `toml:"jwt_secret" json:"jwt_secret"`
	TokenTTL          Duration `toml:"token_ttl" json:"token_ttl"`
	MaxFailedAttempts int      `toml:"max_failed_attempts" json:"max_failed_attempts"`
	LockoutDuration   Duration `toml:"lockout_duration" json:"lockout_duration"`
}

// UIConfig holds presentation preferences.
type UIConfig struct {
	Theme string `toml:"theme" json:"theme"`
	Mouse bool   `toml:"mouse" json:"mouse"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sess := session.DefaultConfig()
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			URL:         "http://127.0.0.1:8787",
			TimeoutSecs: 15,
			MaxRetries:  2,
			RatePerSec:  2,
		},
		Session: SessionConfig{
			AutoLock:       Duration(sess.AutoLock),
			SessionTimeout: Duration(sess.SessionTimeout),
			WarningLead:    Duration(sess.WarningLead),
			TickInterval:   Duration(sess.TickInterval),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8787",
			TokenTTL:          Duration(time.Hour),
			MaxFailedAttempts: 5,
			LockoutDuration:   Duration(15 * time.Minute),
		},
		UI: UIConfig{
			Theme: "neon",
			Mouse: true,
		},
	}
}

// SessionSettings converts the [session] section for the controller.
func (c *Config) SessionSettings() session.Config {
	return session.Config{
		AutoLock:       c.Session.AutoLock.Std(),
		SessionTimeout: c.Session.SessionTimeout.Std(),
		WarningLead:    c.Session.WarningLead.Std(),
		TickInterval:   c.Session.TickInterval.Std(),
	}
}

// BackendTimeout returns the per-request timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the neon configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("NEON_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".neon"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataPath returns name inside the config directory, or name itself when
// the directory cannot be determined.
func DataPath(name string) string {
	dir, err := ConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

// ResolvePath returns the file Load would read: the TOML file if present,
// else the JSON file if present, else the TOML path.
func ResolvePath() (string, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults
// when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ResolvePath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file with full validation.
// Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file onto cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file onto cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// SetDefaults fills zero values that would otherwise be invalid.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	if c.Backend.TimeoutSecs <= 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Session.TickInterval <= 0 {
		c.Session.TickInterval = d.Session.TickInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.TokenTTL <= 0 {
		c.Server.TokenTTL = d.Server.TokenTTL
	}
	if c.Server.MaxFailedAttempts <= 0 {
		c.Server.MaxFailedAttempts = d.Server.MaxFailedAttempts
	}
	if c.Server.LockoutDuration <= 0 {
		c.Server.LockoutDuration = d.Server.LockoutDuration
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# neon configuration file\n")
	buf.WriteString("# Durations use Go syntax: 90s, 5m, 1h30m\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON, atomically with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns all problems found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", c.Backend.URL),
		})
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 300 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 300, got %d", c.Backend.TimeoutSecs),
		})
	}
	if c.Backend.MaxRetries < 0 || c.Backend.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "backend.max_retries",
			Message: fmt.Sprintf("must be between 0 and 10, got %d", c.Backend.MaxRetries),
		})
	}
	if c.Backend.RatePerSec < 0 {
		errs = append(errs, ValidationError{Field: "backend.rate_per_sec", Message: "must not be negative"})
	}

	if err := c.SessionSettings().Validate(); err != nil {
		errs = append(errs, ValidationError{
			Field:   "session",
			Message: strings.TrimPrefix(err.Error(), session.ErrInvalidConfig.Error()+": "),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be text or json", c.Logging.Format),
		})
	}

	if c.Server.JWTSecret != "" && len(c.Server.JWTSecret) < 16 {
		errs = append(errs, ValidationError{Field: "server.jwt_secret", Message: "must be at least 16 bytes"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ClampSession repairs the [session] ordering in place and reports whether
// anything changed.
func (c *Config) ClampSession() bool {
	before := c.SessionSettings()
	after := before.Clamp()
	if after == before {
		return false
	}
	c.Session = SessionConfig{
		AutoLock:       Duration(after.AutoLock),
		SessionTimeout: Duration(after.SessionTimeout),
		WarningLead:    Duration(after.WarningLead),
		TickInterval:   Duration(after.TickInterval),
	}
	return true
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - NEON_BACKEND_URL: overrides backend.url
//   - NEON_AUTO_LOCK: overrides session.auto_lock
//   - NEON_SESSION_TIMEOUT: overrides session.session_timeout
//   - NEON_WARNING_LEAD: overrides session.warning_lead
//   - NEON_LOG_LEVEL: overrides logging.level
//   - NEON_SERVER_ADDR: overrides server.addr
//   - NEON_JWT_SECRET: overrides server.jwt_secret
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NEON_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	envDuration("NEON_AUTO_LOCK", &c.Session.AutoLock)
	envDuration("NEON_SESSION_TIMEOUT", &c.Session.SessionTimeout)
	envDuration("NEON_WARNING_LEAD", &c.Session.WarningLead)
	if v := os.Getenv("NEON_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NEON_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("NEON_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
}

func envDuration(name string, dst *Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var d Duration
	if err := d.UnmarshalText([]byte(v)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s: %v\n", name, err)
		return
	}
	*dst = d
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "session.auto_lock").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		if field.CanAddr() && field.Addr().Type().Implements(textUnmarshalerType) {
			return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(strVal))
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(strVal == "1" || lower == "true" || lower == "yes" || lower == "on")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"backend.url",
		"backend.timeout_secs",
		"backend.max_retries",
		"backend.rate_per_sec",
		"session.auto_lock",
		"session.session_timeout",
		"session.warning_lead",
		"session.tick_interval",
		"logging.level",
		"logging.format",
		"logging.file",
		"audit.enabled",
		"audit.path",
		"settings.path",
		"server.addr",
		"server.jwt_secret",
		"server.token_ttl",
		"server.max_failed_attempts",
		"server.lockout_duration",
		"ui.theme",
		"ui.mouse",
	}
}

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Server.JWTSecret != "" {
		safe.Server.JWTSecret = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
