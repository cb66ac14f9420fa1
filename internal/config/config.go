/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

// Relay modes.
const (
	ModeDirect = "direct" // call the messaging platform from this process
	ModeProxy  = "proxy"  // go through the relay endpoint
)

// Proxy environments.
const (
	EnvLocal    = "local"
	EnvDeployed = "deployed"
)

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

type RelayConfig struct {
	Mode        string `yaml:"mode"`
	ProxyEnv    string `yaml:"proxy_env"`
	LocalURL    string `yaml:"local_url"`
	DeployedURL string `yaml:"deployed_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	// The channel access token is not stored on disk; it lives in the OS keychain.
}

type LineConfig struct {
	APIBaseURL  string `yaml:"api_base_url"`
	DataBaseURL string `yaml:"data_base_url"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	AuditDSN string `yaml:"audit_dsn"` // postgres:// URL or SQLite file path; empty disables the audit log
}

type EditorConfig struct {
	ImageURL   string `yaml:"image_url"`
	SizePreset string `yaml:"size_preset"` // "full" | "compact"
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Relay         RelayConfig   `yaml:"relay"`
	Line          LineConfig    `yaml:"line"`
	Server        ServerConfig  `yaml:"server"`
	Editor        EditorConfig  `yaml:"editor"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Relay: RelayConfig{
			Mode:        ModeProxy,
			ProxyEnv:    EnvLocal,
			LocalURL:    "http://localhost:54321",
			DeployedURL: "https://your-project.supabase.co",
		},
		Line:    LineConfig{APIBaseURL: "https://api.line.me", DataBaseURL: "https://api-data.line.me"},
		Server:  ServerConfig{Addr: ":54321"},
		Editor:  EditorConfig{SizePreset: "full"},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir      = "RMB_CONFIG_DIR"
	EnvRelayMode      = "RMB_RELAY_MODE"
	EnvProxyEnv       = "RMB_PROXY_ENV"
	EnvProxyURL       = "RMB_PROXY_URL"
	EnvRelayTimeoutMs = "RMB_RELAY_TIMEOUT_MS"
	EnvLineAPIURL     = "RMB_LINE_API_URL"
	EnvLineDataURL    = "RMB_LINE_DATA_URL"
	EnvServerAddr     = "RMB_SERVER_ADDR"
	EnvAuditDSN       = "RMB_AUDIT_DSN"
	EnvImageURL       = "RMB_IMAGE_URL"
	EnvTelemetryOptIn = "RMB_TELEMETRY_OPT_IN"
	EnvChannelToken   = "RMB_CHANNEL_TOKEN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "RMB_LOG_LEVEL"
	EnvLogFormat = "RMB_LOG_FORMAT"
	EnvLogSource = "RMB_LOG_SOURCE"
	EnvLogFile   = "RMB_LOG_FILE"
)

// Dir returns the per-user configuration directory. RMB_CONFIG_DIR overrides it.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "RichMenuBuilder")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "RichMenuBuilder")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "richmenu")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "richmenu")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StateDir is where the recent documents library, crash reports and autosaves live.
func StateDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the channel access token (RMB_CHANNEL_TOKEN first, then the keyring); the token
// is returned separately and never kept inside the struct.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := LoadToken()
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := SaveToken(token); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the enumerated settings.
func (c AppConfig) Validate() error {
	switch c.Relay.Mode {
	case ModeDirect, ModeProxy:
	default:
		return fmt.Errorf("relay.mode must be %q or %q, got %q", ModeDirect, ModeProxy, c.Relay.Mode)
	}
	switch c.Relay.ProxyEnv {
	case EnvLocal, EnvDeployed:
	default:
		return fmt.Errorf("relay.proxy_env must be %q or %q, got %q", EnvLocal, EnvDeployed, c.Relay.ProxyEnv)
	}
	switch c.Editor.SizePreset {
	case "", "full", "compact":
	default:
		return fmt.Errorf("editor.size_preset must be \"full\" or \"compact\", got %q", c.Editor.SizePreset)
	}
	return nil
}

// ProxyBaseURL is the relay origin for the selected runtime context (local or deployed).
func (c AppConfig) ProxyBaseURL() string {
	if c.Relay.ProxyEnv == EnvDeployed {
		return strings.TrimRight(c.Relay.DeployedURL, "/")
	}
	return strings.TrimRight(c.Relay.LocalURL, "/")
}

// Timeout returns the relay timeout as a duration. Zero, the default, means no timeout.
func (r RelayConfig) Timeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	setLower(&dst.Relay.Mode, src.Relay.Mode)
	setLower(&dst.Relay.ProxyEnv, src.Relay.ProxyEnv)
	setTrim(&dst.Relay.LocalURL, src.Relay.LocalURL)
	setTrim(&dst.Relay.DeployedURL, src.Relay.DeployedURL)
	if src.Relay.TimeoutMs != 0 {
		dst.Relay.TimeoutMs = src.Relay.TimeoutMs
	}
	setTrim(&dst.Line.APIBaseURL, src.Line.APIBaseURL)
	setTrim(&dst.Line.DataBaseURL, src.Line.DataBaseURL)
	setTrim(&dst.Server.Addr, src.Server.Addr)
	setTrim(&dst.Server.AuditDSN, src.Server.AuditDSN)
	setTrim(&dst.Editor.ImageURL, src.Editor.ImageURL)
	setLower(&dst.Editor.SizePreset, src.Editor.SizePreset)
	// logging
	setLower(&dst.Logging.Level, src.Logging.Level)
	setLower(&dst.Logging.Format, src.Logging.Format)
	dst.Logging.Source = src.Logging.Source
	setTrim(&dst.Logging.File, src.Logging.File)
}

func setTrim(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setLower(dst *string, v string) { setTrim(dst, strings.ToLower(v)) }

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	setLower(&cfg.Relay.Mode, os.Getenv(EnvRelayMode))
	setLower(&cfg.Relay.ProxyEnv, os.Getenv(EnvProxyEnv))
	if v := strings.TrimSpace(os.Getenv(EnvProxyURL)); v != "" {
		// an explicit URL replaces whichever endpoint is selected
		if cfg.Relay.ProxyEnv == EnvDeployed {
			cfg.Relay.DeployedURL = v
		} else {
			cfg.Relay.LocalURL = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRelayTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Relay.TimeoutMs = n
		}
	}
	setTrim(&cfg.Line.APIBaseURL, os.Getenv(EnvLineAPIURL))
	setTrim(&cfg.Line.DataBaseURL, os.Getenv(EnvLineDataURL))
	setTrim(&cfg.Server.Addr, os.Getenv(EnvServerAddr))
	setTrim(&cfg.Server.AuditDSN, os.Getenv(EnvAuditDSN))
	setTrim(&cfg.Editor.ImageURL, os.Getenv(EnvImageURL))
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	// logging overrides
	setLower(&cfg.Logging.Level, os.Getenv(EnvLogLevel))
	setLower(&cfg.Logging.Format, os.Getenv(EnvLogFormat))
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	setTrim(&cfg.Logging.File, os.Getenv(EnvLogFile))
}

var overrideKeys = map[string]string{
	"relay.mode":               EnvRelayMode,
	"relay.proxy_env":          EnvProxyEnv,
	"relay.local_url":          EnvProxyURL,
	"relay.deployed_url":       EnvProxyURL,
	"relay.timeout_ms":         EnvRelayTimeoutMs,
	"line.api_base_url":        EnvLineAPIURL,
	"line.data_base_url":       EnvLineDataURL,
	"server.addr":              EnvServerAddr,
	"server.audit_dsn":         EnvAuditDSN,
	"editor.image_url":         EnvImageURL,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
