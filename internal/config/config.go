// Package config provides configuration management for kinosync.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/kinofiles/kinosync/internal/constants"
	"github.com/kinofiles/kinosync/internal/session"
)

// Config is the effective client configuration.
//
// Config file location: ~/.config/kinosync/config
//
// INI format:
//
//	[node]
//	base_url = http://localhost:3000
//	ws_url = ws://localhost:3000/ws
//
//	[sync]
//	refresh_delay_ms = 1000
//	snapshot_retries = 0
//	session_dir = ~/.config/kinosync/sessions
//	session_id = default
//
//	[logging]
//	level = info
//	file =
//
//	[metrics]
//	listen_addr = 127.0.0.1:9464
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy =
type Config struct {
	// Node endpoints. WSURL is derived from BaseURL when empty.
	BaseURL string
	WSURL   string

	// RefreshDelay is the wait between a dispatched command and the pull
	// refresh that follows it.
	RefreshDelay time.Duration
	// SnapshotRetries is the number of extra attempts for GET /files.
	SnapshotRetries int
	SessionDir      string
	SessionID       string

	LogLevel string
	LogFile  string

	MetricsAddr string

	// Proxy settings (mode: no-proxy, system, basic, ntlm)
	ProxyMode     string
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never written to disk
	NoProxy       string
}

// Environment variables that override the config file.
const (
	EnvBaseURL       = "KINOSYNC_BASE_URL"
	EnvWSURL         = "KINOSYNC_WS_URL"
	EnvSession       = "KINOSYNC_SESSION"
	EnvLogLevel      = "KINOSYNC_LOG_LEVEL"
	EnvProxyPassword = "KINOSYNC_PROXY_PASSWORD"
)

// Validation errors
var (
	ErrMissingBaseURL      = errors.New("base_url is required")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrInvalidRefreshDelay = errors.New("refresh_delay_ms must be between 0 and 60000")
	ErrInvalidRetries      = errors.New("snapshot_retries must be between 0 and 10")
	ErrInvalidSessionID    = errors.New("session_id must use only letters, digits, '_', '.' and '-', and not be . or ..")
	ErrInvalidProxyMode    = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
)

// New returns a Config with default values.
func New() *Config {
	return &Config{
		BaseURL:         "http://localhost:3000",
		RefreshDelay:    constants.DefaultRefreshDelay,
		SnapshotRetries: constants.DefaultSnapshotRetries,
		SessionDir:      SessionDirectory(),
		SessionID:       constants.DefaultSessionID,
		LogLevel:        "info",
		ProxyMode:       "no-proxy",
		ProxyPort:       8080,
	}
}

// Load reads configuration from an INI file. A missing file yields defaults
// and no error. An empty path means DefaultConfigPath.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	node := iniFile.Section("node")
	cfg.BaseURL = node.Key("base_url").MustString(cfg.BaseURL)
	cfg.WSURL = node.Key("ws_url").String()

	sync := iniFile.Section("sync")
	delayMS := sync.Key("refresh_delay_ms").MustInt(int(constants.DefaultRefreshDelay / time.Millisecond))
	cfg.RefreshDelay = time.Duration(delayMS) * time.Millisecond
	cfg.SnapshotRetries = sync.Key("snapshot_retries").MustInt(constants.DefaultSnapshotRetries)
	cfg.SessionDir = expandHome(sync.Key("session_dir").MustString(cfg.SessionDir))
	cfg.SessionID = sync.Key("session_id").MustString(cfg.SessionID)

	logging := iniFile.Section("logging")
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = expandHome(logging.Key("file").String())

	cfg.MetricsAddr = iniFile.Section("metrics").Key("listen_addr").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	return cfg, nil
}

// LoadEffective loads the config file and applies environment overrides.
func LoadEffective(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from KINOSYNC_* environment variables.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvWSURL); v != "" {
		cfg.WSURL = v
	}
	if v := os.Getenv(EnvSession); v != "" {
		cfg.SessionID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvProxyPassword); v != "" {
		cfg.ProxyPassword = v
	}
}

// Save writes configuration to an INI file using a temporary file and an
// atomic rename. The proxy password is not saved.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	node, err := iniFile.NewSection("node")
	if err != nil {
		return fmt.Errorf("failed to create node section: %w", err)
	}
	node.Key("base_url").SetValue(cfg.BaseURL)
	node.Key("ws_url").SetValue(cfg.WSURL)

	sync, err := iniFile.NewSection("sync")
	if err != nil {
		return fmt.Errorf("failed to create sync section: %w", err)
	}
	sync.Key("refresh_delay_ms").SetValue(fmt.Sprintf("%d", cfg.RefreshDelay.Milliseconds()))
	sync.Key("snapshot_retries").SetValue(fmt.Sprintf("%d", cfg.SnapshotRetries))
	sync.Key("session_dir").SetValue(cfg.SessionDir)
	sync.Key("session_id").SetValue(cfg.SessionID)

	logging, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logging.Key("level").SetValue(cfg.LogLevel)
	logging.Key("file").SetValue(cfg.LogFile)

	metrics, err := iniFile.NewSection("metrics")
	if err != nil {
		return fmt.Errorf("failed to create metrics section: %w", err)
	}
	metrics.Key("listen_addr").SetValue(cfg.MetricsAddr)

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the configuration. Returns nil if valid.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if err := checkURL(cfg.BaseURL, "http", "https"); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if cfg.WSURL != "" {
		if err := checkURL(cfg.WSURL, "ws", "wss"); err != nil {
			return fmt.Errorf("ws_url: %w", err)
		}
	}
	if cfg.RefreshDelay < 0 || cfg.RefreshDelay > constants.MaxRefreshDelay {
		return ErrInvalidRefreshDelay
	}
	if cfg.SnapshotRetries < 0 || cfg.SnapshotRetries > constants.MaxSnapshotRetries {
		return ErrInvalidRetries
	}
	if !session.ValidName(cfg.SessionID) {
		return ErrInvalidSessionID
	}
	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%w: scheme %q not one of %v", ErrInvalidURL, u.Scheme, schemes)
}

// EffectiveWSURL returns WSURL, or the push endpoint derived from BaseURL:
// http becomes ws, https becomes wss, and the path is /ws.
func (cfg *Config) EffectiveWSURL() (string, error) {
	if cfg.WSURL != "" {
		return cfg.WSURL, nil
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: cannot derive ws_url from scheme %q", ErrInvalidURL, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// NeedsProxyPassword reports whether an authenticating proxy mode has a user
// but no password yet.
func (cfg *Config) NeedsProxyPassword() bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
