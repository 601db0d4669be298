package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultMaxMediaBytes caps first-contact media uploads.
const DefaultMaxMediaBytes = 16 << 20

// Config represents ~/.wppbot/config.toml.
type Config struct {
	DefaultUser string   `toml:"default_user"`
	API         API      `toml:"api"`
	Poll        Poll     `toml:"poll"`
	Store       Store    `toml:"store"`
	Media       Media    `toml:"media"`
	Features    Features `toml:"features"`
}

// API configures the bot backend. BaseURL has no default: deployments have
// used more than one backend and the right one must be chosen explicitly.
type API struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// Poll configures the dashboard's timers.
type Poll struct {
	StatusInterval     Duration `toml:"status_interval"`
	QRInterval         Duration `toml:"qr_interval"`
	ReloadInterval     Duration `toml:"reload_interval"`
	ReloadPause        Duration `toml:"reload_pause"`
	PairingTimeout     Duration `toml:"pairing_timeout"`
	PairingMaxAttempts int      `toml:"pairing_max_attempts"`
}

// Store configures the document store.
type Store struct {
	Path          string   `toml:"path"`
	WatchInterval Duration `toml:"watch_interval"`
}

// Media configures the media blob store and its HTTP server.
type Media struct {
	Path       string `toml:"path"`
	ListenAddr string `toml:"listen_addr"`
	PublicURL  string `toml:"public_url"`
	MaxBytes   int64  `toml:"max_bytes"`
}

// Features switches dashboard sections on or off.
type Features struct {
	Contacts          bool `toml:"contacts"`
	Orders            bool `toml:"orders"`
	HelpRequests      bool `toml:"help_requests"`
	Rules             bool `toml:"rules"`
	FirstContactMedia bool `toml:"first_contact_media"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: API{Timeout: Duration(15 * time.Second)},
		Poll: Poll{
			StatusInterval:     Duration(5 * time.Second),
			QRInterval:         Duration(3 * time.Second),
			ReloadInterval:     Duration(30 * time.Second),
			ReloadPause:        Duration(500 * time.Millisecond),
			PairingTimeout:     Duration(2 * time.Minute),
			PairingMaxAttempts: 40,
		},
		Store: Store{WatchInterval: Duration(500 * time.Millisecond)},
		Media: Media{
			ListenAddr: "127.0.0.1:8787",
			PublicURL:  "http://127.0.0.1:8787",
			MaxBytes:   DefaultMaxMediaBytes,
		},
		Features: Features{
			Contacts:          true,
			Orders:            true,
			HelpRequests:      true,
			Rules:             true,
			FirstContactMedia: true,
		},
	}
}

// Load reads config from the given path on top of the defaults. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Resolve builds the effective config: defaults, then the TOML file if it
// exists, then a .env file in the working directory, then WPPBOT_* variables.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) error {
		if v, ok := lookup(key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	}

	str("WPPBOT_USER", &c.DefaultUser)
	str("WPPBOT_API_URL", &c.API.BaseURL)
	str("WPPBOT_STORE_PATH", &c.Store.Path)
	str("WPPBOT_MEDIA_PATH", &c.Media.Path)
	str("WPPBOT_MEDIA_ADDR", &c.Media.ListenAddr)
	str("WPPBOT_MEDIA_URL", &c.Media.PublicURL)
	if err := dur("WPPBOT_API_TIMEOUT", &c.API.Timeout); err != nil {
		return err
	}
	if err := dur("WPPBOT_STATUS_INTERVAL", &c.Poll.StatusInterval); err != nil {
		return err
	}
	if err := dur("WPPBOT_RELOAD_INTERVAL", &c.Poll.ReloadInterval); err != nil {
		return err
	}
	if v, ok := lookup("WPPBOT_MEDIA_MAX_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("WPPBOT_MEDIA_MAX_BYTES: %w", err)
		}
		c.Media.MaxBytes = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required (or set WPPBOT_API_URL)")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an http(s) URL", c.API.BaseURL)
	}
	positive := []struct {
		name string
		d    Duration
	}{
		{"poll.status_interval", c.Poll.StatusInterval},
		{"poll.qr_interval", c.Poll.QRInterval},
		{"poll.reload_interval", c.Poll.ReloadInterval},
		{"poll.pairing_timeout", c.Poll.PairingTimeout},
		{"store.watch_interval", c.Store.WatchInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}
	if c.Poll.ReloadPause < 0 {
		return errors.New("poll.reload_pause must not be negative")
	}
	if c.Poll.PairingMaxAttempts < 1 {
		return errors.New("poll.pairing_max_attempts must be at least 1")
	}
	if c.Media.MaxBytes <= 0 {
		return errors.New("media.max_bytes must be positive")
	}
	if !strings.HasPrefix(c.Media.PublicURL, "http://") && !strings.HasPrefix(c.Media.PublicURL, "https://") {
		return fmt.Errorf("media.public_url %q is not an http(s) URL", c.Media.PublicURL)
	}
	return nil
}
