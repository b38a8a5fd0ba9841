package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level vidcast configuration. All fields can also be
// set via CLI flags and VIDCAST_* environment variables; a TOML file is
// the base layer.
type Config struct {
	// Host and Port the HTTP server listens on.
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// BaseURL is the externally visible URL used in feed and enclosure
	// links, e.g. https://vidcast.example.com.
	BaseURL string `toml:"base_url"`

	// DataDir holds the SQLite database and the audio artifact directory.
	DataDir string `toml:"data_dir"`

	// AudioFormat and AudioBitrate control the extracted audio artifacts.
	AudioFormat  string `toml:"audio_format"`
	AudioBitrate string `toml:"audio_bitrate"`

	// FetchCount is the number of most recent uploads considered per
	// refresh run.
	FetchCount int `toml:"fetch_count"`

	// RefreshInterval between scheduled refresh ticks, e.g. "1h".
	RefreshInterval duration `toml:"refresh_interval"`

	// AdminUsername/AdminPassword guard the management endpoints when
	// both are set. Orthogonal to per-channel access policies.
	AdminUsername string `toml:"admin_username"`
	AdminPassword string `toml:"admin_password"`
}

// duration lets TOML carry values like "30m" or "1h".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Default returns the configuration defaults matching a local deployment.
func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            5000,
		DataDir:         "data",
		AudioFormat:     "mp3",
		AudioBitrate:    "192",
		FetchCount:      10,
		RefreshInterval: duration(time.Hour),
	}
}

// LoadConfig reads a TOML config file on top of the defaults. A missing
// file is not an error so the flags-and-env-only path keeps working.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// DatabasePath is the SQLite database file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "vidcast.db")
}

// AudioDir is the directory holding episode audio artifacts.
func (c *Config) AudioDir() string {
	return filepath.Join(c.DataDir, "audio")
}

// Interval returns the refresh interval as a time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.RefreshInterval)
}

// SetInterval overrides the refresh interval, used by the flag layer.
func (c *Config) SetInterval(d time.Duration) {
	c.RefreshInterval = duration(d)
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ResolvedBaseURL falls back to a localhost URL when no base URL is set.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// AdminConfigured reports whether the management surface requires the
// process-wide admin credential.
func (c *Config) AdminConfigured() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

// EnsureDirs creates the data and audio directories if missing.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(c.AudioDir(), 0o755)
}
