// Package config loads mailcapture settings from a TOML file and the
// command line.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/smtpsink"
)

// EnvDir overrides the store directory when --dir is not given.
const EnvDir = "MAILCAPTURE_DIR"

// Config is the top-level settings document.
type Config struct {
	Store Store `toml:"store"`
	SMTP  SMTP  `toml:"smtp"`
	Log   Log   `toml:"log"`
}

// Store selects and configures the capture backend.
type Store struct {
	Type     string            `toml:"type"`
	BasePath string            `toml:"base_path"`
	Options  map[string]string `toml:"options,omitempty"`
}

// SMTP configures the serve command's listener.
type SMTP struct {
	Addr            string   `toml:"addr"`
	Domain          string   `toml:"domain"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	MaxMessageBytes int64    `toml:"max_message_bytes"`
	MaxRecipients   int      `toml:"max_recipients"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the settings used when no file or flag says otherwise.
func Default() Config {
	return Config{
		Store: Store{
			Type:     "file",
			BasePath: filepath.Join(os.TempDir(), "mailcapture"),
		},
		SMTP: SMTP{
			Addr:            smtpsink.DefaultAddr,
			Domain:          smtpsink.DefaultDomain,
			ReadTimeout:     Duration{smtpsink.DefaultTimeout},
			WriteTimeout:    Duration{smtpsink.DefaultTimeout},
			MaxMessageBytes: smtpsink.DefaultMaxMessageBytes,
			MaxRecipients:   smtpsink.DefaultMaxRecipients,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loading config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML data over the defaults. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("parsing config: unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Marshal encodes cfg as TOML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks settings that would otherwise fail later with a less
// helpful error.
func (c Config) Validate() error {
	if c.Store.Type == "" {
		return fmt.Errorf("store type is required")
	}
	if c.Store.BasePath == "" {
		return fmt.Errorf("store base_path is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.SMTP.MaxMessageBytes < 0 {
		return fmt.Errorf("smtp max_message_bytes must not be negative")
	}
	if c.SMTP.MaxRecipients < 0 {
		return fmt.Errorf("smtp max_recipients must not be negative")
	}
	return nil
}

// StoreConfig returns the registry settings for the configured store.
func (c Config) StoreConfig(logger *slog.Logger) mailcapture.StoreConfig {
	return mailcapture.StoreConfig{
		Type:     c.Store.Type,
		BasePath: c.Store.BasePath,
		Options:  c.Store.Options,
		Logger:   logger,
	}
}

// SMTPConfig returns the listener settings.
func (c Config) SMTPConfig() smtpsink.Config {
	return smtpsink.Config{
		Addr:            c.SMTP.Addr,
		Domain:          c.SMTP.Domain,
		ReadTimeout:     c.SMTP.ReadTimeout.Duration,
		WriteTimeout:    c.SMTP.WriteTimeout.Duration,
		MaxMessageBytes: c.SMTP.MaxMessageBytes,
		MaxRecipients:   c.SMTP.MaxRecipients,
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// RegisterFlags attaches the global flags to the root command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to a TOML config file")
	flags.String("type", "", "Store type: "+strings.Join(mailcapture.RegisteredTypes(), ", "))
	flags.String("dir", "", "Capture directory (falls back to "+EnvDir+" env var)")
	flags.String("log-level", "", "Logging level: debug, info, warn, error")
}

// FromFlags loads the file named by --config, if any, and applies flag
// overrides on top.
func FromFlags(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	path, err := flags.GetString("config")
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if path != "" {
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}

	storeType, err := flags.GetString("type")
	if err != nil {
		return Config{}, err
	}
	dir, err := flags.GetString("dir")
	if err != nil {
		return Config{}, err
	}
	level, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}

	if storeType != "" {
		cfg.Store.Type = storeType
	}
	if dir == "" {
		dir = os.Getenv(EnvDir)
	}
	if dir != "" {
		cfg.Store.BasePath = filepath.Clean(dir)
	}
	if level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
