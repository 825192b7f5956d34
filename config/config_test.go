package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestParse(t *testing.T) {
	data := []byte(`
[store]
type = "maildir"
base_path = "/srv/captures"

[store.options]
seal_public_key = "abcd"

[smtp]
addr = ":2526"
read_timeout = "5s"

[log]
level = "debug"
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Store.Type != "maildir" || cfg.Store.BasePath != "/srv/captures" {
		t.Errorf("unexpected store section: %+v", cfg.Store)
	}
	if cfg.Store.Options["seal_public_key"] != "abcd" {
		t.Errorf("expected store option, got %v", cfg.Store.Options)
	}
	if cfg.SMTP.Addr != ":2526" {
		t.Errorf("expected addr :2526, got %q", cfg.SMTP.Addr)
	}
	if cfg.SMTP.ReadTimeout.Duration != 5*time.Second {
		t.Errorf("expected 5s read timeout, got %v", cfg.SMTP.ReadTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.SMTP.Domain != Default().SMTP.Domain {
		t.Errorf("expected default domain, got %q", cfg.SMTP.Domain)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "[store\ntype = 1"},
		{"unknown key", "[store]\nbase_dir = \"/tmp\""},
		{"bad duration", "[smtp]\nread_timeout = \"soon\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Store.Options = map[string]string{"watch": "true"}

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v\n%s", err, data)
	}
	if got.SMTP.ReadTimeout != cfg.SMTP.ReadTimeout || got.Store.Options["watch"] != "true" {
		t.Errorf("round trip changed config:\n%s", data)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no type", func(c *Config) { c.Store.Type = "" }, true},
		{"no base path", func(c *Config) { c.Store.BasePath = "" }, true},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"negative size", func(c *Config) { c.SMTP.MaxMessageBytes = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	return cmd
}

func TestFromFlags(t *testing.T) {
	t.Setenv(EnvDir, "")

	path := filepath.Join(t.TempDir(), "mailcapture.toml")
	content := "[store]\ntype = \"maildir\"\nbase_path = \"/from/file\"\n[log]\nlevel = \"warn\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cmd := newFlagCommand(t, "--config", path, "--dir", "/from/flag/", "--log-level", "debug")
	cfg, err := FromFlags(cmd)
	if err != nil {
		t.Fatalf("FromFlags failed: %v", err)
	}
	if cfg.Store.Type != "maildir" {
		t.Errorf("expected type from file, got %q", cfg.Store.Type)
	}
	if cfg.Store.BasePath != "/from/flag" {
		t.Errorf("expected flag to override base path, got %q", cfg.Store.BasePath)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected flag to override level, got %q", cfg.Log.Level)
	}
}

func TestFromFlags_EnvDir(t *testing.T) {
	t.Setenv(EnvDir, "/from/env")

	cfg, err := FromFlags(newFlagCommand(t))
	if err != nil {
		t.Fatalf("FromFlags failed: %v", err)
	}
	if cfg.Store.BasePath != "/from/env" {
		t.Errorf("expected env dir, got %q", cfg.Store.BasePath)
	}
}

func TestFromFlags_MissingFile(t *testing.T) {
	cmd := newFlagCommand(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	_, err := FromFlags(cmd)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("expected load error, got %v", err)
	}
}
