package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want default %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.KeepaliveSeconds != 30 {
		t.Errorf("KeepaliveSeconds = %d, want 30", cfg.KeepaliveSeconds)
	}
	if cfg.MaxReconnects != 5 {
		t.Errorf("MaxReconnects = %d, want 5", cfg.MaxReconnects)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "api_url: https://pulse.example.com\nmax_reconnects: 2\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.APIURL != "https://pulse.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.MaxReconnects != 2 {
		t.Errorf("MaxReconnects = %d, want 2", cfg.MaxReconnects)
	}
	// Unset fields still get defaults.
	if cfg.ReconnectDelaySeconds != 3 {
		t.Errorf("ReconnectDelaySeconds = %d, want 3", cfg.ReconnectDelaySeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_url: https://file.example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MPULSE_API_URL", "https://env.example.com")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.APIURL != "https://env.example.com" {
		t.Errorf("APIURL = %q, want env override", cfg.APIURL)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{APIURL: "https://pulse.example.com", KeepaliveSeconds: 10}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.APIURL != cfg.APIURL {
		t.Errorf("APIURL = %q, want %q", loaded.APIURL, cfg.APIURL)
	}
	if loaded.KeepaliveInterval() != 10*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 10s", loaded.KeepaliveInterval())
	}
}

func TestInvalidYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_url: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}
