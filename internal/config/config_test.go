package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "navi.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.SilenceMs != 2500 {
		t.Errorf("silence_ms: got %d, want 2500", cfg.Listen.SilenceMs)
	}
	if cfg.STT.MaxReconnects != 5 {
		t.Errorf("max_reconnects: got %d, want 5", cfg.STT.MaxReconnects)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navi.yaml")
	content := `listen:
  amplitude_threshold: 0.1
  silence_ms: 1000
stt:
  backend: batch
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.AmplitudeThreshold != 0.1 {
		t.Errorf("amplitude_threshold: got %v, want 0.1", cfg.Listen.AmplitudeThreshold)
	}
	if cfg.Listen.SilenceMs != 1000 {
		t.Errorf("silence_ms: got %d, want 1000", cfg.Listen.SilenceMs)
	}
	if cfg.STT.Backend != "batch" {
		t.Errorf("backend: got %q, want batch", cfg.STT.Backend)
	}
	// untouched fields keep defaults
	if cfg.Exec.SettleOpenTypeMs != 3000 {
		t.Errorf("settle_open_type_ms: got %d, want 3000", cfg.Exec.SettleOpenTypeMs)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"threshold out of range", "listen:\n  amplitude_threshold: 1.5\n"},
		{"unknown backend", "stt:\n  backend: morse\n"},
		{"history cap too small", "chat:\n  history_cap: 1\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "navi.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
