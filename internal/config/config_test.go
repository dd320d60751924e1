package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if !cfg.Surface.Reflect {
		t.Error("expected surface_reflect on by default")
	}
	if cfg.Surface.Ripple {
		t.Error("expected surface_ripple off by default")
	}
	if cfg.Surface.MaxPatchLevel != 14 {
		t.Errorf("expected max_patch_level 14, got %d", cfg.Surface.MaxPatchLevel)
	}
	if cfg.Surface.LoadFrequency != 20 {
		t.Errorf("expected planet_load_frequency 20, got %d", cfg.Surface.LoadFrequency)
	}
	if cfg.Surface.PreloadTiles {
		t.Error("expected preload_mode off by default")
	}
	if cfg.Data.Planet != "Earth" {
		t.Errorf("expected planet Earth, got %s", cfg.Data.Planet)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
surface:
  surface_reflect: false
  surface_lights: false
  planet_load_frequency: 5
  max_patch_level: 10
data:
  texture_root: /data/tex
  planet: Mars
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("loadFromFile failed: %v", err)
	}
	if cfg.Surface.Reflect {
		t.Error("surface_reflect should be overridden to false")
	}
	if cfg.Surface.LoadFrequency != 5 {
		t.Errorf("load frequency: got %d, want 5", cfg.Surface.LoadFrequency)
	}
	if cfg.Surface.MaxPatchLevel != 10 {
		t.Errorf("max level: got %d, want 10", cfg.Surface.MaxPatchLevel)
	}
	if cfg.Data.Planet != "Mars" {
		t.Errorf("planet: got %s, want Mars", cfg.Data.Planet)
	}
	// Values absent from the file keep their defaults.
	if cfg.Graphics.Width != 1280 {
		t.Errorf("width should keep default 1280, got %d", cfg.Graphics.Width)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Surface.MaxPatchLevel = 20
	if err := cfg.validate(); err == nil {
		t.Error("expected error for max_patch_level 20")
	}
	cfg = Default()
	cfg.Surface.LoadFrequency = 0
	if err := cfg.validate(); err == nil {
		t.Error("expected error for zero load frequency")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := Default()
	cfg.Data.Planet = "Venus"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loadFromFile failed: %v", err)
	}
	if loaded.Data.Planet != "Venus" {
		t.Errorf("planet after round trip: got %s, want Venus", loaded.Data.Planet)
	}
}
