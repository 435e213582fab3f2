package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.TablesDir != "./tables" {
		t.Errorf("TablesDir = %q, want ./tables", cfg.Paths.TablesDir)
	}
	if cfg.Paths.CatchmentField != "gauge_id" {
		t.Errorf("CatchmentField = %q, want gauge_id", cfg.Paths.CatchmentField)
	}
	if cfg.Engine.Timeout != 15*time.Minute {
		t.Errorf("Engine.Timeout = %v, want 15m", cfg.Engine.Timeout)
	}
	if cfg.Database.Enabled() {
		t.Error("journal should be disabled without a host")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HIDROCL_MOD13Q1_DIR", "/data/mod13q1")
	t.Setenv("HIDROCL_ENGINE_TIMEOUT", "45s")
	t.Setenv("HIDROCL_SCENE_LIMIT", "5")
	t.Setenv("HIDROCL_DB_HOST", "journal.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Products.Mod13q1Dir != "/data/mod13q1" {
		t.Errorf("Mod13q1Dir = %q", cfg.Products.Mod13q1Dir)
	}
	if cfg.Engine.Timeout != 45*time.Second {
		t.Errorf("Engine.Timeout = %v, want 45s", cfg.Engine.Timeout)
	}
	if cfg.Engine.SceneLimit != 5 {
		t.Errorf("SceneLimit = %d, want 5", cfg.Engine.SceneLimit)
	}
	if !cfg.Database.Enabled() {
		t.Error("journal should be enabled with a host")
	}
}
