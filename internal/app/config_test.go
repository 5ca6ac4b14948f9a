package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("applies defaults for omitted fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.yaml")
		if err := os.WriteFile(path, []byte("name_server: 10.0.0.1:9876\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.NameServer != "10.0.0.1:9876" {
			t.Errorf("Expected overridden name server, got %s", cfg.NameServer)
		}
		if cfg.Topic != "DEMO_TOPIC" || cfg.ListenAddr != ":8080" {
			t.Errorf("Expected defaults for omitted fields, got %+v", cfg)
		}
	})

	t.Run("rejects missing topic", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.yaml")
		if err := os.WriteFile(path, []byte(`topic: ""`), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Error("Expected validation error for empty topic")
		}
	})
}
