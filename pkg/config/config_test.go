package config

import (
	"os"
	"path/filepath"
	"testing"
)

// The default-path helpers are used by read-only commands, so resolving a
// path must not create anything on disk.
func TestDefaultPathHelpersDoNotCreateDirectories(t *testing.T) {
	dataHome := filepath.Join(t.TempDir(), "data")
	configHome := filepath.Join(t.TempDir(), "config")
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv("XDG_CONFIG_HOME", configHome)

	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		t.Fatalf("GetDefaultStorageDir: %v", err)
	}
	if want := filepath.Join(dataHome, "fedsearch"); storageDir != want {
		t.Errorf("storage dir = %q, want %q", storageDir, want)
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir: %v", err)
	}
	if want := filepath.Join(configHome, "fedsearch"); configDir != want {
		t.Errorf("config dir = %q, want %q", configDir, want)
	}

	for _, dir := range []string{storageDir, configDir} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("resolving %q created it on disk (stat err = %v)", dir, err)
		}
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fedsearch", "config.toml")

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("GetDefaultConfig: %v", err)
	}
	if err := cfg.SaveConfig(configPath); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.SuggestLimit != DefaultSuggestLimit {
		t.Errorf("suggest limit = %d, want %d", loaded.SuggestLimit, DefaultSuggestLimit)
	}
}
