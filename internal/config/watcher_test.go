package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "maestro.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"logging": {"level": "info"}}`), 0644))

	loader := NewLoader(configPath)
	changes := make(chan *Config, 4)

	w, err := NewWatcher(loader, zerolog.Nop(), func(cfg *Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(configPath, []byte(`{"logging": {"level": "debug"}}`), 0644))

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload never fired")
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "maestro.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

	loader := NewLoader(configPath)
	changes := make(chan *Config, 4)

	w, err := NewWatcher(loader, zerolog.Nop(), func(cfg *Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	// default_tool_timeout of -5 fails validation, so no change is delivered
	require.NoError(t, os.WriteFile(configPath, []byte(`{"registry": {"default_tool_timeout": -5}}`), 0644))

	select {
	case <-changes:
		t.Fatal("invalid config should not be delivered")
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "maestro.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

	loader := NewLoader(configPath)
	changes := make(chan *Config, 4)

	w, err := NewWatcher(loader, zerolog.Nop(), func(cfg *Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("unrelated"), 0644))

	select {
	case <-changes:
		t.Fatal("unrelated file should not trigger a reload")
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestWatcherStop(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "maestro.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

	w, err := NewWatcher(NewLoader(configPath), zerolog.Nop(), func(*Config) {})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
}
