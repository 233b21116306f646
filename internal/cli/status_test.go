package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelios/maestro/internal/daemon"
)

func TestStatusCommand(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		cfgPath := writeConfigFile(t, nil)

		out, err := executeCommand("status", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: stopped")
	})

	t.Run("running", func(t *testing.T) {
		cfgPath := writeConfigFile(t, nil)
		dataDir := filepath.Dir(cfgPath)

		pidFile := daemon.New(dataDir)
		require.NoError(t, pidFile.Acquire())
		defer pidFile.Release()

		out, err := executeCommand("status", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: running")
		assert.Contains(t, out, "PID:")
		assert.Contains(t, out, "Gateway: ws://")
		assert.Contains(t, out, "Metrics: http://")
	})
}

func TestStopCommandWhenNotRunning(t *testing.T) {
	cfgPath := writeConfigFile(t, nil)

	out, err := executeCommand("stop", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{3750 * time.Second, "1h2m30s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
