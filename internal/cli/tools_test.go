package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsCommand(t *testing.T) {
	t.Run("lists bundled tools", func(t *testing.T) {
		cfgPath := writeConfigFile(t, nil)

		out, err := executeCommand("tools", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "wallet_transfer")
		assert.Contains(t, out, "token_swap")
		assert.Contains(t, out, "gas_estimate")
	})

	t.Run("hides disabled tools", func(t *testing.T) {
		cfgPath := writeConfigFile(t, map[string]interface{}{
			"tools": map[string]interface{}{"disabled": []string{"wallet_transfer"}},
		})

		out, err := executeCommand("tools", "--config", cfgPath)
		require.NoError(t, err)
		assert.NotContains(t, out, "wallet_transfer")
		assert.Contains(t, out, "wallet_balance")
	})

	t.Run("category counts", func(t *testing.T) {
		cfgPath := writeConfigFile(t, nil)

		out, err := executeCommand("tools", "--config", cfgPath, "--categories")
		require.NoError(t, err)
		assert.Contains(t, out, "wallet")
		assert.Contains(t, out, "5 tools, 5 enabled")
	})

	t.Run("search", func(t *testing.T) {
		cfgPath := writeConfigFile(t, nil)

		out, err := executeCommand("tools", "--config", cfgPath, "--categories=false", "--search", "swap")
		require.NoError(t, err)
		assert.Contains(t, out, "token_swap")
		assert.NotContains(t, out, "wallet_balance")
	})

	t.Run("by category", func(t *testing.T) {
		cfgPath := writeConfigFile(t, nil)

		out, err := executeCommand("tools", "--config", cfgPath, "--search=", "--category", "gas")
		require.NoError(t, err)
		assert.Contains(t, out, "gas_estimate")
		assert.NotContains(t, out, "wallet_transfer")
	})

	t.Run("no matches", func(t *testing.T) {
		cfgPath := writeConfigFile(t, nil)

		out, err := executeCommand("tools", "--config", cfgPath, "--search", "zzzz", "--category=")
		require.NoError(t, err)
		assert.Contains(t, out, "No tools matched")
	})
}
