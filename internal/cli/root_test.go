package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelios/maestro/pkg/integrity"
	"github.com/avelios/maestro/pkg/plan"
)

// executeCommand runs the root command with the given args and captures output
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := GetRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeConfigFile drops a config that keeps all state inside a temp directory
func writeConfigFile(t *testing.T, extra map[string]interface{}) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]interface{}{"data_dir": dir}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "maestro.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// writePlanFile serializes a plan to its own temp file
func writePlanFile(t *testing.T, p *plan.ExecutionPlan) string {
	t.Helper()
	data, err := json.MarshalIndent(p, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// gasPlan builds a single-step plan the bundled tools can execute
func gasPlan() *plan.ExecutionPlan {
	return plan.New("estimate transfer gas", []plan.PlanStep{
		{StepNumber: 1, Action: "gas_estimate", Payload: map[string]interface{}{"operation": "transfer"}},
	})
}

// stampHash writes the canonical hash onto the plan
func stampHash(t *testing.T, p *plan.ExecutionPlan) {
	t.Helper()
	hash, err := integrity.New().GeneratePlanHash(p)
	require.NoError(t, err)
	p.PlanHash = hash
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, "0.1.0", GetVersion())
}

func TestGetRootCmd(t *testing.T) {
	root := GetRootCmd()
	require.NotNil(t, root)
	assert.Equal(t, "maestro", root.Use)
	assert.True(t, root.HasSubCommands())
}

func TestRootSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "verify", "sign", "keygen", "tools", "serve", "status", "stop", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand("version")
	require.NoError(t, err)
	assert.Contains(t, out, "maestro version 0.1.0")
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("frobnicate")
	assert.Error(t, err)
}
