package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelios/maestro/pkg/signer"
)

func TestVerifyCommand(t *testing.T) {
	t.Run("clean hashed plan", func(t *testing.T) {
		p := gasPlan()
		stampHash(t, p)
		planPath := writePlanFile(t, p)

		out, err := executeCommand("verify", planPath)
		require.NoError(t, err)
		assert.Contains(t, out, `"hashValid": true`)
		assert.Contains(t, out, `"tampered": false`)
	})

	t.Run("unhashed draft fails", func(t *testing.T) {
		planPath := writePlanFile(t, gasPlan())

		out, err := executeCommand("verify", planPath)
		require.Error(t, err)
		assert.Contains(t, out, `"tampered": true`)
		assert.Contains(t, out, "no baseline hash")
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		p := gasPlan()
		stampHash(t, p)
		p.Steps[0].Payload["operation"] = "deploy"
		planPath := writePlanFile(t, p)

		out, err := executeCommand("verify", planPath)
		require.Error(t, err)
		assert.Contains(t, out, `"hashValid": false`)
		assert.Contains(t, out, `"tampered": true`)
	})

	t.Run("signed plan with matching key", func(t *testing.T) {
		s, err := signer.Generate()
		require.NoError(t, err)

		p := gasPlan()
		stampHash(t, p)
		require.NoError(t, s.SignPlan(p, "release-bot"))
		planPath := writePlanFile(t, p)

		out, err := executeCommand("verify", planPath, "--public-key", s.PublicKey())
		require.NoError(t, err)
		assert.Contains(t, out, `"signatureValid": true`)
		assert.Contains(t, out, `"signedBy": "release-bot"`)
	})

	t.Run("signed plan with wrong key", func(t *testing.T) {
		s, err := signer.Generate()
		require.NoError(t, err)
		other, err := signer.Generate()
		require.NoError(t, err)

		p := gasPlan()
		stampHash(t, p)
		require.NoError(t, s.SignPlan(p, "release-bot"))
		planPath := writePlanFile(t, p)

		out, err := executeCommand("verify", planPath, "--public-key", other.PublicKey())
		require.Error(t, err)
		assert.Contains(t, out, `"signatureValid": false`)
	})
}
