package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelios/maestro/pkg/signer"
)

var keygenOut string

// keygenCmd generates an Ed25519 keypair for plan signing
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a plan signing keypair",
	Long: `Generate a fresh Ed25519 keypair, write the private seed to --out with
owner-only permissions and print the public key to share with verifiers.`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOut, "out", "maestro.key", "path for the private key seed file")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(keygenOut); err == nil {
		return fmt.Errorf("refusing to overwrite existing key file %s", keygenOut)
	}

	s, err := signer.Generate()
	if err != nil {
		return err
	}
	if err := s.Save(keygenOut); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote private key seed to %s\nPublic key: %s\n", keygenOut, s.PublicKey())
	return nil
}
