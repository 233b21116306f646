package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelios/maestro/pkg/integrity"
	"github.com/avelios/maestro/pkg/signer"
)

var (
	signKeyPath  string
	signSignedBy string
)

// signCmd hashes and signs a plan file in place
var signCmd = &cobra.Command{
	Use:   "sign <plan.json>",
	Short: "Hash and sign a plan file",
	Long: `Stamp the plan with its canonical hash (when it does not carry one yet),
sign the hash with the Ed25519 key at --key and write the plan back in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVar(&signKeyPath, "key", "", "path to the hex seed file")
	signCmd.Flags().StringVar(&signSignedBy, "signed-by", "", "signer identity stamped on the plan (defaults to the public key)")
	signCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(signCmd)
}

func runSign(cmd *cobra.Command, args []string) error {
	p, err := loadPlanFile(args[0])
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to sign: %w", err)
	}

	s, err := signer.Load(signKeyPath)
	if err != nil {
		return err
	}

	svc := integrity.New()
	if p.PlanHash == "" {
		hash, err := svc.GeneratePlanHash(p)
		if err != nil {
			return err
		}
		p.PlanHash = hash
	} else if !svc.VerifyPlanHash(p) {
		return fmt.Errorf("plan %s carries a stale hash: refusing to sign", p.PlanID)
	}

	signedBy := signSignedBy
	if signedBy == "" {
		signedBy = s.PublicKey()
	}
	if err := s.SignPlan(p, signedBy); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signed plan %s\n  hash:      %s\n  signed by: %s\n", p.PlanID, p.PlanHash, signedBy)
	return nil
}
