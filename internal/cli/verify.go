package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelios/maestro/pkg/integrity"
)

var verifyPublicKey string

// verifyCmd checks a plan file's hash and signature without executing it
var verifyCmd = &cobra.Command{
	Use:   "verify <plan.json>",
	Short: "Check a plan's integrity hash and signature",
	Long: `Recompute the canonical hash of a plan file and compare it against the
stored one. When the plan is signed and --public-key is given, the Ed25519
signature is checked as well. Exits non-zero if anything fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPublicKey, "public-key", "", "hex public key to verify the signature against")
	rootCmd.AddCommand(verifyCmd)
}

// verifyReport is the JSON document verify prints
type verifyReport struct {
	PlanID         string `json:"planId"`
	StoredHash     string `json:"storedHash,omitempty"`
	ComputedHash   string `json:"computedHash"`
	HashValid      bool   `json:"hashValid"`
	Signed         bool   `json:"signed"`
	SignedBy       string `json:"signedBy,omitempty"`
	SignatureValid *bool  `json:"signatureValid,omitempty"`
	Tampered       bool   `json:"tampered"`
	Message        string `json:"message,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	p, err := loadPlanFile(args[0])
	if err != nil {
		return err
	}

	svc := integrity.New()
	computed, err := svc.GeneratePlanHash(p)
	if err != nil {
		return err
	}

	report := verifyReport{
		PlanID:       p.PlanID,
		StoredHash:   p.PlanHash,
		ComputedHash: computed,
		HashValid:    p.PlanHash != "" && svc.VerifyPlanHash(p),
		Signed:       p.Signature != "",
		SignedBy:     p.SignedBy,
	}

	tr := svc.DetectTampering(p.PlanHash, p)
	report.Tampered = tr.Tampered
	report.Message = tr.Message

	if report.Signed && verifyPublicKey != "" {
		ok := svc.VerifySignature(p.PlanHash, p.Signature, verifyPublicKey)
		report.SignatureValid = &ok
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if report.Tampered {
		return fmt.Errorf("plan %s failed verification: %s", p.PlanID, tr.Message)
	}
	if report.SignatureValid != nil && !*report.SignatureValid {
		return fmt.Errorf("plan %s failed verification: signature does not match", p.PlanID)
	}
	return nil
}
