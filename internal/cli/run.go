package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/avelios/maestro/internal/observability"
	"github.com/avelios/maestro/pkg/executor"
	"github.com/avelios/maestro/pkg/history"
	"github.com/avelios/maestro/pkg/plan"
)

var (
	runUser            string
	runDryRun          bool
	runContinueOnError bool
	runTimeout         int
	runStepTimeout     int
	runSkipVerify      bool
	runStrict          bool
	runPublicKey       string
	runApprove         bool
)

// runCmd executes a plan file against the bundled tool registry
var runCmd = &cobra.Command{
	Use:   "run <plan.json>",
	Short: "Execute a plan file",
	Long: `Execute the steps of a plan file in order. The plan's integrity hash
is verified before anything runs; pass --public-key to also require a valid
signature, or --skip-verify to run unhashed drafts.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runUser, "user", "cli", "user id recorded for this execution")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "walk the plan without executing any tools")
	runCmd.Flags().BoolVar(&runContinueOnError, "continue-on-error", false, "keep executing after a failed step")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "whole-plan budget in seconds (0 uses the configured default)")
	runCmd.Flags().IntVar(&runStepTimeout, "step-timeout", 0, "per-step deadline in seconds (0 uses the registry default)")
	runCmd.Flags().BoolVar(&runSkipVerify, "skip-verify", false, "skip plan integrity verification")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "also reject structurally unsound plans")
	runCmd.Flags().StringVar(&runPublicKey, "public-key", "", "hex public key the plan signature must verify against")
	runCmd.Flags().BoolVar(&runApprove, "approve", false, "confirm execution of plans that require approval")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := loadPlanFile(args[0])
	if err != nil {
		return err
	}

	if p.RequiresApproval && !runApprove {
		return fmt.Errorf("plan %s requires approval: re-run with --approve", p.PlanID)
	}

	registry, err := buildToolRegistry(cfg, nil, log.Logger)
	if err != nil {
		return err
	}

	var execOpts []executor.Option
	if cfg.Audit.Enabled {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		audit, err := observability.OpenAuditLogger(cfg.Audit.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Audit.Path).Msg("Audit trail unavailable")
		} else {
			defer audit.Close()
			execOpts = append(execOpts, executor.WithAudit(audit))
		}
	}

	timeout := time.Duration(cfg.Executor.PlanTimeout) * time.Second
	if runTimeout > 0 {
		timeout = time.Duration(runTimeout) * time.Second
	}
	stepTimeout := time.Duration(cfg.Executor.StepTimeout) * time.Second
	if runStepTimeout > 0 {
		stepTimeout = time.Duration(runStepTimeout) * time.Second
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exec := executor.New(registry, execOpts...)
	result, err := exec.ExecutePlan(ctx, p, runUser, executor.Options{
		ContinueOnError: runContinueOnError,
		DryRun:          runDryRun,
		SkipVerify:      runSkipVerify,
		StrictMode:      runStrict,
		Timeout:         timeout,
		StepTimeout:     stepTimeout,
		PublicKey:       runPublicKey,
	})
	if err != nil {
		return err
	}

	if cfg.History.Enabled && !runDryRun {
		archiveRun(cfg.DataDir, cfg.History.Path, p, result, runUser)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if result.Status == plan.ExecFailed {
		return fmt.Errorf("plan %s failed: %d of %d steps completed", p.PlanID, result.CompletedSteps, result.TotalSteps)
	}
	return nil
}

// loadPlanFile reads a plan document from disk
func loadPlanFile(path string) (*plan.ExecutionPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	var p plan.ExecutionPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	return &p, nil
}

// archiveRun records the finished run, logging instead of failing when
// the archive cannot be reached
func archiveRun(dataDir, path string, p *plan.ExecutionPlan, result *plan.ExecutionResult, userID string) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Warn().Err(err).Msg("Failed to create data directory")
		return
	}
	store, err := history.Open(history.Config{Path: path, Logger: log.Logger})
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Run archive unavailable")
		return
	}
	defer store.Close()

	if _, err := store.Record(context.Background(), p, result, userID); err != nil {
		log.Warn().Err(err).Str("planId", p.PlanID).Msg("Failed to archive run")
	}
}
