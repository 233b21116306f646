package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avelios/maestro/internal/metrics"
	"github.com/avelios/maestro/internal/observability"
	"github.com/avelios/maestro/pkg/integrity"
	"github.com/avelios/maestro/pkg/plan"
	"github.com/avelios/maestro/pkg/toolregistry"
)

// DefaultPlanTimeout bounds a whole plan execution unless overridden
const DefaultPlanTimeout = 60 * time.Second

// Executor runs execution plans step by step against a tool registry,
// refusing plans whose integrity cannot be established
type Executor struct {
	tools     *toolregistry.Registry
	integrity *integrity.Service
	metrics   *metrics.Metrics
	audit     *observability.AuditLogger
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithIntegrity replaces the integrity service used for plan verification
func WithIntegrity(svc *integrity.Service) Option {
	return func(e *Executor) {
		if svc != nil {
			e.integrity = svc
		}
	}
}

// WithMetrics wires execution counters into the given metrics set
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithAudit streams plan lifecycle events to the given audit logger
func WithAudit(a *observability.AuditLogger) Option {
	return func(e *Executor) {
		e.audit = a
	}
}

// WithLogger routes executor log output through the given logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClock overrides the executor's time source
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Executor bound to a tool registry
func New(tools *toolregistry.Registry, opts ...Option) *Executor {
	e := &Executor{
		tools:     tools,
		integrity: integrity.New(),
		logger:    log.Logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options configures a single plan execution. The zero value gives the
// default behavior: verify integrity, stop on the first failure, run for
// real, and bound the whole plan by DefaultPlanTimeout.
type Options struct {
	ContinueOnError bool          // keep executing after a failed step
	DryRun          bool          // synthesize results without running tools
	SkipVerify      bool          // skip integrity verification
	StrictMode      bool          // additionally reject structurally unsound plans
	Timeout         time.Duration // whole-plan budget; zero means DefaultPlanTimeout
	StepTimeout     time.Duration // per-step deadline; zero means the registry default
	PublicKey       string        // hex key for signature verification
	OnStepStart     func(step plan.PlanStep)
	OnStepComplete  func(result plan.StepResult)
}

// Verification is the outcome of a successful integrity check
type Verification struct {
	Warnings []string
}

// VerifyPlanIntegrity checks the plan's hash, signature and, in strict
// mode, its structure. Any failure is an error; an execution must not
// start from a plan that fails here.
func (e *Executor) VerifyPlanIntegrity(p *plan.ExecutionPlan, opts Options) (*Verification, error) {
	v := &Verification{}

	if p.PlanHash == "" {
		e.recordIntegrity("missing_hash")
		e.auditTamper(p, "plan has no integrity hash")
		return nil, fmt.Errorf("%w: plan %s", ErrMissingHash, p.PlanID)
	}

	if !e.integrity.VerifyPlanHash(p) {
		current, _ := e.integrity.GeneratePlanHash(p)
		e.logger.Error().
			Str("planId", p.PlanID).
			Str("expected", p.PlanHash).
			Str("current", current).
			Msg("Plan hash verification failed")
		e.recordIntegrity("hash_mismatch")
		e.auditTamper(p, "plan content does not match its hash")
		return nil, fmt.Errorf("%w: plan %s", ErrHashMismatch, p.PlanID)
	}

	if p.Signature != "" {
		switch {
		case opts.PublicKey == "":
			v.Warnings = append(v.Warnings, "plan is signed but no public key was provided; signature not checked")
		case !e.integrity.VerifySignature(p.PlanHash, p.Signature, opts.PublicKey):
			e.logger.Error().
				Str("planId", p.PlanID).
				Str("signedBy", p.SignedBy).
				Msg("Plan signature verification failed")
			e.recordIntegrity("bad_signature")
			e.auditTamper(p, "plan signature did not verify")
			return nil, fmt.Errorf("%w: plan %s", ErrBadSignature, p.PlanID)
		}
	}

	if opts.StrictMode {
		if len(p.Steps) == 0 {
			return nil, fmt.Errorf("%w: plan %s has no steps", ErrInvalidPlan, p.PlanID)
		}
		if dups := p.DuplicateStepNumbers(); len(dups) > 0 {
			return nil, fmt.Errorf("%w: plan %s has duplicate step numbers %v", ErrInvalidPlan, p.PlanID, dups)
		}
		if p.TotalSteps != len(p.Steps) {
			return nil, fmt.Errorf("%w: plan %s declares %d steps but carries %d", ErrInvalidPlan, p.PlanID, p.TotalSteps, len(p.Steps))
		}
	}

	e.recordIntegrity("verified")
	if e.audit != nil {
		e.audit.PlanVerified(p.PlanID, p.SignedBy)
	}
	return v, nil
}

// ExecutePlan verifies the plan and runs its steps in array order.
// Integrity and strict-mode failures return an error and nothing runs.
// Everything after that point is reported through the ExecutionResult:
// step failures, budget exhaustion and cancellation all produce a result,
// not an error.
func (e *Executor) ExecutePlan(ctx context.Context, p *plan.ExecutionPlan, userID string, opts Options) (*plan.ExecutionResult, error) {
	start := e.now()

	if !opts.SkipVerify {
		verification, err := e.VerifyPlanIntegrity(p, opts)
		if err != nil {
			return nil, err
		}
		for _, warning := range verification.Warnings {
			e.logger.Warn().Str("planId", p.PlanID).Msg(warning)
		}
	} else {
		e.logger.Warn().Str("planId", p.PlanID).Msg("Integrity verification skipped")
	}

	budget := opts.Timeout
	if budget <= 0 {
		budget = DefaultPlanTimeout
	}

	total := len(p.Steps)
	result := &plan.ExecutionResult{
		PlanID:      p.PlanID,
		TotalSteps:  total,
		StepResults: make([]plan.StepResult, 0, total),
	}

	e.logger.Info().
		Str("planId", p.PlanID).
		Str("userId", userID).
		Int("steps", total).
		Bool("dryRun", opts.DryRun).
		Msg("Executing plan")

	if e.metrics != nil {
		e.metrics.ActiveExecutions.Inc()
		defer e.metrics.ActiveExecutions.Dec()
	}

	completed := 0
	failed := 0
	aborted := false

	for i := range p.Steps {
		// The budget is only consulted between steps; a running step is
		// never interrupted by it
		if elapsed := e.now().Sub(start); elapsed > budget {
			result.Error = fmt.Errorf("%w: %v elapsed, %d of %d steps executed", ErrBudgetExceeded, elapsed.Round(time.Millisecond), i, total).Error()
			e.logger.Error().Str("planId", p.PlanID).Dur("budget", budget).Msg("Plan budget exhausted")
			aborted = true
			break
		}
		if err := ctx.Err(); err != nil {
			result.Error = fmt.Sprintf("execution cancelled: %v", err)
			e.logger.Warn().Str("planId", p.PlanID).Msg("Plan execution cancelled")
			aborted = true
			break
		}

		step := p.Steps[i]
		if opts.OnStepStart != nil {
			opts.OnStepStart(step)
		}

		stepResult := e.runStep(ctx, step, userID, opts)
		result.StepResults = append(result.StepResults, stepResult)

		if opts.OnStepComplete != nil {
			opts.OnStepComplete(stepResult)
		}
		if e.metrics != nil {
			e.metrics.PlanStepsTotal.WithLabelValues(string(stepResult.Status)).Inc()
		}
		if e.audit != nil && !opts.DryRun {
			e.audit.ToolExecuted(userID, step.Action, string(stepResult.Status))
		}

		if stepResult.Status == plan.StepFailed {
			failed++
			if !opts.ContinueOnError {
				e.logger.Warn().
					Str("planId", p.PlanID).
					Int("step", step.StepNumber).
					Str("error", stepResult.Error).
					Msg("Stopping plan after failed step")
				break
			}
			continue
		}
		completed++
	}

	result.CompletedSteps = completed
	result.Duration = e.now().Sub(start)

	if aborted {
		result.Status = plan.ExecFailed
	} else {
		result.Status = plan.StatusFor(completed, total)
	}

	if result.Error == "" && failed > 0 {
		if !opts.ContinueOnError {
			result.Error = result.StepResults[len(result.StepResults)-1].Error
		} else {
			result.Error = fmt.Sprintf("%d of %d steps failed", failed, total)
		}
	}

	e.logger.Info().
		Str("planId", p.PlanID).
		Str("status", string(result.Status)).
		Int("completed", completed).
		Int("total", total).
		Dur("duration", result.Duration).
		Msg("Plan execution finished")

	if e.metrics != nil {
		e.metrics.PlanExecutionsTotal.WithLabelValues(string(result.Status)).Inc()
		e.metrics.PlanExecutionDuration.Observe(result.Duration.Seconds())
	}
	if e.audit != nil {
		e.audit.PlanCompleted(p.PlanID, userID, string(result.Status), completed, total)
	}

	return result, nil
}

// runStep executes one step, or synthesizes its result under dry run
func (e *Executor) runStep(ctx context.Context, step plan.PlanStep, userID string, opts Options) plan.StepResult {
	stepStart := e.now()

	if opts.DryRun {
		return plan.StepResult{
			StepNumber: step.StepNumber,
			Action:     step.Action,
			Status:     plan.StepSuccess,
			Result: &toolregistry.ToolResult{
				Action:  step.Action,
				Status:  "success",
				Message: "dry run",
				Data:    map[string]interface{}{"dryRun": true},
			},
			Duration:  e.now().Sub(stepStart),
			Timestamp: e.now(),
		}
	}

	toolResult, err := e.tools.ExecuteWithTimeout(ctx, step.Action, step.Payload, userID, opts.StepTimeout)

	stepResult := plan.StepResult{
		StepNumber: step.StepNumber,
		Action:     step.Action,
		Duration:   e.now().Sub(stepStart),
		Timestamp:  e.now(),
	}
	if toolResult != nil {
		stepResult.Result = toolResult
	}

	if err != nil {
		stepResult.Status = plan.StepFailed
		stepResult.Error = err.Error()
		return stepResult
	}

	stepResult.Status = plan.StepSuccess
	return stepResult
}

// Rollback records that a rollback was requested. Executed steps are not
// compensated; the record exists so operators can act on it.
func (e *Executor) Rollback(ctx context.Context, p *plan.ExecutionPlan, result *plan.ExecutionResult) error {
	completed := 0
	if result != nil {
		completed = result.CompletedSteps
	}
	e.logger.Warn().
		Str("planId", p.PlanID).
		Int("completedSteps", completed).
		Msg("Rollback requested; executed steps are not compensated")
	if e.audit != nil {
		e.audit.RollbackRequested(p.PlanID, completed)
	}
	return nil
}

func (e *Executor) recordIntegrity(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.IntegrityChecksTotal.WithLabelValues(outcome).Inc()
	if outcome != "verified" {
		e.metrics.TamperAlertsTotal.Inc()
	}
}

func (e *Executor) auditTamper(p *plan.ExecutionPlan, reason string) {
	if e.audit != nil {
		e.audit.TamperDetected(p.PlanID, p.SignedBy, reason)
	}
}
