package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RiskLevel classifies how dangerous a plan is to execute
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// StepStatus represents the execution status of a single step
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// ExecStatus represents the overall outcome of a plan execution
type ExecStatus string

const (
	ExecSuccess ExecStatus = "success"
	ExecPartial ExecStatus = "partial"
	ExecFailed  ExecStatus = "failed"
)

// PlanStep is a single action in an execution plan
type PlanStep struct {
	StepNumber  int                    `json:"stepNumber"`
	Action      string                 `json:"action"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Description string                 `json:"description,omitempty"`
	DependsOn   []int                  `json:"dependsOn,omitempty"` // informational; steps always run in array order
}

// ExecutionPlan is an ordered list of steps plus integrity metadata.
// PlanHash, Signature, SignedBy and SignedAt are stamped once at creation
// time and treated as read-only afterwards.
type ExecutionPlan struct {
	PlanID           string     `json:"planId"`
	Description      string     `json:"description,omitempty"`
	Steps            []PlanStep `json:"steps"`
	TotalSteps       int        `json:"totalSteps"`
	RiskLevel        RiskLevel  `json:"riskLevel,omitempty"`
	RequiresApproval bool       `json:"requiresApproval,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	PlanHash         string     `json:"planHash,omitempty"`
	Signature        string     `json:"signature,omitempty"`
	SignedBy         string     `json:"signedBy,omitempty"`
	SignedAt         time.Time  `json:"signedAt,omitempty"`
}

// StepResult records the outcome of one attempted step
type StepResult struct {
	StepNumber int           `json:"stepNumber"`
	Action     string        `json:"action"`
	Status     StepStatus    `json:"status"`
	Result     interface{}   `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ExecutionResult is the aggregate outcome of running a plan
type ExecutionResult struct {
	PlanID         string        `json:"planId"`
	Status         ExecStatus    `json:"status"`
	CompletedSteps int           `json:"completedSteps"`
	TotalSteps     int           `json:"totalSteps"`
	StepResults    []StepResult  `json:"stepResults"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// New builds an unsigned plan with a fresh ID and TotalSteps filled in
func New(description string, steps []PlanStep) *ExecutionPlan {
	return &ExecutionPlan{
		PlanID:      uuid.New().String(),
		Description: description,
		Steps:       steps,
		TotalSteps:  len(steps),
		RiskLevel:   RiskLow,
		CreatedAt:   time.Now(),
	}
}

// StatusFor maps completed/total step counts onto an overall status
func StatusFor(completed, total int) ExecStatus {
	switch {
	case total > 0 && completed == total:
		return ExecSuccess
	case completed > 0:
		return ExecPartial
	default:
		return ExecFailed
	}
}

// Step returns the step with the given number, searching in array order
func (p *ExecutionPlan) Step(n int) (*PlanStep, bool) {
	for i := range p.Steps {
		if p.Steps[i].StepNumber == n {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// DuplicateStepNumbers lists step numbers that appear more than once
func (p *ExecutionPlan) DuplicateStepNumbers() []int {
	seen := make(map[int]int, len(p.Steps))
	var dups []int
	for _, s := range p.Steps {
		seen[s.StepNumber]++
		if seen[s.StepNumber] == 2 {
			dups = append(dups, s.StepNumber)
		}
	}
	return dups
}

// Validate checks structural consistency of the plan document
func (p *ExecutionPlan) Validate() error {
	if p.PlanID == "" {
		return fmt.Errorf("plan has no id")
	}
	if p.TotalSteps != len(p.Steps) {
		return fmt.Errorf("plan %s: totalSteps %d does not match %d steps", p.PlanID, p.TotalSteps, len(p.Steps))
	}
	for _, s := range p.Steps {
		if s.StepNumber <= 0 {
			return fmt.Errorf("plan %s: step %q has invalid number %d", p.PlanID, s.Action, s.StepNumber)
		}
		if s.Action == "" {
			return fmt.Errorf("plan %s: step %d has no action", p.PlanID, s.StepNumber)
		}
	}
	return nil
}
