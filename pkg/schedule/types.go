package schedule

import (
	"context"
	"time"

	"github.com/avelios/maestro/pkg/executor"
	"github.com/avelios/maestro/pkg/plan"
)

// Kind represents the type of schedule
type Kind string

const (
	KindAt    Kind = "at"
	KindEvery Kind = "every"
	KindCron  Kind = "cron"
)

// Schedule represents a time specification for job execution
type Schedule struct {
	Kind Kind `json:"kind"`

	// For "at" schedule
	At string `json:"at,omitempty"` // RFC 3339 timestamp

	// For "every" schedule
	EveryMs  int64  `json:"everyMs,omitempty"`  // Interval in milliseconds
	AnchorMs *int64 `json:"anchorMs,omitempty"` // Optional anchor point

	// For "cron" schedule
	Expr string `json:"expr,omitempty"` // Cron expression (5-field format)
	TZ   string `json:"tz,omitempty"`   // Optional timezone
}

// JobState tracks runtime state of a job
type JobState struct {
	NextRunAtMs       *int64 `json:"nextRunAtMs,omitempty"`       // When to run next
	RunningAtMs       *int64 `json:"runningAtMs,omitempty"`       // When started (if running)
	LastRunAtMs       *int64 `json:"lastRunAtMs,omitempty"`       // When last executed
	LastStatus        string `json:"lastStatus,omitempty"`        // "ok", "partial", or "error"
	LastError         string `json:"lastError,omitempty"`         // Last error message
	LastDurationMs    *int64 `json:"lastDurationMs,omitempty"`    // Last execution duration
	ConsecutiveErrors int    `json:"consecutiveErrors,omitempty"` // Sequential failure count
}

// Job represents a scheduled plan run
type Job struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	UserID         string              `json:"userId,omitempty"`
	Enabled        bool                `json:"enabled"`
	DeleteAfterRun bool                `json:"deleteAfterRun,omitempty"`
	CreatedAtMs    int64               `json:"createdAtMs"`
	UpdatedAtMs    int64               `json:"updatedAtMs"`
	Schedule       Schedule            `json:"schedule"`
	Plan           *plan.ExecutionPlan `json:"plan"`
	State          JobState            `json:"state"`
}

// AddParams contains parameters for creating a job
type AddParams struct {
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	UserID         string              `json:"userId,omitempty"`
	Enabled        bool                `json:"enabled"`
	DeleteAfterRun bool                `json:"deleteAfterRun,omitempty"`
	Schedule       Schedule            `json:"schedule"`
	Plan           *plan.ExecutionPlan `json:"plan"`
}

// JobPatch contains fields that can be updated
type JobPatch struct {
	Name           *string             `json:"name,omitempty"`
	Description    *string             `json:"description,omitempty"`
	Enabled        *bool               `json:"enabled,omitempty"`
	DeleteAfterRun *bool               `json:"deleteAfterRun,omitempty"`
	Schedule       *Schedule           `json:"schedule,omitempty"`
	Plan           *plan.ExecutionPlan `json:"plan,omitempty"`
}

// EventAction represents the type of event
type EventAction string

const (
	EventActionFinished EventAction = "finished"
	EventActionAdded    EventAction = "added"
	EventActionUpdated  EventAction = "updated"
	EventActionDeleted  EventAction = "deleted"
)

// Event represents a scheduler event
type Event struct {
	Action      EventAction `json:"action"`
	JobID       string      `json:"jobId"`
	Status      string      `json:"status,omitempty"`      // "ok", "partial", or "error"
	Error       string      `json:"error,omitempty"`       // Error message if failed
	DurationMs  *int64      `json:"durationMs,omitempty"`  // Execution duration
	NextRunAtMs *int64      `json:"nextRunAtMs,omitempty"` // Next scheduled run
}

// RunMode specifies how to run a job manually
type RunMode string

const (
	RunModeDue   RunMode = "due"
	RunModeForce RunMode = "force"
)

// RunFunc executes a plan on behalf of a fired job
type RunFunc func(ctx context.Context, p *plan.ExecutionPlan, userID string, opts executor.Options) (*plan.ExecutionResult, error)

// ServiceOptions configures the scheduler service
type ServiceOptions struct {
	StorePath   string           // Path to jobs.json
	Runner      RunFunc          // Callback that executes a job's plan
	ExecOptions executor.Options // Options passed to every scheduled run
	OnEvent     func(evt Event)  // Event callback
}

// Now returns current time in milliseconds
func Now() int64 {
	return time.Now().UnixMilli()
}

// Int64Ptr returns a pointer to an int64 value
func Int64Ptr(v int64) *int64 {
	return &v
}

// StringPtr returns a pointer to a string value
func StringPtr(v string) *string {
	return &v
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(v bool) *bool {
	return &v
}
