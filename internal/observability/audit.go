package observability

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // signer identity or user ID
	Action    string                 `json:"action"`          // e.g., "plan_verified", "execute:wallet_transfer"
	Status    string                 `json:"status"`          // "success", "failure", "pending"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AuditLogger records plan lifecycle events as structured JSON lines
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

// NewAuditLogger returns an audit logger that writes to stderr
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

// OpenAuditLogger returns an audit logger that appends to the given file
func OpenAuditLogger(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// Record emits an audit event to the log
func (a *AuditLogger) Record(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// Helper methods for common events

// PlanVerified records a plan passing its integrity check
func (a *AuditLogger) PlanVerified(planID, signedBy string) {
	a.Record(AuditEvent{
		Type:   "integrity",
		Actor:  signedBy,
		Action: "plan_verified",
		Status: "success",
		Metadata: map[string]interface{}{
			"planId": planID,
		},
	})
}

// TamperDetected records a plan rejected before any step ran
func (a *AuditLogger) TamperDetected(planID, signedBy, reason string) {
	a.Record(AuditEvent{
		Type:   "integrity",
		Actor:  signedBy,
		Action: "tamper_detected",
		Status: "failure",
		Metadata: map[string]interface{}{
			"planId": planID,
			"reason": reason,
		},
	})
}

// ToolExecuted records a single executed plan step
func (a *AuditLogger) ToolExecuted(userID, tool, status string) {
	a.Record(AuditEvent{
		Type:   "tool",
		Actor:  userID,
		Action: "execute:" + tool,
		Status: status,
	})
}

// PlanCompleted records the final outcome of a plan run
func (a *AuditLogger) PlanCompleted(planID, userID, status string, completed, total int) {
	a.Record(AuditEvent{
		Type:   "plan",
		Actor:  userID,
		Action: "plan_completed",
		Status: status,
		Metadata: map[string]interface{}{
			"planId":         planID,
			"completedSteps": completed,
			"totalSteps":     total,
		},
	})
}

// RollbackRequested records a rollback request for an aborted plan
func (a *AuditLogger) RollbackRequested(planID string, completedSteps int) {
	a.Record(AuditEvent{
		Type:   "plan",
		Action: "rollback_requested",
		Status: "pending",
		Metadata: map[string]interface{}{
			"planId":         planID,
			"completedSteps": completedSteps,
		},
	})
}
