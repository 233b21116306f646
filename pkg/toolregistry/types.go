package toolregistry

import (
	"context"
	"time"
)

// ExecuteFunc is the handler invoked when a tool runs
type ExecuteFunc func(ctx context.Context, payload map[string]interface{}, userID string) (*ToolResult, error)

// ValidateFunc performs tool-specific semantic checks after schema validation
type ValidateFunc func(payload map[string]interface{}) *ValidationResult

// ParameterSpec declares a single payload parameter. The spec is compiled
// into a JSON Schema at registration time.
type ParameterSpec struct {
	Type        string        `json:"type"` // string, number, integer, boolean, object, array
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	Enum        []interface{} `json:"enum,omitempty"`
	Pattern     string        `json:"pattern,omitempty"`
	Minimum     *float64      `json:"minimum,omitempty"`
	Maximum     *float64      `json:"maximum,omitempty"`
	Default     interface{}   `json:"default,omitempty"`
}

// Tool defines an executable action and its metadata
type Tool struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Category    string                   `json:"category,omitempty"`
	Version     string                   `json:"version,omitempty"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty"`
	Examples    []string                 `json:"examples,omitempty"`
	Execute     ExecuteFunc              `json:"-"`
	Validate    ValidateFunc             `json:"-"`
}

// ToolResult is the uniform result envelope handlers return
type ToolResult struct {
	Action  string                 `json:"action"`
	Status  string                 `json:"status"` // "success" or "error"
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ValidationResult is returned by custom validators
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// CustomOptions configures a single custom tool registration
type CustomOptions struct {
	Namespace string // stored name becomes "namespace:name"
	Overwrite bool   // replace an existing tool instead of failing
}

// BatchOptions configures a batch of custom tool registrations
type BatchOptions struct {
	Namespace       string
	Overwrite       bool
	ContinueOnError bool
}

// BatchFailure records one failed registration within a batch
type BatchFailure struct {
	Name string
	Err  error
}

// BatchResult summarizes a batch registration
type BatchResult struct {
	Registered []string
	Failures   []BatchFailure
}

// Stats is a snapshot of registry contents and usage
type Stats struct {
	Total      int                  `json:"total"`
	Enabled    int                  `json:"enabled"`
	Categories map[string]int       `json:"categories"`
	LastUsed   map[string]time.Time `json:"lastUsed,omitempty"`
}
