package toolregistry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTool is returned when registering a name that already exists
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidTool is returned when a tool definition is malformed
	ErrInvalidTool = errors.New("invalid tool definition")

	// ErrToolNotFound is returned when a tool is unknown or disabled
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolTimeout is returned when a tool exceeds its execution deadline
	ErrToolTimeout = errors.New("tool execution timeout")
)

// ValidationError reports a payload that failed schema or semantic checks.
// The tool's handler was never invoked.
type ValidationError struct {
	Tool   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s: parameter validation failed: %s", e.Tool, strings.Join(e.Errors, "; "))
}

// RuntimeError reports a tool handler that ran and failed
type RuntimeError struct {
	Tool  string
	Cause error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("tool %s: execution failed: %v", e.Tool, e.Cause)
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}
