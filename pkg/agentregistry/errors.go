package agentregistry

import "errors"

var (
	// ErrDuplicateAgent is returned when registering a name that already exists
	ErrDuplicateAgent = errors.New("agent already registered")

	// ErrInvalidAgent is returned when an agent definition is malformed
	ErrInvalidAgent = errors.New("invalid agent definition")

	// ErrAgentNotFound is returned when an agent name is not registered
	ErrAgentNotFound = errors.New("agent not found")
)
