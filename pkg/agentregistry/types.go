package agentregistry

import (
	"context"
	"time"
)

// HandleFunc is the entry point an agent exposes to the router
type HandleFunc func(ctx context.Context, input string, userID string) (interface{}, error)

// Agent describes a registered agent and its routing metadata
type Agent struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Category     string     `json:"category,omitempty"`
	Version      string     `json:"version,omitempty"`
	Capabilities []string   `json:"capabilities,omitempty"`
	Keywords     []string   `json:"keywords,omitempty"`
	Priority     int        `json:"priority,omitempty"` // non-negative; boosts routing score
	Handle       HandleFunc `json:"-"`
}

// ParsedIntent is the routing input distilled from a user request
type ParsedIntent struct {
	Category   string   `json:"category,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"` // 0..1 scaling applied to the final score
	RawInput   string   `json:"rawInput,omitempty"`
}

// Stats is a snapshot of registry contents and routing usage
type Stats struct {
	Total      int                  `json:"total"`
	Enabled    int                  `json:"enabled"`
	Categories map[string]int       `json:"categories"`
	LastUsed   map[string]time.Time `json:"lastUsed,omitempty"`
}
