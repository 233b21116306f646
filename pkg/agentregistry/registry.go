package agentregistry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	categoryScore     = 100.0
	exactKeywordScore = 10.0
	fuzzyKeywordScore = 5.0
	capabilityScore   = 8.0
	priorityWeight    = 0.1
)

// entry is the registry's record for one agent
type entry struct {
	agent        Agent
	enabled      bool
	registeredAt time.Time
	lastUsedAt   time.Time
}

// Registry holds agents and routes parsed intents to the best match
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]*entry
	order        []string // registration order; breaks score ties
	defaultAgent string
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{agents: make(map[string]*entry)}
}

// Register adds an agent. Names are unique; registering an existing name
// fails with ErrDuplicateAgent.
func (r *Registry) Register(agent Agent) error {
	if err := validateAgent(agent); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, agent.Name)
	}

	r.agents[agent.Name] = &entry{
		agent:        agent,
		enabled:      true,
		registeredAt: time.Now(),
	}
	r.order = append(r.order, agent.Name)

	log.Info().Str("agent", agent.Name).Str("category", agent.Category).Msg("Agent registered")
	return nil
}

// Unregister removes an agent. A removed default agent is also cleared.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; !exists {
		return false
	}
	delete(r.agents, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.defaultAgent == name {
		r.defaultAgent = ""
	}

	log.Info().Str("agent", name).Msg("Agent unregistered")
	return true
}

// SetEnabled toggles an agent's routing eligibility.
// Returns false when the agent is not registered.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.agents[name]
	if !exists {
		return false
	}
	e.enabled = enabled
	log.Info().Str("agent", name).Bool("enabled", enabled).Msg("Agent availability changed")
	return true
}

// SetDefaultAgent names the fallback agent used when no candidate scores.
// The agent must already be registered.
func (r *Registry) SetDefaultAgent(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; !exists {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	r.defaultAgent = name
	log.Info().Str("agent", name).Msg("Default agent set")
	return nil
}

// DefaultAgent returns the configured fallback agent name, if any
func (r *Registry) DefaultAgent() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultAgent
}

// Get returns an agent by name. Disabled agents are reported as absent.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.agents[name]
	if !exists || !e.enabled {
		return Agent{}, false
	}
	return e.agent, true
}

// ByIntent scores every enabled agent against the intent and returns the
// winner. Ties keep the earliest-registered candidate. When nothing scores
// above zero the configured default agent is returned, then the earliest
// enabled agent; only an empty registry yields a miss.
func (r *Registry) ByIntent(intent ParsedIntent) (Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *entry
	bestScore := 0.0
	for _, name := range r.order {
		e := r.agents[name]
		if !e.enabled {
			continue
		}
		score := scoreAgent(intent, e.agent)
		if score > bestScore {
			best = e
			bestScore = score
		}
	}

	if best != nil {
		best.lastUsedAt = time.Now()
		log.Debug().
			Str("agent", best.agent.Name).
			Float64("score", bestScore).
			Str("category", intent.Category).
			Msg("Intent routed")
		return best.agent, true
	}

	if r.defaultAgent != "" {
		if e, ok := r.agents[r.defaultAgent]; ok {
			log.Debug().Str("agent", r.defaultAgent).Msg("Intent routed to default agent")
			return e.agent, true
		}
	}

	for _, name := range r.order {
		if e := r.agents[name]; e.enabled {
			log.Debug().Str("agent", name).Msg("Intent routed to first enabled agent")
			return e.agent, true
		}
	}

	return Agent{}, false
}

// List returns all agents, including disabled ones, in registration order
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]Agent, 0, len(r.order))
	for _, name := range r.order {
		agents = append(agents, r.agents[name].agent)
	}
	return agents
}

// Count returns the number of registered agents
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Search returns enabled agents whose name, description, keywords or
// capabilities contain the query, case-insensitively, in registration order
func (r *Registry) Search(query string) []Agent {
	q := strings.ToLower(strings.TrimSpace(query))

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Agent
	for _, name := range r.order {
		e := r.agents[name]
		if !e.enabled {
			continue
		}
		if q == "" || matchesQuery(e.agent, q) {
			matched = append(matched, e.agent)
		}
	}
	return matched
}

// ByCategory returns enabled agents in the given category, in registration order
func (r *Registry) ByCategory(category string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Agent
	for _, name := range r.order {
		e := r.agents[name]
		if e.enabled && strings.EqualFold(e.agent.Category, category) {
			matched = append(matched, e.agent)
		}
	}
	return matched
}

// Stats returns a snapshot of registry contents and routing usage
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:      len(r.agents),
		Categories: make(map[string]int),
		LastUsed:   make(map[string]time.Time),
	}
	for name, e := range r.agents {
		if e.enabled {
			stats.Enabled++
		}
		cat := e.agent.Category
		if cat == "" {
			cat = "general"
		}
		stats.Categories[cat]++
		if !e.lastUsedAt.IsZero() {
			stats.LastUsed[name] = e.lastUsedAt
		}
	}
	return stats
}

// scoreAgent computes the routing score of one agent for an intent.
// Category match dominates, keyword overlaps accumulate, capability hits
// add a smaller bonus, then priority and confidence scale the total.
func scoreAgent(intent ParsedIntent, agent Agent) float64 {
	score := 0.0

	if intent.Category != "" && strings.EqualFold(intent.Category, agent.Category) {
		score += categoryScore
	}

	for _, ik := range intent.Keywords {
		ik = strings.ToLower(ik)
		if ik == "" {
			continue
		}

		for _, ak := range agent.Keywords {
			ak = strings.ToLower(ak)
			if ak == "" {
				continue
			}
			if ik == ak {
				score += exactKeywordScore
			}
			if strings.Contains(ik, ak) || strings.Contains(ak, ik) {
				score += fuzzyKeywordScore
			}
		}

		for _, capability := range agent.Capabilities {
			if strings.Contains(strings.ToLower(capability), ik) {
				score += capabilityScore
				break
			}
		}
	}

	if agent.Priority > 0 {
		score *= 1 + priorityWeight*float64(agent.Priority)
	}
	if intent.Confidence != nil {
		score *= *intent.Confidence
	}
	return score
}

func matchesQuery(agent Agent, q string) bool {
	if strings.Contains(strings.ToLower(agent.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(agent.Description), q) {
		return true
	}
	for _, kw := range agent.Keywords {
		if strings.Contains(strings.ToLower(kw), q) {
			return true
		}
	}
	for _, capability := range agent.Capabilities {
		if strings.Contains(strings.ToLower(capability), q) {
			return true
		}
	}
	return false
}

func validateAgent(agent Agent) error {
	if agent.Name == "" {
		return fmt.Errorf("%w: agent name cannot be empty", ErrInvalidAgent)
	}
	if agent.Description == "" {
		return fmt.Errorf("%w: %s: description cannot be empty", ErrInvalidAgent, agent.Name)
	}
	if agent.Handle == nil {
		return fmt.Errorf("%w: %s: handler cannot be nil", ErrInvalidAgent, agent.Name)
	}
	if agent.Priority < 0 {
		return fmt.Errorf("%w: %s: priority cannot be negative", ErrInvalidAgent, agent.Name)
	}
	return nil
}
