package toolregistry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/avelios/maestro/internal/metrics"
	"github.com/avelios/maestro/pkg/timeout"
)

// DefaultToolTimeout bounds a single tool execution unless overridden
const DefaultToolTimeout = 30 * time.Second

var validParamTypes = map[string]bool{
	"string": true, "number": true, "integer": true,
	"boolean": true, "object": true, "array": true,
}

// entry is the registry's record for one tool
type entry struct {
	tool         Tool
	schema       *gojsonschema.Schema
	enabled      bool
	registeredAt time.Time
	lastUsedAt   time.Time
	useCount     int64
}

// Registry holds executable tools and runs them with payload validation
// and per-execution deadlines
type Registry struct {
	mu             sync.RWMutex
	tools          map[string]*entry
	defaultTimeout time.Duration
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	now            func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithDefaultTimeout overrides the per-execution deadline applied when a
// caller does not pass one
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

// WithMetrics wires execution counters into the given metrics set
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithLogger routes registry log output through the given logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock overrides the registry's time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty Registry
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:          make(map[string]*entry),
		defaultTimeout: DefaultToolTimeout,
		logger:         log.Logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool under its own name. Names are unique; registering an
// existing name fails with ErrDuplicateTool.
func (r *Registry) Register(tool Tool) error {
	if err := validateTool(tool); err != nil {
		return err
	}

	schema, err := buildSchema(tool.Parameters)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTool, tool.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}

	r.tools[tool.Name] = &entry{
		tool:         tool,
		schema:       schema,
		enabled:      true,
		registeredAt: r.now(),
	}

	r.logger.Info().Str("tool", tool.Name).Str("category", tool.Category).Msg("Tool registered")
	return nil
}

// RegisterCustom adds a user-supplied tool, optionally under a namespace.
// The stored name is returned; with a namespace it becomes "namespace:name".
func (r *Registry) RegisterCustom(tool Tool, opts CustomOptions) (string, error) {
	name := tool.Name
	if opts.Namespace != "" {
		name = opts.Namespace + ":" + tool.Name
	}

	if opts.Overwrite && r.Unregister(name) {
		r.logger.Warn().Str("tool", name).Msg("Existing tool overwritten")
	}

	tool.Name = name
	if tool.Category == "" {
		tool.Category = "custom"
	}
	if err := r.Register(tool); err != nil {
		return "", err
	}
	return name, nil
}

// RegisterCustomBatch registers several custom tools in order. Without
// ContinueOnError the first failure aborts the batch and is returned;
// with it, failures are collected per tool and the batch keeps going.
func (r *Registry) RegisterCustomBatch(tools []Tool, opts BatchOptions) (*BatchResult, error) {
	result := &BatchResult{}
	for _, tool := range tools {
		name, err := r.RegisterCustom(tool, CustomOptions{
			Namespace: opts.Namespace,
			Overwrite: opts.Overwrite,
		})
		if err != nil {
			if !opts.ContinueOnError {
				return result, err
			}
			result.Failures = append(result.Failures, BatchFailure{Name: tool.Name, Err: err})
			continue
		}
		result.Registered = append(result.Registered, name)
	}

	r.logger.Info().
		Int("registered", len(result.Registered)).
		Int("failed", len(result.Failures)).
		Msg("Custom tool batch processed")
	return result, nil
}

// Unregister removes a tool entirely. Returns false when it was not present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	r.logger.Info().Str("tool", name).Msg("Tool unregistered")
	return true
}

// SetEnabled toggles a tool's visibility without removing it.
// Returns false when the tool is not registered.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.tools[name]
	if !exists {
		return false
	}
	e.enabled = enabled
	r.logger.Info().Str("tool", name).Bool("enabled", enabled).Msg("Tool availability changed")
	return true
}

// Get returns a tool by name. Disabled tools are reported as absent,
// exactly like unknown ones.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.tools[name]
	if !exists || !e.enabled {
		return Tool{}, false
	}
	return e.tool, true
}

// Execute runs a tool with the registry's default deadline
func (r *Registry) Execute(ctx context.Context, name string, payload map[string]interface{}, userID string) (*ToolResult, error) {
	return r.ExecuteWithTimeout(ctx, name, payload, userID, 0)
}

// ExecuteWithTimeout validates the payload and runs the tool's handler
// raced against the given deadline (zero means the registry default).
// Validation failures surface as *ValidationError before the handler runs;
// handler failures surface as *RuntimeError.
func (r *Registry) ExecuteWithTimeout(ctx context.Context, name string, payload map[string]interface{}, userID string, d time.Duration) (*ToolResult, error) {
	start := r.now()

	r.mu.RLock()
	e, exists := r.tools[name]
	var schema *gojsonschema.Schema
	var tool Tool
	if exists {
		schema = e.schema
		tool = e.tool
	}
	enabled := exists && e.enabled
	r.mu.RUnlock()

	if !enabled {
		r.logger.Error().Str("tool", name).Msg("Tool not found")
		r.countExecution(name, "not_found")
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}

	if err := r.validatePayload(name, schema, tool.Validate, payload); err != nil {
		r.countExecution(name, "invalid")
		return nil, err
	}

	if d <= 0 {
		d = r.defaultTimeout
	}

	r.logger.Debug().Str("tool", name).Str("userId", userID).Msg("Executing tool")

	value, err := timeout.Run(ctx, func(ctx context.Context) (interface{}, error) {
		return tool.Execute(ctx, payload, userID)
	}, timeout.Options{Timeout: d, Name: name})

	duration := r.now().Sub(start)

	if err != nil {
		if timeout.IsTimeout(err) {
			r.logger.Error().Str("tool", name).Dur("duration", duration).Msg("Tool execution timeout")
			r.countExecution(name, "timeout")
			return nil, fmt.Errorf("%w: %s after %v", ErrToolTimeout, name, d)
		}
		if timeout.IsCancelled(err) {
			r.countExecution(name, "cancelled")
			return nil, fmt.Errorf("tool %s cancelled: %w", name, err)
		}
		r.logger.Error().Str("tool", name).Dur("duration", duration).Err(err).Msg("Tool execution failed")
		r.countExecution(name, "error")
		return nil, &RuntimeError{Tool: name, Cause: err}
	}

	result, _ := value.(*ToolResult)
	if result == nil {
		result = &ToolResult{Action: name, Status: "success"}
	}
	if result.Action == "" {
		result.Action = name
	}

	if result.Status == "error" {
		r.logger.Error().Str("tool", name).Str("error", result.Error).Msg("Tool reported failure")
		r.countExecution(name, "error")
		return result, &RuntimeError{Tool: name, Cause: errors.New(resultError(result))}
	}

	r.mu.Lock()
	if e, ok := r.tools[name]; ok {
		e.lastUsedAt = r.now()
		e.useCount++
	}
	r.mu.Unlock()

	r.logger.Debug().Str("tool", name).Dur("duration", duration).Msg("Tool execution completed")
	r.countExecution(name, "success")
	if r.metrics != nil {
		r.metrics.ToolExecutionDuration.WithLabelValues(name).Observe(duration.Seconds())
	}
	return result, nil
}

// List returns every registered tool, including disabled ones, sorted by name
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, e := range r.tools {
		tools = append(tools, e.tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Search returns enabled tools whose name, description or examples contain
// the query, case-insensitively, sorted by name
func (r *Registry) Search(query string) []Tool {
	q := strings.ToLower(strings.TrimSpace(query))

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Tool
	for _, e := range r.tools {
		if !e.enabled {
			continue
		}
		if q == "" || matchesQuery(e.tool, q) {
			matched = append(matched, e.tool)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched
}

// ByCategory returns enabled tools in the given category, sorted by name
func (r *Registry) ByCategory(category string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Tool
	for _, e := range r.tools {
		if e.enabled && strings.EqualFold(e.tool.Category, category) {
			matched = append(matched, e.tool)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched
}

// Stats returns a snapshot of registry contents and usage
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:      len(r.tools),
		Categories: make(map[string]int),
		LastUsed:   make(map[string]time.Time),
	}
	for name, e := range r.tools {
		if e.enabled {
			stats.Enabled++
		}
		cat := e.tool.Category
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

func (r *Registry) validatePayload(name string, schema *gojsonschema.Schema, custom ValidateFunc, payload map[string]interface{}) error {
	if schema != nil {
		result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
		if err != nil {
			return &ValidationError{Tool: name, Errors: []string{err.Error()}}
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, verr := range result.Errors() {
				msgs = append(msgs, verr.String())
			}
			r.logger.Error().Str("tool", name).Strs("errors", msgs).Msg("Payload validation failed")
			r.countValidationFailure(name)
			return &ValidationError{Tool: name, Errors: msgs}
		}
	}

	if custom != nil {
		result := custom(payload)
		if result != nil && !result.Valid {
			msgs := result.Errors
			if len(msgs) == 0 {
				msgs = []string{"payload rejected by tool validator"}
			}
			r.logger.Error().Str("tool", name).Strs("errors", msgs).Msg("Payload validation failed")
			r.countValidationFailure(name)
			return &ValidationError{Tool: name, Errors: msgs}
		}
	}
	return nil
}

func (r *Registry) countExecution(name, status string) {
	if r.metrics != nil {
		r.metrics.ToolExecutionsTotal.WithLabelValues(name, status).Inc()
	}
}

func (r *Registry) countValidationFailure(name string) {
	if r.metrics != nil {
		r.metrics.ToolValidationFailuresTotal.WithLabelValues(name).Inc()
	}
}

func matchesQuery(tool Tool, q string) bool {
	if strings.Contains(strings.ToLower(tool.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(tool.Description), q) {
		return true
	}
	for _, ex := range tool.Examples {
		if strings.Contains(strings.ToLower(ex), q) {
			return true
		}
	}
	return false
}

func resultError(result *ToolResult) string {
	if result.Error != "" {
		return result.Error
	}
	if result.Message != "" {
		return result.Message
	}
	return "tool reported failure"
}

func validateTool(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("%w: tool name cannot be empty", ErrInvalidTool)
	}
	if tool.Description == "" {
		return fmt.Errorf("%w: %s: description cannot be empty", ErrInvalidTool, tool.Name)
	}
	if tool.Execute == nil {
		return fmt.Errorf("%w: %s: execute handler cannot be nil", ErrInvalidTool, tool.Name)
	}
	for pname, spec := range tool.Parameters {
		if pname == "" {
			return fmt.Errorf("%w: %s: parameter name cannot be empty", ErrInvalidTool, tool.Name)
		}
		if !validParamTypes[spec.Type] {
			return fmt.Errorf("%w: %s: invalid type %q for parameter %s", ErrInvalidTool, tool.Name, spec.Type, pname)
		}
	}
	return nil
}

// buildSchema compiles the declared parameters into a JSON Schema used to
// validate payloads before every execution
func buildSchema(params map[string]ParameterSpec) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for name, spec := range params {
		prop := map[string]interface{}{
			"type": spec.Type,
		}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		if spec.Pattern != "" {
			prop["pattern"] = spec.Pattern
		}
		if spec.Minimum != nil {
			prop["minimum"] = *spec.Minimum
		}
		if spec.Maximum != nil {
			prop["maximum"] = *spec.Maximum
		}
		if spec.Default != nil {
			prop["default"] = spec.Default
		}
		properties[name] = prop

		if spec.Required {
			required = append(required, name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}
