package timeout

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Manager runs guarded operations under caller-chosen ids so that callers
// elsewhere can abort them individually or all at once
type Manager struct {
	mu  sync.Mutex
	ops map[string]chan struct{}
}

// NewManager creates an empty Manager
func NewManager() *Manager {
	return &Manager{ops: make(map[string]chan struct{})}
}

// Go runs op under the guard, tracked as id until it returns.
// A second Go with the same id while the first is live is rejected.
func (m *Manager) Go(id string, ctx context.Context, op Operation, opts Options) (interface{}, error) {
	m.mu.Lock()
	if _, exists := m.ops[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("operation %q is already running", id)
	}
	cancelCh := make(chan struct{})
	m.ops[id] = cancelCh
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		// Abort may have removed the entry and a new run may have claimed
		// the id in the meantime; only remove our own registration
		if m.ops[id] == cancelCh {
			delete(m.ops, id)
		}
		m.mu.Unlock()
	}()

	opts.Cancel = cancelCh
	if opts.Name == "" {
		opts.Name = id
	}
	return Run(ctx, op, opts)
}

// Abort cancels the live operation with the given id.
// Returns false when no such operation is running.
func (m *Manager) Abort(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.ops[id]
	if !ok {
		return false
	}
	close(ch)
	delete(m.ops, id)
	return true
}

// AbortAll cancels every live operation and returns how many were aborted
func (m *Manager) AbortAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.ops)
	for id, ch := range m.ops {
		close(ch)
		delete(m.ops, id)
	}
	return count
}

// Active returns the ids of live operations in sorted order
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.ops))
	for id := range m.ops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live operations
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}
