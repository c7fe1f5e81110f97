package resilience

import (
	"fmt"
	"sync"
	"time"
)

// ManagerOptions configures a Manager's tracking capacity and background
// cleanup.
type ManagerOptions struct {
	MaxTrackedCircuitBreakers int
	EnableAutomaticCleanup    bool
	CleanupInterval           time.Duration
	InactivityThreshold       time.Duration
	// CleanupTimeout is accepted for API completeness and is not read:
	// the cleanup pass is a synchronous map scan with no I/O and runs
	// without a time bound.
	CleanupTimeout time.Duration
}

type managerEntry struct {
	cb         *CircuitBreaker
	lastAccess time.Time
}

// Manager owns every CircuitBreaker for a single pipeline run, evicting
// least-recently-used entries once MaxTrackedCircuitBreakers is reached.
// It is created and torn down per run; this module never keeps a
// process-wide singleton.
type Manager struct {
	mu      sync.Mutex
	opts    ManagerOptions
	entries map[string]*managerEntry
	order   []string // least-recently-used first

	optsFor func(nodeID string) Options

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewManager(opts ManagerOptions, optsFor func(nodeID string) Options) *Manager {
	m := &Manager{
		opts:    opts,
		entries: make(map[string]*managerEntry),
		optsFor: optsFor,
		stopCh:  make(chan struct{}),
	}
	if opts.EnableAutomaticCleanup && opts.CleanupInterval > 0 {
		go m.cleanupLoop()
	}
	return m
}

// Get returns the tracked CircuitBreaker for nodeID, creating one (via
// optsFor) on first access. If the manager is at capacity it evicts an
// inactive entry first, or failing that the least-recently-used entry
// outright (aggressive eviction), before admitting the new node.
func (m *Manager) Get(nodeID string) (*CircuitBreaker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[nodeID]; ok {
		e.lastAccess = time.Now()
		m.touchLocked(nodeID)
		return e.cb, nil
	}

	if m.opts.MaxTrackedCircuitBreakers > 0 && len(m.entries) >= m.opts.MaxTrackedCircuitBreakers {
		if !m.evictOneLocked() {
			return nil, fmt.Errorf("circuit breaker manager: cannot track node %q, at capacity (%d)", nodeID, m.opts.MaxTrackedCircuitBreakers)
		}
	}

	cb, err := NewCircuitBreaker(nodeID, m.optsFor(nodeID))
	if err != nil {
		return nil, err
	}
	m.entries[nodeID] = &managerEntry{cb: cb, lastAccess: time.Now()}
	m.order = append(m.order, nodeID)
	return cb, nil
}

func (m *Manager) touchLocked(nodeID string) {
	for i, id := range m.order {
		if id == nodeID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.order = append(m.order, nodeID)
}

func (m *Manager) evictOneLocked() bool {
	now := time.Now()
	if m.opts.InactivityThreshold > 0 {
		for id, e := range m.entries {
			if now.Sub(e.lastAccess) > m.opts.InactivityThreshold {
				m.removeLocked(id)
				return true
			}
		}
	}
	if len(m.order) > 0 {
		m.removeLocked(m.order[0])
		return true
	}
	return false
}

func (m *Manager) removeLocked(id string) {
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			if m.opts.InactivityThreshold > 0 {
				for id, e := range m.entries {
					if now.Sub(e.lastAccess) > m.opts.InactivityThreshold {
						m.removeLocked(id)
					}
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the background cleanup goroutine, if any. Safe to call more
// than once.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
