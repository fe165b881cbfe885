// Package pool provides process-wide admission control for concurrent
// orchestrator instances. The Manager bounds how many heavyweight
// orchestrations may run at once based on a CPU-derived concurrency
// limit and a memory budget, queueing excess requests by priority.
//
// The Manager is an explicitly constructed, injectable component: the
// process bootstrap owns one and hands it to every orchestrator
// instance. All mutation of its counters and queue happens inside its
// own methods (single-writer discipline).
package pool

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Defaults for the adaptive concurrency limit and memory monitor.
const (
	defaultMinConcurrent   = 2
	defaultMaxCeiling      = 8
	defaultMemoryFraction  = 0.5
	defaultMonitorInterval = 5 * time.Second
	defaultHighWater       = 0.85
	defaultLowWater        = 0.5
)

// ErrClosed is returned by Acquire once shutdown has begun.
var ErrClosed = errors.New("pool: shut down")

// ErrRejected is returned to queued acquirers when the pool shuts down
// before capacity frees up for them.
var ErrRejected = errors.New("pool: acquisition rejected by shutdown")

// Config contains construction options for a Manager. Zero values take
// the documented defaults.
type Config struct {
	// MaxConcurrent is the initial concurrency limit. Zero derives it
	// from the CPU count, capped at MaxCeiling.
	MaxConcurrent int
	// MinConcurrent is the adaptive floor. Default 2.
	MinConcurrent int
	// MaxCeiling is the adaptive ceiling. Default 8.
	MaxCeiling int
	// MemoryFraction is the share of total system memory the pool
	// treats as its budget. Default 0.5.
	MemoryFraction float64
	// MonitorInterval is the adaptive monitor's sampling interval.
	// Default 5s.
	MonitorInterval time.Duration
	// TotalMemory overrides system memory detection, mainly for tests.
	TotalMemory uint64
}

// Lease represents one admitted slot in the concurrency budget. It must
// be released exactly once; extra releases are safe no-ops.
type Lease struct {
	id       string
	mgr      *Manager
	released atomic.Bool
}

// ID returns the lease's unique identifier.
func (l *Lease) ID() string { return l.id }

// Release returns the slot to the pool and wakes queued acquirers.
// Release is idempotent.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.mgr.release(l)
	}
}

// Status is a snapshot of the pool's state.
type Status struct {
	// Active is the number of outstanding leases.
	Active int
	// Max is the current adaptive concurrency limit.
	Max int
	// Queued is the number of waiting acquisition requests.
	Queued int
	// MemoryUsagePercent is heap usage as a percentage of the budget.
	MemoryUsagePercent float64
}

// request is one queued acquisition. Higher priority is served first;
// ties break FIFO by sequence number.
type request struct {
	priority  int
	seq       uint64
	grant     chan grantResult
	cancelled bool
	index     int
}

// grantResult carries a lease or a rejection to a waiting acquirer.
type grantResult struct {
	lease *Lease
	err   error
}

// Manager is the resource pool. See the package comment.
type Manager struct {
	cfg Config

	mu            sync.Mutex
	maxConcurrent int
	active        map[string]*Lease
	queue         requestQueue
	seq           uint64
	closed        bool
	draining      bool

	memoryBudget uint64

	stopMonitor chan struct{}
	monitorDone chan struct{}
}

// NewManager creates a Manager and starts its adaptive monitor.
func NewManager(cfg Config) *Manager {
	if cfg.MinConcurrent <= 0 {
		cfg.MinConcurrent = defaultMinConcurrent
	}
	if cfg.MaxCeiling <= 0 {
		cfg.MaxCeiling = defaultMaxCeiling
	}
	if cfg.MemoryFraction <= 0 || cfg.MemoryFraction > 1 {
		cfg.MemoryFraction = defaultMemoryFraction
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = defaultMonitorInterval
	}

	max := cfg.MaxConcurrent
	if max <= 0 {
		max = runtime.NumCPU()
	}
	if max > cfg.MaxCeiling {
		max = cfg.MaxCeiling
	}
	if max < cfg.MinConcurrent {
		max = cfg.MinConcurrent
	}

	total := cfg.TotalMemory
	if total == 0 {
		total = totalSystemMemory()
	}

	m := &Manager{
		cfg:           cfg,
		maxConcurrent: max,
		active:        make(map[string]*Lease),
		memoryBudget:  uint64(float64(total) * cfg.MemoryFraction),
		stopMonitor:   make(chan struct{}),
		monitorDone:   make(chan struct{}),
	}
	heap.Init(&m.queue)
	go m.monitor()
	return m
}

// Acquire requests one slot. If capacity and memory allow, the lease is
// granted immediately; otherwise the caller blocks in the priority queue
// (higher priority first, FIFO among equals) until capacity frees up,
// the context is cancelled, or the pool shuts down.
func (m *Manager) Acquire(ctx context.Context, priority int) (*Lease, error) {
	m.mu.Lock()
	if m.closed || m.draining {
		m.mu.Unlock()
		return nil, ErrClosed
	}

	if len(m.active) < m.maxConcurrent && m.memoryOK() {
		lease := m.grantLocked()
		m.mu.Unlock()
		return lease, nil
	}

	req := &request{
		priority: priority,
		seq:      m.seq,
		grant:    make(chan grantResult, 1),
	}
	m.seq++
	heap.Push(&m.queue, req)
	m.mu.Unlock()

	select {
	case res := <-req.grant:
		return res.lease, res.err
	case <-ctx.Done():
		m.mu.Lock()
		req.cancelled = true
		m.mu.Unlock()
		// The grant may have raced the cancellation; give it back.
		select {
		case res := <-req.grant:
			if res.lease != nil {
				res.lease.Release()
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// grantLocked creates a lease and registers it. Caller holds m.mu.
func (m *Manager) grantLocked() *Lease {
	lease := &Lease{
		id:  "lease-" + uuid.New().String()[:8],
		mgr: m,
	}
	m.active[lease.id] = lease
	return lease
}

// release returns a slot and satisfies queued requests while capacity
// allows.
func (m *Manager) release(l *Lease) {
	m.mu.Lock()
	delete(m.active, l.id)
	m.dispatchLocked()
	m.mu.Unlock()
}

// dispatchLocked grants queued requests in priority order while capacity
// and memory allow. Caller holds m.mu.
func (m *Manager) dispatchLocked() {
	for m.queue.Len() > 0 && len(m.active) < m.maxConcurrent && m.memoryOK() {
		req := heap.Pop(&m.queue).(*request)
		if req.cancelled {
			continue
		}
		req.grant <- grantResult{lease: m.grantLocked()}
	}
}

// memoryOK reports whether heap usage is under the memory budget.
// Caller holds m.mu.
func (m *Manager) memoryOK() bool {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse < m.memoryBudget
}

// Status returns a snapshot of the pool's state.
func (m *Manager) Status() Status {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.mu.Lock()
	defer m.mu.Unlock()

	percent := 0.0
	if m.memoryBudget > 0 {
		percent = float64(ms.HeapInuse) / float64(m.memoryBudget) * 100
	}
	return Status{
		Active:             len(m.active),
		Max:                m.maxConcurrent,
		Queued:             m.queue.pendingLocked(),
		MemoryUsagePercent: percent,
	}
}

// monitor periodically samples memory usage and adapts the concurrency
// limit by at most one step per interval, which prevents oscillation:
// above the high-water mark it hints a GC and shrinks toward the floor,
// comfortably below the low-water mark it grows toward the ceiling.
func (m *Manager) monitor() {
	defer close(m.monitorDone)

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopMonitor:
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)

			m.mu.Lock()
			switch {
			case float64(ms.HeapInuse) > float64(m.memoryBudget)*defaultHighWater:
				if m.maxConcurrent > m.cfg.MinConcurrent {
					m.maxConcurrent--
					log.Printf("[pool] memory high (%.0f%% of budget), shrinking limit to %d",
						float64(ms.HeapInuse)/float64(m.memoryBudget)*100, m.maxConcurrent)
				}
				m.mu.Unlock()
				runtime.GC()
				m.mu.Lock()
			case float64(ms.HeapInuse) < float64(m.memoryBudget)*defaultLowWater:
				if m.maxConcurrent < m.cfg.MaxCeiling {
					m.maxConcurrent++
				}
			}
			m.dispatchLocked()
			m.mu.Unlock()
		}
	}
}

// SetMaxConcurrent adjusts the concurrency limit at runtime, clamped to
// [MinConcurrent, MaxCeiling]. Used by config hot-reload.
func (m *Manager) SetMaxConcurrent(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if max < m.cfg.MinConcurrent {
		max = m.cfg.MinConcurrent
	}
	if max > m.cfg.MaxCeiling {
		max = m.cfg.MaxCeiling
	}
	m.maxConcurrent = max
	m.dispatchLocked()
}

// GracefulShutdown stops admitting new requests, rejects all queued
// ones, and waits up to timeout for active leases to be released.
// Leases still outstanding past the deadline are logged and abandoned.
func (m *Manager) GracefulShutdown(timeout time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.draining = true
	m.rejectQueuedLocked()
	m.mu.Unlock()

	deadline := time.After(timeout)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-deadline:
			m.mu.Lock()
			outstanding := len(m.active)
			m.closeLocked()
			m.mu.Unlock()
			if outstanding > 0 {
				log.Printf("[pool] graceful shutdown deadline passed with %d leases outstanding", outstanding)
				return fmt.Errorf("pool: %d leases still active after %s", outstanding, timeout)
			}
			return nil
		case <-tick.C:
			m.mu.Lock()
			done := len(m.active) == 0
			if done {
				m.closeLocked()
			}
			m.mu.Unlock()
			if done {
				return nil
			}
		}
	}
}

// EmergencyShutdown rejects everything immediately without waiting for
// active leases.
func (m *Manager) EmergencyShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.rejectQueuedLocked()
	m.closeLocked()
}

// rejectQueuedLocked fails every queued request. Caller holds m.mu.
func (m *Manager) rejectQueuedLocked() {
	for m.queue.Len() > 0 {
		req := heap.Pop(&m.queue).(*request)
		if req.cancelled {
			continue
		}
		req.grant <- grantResult{err: ErrRejected}
	}
}

// closeLocked marks the pool closed and stops the monitor once.
// Caller holds m.mu.
func (m *Manager) closeLocked() {
	if m.closed {
		return
	}
	m.closed = true
	close(m.stopMonitor)
}
