package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/theapemachine/mcgraph/pkg/errors"
)

// OperationStats holds the counters of a single engine operation.
type OperationStats struct {
	Calls    int64
	Failures int64
	NotFound int64
	Duration time.Duration
}

// EngineMetrics tracks call counts and latency per engine operation
type EngineMetrics struct {
	mu         sync.RWMutex
	operations map[string]*OperationStats
}

// NewEngineMetrics creates a new EngineMetrics instance
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		operations: make(map[string]*OperationStats),
	}
}

/*
Observe records one call of op that started at started. A not-found
outcome is counted on its own and never as a failure.
*/
func (m *EngineMetrics) Observe(op string, started time.Time, err error) {
	if m == nil {
		return
	}

	elapsed := time.Since(started)

	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.operations[op]

	if !ok {
		stats = &OperationStats{}
		m.operations[op] = stats
	}

	stats.Calls++
	stats.Duration += elapsed

	switch {
	case err == nil:
	case errors.KindOf(err) == errors.KindNotFound:
		stats.NotFound++
	default:
		stats.Failures++
	}
}

// Stats returns a copy of the counters for op
func (m *EngineMetrics) Stats(op string) OperationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if stats, ok := m.operations[op]; ok {
		return *stats
	}

	return OperationStats{}
}

// Snapshot returns the current metrics keyed by operation name
func (m *EngineMetrics) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ops := make([]string, 0, len(m.operations))

	for op := range m.operations {
		ops = append(ops, op)
	}

	sort.Strings(ops)
	out := make(map[string]any, len(ops))

	for _, op := range ops {
		stats := m.operations[op]

		out[op] = map[string]any{
			"calls":        stats.Calls,
			"failures":     stats.Failures,
			"not_found":    stats.NotFound,
			"total_time":   stats.Duration.Seconds(),
			"avg_duration": stats.Duration.Seconds() / float64(stats.Calls),
		}
	}

	return out
}
