package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests and distribution
// cycle outcomes.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	cycleCount     map[string]int64
	assignedTotal  int64
	reclaimedTotal int64
	archivedTotal  int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		cycleCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordCycle tracks a distribution cycle outcome and its effects.
func (m *Metrics) RecordCycle(outcome string, assigned, reclaimed, archived int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycleCount[outcome]++
	m.assignedTotal += int64(assigned)
	m.reclaimedTotal += int64(reclaimed)
	m.archivedTotal += int64(archived)
}

// Snapshot returns a copy of all counters for the metrics endpoint.
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	requests := make(map[string]int64, len(m.requestCount))
	for k, v := range m.requestCount {
		requests[k] = v
	}
	errs := make(map[string]int64, len(m.errorCount))
	for k, v := range m.errorCount {
		errs[k] = v
	}
	cycles := make(map[string]int64, len(m.cycleCount))
	for k, v := range m.cycleCount {
		cycles[k] = v
	}
	return map[string]any{
		"requests":        requests,
		"errors":          errs,
		"cycles":          cycles,
		"assigned_total":  m.assignedTotal,
		"reclaimed_total": m.reclaimedTotal,
		"archived_total":  m.archivedTotal,
	}
}
