package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/stockledger/internal/domain"
)

// SequentialIDGenerator returns prefix-1, prefix-2, ...
type SequentialIDGenerator struct {
	Prefix string
	n      atomic.Int64
}

func (g *SequentialIDGenerator) Generate() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "id"
	}

	return fmt.Sprintf("%s-%d", prefix, g.n.Add(1))
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NoRetry runs the operation exactly once.
type NoRetry struct{}

func (NoRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}

// MockMetrics counts calls to usecase.Metrics.
type MockMetrics struct {
	mu sync.Mutex

	Committed map[domain.Kind]int
	Rejected  map[domain.Reason]int
	Failures  map[string]int
	Retries   int
	Hits      int
	Misses    int
	Rebuilds  int
	Stale     int
	Strikes   int
	Submits   int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Committed: make(map[domain.Kind]int),
		Rejected:  make(map[domain.Reason]int),
		Failures:  make(map[string]int),
	}
}

func (m *MockMetrics) MovementCommitted(kind domain.Kind, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Committed[kind]++
}

func (m *MockMetrics) MovementRejected(_ domain.Kind, reason domain.Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected[reason]++
}

func (m *MockMetrics) SubmitDuration(domain.Kind, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submits++
}

func (m *MockMetrics) AppendRetried() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retries++
}

func (m *MockMetrics) StorageFailed(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures[op]++
}

func (m *MockMetrics) SnapshotCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Hits++
}

func (m *MockMetrics) SnapshotCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Misses++
}

func (m *MockMetrics) SnapshotRebuilt(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rebuilds++
}

func (m *MockMetrics) StaleSnapshotDetected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stale++
}

func (m *MockMetrics) PeriodStruck() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Strikes++
}

// Count reads a counter under the lock.
func (m *MockMetrics) Count(f func(*MockMetrics) int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f(m)
}
