package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu               sync.Mutex
	requestCount     map[string]int64
	errorCount       map[string]int64
	broadcastCount   map[string]int64
	broadcastDropped map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:     make(map[string]int64),
		errorCount:       make(map[string]int64),
		broadcastCount:   make(map[string]int64),
		broadcastDropped: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
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

// RecordBroadcast tracks per-event delivery and drop counts for the realtime
// fan-out layer.
func (m *Metrics) RecordBroadcast(eventType string, delivered, dropped int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastCount[eventType] += int64(delivered)
	if dropped > 0 {
		m.broadcastDropped[eventType] += int64(dropped)
	}
}

// BroadcastCounts returns a copy of the delivered/dropped counters for an
// event type.
func (m *Metrics) BroadcastCounts(eventType string) (delivered, dropped int64) {
	if m == nil {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcastCount[eventType], m.broadcastDropped[eventType]
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
