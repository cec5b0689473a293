package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	RequestCount     int64
	ErrorCount       int64
	CacheHits        int64
	CacheMisses      int64
	RecordsLoaded    int64
	AggregationsRun  int64
	StartTime        time.Time

	// Response time samples for percentiles (last 1000 requests)
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]time.Duration, 0, 1000),
		RequestCountByStatus: make(map[int]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementRecordsLoaded increments the loaded evaluation record count
func (m *Metrics) IncrementRecordsLoaded() {
	atomic.AddInt64(&m.RecordsLoaded, 1)
}

// IncrementAggregationsRun increments the aggregation run count
func (m *Metrics) IncrementAggregationsRun() {
	atomic.AddInt64(&m.AggregationsRun, 1)
}

// RecordResponseTime records a response time sample (keeps last 1000)
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// GetPercentileResponseTime returns the response time at the given percentile
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.ResponseTimes))
	copy(sorted, m.ResponseTimes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)-1) * percentile / 100)
	if index < 0 {
		index = 0
	}
	return sorted[index]
}

// GetStatusCodeDistribution returns a copy of the status code counts
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	dist := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		dist[code] = count
	}
	return dist
}

// GetStats returns a snapshot of all metrics
func (m *Metrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"request_count":        atomic.LoadInt64(&m.RequestCount),
		"error_count":          atomic.LoadInt64(&m.ErrorCount),
		"cache_hits":           atomic.LoadInt64(&m.CacheHits),
		"cache_misses":         atomic.LoadInt64(&m.CacheMisses),
		"records_loaded":       atomic.LoadInt64(&m.RecordsLoaded),
		"aggregations_run":     atomic.LoadInt64(&m.AggregationsRun),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"response_time_p50_ms": m.GetPercentileResponseTime(50).Milliseconds(),
		"response_time_p95_ms": m.GetPercentileResponseTime(95).Milliseconds(),
		"response_time_p99_ms": m.GetPercentileResponseTime(99).Milliseconds(),
		"status_codes":         m.GetStatusCodeDistribution(),
	}
}
