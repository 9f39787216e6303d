package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"modelarena/internal/core"
)

// AtomicRequestStats thread-safe backend call statistics
type AtomicRequestStats struct {
	TotalRequests      atomic.Int64
	SuccessfulRequests atomic.Int64
	FailedRequests     atomic.Int64
	TotalResponseTime  atomic.Int64
}

// ModelStats aggregates backend calls for one model since process start.
type ModelStats struct {
	ModelID      string  `json:"model_id"`
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	Availability float64 `json:"availability"`
	totalLatency int64
}

// Snapshot is the arena activity summary served on /api/stats.
type Snapshot struct {
	CurrentTime     string                      `json:"current_time"`
	BattlesStarted  int64                       `json:"battles_started"`
	Votes           int64                       `json:"votes"`
	Ties            int64                       `json:"ties"`
	BackendCalls    int64                       `json:"backend_calls"`
	BackendFailures int64                       `json:"backend_failures"`
	QPS             float64                     `json:"qps"`
	Periods         map[string]core.PeriodStats `json:"periods"`
	Models          []ModelStats                `json:"models"`
}

// MetricsConfig configuration for MetricsService
type MetricsConfig struct {
	SaveInterval time.Duration
	HistorySize  int
	Storage      core.StorageInterface
	Logger       core.Logger
}

// MetricsService collects backend call and battle metrics
type MetricsService struct {
	atomicStats      AtomicRequestStats
	battlesStarted   atomic.Int64
	votes            atomic.Int64
	ties             atomic.Int64
	requestHistory   []core.RequestRecord
	historyMu        sync.RWMutex
	lastRequestTime  time.Time
	maxHistorySize   int
	storage          core.StorageInterface
	logger           core.Logger
	lastSaveTime     time.Time
	minSaveInterval  time.Duration
	done             chan struct{}
	closeOnce        sync.Once
	historyBuffer    []core.RequestRecord
	bufferMu         sync.Mutex
	bufferFlushTimer *time.Ticker
	recentRequests   []time.Time
	recentMu         sync.Mutex
	models           map[string]*ModelStats
	modelsMu         sync.Mutex
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(config MetricsConfig) *MetricsService {
	if config.HistorySize <= 0 {
		config.HistorySize = core.HistoryBufferSize
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}
	ms := &MetricsService{
		maxHistorySize:  config.HistorySize,
		storage:         config.Storage,
		logger:          config.Logger,
		minSaveInterval: config.SaveInterval,
		done:            make(chan struct{}),
		historyBuffer:   make([]core.RequestRecord, 0, core.HistoryBatchSize),
		models:          make(map[string]*ModelStats),
	}

	ms.bufferFlushTimer = time.NewTicker(core.HistoryFlushInterval)
	go ms.flushLoop()

	return ms
}

func (ms *MetricsService) flushLoop() {
	for {
		select {
		case <-ms.bufferFlushTimer.C:
			ms.flushBuffer()
		case <-ms.done:
			return
		}
	}
}

func (ms *MetricsService) flushBuffer() {
	ms.bufferMu.Lock()
	if len(ms.historyBuffer) == 0 {
		ms.bufferMu.Unlock()
		return
	}
	batch := ms.historyBuffer
	ms.historyBuffer = make([]core.RequestRecord, 0, core.HistoryBatchSize)
	ms.bufferMu.Unlock()

	ms.historyMu.Lock()
	ms.requestHistory = append(ms.requestHistory, batch...)
	if len(ms.requestHistory) > ms.maxHistorySize {
		ms.requestHistory = ms.requestHistory[len(ms.requestHistory)-ms.maxHistorySize:]
	}
	ms.historyMu.Unlock()
}

// RecordBackendCall records one generation call against a model backend.
func (ms *MetricsService) RecordBackendCall(modelID, battleID string, success bool, duration time.Duration) {
	now := time.Now()
	responseTime := duration.Milliseconds()

	ms.historyMu.Lock()
	ms.lastRequestTime = now
	ms.historyMu.Unlock()
	ms.atomicStats.TotalRequests.Add(1)
	ms.atomicStats.TotalResponseTime.Add(responseTime)
	if success {
		ms.atomicStats.SuccessfulRequests.Add(1)
	} else {
		ms.atomicStats.FailedRequests.Add(1)
	}

	ms.modelsMu.Lock()
	m, ok := ms.models[modelID]
	if !ok {
		m = &ModelStats{ModelID: modelID}
		ms.models[modelID] = m
	}
	m.Calls++
	m.totalLatency += responseTime
	if !success {
		m.Failures++
	}
	ms.modelsMu.Unlock()

	ms.recentMu.Lock()
	ms.recentRequests = append(ms.recentRequests, now)
	ms.pruneRecent(now)
	ms.recentMu.Unlock()

	record := core.RequestRecord{
		Timestamp:    now,
		Success:      success,
		ResponseTime: responseTime,
		Model:        modelID,
		Battle:       battleID,
	}

	ms.bufferMu.Lock()
	ms.historyBuffer = append(ms.historyBuffer, record)
	shouldFlush := len(ms.historyBuffer) >= core.HistoryBatchSize
	ms.bufferMu.Unlock()

	if shouldFlush {
		ms.flushBuffer()
	}

	ms.SaveStatsDebounced()
}

// RecordBattleStarted counts a created battle.
func (ms *MetricsService) RecordBattleStarted() {
	ms.battlesStarted.Add(1)
}

// RecordVote counts an accepted vote.
func (ms *MetricsService) RecordVote(tie bool) {
	ms.votes.Add(1)
	if tie {
		ms.ties.Add(1)
	}
}

// pruneRecent drops timestamps older than one minute. Caller holds recentMu.
func (ms *MetricsService) pruneRecent(now time.Time) {
	cutoff := now.Add(-1 * time.Minute)
	startIdx := 0
	for startIdx < len(ms.recentRequests) && ms.recentRequests[startIdx].Before(cutoff) {
		startIdx++
	}
	if startIdx > 0 {
		newRecent := make([]time.Time, len(ms.recentRequests)-startIdx)
		copy(newRecent, ms.recentRequests[startIdx:])
		ms.recentRequests = newRecent
	}
}

// GetQPS returns backend calls per second over the last minute
func (ms *MetricsService) GetQPS() float64 {
	ms.recentMu.Lock()
	defer ms.recentMu.Unlock()

	ms.pruneRecent(time.Now())
	if len(ms.recentRequests) == 0 {
		return 0
	}
	return math.Round(float64(len(ms.recentRequests))/60.0*1000) / 1000
}

// GetRequestStats returns current stats snapshot
func (ms *MetricsService) GetRequestStats() core.RequestStats {
	ms.flushBuffer()
	ms.historyMu.RLock()
	defer ms.historyMu.RUnlock()

	historyCopy := make([]core.RequestRecord, len(ms.requestHistory))
	copy(historyCopy, ms.requestHistory)

	return core.RequestStats{
		TotalRequests:      ms.atomicStats.TotalRequests.Load(),
		SuccessfulRequests: ms.atomicStats.SuccessfulRequests.Load(),
		FailedRequests:     ms.atomicStats.FailedRequests.Load(),
		TotalResponseTime:  ms.atomicStats.TotalResponseTime.Load(),
		LastRequestTime:    ms.lastRequestTime,
		RequestHistory:     historyCopy,
	}
}

// ModelStats returns per-model call statistics sorted by model id.
func (ms *MetricsService) ModelStats() []ModelStats {
	ms.modelsMu.Lock()
	defer ms.modelsMu.Unlock()

	out := make([]ModelStats, 0, len(ms.models))
	for _, m := range ms.models {
		s := *m
		if s.Calls > 0 {
			s.AvgLatencyMs = s.totalLatency / s.Calls
			s.Availability = float64(s.Calls-s.Failures) / float64(s.Calls) * 100
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// Snapshot builds the summary served on the stats endpoint.
func (ms *MetricsService) Snapshot() Snapshot {
	stats := ms.GetRequestStats()
	periods := GetPeriodStats(stats.RequestHistory, 24, 168, 720)
	return Snapshot{
		CurrentTime:     time.Now().Format(core.TimeFormatDateTime),
		BattlesStarted:  ms.battlesStarted.Load(),
		Votes:           ms.votes.Load(),
		Ties:            ms.ties.Load(),
		BackendCalls:    stats.TotalRequests,
		BackendFailures: stats.FailedRequests,
		QPS:             ms.GetQPS(),
		Periods: map[string]core.PeriodStats{
			"24h": periods[24],
			"7d":  periods[168],
			"30d": periods[720],
		},
		Models: ms.ModelStats(),
	}
}

// GetPeriodStats computes period statistics for multiple hour windows in a single pass.
func GetPeriodStats(history []core.RequestRecord, hourPeriods ...int) map[int]core.PeriodStats {
	if len(hourPeriods) == 0 {
		return nil
	}

	now := time.Now()
	cutoffs := make([]time.Time, len(hourPeriods))
	requests := make([]int64, len(hourPeriods))
	successful := make([]int64, len(hourPeriods))
	responseTime := make([]int64, len(hourPeriods))

	for i, hours := range hourPeriods {
		cutoffs[i] = now.Add(-time.Duration(hours) * time.Hour)
	}

	for _, record := range history {
		for i, cutoff := range cutoffs {
			if record.Timestamp.After(cutoff) {
				requests[i]++
				responseTime[i] += record.ResponseTime
				if record.Success {
					successful[i]++
				}
			}
		}
	}

	result := make(map[int]core.PeriodStats, len(hourPeriods))
	for i, hours := range hourPeriods {
		stats := core.PeriodStats{
			Requests: requests[i],
			QPS:      float64(requests[i]) / (float64(hours) * 3600.0),
		}
		if requests[i] > 0 {
			stats.SuccessRate = float64(successful[i]) / float64(requests[i]) * 100
			stats.AvgResponseTime = responseTime[i] / requests[i]
		}
		result[hours] = stats
	}
	return result
}

// LoadStats restores counters and history from storage
func (ms *MetricsService) LoadStats() error {
	if ms.storage == nil {
		return nil
	}
	stats, err := ms.storage.LoadStats()
	if err != nil {
		return err
	}

	ms.atomicStats.TotalRequests.Store(stats.TotalRequests)
	ms.atomicStats.SuccessfulRequests.Store(stats.SuccessfulRequests)
	ms.atomicStats.FailedRequests.Store(stats.FailedRequests)
	ms.atomicStats.TotalResponseTime.Store(stats.TotalResponseTime)

	ms.historyMu.Lock()
	ms.lastRequestTime = stats.LastRequestTime
	ms.requestHistory = stats.RequestHistory
	ms.historyMu.Unlock()

	return nil
}

// SaveStatsDebounced saves stats at most once per save interval
func (ms *MetricsService) SaveStatsDebounced() {
	now := time.Now()
	ms.historyMu.Lock()
	if now.Sub(ms.lastSaveTime) < ms.minSaveInterval {
		ms.historyMu.Unlock()
		return
	}
	ms.lastSaveTime = now
	ms.historyMu.Unlock()

	if ms.storage == nil {
		return
	}

	stats := ms.GetRequestStats()
	if err := ms.storage.SaveStats(&stats); err != nil {
		ms.logger.Warn("Failed to save stats: %v", err)
	}
}

// Close saves final stats and stops the flush loop. Later calls do nothing.
func (ms *MetricsService) Close() error {
	var err error
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.bufferFlushTimer.Stop()
		ms.flushBuffer()

		if ms.storage != nil {
			stats := ms.GetRequestStats()
			err = ms.storage.SaveStats(&stats)
		}
	})
	return err
}

var _ core.MetricsCollector = (*MetricsService)(nil)
