package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sjando/jolecule/pkg/kafka"
)

type AggregatedStats struct {
	TotalRequests     int64            `json:"total_requests"`
	CacheHits         int64            `json:"cache_hits"`
	Computed          int64            `json:"computed"`
	FetchErrors       int64            `json:"fetch_errors"`
	CacheHitRate      float64          `json:"cache_hit_rate"`
	ViewsSaved        int64            `json:"views_saved"`
	ViewsDeleted      int64            `json:"views_deleted"`
	TotalBonds        int64            `json:"total_bonds"`
	ArtifactBytes     int64            `json:"artifact_bytes"`
	AvgComputeMs      float64          `json:"avg_compute_ms"`
	P50ComputeMs      int64            `json:"p50_compute_ms"`
	P95ComputeMs      int64            `json:"p95_compute_ms"`
	P99ComputeMs      int64            `json:"p99_compute_ms"`
	TopStructures     []StructureCount `json:"top_structures"`
	FailedStructures  []StructureCount `json:"failed_structures"`
	RequestsPerMinute float64          `json:"requests_per_minute"`
}

type StructureCount struct {
	StructureID string `json:"structure_id"`
	Count       int64  `json:"count"`
}

type Aggregator struct {
	mu            sync.RWMutex
	totalRequests atomic.Int64
	cacheHits     atomic.Int64
	computed      atomic.Int64
	fetchErrors   atomic.Int64
	viewsSaved    atomic.Int64
	viewsDeleted  atomic.Int64
	totalBonds    atomic.Int64
	artifactBytes atomic.Int64
	computeMs     []int64
	requestCounts map[string]int64
	failureCounts map[string]int64
	startTime     time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		computeMs:     make([]int64, 0, 10000),
		requestCounts: make(map[string]int64),
		failureCounts: make(map[string]int64),
		startTime:     time.Now(),
		consumer:      consumer,
		logger:        slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// envelope carries just the discriminator so an event can be routed to the
// right decoder.
type envelope struct {
	Type EventType `json:"type"`
}

func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		env, err := kafka.DecodeJSON[envelope](value)
		if err != nil {
			agg.logger.Error("failed to decode usage event", "error", err)
			return nil
		}
		switch env.Type {
		case EventViewSaved, EventViewDeleted:
			event, err := kafka.DecodeJSON[ViewEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode view event", "error", err)
				return nil
			}
			agg.recordViewEvent(event)
		case EventCacheHit, EventComputed, EventFetchError:
			event, err := kafka.DecodeJSON[StructureEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode structure event", "error", err)
				return nil
			}
			agg.recordStructureEvent(event)
		default:
			agg.logger.Warn("unknown usage event type", "type", string(env.Type))
		}
		return nil
	}
}

func (a *Aggregator) recordStructureEvent(event StructureEvent) {
	a.totalRequests.Add(1)

	switch event.Type {
	case EventCacheHit:
		a.cacheHits.Add(1)
	case EventComputed:
		a.computed.Add(1)
		a.totalBonds.Add(int64(event.BondCount))
		a.artifactBytes.Add(int64(event.ArtifactBytes))
	case EventFetchError:
		a.fetchErrors.Add(1)
	}

	a.mu.Lock()
	a.requestCounts[event.StructureID]++
	if event.Type == EventComputed {
		a.computeMs = append(a.computeMs, event.LatencyMs)
	}
	if event.Type == EventFetchError {
		a.failureCounts[event.StructureID]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordViewEvent(event ViewEvent) {
	switch event.Type {
	case EventViewSaved:
		a.viewsSaved.Add(1)
	case EventViewDeleted:
		a.viewsDeleted.Add(1)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRequests: a.totalRequests.Load(),
		CacheHits:     a.cacheHits.Load(),
		Computed:      a.computed.Load(),
		FetchErrors:   a.fetchErrors.Load(),
		ViewsSaved:    a.viewsSaved.Load(),
		ViewsDeleted:  a.viewsDeleted.Load(),
		TotalBonds:    a.totalBonds.Load(),
		ArtifactBytes: a.artifactBytes.Load(),
	}
	if stats.TotalRequests > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalRequests)
	}
	if len(a.computeMs) > 0 {
		sorted := make([]int64, len(a.computeMs))
		copy(sorted, a.computeMs)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgComputeMs = float64(sum) / float64(len(sorted))
		stats.P50ComputeMs = percentile(sorted, 50)
		stats.P95ComputeMs = percentile(sorted, 95)
		stats.P99ComputeMs = percentile(sorted, 99)
	}
	stats.TopStructures = topN(a.requestCounts, 10)
	stats.FailedStructures = topN(a.failureCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []StructureCount {
	result := make([]StructureCount, 0, len(counts))
	for id, count := range counts {
		result = append(result, StructureCount{StructureID: id, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].StructureID < result[j].StructureID
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
