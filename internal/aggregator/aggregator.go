// Package aggregator implements the time-bucketed streaming aggregator
// that is the core of depviz: a thread-safe, bounded-retention structure
// that consumes batches of spans, maintains per-bucket edge and node
// statistics, enforces a sliding retention window, and produces
// aggregated snapshots over arbitrary sub-windows.
package aggregator

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultWindowSeconds is the bucket width used when Config.WindowSeconds is unset.
	DefaultWindowSeconds = 10
	// DefaultRetentionBuckets keeps roughly one hour of history at the default window width.
	DefaultRetentionBuckets = 360
	// DefaultSnapshotWindowSeconds is the conventional snapshot look-back window.
	// GetSnapshot does not apply it: window_sec <= 0 yields an empty snapshot.
	DefaultSnapshotWindowSeconds = 60
)

// Config controls the aggregator's bucket width and retention horizon.
// Zero values are replaced by the documented defaults in New.
type Config struct {
	WindowSeconds int
	// RetentionBuckets is the maximum number of simultaneously resident buckets.
	RetentionBuckets int
	// MaxSamplesPerBucket caps len(durations) per edge per bucket via reservoir
	// sampling. Zero (the default) retains every sample, matching the reference
	// aggregator; a positive value trades exact p95 for bounded memory.
	MaxSamplesPerBucket int
}

// Aggregator is the single stateful component of depviz. All exported
// methods are safe for concurrent use.
type Aggregator struct {
	windowNs            uint64
	retentionBuckets    int
	maxSamplesPerBucket int

	mtx           sync.RWMutex
	buckets       map[int64]*bucket
	activeBuckets []int64 // sorted ascending

	metrics *metrics
}

// New constructs an Aggregator with the given configuration, substituting
// DefaultWindowSeconds/DefaultRetentionBuckets for zero values.
func New(cfg Config) *Aggregator {
	windowSec := cfg.WindowSeconds
	if windowSec <= 0 {
		windowSec = DefaultWindowSeconds
	}
	retention := cfg.RetentionBuckets
	if retention <= 0 {
		retention = DefaultRetentionBuckets
	}

	return &Aggregator{
		windowNs:            uint64(windowSec) * uint64(time.Second),
		retentionBuckets:    retention,
		maxSamplesPerBucket: cfg.MaxSamplesPerBucket,
		buckets:             make(map[int64]*bucket),
		metrics:             newMetrics(),
	}
}

func (a *Aggregator) bucketID(endTimeNs uint64) int64 {
	return int64(endTimeNs / a.windowNs)
}

// Ingest commits a batch of spans, typically sharing a trace, to the
// aggregator's bucketed statistics. It returns only after every span in
// the batch has been applied. Parent resolution is scoped to this batch
// only: parents arriving in a later call never produce an edge. No
// cross-batch span cache is kept.
func (a *Aggregator) Ingest(spans []SpanEvent) {
	if len(spans) == 0 {
		return
	}

	// Build span_id -> service_name restricted to this batch.
	spanService := make(map[string]string, len(spans))
	for _, s := range spans {
		spanService[s.SpanID] = s.ServiceName
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()

	for _, s := range spans {
		id := a.bucketID(s.EndTimeUnixNs)
		b := a.getOrCreateBucketLocked(id)

		node := b.nodes[s.ServiceName]
		if node == nil {
			node = &NodeStats{}
			b.nodes[s.ServiceName] = node
		}
		node.CallCount++
		if s.IsError {
			node.ErrorCount++
		}
		if s.Kind.isServerBound() {
			node.ServerCallCount++
			if s.IsError {
				node.ServerErrorCount++
			}
		}

		if s.ParentSpanID == "" {
			continue
		}
		parentSvc, ok := spanService[s.ParentSpanID]
		if !ok || parentSvc == s.ServiceName {
			continue
		}

		key := EdgeKey{ParentService: parentSvc, ChildService: s.ServiceName}
		edge := b.edges[key]
		if edge == nil {
			edge = &EdgeStats{}
			b.edges[key] = edge
		}
		edge.CallCount++
		edge.Durations = appendSample(edge.Durations, s.DurationMs, edge.CallCount, a.maxSamplesPerBucket)
		if s.IsError {
			edge.ErrorCount++
		}
	}

	a.metrics.spansIngested.Add(float64(len(spans)))
	a.evictLocked()
}

// getOrCreateBucketLocked returns the bucket for id, creating it (and
// inserting id into activeBuckets at its sorted position) on first write.
// Callers must hold a.mtx for writing.
func (a *Aggregator) getOrCreateBucketLocked(id int64) *bucket {
	if b, ok := a.buckets[id]; ok {
		return b
	}

	b := newBucket()
	a.buckets[id] = b

	i := sort.Search(len(a.activeBuckets), func(i int) bool { return a.activeBuckets[i] >= id })
	a.activeBuckets = append(a.activeBuckets, 0)
	copy(a.activeBuckets[i+1:], a.activeBuckets[i:])
	a.activeBuckets[i] = id

	return b
}

// evictLocked drops the oldest resident buckets until len(activeBuckets)
// <= retentionBuckets, then updates the active-bucket gauge. Callers must
// hold a.mtx for writing.
func (a *Aggregator) evictLocked() {
	excess := len(a.activeBuckets) - a.retentionBuckets
	if excess > 0 {
		for _, id := range a.activeBuckets[:excess] {
			delete(a.buckets, id)
		}
		a.activeBuckets = a.activeBuckets[excess:]
		a.metrics.bucketsEvicted.Add(float64(excess))
	}
	a.metrics.activeBuckets.Set(float64(len(a.activeBuckets)))
}

// nowFunc is overridable in tests so GetSnapshot's window math is deterministic.
var nowFunc = func() uint64 { return uint64(time.Now().UnixNano()) }

// GetSnapshot returns the merged node/edge statistics over the trailing
// windowSec seconds, projected into the Snapshot wire format. windowSec
// <= 0 is treated as an empty window.
func (a *Aggregator) GetSnapshot(windowSec int) Snapshot {
	var startBucket int64
	if windowSec <= 0 {
		startBucket = int64(^uint64(0) >> 1) // max int64: nothing qualifies
	} else {
		nowNs := nowFunc()
		lookbackNs := uint64(windowSec) * uint64(time.Second)
		var startNs uint64
		if lookbackNs < nowNs {
			startNs = nowNs - lookbackNs
		}
		startBucket = a.bucketID(startNs)
	}

	nodesCombined := make(map[string]*NodeStats)
	edgesCombined := make(map[EdgeKey]*EdgeStats)

	a.mtx.RLock()
	for _, id := range a.activeBuckets {
		if id < startBucket {
			continue
		}
		b := a.buckets[id]
		for key, stats := range b.edges {
			combined := edgesCombined[key]
			if combined == nil {
				combined = &EdgeStats{}
				edgesCombined[key] = combined
			}
			combined.merge(stats)
		}
		for name, stats := range b.nodes {
			combined := nodesCombined[name]
			if combined == nil {
				combined = &NodeStats{}
				nodesCombined[name] = combined
			}
			combined.merge(stats)
		}
	}
	a.mtx.RUnlock()

	return project(nodesCombined, edgesCombined)
}

// project turns merged accumulators into the sorted, rounded wire format.
// It does no locking and must run outside the aggregator's mutex.
func project(nodes map[string]*NodeStats, edges map[EdgeKey]*EdgeStats) Snapshot {
	resultNodes := make([]NodeSnapshot, 0, len(nodes))
	for name, stats := range nodes {
		if name == "" {
			continue
		}
		callCount, errorCount := stats.CallCount, stats.ErrorCount
		if stats.ServerCallCount > 0 {
			callCount, errorCount = stats.ServerCallCount, stats.ServerErrorCount
		}
		resultNodes = append(resultNodes, NodeSnapshot{
			Name:       name,
			CallCount:  callCount,
			ErrorCount: errorCount,
		})
	}
	sort.Slice(resultNodes, func(i, j int) bool { return resultNodes[i].Name < resultNodes[j].Name })

	resultEdges := make([]EdgeSnapshot, 0, len(edges))
	for key, stats := range edges {
		if key.ParentService == "" || key.ChildService == "" {
			continue
		}
		resultEdges = append(resultEdges, EdgeSnapshot{
			Src:        key.ParentService,
			Dst:        key.ChildService,
			CallCount:  stats.CallCount,
			P95Ms:      roundTo2dp(p95(stats.Durations)),
			ErrorCount: stats.ErrorCount,
		})
	}

	if resultNodes == nil {
		resultNodes = []NodeSnapshot{}
	}
	if resultEdges == nil {
		resultEdges = []EdgeSnapshot{}
	}
	return Snapshot{Nodes: resultNodes, Edges: resultEdges}
}

// p95 returns the 95th-percentile value over samples: sort ascending,
// index min(floor(n*0.95), n-1). It does not mutate samples. GetSnapshot
// passes the concatenated samples of every bucket in the window, so the
// result is a mixed-sample p95, not a time-weighted quantile.
func p95(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	idx := int(float64(n) * 0.95)
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

func roundTo2dp(v float64) float64 {
	const scale = 100
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
