package aggregator

// SpanEvent is the internal, decoder-agnostic representation of one OTLP
// span. Values are immutable once constructed; SpanEvents are transient,
// consumed during Ingest and never retained by the aggregator.
type SpanEvent struct {
	TraceID       string
	SpanID        string
	ParentSpanID  string // empty when the span has no parent
	ServiceName   string
	DurationMs    float64
	EndTimeUnixNs uint64
	Kind          SpanKind
	IsError       bool
}

// SpanKind mirrors the OTLP span kind enum.
type SpanKind int32

const (
	SpanKindUnspecified SpanKind = 0
	SpanKindInternal    SpanKind = 1
	SpanKindServer      SpanKind = 2
	SpanKindClient      SpanKind = 3
	SpanKindProducer    SpanKind = 4
	SpanKindConsumer    SpanKind = 5
)

// isServerBound reports whether the span represents inbound work at a
// service boundary (request received or message consumed).
func (k SpanKind) isServerBound() bool {
	return k == SpanKindServer || k == SpanKindConsumer
}

// EdgeKey identifies a directed, cross-service call edge observed in one or
// more traces. Two EdgeKeys are equal iff both fields match exactly.
type EdgeKey struct {
	ParentService string
	ChildService  string
}

// EdgeStats accumulates call/error counts and latency samples for one edge
// within a single bucket.
type EdgeStats struct {
	CallCount  uint64
	ErrorCount uint64
	Durations  []float64
}

func (s *EdgeStats) merge(other *EdgeStats) {
	s.CallCount += other.CallCount
	s.ErrorCount += other.ErrorCount
	s.Durations = append(s.Durations, other.Durations...)
}

// NodeStats accumulates call/error counts for one service within a single
// bucket. ServerCallCount/ServerErrorCount count only spans whose kind is
// SERVER or CONSUMER.
type NodeStats struct {
	CallCount        uint64
	ErrorCount       uint64
	ServerCallCount  uint64
	ServerErrorCount uint64
}

func (s *NodeStats) merge(other *NodeStats) {
	s.CallCount += other.CallCount
	s.ErrorCount += other.ErrorCount
	s.ServerCallCount += other.ServerCallCount
	s.ServerErrorCount += other.ServerErrorCount
}

// bucket owns the edge and node tables for one window_ns-wide interval of
// end-time. A bucket is created on first write and destroyed in bulk by
// eviction; it is never resurrected.
type bucket struct {
	edges map[EdgeKey]*EdgeStats
	nodes map[string]*NodeStats
}

func newBucket() *bucket {
	return &bucket{
		edges: make(map[EdgeKey]*EdgeStats),
		nodes: make(map[string]*NodeStats),
	}
}

// Snapshot is the wire-format projection of merged node/edge statistics
// over a contiguous sub-window.
type Snapshot struct {
	Nodes []NodeSnapshot `json:"nodes"`
	Edges []EdgeSnapshot `json:"edges"`
}

// NodeSnapshot is one row of the node projection of a Snapshot.
type NodeSnapshot struct {
	Name       string `json:"name"`
	CallCount  uint64 `json:"call_count"`
	ErrorCount uint64 `json:"error_count"`
}

// EdgeSnapshot is one row of the edge projection of a Snapshot.
type EdgeSnapshot struct {
	Src        string  `json:"src"`
	Dst        string  `json:"dst"`
	CallCount  uint64  `json:"call_count"`
	P95Ms      float64 `json:"p95_ms"`
	ErrorCount uint64  `json:"error_count"`
}
