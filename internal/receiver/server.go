// Package receiver implements the OTLP trace-ingest front end: it decodes
// ExportTraceServiceRequest batches into aggregator.SpanEvent and hands
// them to a single shared Aggregator.
package receiver

import (
	"context"
	"net"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"

	"github.com/williewheeler/depviz/internal/aggregator"
)

// DefaultWorkers is the size of the bounded worker pool serving concurrent
// Export RPCs.
const DefaultWorkers = 10

// Ingester is the write-path dependency the receiver hands decoded batches
// to. aggregator.Aggregator satisfies it.
type Ingester interface {
	Ingest(spans []aggregator.SpanEvent)
}

// Server implements the OTLP TraceService.Export RPC. Ingestion is
// best-effort: malformed spans are tolerated by the decoder/aggregator
// and no error is ever surfaced to the caller.
type Server struct {
	coltracepb.UnimplementedTraceServiceServer

	ingester Ingester
	logger   log.Logger
	sem      chan struct{} // bounds concurrent Export handling to `workers`

	spansAccepted prometheus.Counter
}

// NewServer constructs a Server bounded to the given number of concurrent
// Export handlers. workers <= 0 uses DefaultWorkers.
func NewServer(ingester Ingester, logger log.Logger, workers int) *Server {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Server{
		ingester: ingester,
		logger:   logger,
		sem:      make(chan struct{}, workers),
		spansAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depviz",
			Subsystem: "receiver",
			Name:      "spans_accepted_total",
			Help:      "Total number of spans decoded from accepted Export RPCs.",
		}),
	}
}

// Collectors returns the receiver's metrics for registration against a
// prometheus.Registerer.
func (s *Server) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.spansAccepted}
}

// Register attaches the OTLP TraceService to a gRPC server.
func (s *Server) Register(grpcServer *grpc.Server) {
	coltracepb.RegisterTraceServiceServer(grpcServer, s)
}

// Export decodes the request's spans and ingests them. It never returns an
// error to the caller: ingestion is best-effort telemetry, and a failure
// here should not cause the exporting agent to retry or drop data.
func (s *Server) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return &coltracepb.ExportTraceServiceResponse{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			level.Error(s.logger).Log("msg", "panic while ingesting export batch", "panic", r)
		}
	}()

	spans := DecodeResourceSpans(req.GetResourceSpans())
	if len(spans) > 0 {
		s.ingester.Ingest(spans)
		s.spansAccepted.Add(float64(len(spans)))
	}

	return &coltracepb.ExportTraceServiceResponse{}, nil
}

// Serve starts a gRPC server bound to addr (e.g. "[::]:4317") hosting this
// receiver, blocking until ctx is canceled. It returns nil after a graceful
// stop on cancellation, or the listen or serve error if one occurs first.
func Serve(ctx context.Context, addr string, srv *Server, logger log.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	srv.Register(grpcServer)

	errCh := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "OTLP gRPC receiver listening", "addr", addr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		grpcServer.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
