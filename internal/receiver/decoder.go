package receiver

import (
	"encoding/hex"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/williewheeler/depviz/internal/aggregator"
)

const serviceNameAttrKey = "service.name"
const unknownServiceName = "unknown"

// DecodeResourceSpans flattens an OTLP ExportTraceServiceRequest's tree of
// ResourceSpans -> ScopeSpans -> Span into depviz's internal SpanEvent
// representation, preserving every span across every resource into one
// flat batch.
func DecodeResourceSpans(resourceSpans []*tracepb.ResourceSpans) []aggregator.SpanEvent {
	var events []aggregator.SpanEvent

	for _, rs := range resourceSpans {
		svc := resourceServiceName(rs.GetResource().GetAttributes())

		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				events = append(events, decodeSpan(svc, span))
			}
		}
	}

	return events
}

func resourceServiceName(attrs []*commonpb.KeyValue) string {
	for _, attr := range attrs {
		if attr.GetKey() != serviceNameAttrKey {
			continue
		}
		if s := attr.GetValue().GetStringValue(); s != "" {
			return s
		}
		return unknownServiceName
	}
	return unknownServiceName
}

func decodeSpan(serviceName string, span *tracepb.Span) aggregator.SpanEvent {
	durationMs := float64(span.GetEndTimeUnixNano()-span.GetStartTimeUnixNano()) / 1_000_000

	return aggregator.SpanEvent{
		TraceID:       hexBytes(span.GetTraceId()),
		SpanID:        hexBytes(span.GetSpanId()),
		ParentSpanID:  hexBytes(span.GetParentSpanId()),
		ServiceName:   serviceName,
		DurationMs:    durationMs,
		EndTimeUnixNs: span.GetEndTimeUnixNano(),
		Kind:          aggregator.SpanKind(span.GetKind()),
		IsError:       span.GetStatus().GetCode() == tracepb.Status_STATUS_CODE_ERROR,
	}
}

// hexBytes returns the canonical hex encoding of b, or the empty string
// for an empty/nil byte string, so a root span's absent parent id decodes
// to "" rather than a string of zero bytes.
func hexBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}
