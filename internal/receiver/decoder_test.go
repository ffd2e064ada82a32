package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/williewheeler/depviz/internal/aggregator"
)

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func TestDecodeResourceSpans_ServiceNameAndFields(t *testing.T) {
	rs := []*tracepb.ResourceSpans{
		{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{stringAttr("service.name", "checkout")},
			},
			ScopeSpans: []*tracepb.ScopeSpans{
				{
					Spans: []*tracepb.Span{
						{
							TraceId:           []byte{0x01, 0x02},
							SpanId:            []byte{0x03, 0x04},
							ParentSpanId:      []byte{0x05, 0x06},
							StartTimeUnixNano: 1_000_000_000,
							EndTimeUnixNano:   1_000_050_000,
							Kind:              tracepb.Span_SPAN_KIND_SERVER,
							Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_ERROR},
						},
					},
				},
			},
		},
	}

	events := DecodeResourceSpans(rs)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "0102", e.TraceID)
	assert.Equal(t, "0304", e.SpanID)
	assert.Equal(t, "0506", e.ParentSpanID)
	assert.Equal(t, "checkout", e.ServiceName)
	assert.Equal(t, 0.05, e.DurationMs)
	assert.Equal(t, uint64(1_000_050_000), e.EndTimeUnixNs)
	assert.Equal(t, aggregator.SpanKindServer, e.Kind)
	assert.True(t, e.IsError)
}

func TestDecodeResourceSpans_MissingServiceNameDefaultsUnknown(t *testing.T) {
	rs := []*tracepb.ResourceSpans{
		{
			Resource: &resourcepb.Resource{},
			ScopeSpans: []*tracepb.ScopeSpans{
				{Spans: []*tracepb.Span{{SpanId: []byte{0x01}}}},
			},
		},
	}

	events := DecodeResourceSpans(rs)
	require.Len(t, events, 1)
	assert.Equal(t, "unknown", events[0].ServiceName)
}

func TestDecodeResourceSpans_NoParentSpanIsEmptyString(t *testing.T) {
	rs := []*tracepb.ResourceSpans{
		{
			ScopeSpans: []*tracepb.ScopeSpans{
				{Spans: []*tracepb.Span{{SpanId: []byte{0x01}}}},
			},
		},
	}

	events := DecodeResourceSpans(rs)
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].ParentSpanID)
}

func TestDecodeResourceSpans_FlattensMultipleResourcesAndScopes(t *testing.T) {
	rs := []*tracepb.ResourceSpans{
		{
			Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{stringAttr("service.name", "a")}},
			ScopeSpans: []*tracepb.ScopeSpans{
				{Spans: []*tracepb.Span{{SpanId: []byte{0x01}}, {SpanId: []byte{0x02}}}},
			},
		},
		{
			Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{stringAttr("service.name", "b")}},
			ScopeSpans: []*tracepb.ScopeSpans{
				{Spans: []*tracepb.Span{{SpanId: []byte{0x03}}}},
				{Spans: []*tracepb.Span{{SpanId: []byte{0x04}}}},
			},
		},
	}

	events := DecodeResourceSpans(rs)
	require.Len(t, events, 4)
	assert.Equal(t, "a", events[0].ServiceName)
	assert.Equal(t, "a", events[1].ServiceName)
	assert.Equal(t, "b", events[2].ServiceName)
	assert.Equal(t, "b", events[3].ServiceName)
}

func TestDecodeResourceSpans_EmptyInputYieldsNoEvents(t *testing.T) {
	assert.Empty(t, DecodeResourceSpans(nil))
}
