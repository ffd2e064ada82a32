package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williewheeler/depviz/internal/aggregator"
)

type fakeSnapshotter struct {
	lastWindowSec int
	snapshot      aggregator.Snapshot
}

func (f *fakeSnapshotter) GetSnapshot(windowSec int) aggregator.Snapshot {
	f.lastWindowSec = windowSec
	return f.snapshot
}

func TestPullHandler_DefaultsWindowSecTo60(t *testing.T) {
	fake := &fakeSnapshotter{}
	h := NewHandler(fake, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	rec := httptest.NewRecorder()
	h.PullHandler(rec, req)

	assert.Equal(t, 60, fake.lastWindowSec)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPullHandler_UsesProvidedWindowSec(t *testing.T) {
	fake := &fakeSnapshotter{}
	h := NewHandler(fake, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/graph?window_sec=30", nil)
	rec := httptest.NewRecorder()
	h.PullHandler(rec, req)

	assert.Equal(t, 30, fake.lastWindowSec)
}

func TestPullHandler_NonPositiveWindowSecFallsBackTo60(t *testing.T) {
	fake := &fakeSnapshotter{}
	h := NewHandler(fake, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/graph?window_sec=-5", nil)
	rec := httptest.NewRecorder()
	h.PullHandler(rec, req)

	assert.Equal(t, 60, fake.lastWindowSec)
}

func TestPullHandler_MalformedWindowSecFallsBackTo60(t *testing.T) {
	fake := &fakeSnapshotter{}
	h := NewHandler(fake, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/graph?window_sec=nope", nil)
	rec := httptest.NewRecorder()
	h.PullHandler(rec, req)

	assert.Equal(t, 60, fake.lastWindowSec)
}

func TestPullHandler_WritesSnapshotAsJSON(t *testing.T) {
	fake := &fakeSnapshotter{snapshot: aggregator.Snapshot{
		Nodes: []aggregator.NodeSnapshot{{Name: "svc-a", CallCount: 3}},
		Edges: []aggregator.EdgeSnapshot{{Src: "svc-a", Dst: "svc-b", CallCount: 2, P95Ms: 12.5}},
	}}
	h := NewHandler(fake, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	rec := httptest.NewRecorder()
	h.PullHandler(rec, req)

	var got aggregator.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, fake.snapshot, got)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
