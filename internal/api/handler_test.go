package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyHandler_ReportsReady(t *testing.T) {
	h := NewHandler(&fakeSnapshotter{}, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.ReadyHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestRegisterRoutes_WiresExpectedPaths(t *testing.T) {
	h := NewHandler(&fakeSnapshotter{}, log.NewNopLogger())
	router := mux.NewRouter()
	h.RegisterRoutes(router, prometheus.NewRegistry())

	srv := httptest.NewServer(router)
	defer srv.Close()

	for _, path := range []string{"/graph", "/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}
