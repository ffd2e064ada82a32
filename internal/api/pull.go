package api

import (
	"net/http"
	"strconv"
)

// DefaultWindowSeconds is substituted whenever window_sec is absent or
// non-positive.
const DefaultWindowSeconds = 60

// PullHandler serves GET /graph: a single request/response snapshot over
// the trailing window_sec seconds.
func (h *Handler) PullHandler(w http.ResponseWriter, r *http.Request) {
	windowSec := parseWindowSec(r.URL.Query().Get("window_sec"))
	snapshot := h.agg.GetSnapshot(windowSec)
	h.writeJSONResponse(w, snapshot)
}

// parseWindowSec parses raw as an integer window_sec, substituting
// DefaultWindowSeconds when raw is empty, malformed, or non-positive.
func parseWindowSec(raw string) int {
	if raw == "" {
		return DefaultWindowSeconds
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return DefaultWindowSeconds
	}
	return v
}
