package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/log/level"
)

// writeJSONResponse writes data as a JSON response body, logging (but not
// surfacing to the client, since headers are already flushed) any
// encoding failure.
func (h *Handler) writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		level.Error(h.logger).Log("msg", "failed to encode JSON response", "err", err)
	}
}
