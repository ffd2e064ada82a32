package api

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"
)

// pushInterval is how often a connected session receives a fresh snapshot
// after its initial frame.
const pushInterval = 2 * time.Second

// websocketUpgrader is the shared gorilla/websocket upgrade configuration.
// Origin checking is left permissive: depviz has no session/cookie-based
// auth for the upgrade to protect.
type websocketUpgrader = websocket.Upgrader

func newUpgrader() websocketUpgrader {
	return websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
}

var windowControlPattern = regexp.MustCompile(`^window:(-?\d+)$`)

// PushHandler serves GET /ws: an upgraded WebSocket connection that pushes
// a snapshot immediately on accept, then again every pushInterval, and
// accepts "window:<integer>" control messages to change the session's
// window_sec.
func (h *Handler) PushHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Warn(h.logger).Log("msg", "websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var windowSec int64 = DefaultWindowSeconds

	done := make(chan struct{})
	go h.receiveLoop(conn, &windowSec, cancel, done)

	h.pushLoop(ctx, conn, &windowSec)
	<-done
}

// receiveLoop reads control messages until the connection errs or closes,
// then cancels the session's push loop. Malformed messages are ignored; a
// non-positive window resets the session to DefaultWindowSeconds.
func (h *Handler) receiveLoop(conn *websocket.Conn, windowSec *int64, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	defer cancel()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		m := windowControlPattern.FindSubmatch(msg)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		if v <= 0 {
			v = DefaultWindowSeconds
		}
		atomic.StoreInt64(windowSec, int64(v))
	}
}

// pushLoop sends a snapshot at the session's current window_sec right
// away, then again every pushInterval, until ctx is canceled. Sending
// immediately on accept means a freshly connected client doesn't wait out
// a full pushInterval for its first frame.
func (h *Handler) pushLoop(ctx context.Context, conn *websocket.Conn, windowSec *int64) {
	snapshot := h.agg.GetSnapshot(int(atomic.LoadInt64(windowSec)))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := h.agg.GetSnapshot(int(atomic.LoadInt64(windowSec)))
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		}
	}
}
