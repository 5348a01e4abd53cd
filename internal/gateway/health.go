package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status          string  `json:"status"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	PendingVerifies int     `json:"pending_verifications"`
	QueuedUpdates   int     `json:"queued_updates"`
}

// handleHealth returns an http.HandlerFunc for GET /health. It always
// answers 200 once the server is up.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:        "ok",
			UptimeSeconds: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		}
		if g.waitlist != nil {
			resp.PendingVerifies = g.waitlist.Len()
		}
		if g.queue != nil {
			resp.QueuedUpdates = g.queue.Pending()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
