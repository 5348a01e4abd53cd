package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/gatekeep/internal/cron"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds   float64          `json:"uptime_seconds"`
	Modules         []string         `json:"modules"`
	Jobs            []cron.EntryInfo `json:"jobs"`
	PendingTimers   int              `json:"pending_timers"`
	PendingVerifies int              `json:"pending_verifications"`
	QueuedUpdates   int              `json:"queued_updates"`
	BusyWorkers     int              `json:"busy_workers"`
	Metrics         MetricsSnapshot  `json:"metrics"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Modules:       []string{},
			Jobs:          []cron.EntryInfo{},
			Metrics:       g.metrics.Snapshot(),
		}
		for _, info := range registeredModules() {
			resp.Modules = append(resp.Modules, info.ID)
		}
		if g.jobs != nil {
			resp.Jobs = g.jobs.Entries()
			resp.PendingTimers = g.jobs.PendingOnce()
		}
		if g.waitlist != nil {
			resp.PendingVerifies = g.waitlist.Len()
		}
		if g.queue != nil {
			resp.QueuedUpdates = g.queue.Pending()
			resp.BusyWorkers = g.queue.Busy()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
