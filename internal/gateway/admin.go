package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/flemzord/gatekeep/internal/config"
	"github.com/flemzord/gatekeep/internal/core"
	"github.com/flemzord/gatekeep/internal/cron"
)

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func registeredModules() []moduleJSON {
	mods := core.GetModules()
	out := make([]moduleJSON, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleJSON{
			ID:        string(m.ID),
			Namespace: m.ID.Namespace(),
			Name:      m.ID.Name(),
		})
	}
	return out
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, registeredModules())
	}
}

// handleListJobs lists the scheduler entries, including pending
// verification timers.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		entries := []cron.EntryInfo{}
		if g.jobs != nil {
			entries = g.jobs.Entries()
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// handleGetConfig returns the config file currently on disk with secrets
// redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configPath == "" {
			http.Error(w, "config path not set", http.StatusServiceUnavailable)
			return
		}

		cfg, err := config.Load(g.configPath)
		if err != nil {
			http.Error(w, "failed to load config", http.StatusInternalServerError)
			return
		}

		generic, err := config.ToMap(cfg)
		if err != nil {
			http.Error(w, "failed to serialize config", http.StatusInternalServerError)
			return
		}

		g.redactor.RedactMap(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}

// handleReloadConfig applies the configuration file to the running modules.
func (g *Gateway) handleReloadConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.reloader == nil {
			http.Error(w, "reload not available", http.StatusServiceUnavailable)
			return
		}
		if err := g.reloader.Reload(r.Context()); err != nil {
			g.logger.Error("config reload via API failed", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
