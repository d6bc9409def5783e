package api

import (
	"net/http"

	"github.com/plutus/webengage-pipeline/internal/inbox"
)

// InboxHandler exposes API endpoints for the S3 export inbox.
type InboxHandler struct {
	watcher *inbox.Watcher
}

func NewInboxHandler(watcher *inbox.Watcher) *InboxHandler {
	return &InboxHandler{watcher: watcher}
}

// HandleTrigger queues a manual sweep of the inbox bucket.
func (h *InboxHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if h.watcher == nil {
		respondError(w, http.StatusServiceUnavailable, "inbox not initialized")
		return
	}
	if h.watcher.IsRunning() {
		respondJSON(w, http.StatusOK, map[string]string{"status": "already_running"})
		return
	}
	h.watcher.ManualTrigger()
	respondJSON(w, http.StatusOK, map[string]string{"status": "triggered"})
}

// HandleStatus returns health and run state of the inbox watcher.
func (h *InboxHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"initialized": h.watcher != nil,
	}
	if h.watcher != nil {
		status["healthy"] = h.watcher.IsHealthy()
		status["running"] = h.watcher.IsRunning()
		if lastRun := h.watcher.LastRunAt(); !lastRun.IsZero() {
			status["last_run_at"] = lastRun
		}
	}
	respondJSON(w, http.StatusOK, status)
}
