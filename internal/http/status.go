package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fuelwatch/fuel-price-watcher/internal/scheduler"
)

// StatusResponse is the response for the /status endpoint.
type StatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Scheduler     scheduler.Status `json:"scheduler"`
}

// StatusHandler handles the /status endpoint.
type StatusHandler struct {
	scheduler *scheduler.Scheduler
	startTime time.Time
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(sched *scheduler.Scheduler) *StatusHandler {
	return &StatusHandler{
		scheduler: sched,
		startTime: time.Now(),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Scheduler:     h.scheduler.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
}
