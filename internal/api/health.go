package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	ActiveJobs    int               `json:"active_jobs"`
	ReadyModels   int               `json:"ready_models"`
}

// HealthChecker is a dependency that can be pinged.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports a long-lived connection's state.
type ConnectionStatus interface {
	IsConnected() bool
}

type HealthHandler struct {
	caps      CapabilityReporter
	jobs      Transcriber
	models    ModelLister
	db        HealthChecker
	mqtt      ConnectionStatus
	version   string
	startTime time.Time
}

// NewHealthHandler builds the health endpoint. db and mqtt may be nil when
// the corresponding backend is not configured.
func NewHealthHandler(opts ServerOptions) *HealthHandler {
	return &HealthHandler{
		caps:      opts.Engine,
		jobs:      opts.Jobs,
		models:    opts.Models,
		db:        opts.Database,
		mqtt:      opts.MQTT,
		version:   opts.Version,
		startTime: opts.StartTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Engine check. Without an engine existing artifacts are still served.
	caps := h.caps.Capabilities()
	if caps.Available() {
		checks["engine"] = "ok"
	} else {
		checks["engine"] = "unavailable"
		status = "degraded"
	}
	checks["acceleration"] = string(caps.Device())
	if caps.ConverterPath != "" {
		checks["converter"] = "ok"
	} else {
		checks["converter"] = "not_found"
	}

	// Media library database check
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		ActiveJobs:    h.jobs.ActiveJobs(),
		ReadyModels:   h.models.ReadyModels(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
