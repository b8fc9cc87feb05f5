package api

import (
	"context"
	"net/http"
	"time"

	"github.com/snarg/sherpa-serve/internal/config"
	"github.com/snarg/sherpa-serve/internal/engine"
	"github.com/snarg/sherpa-serve/internal/job"
	"github.com/snarg/sherpa-serve/internal/model"
	"github.com/snarg/sherpa-serve/internal/store"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Queue         *job.Stats        `json:"queue,omitempty"`
}

// HealthHandler reports liveness plus per-dependency checks: job history
// database, model artifacts, ffmpeg, and broker connectivity.
type HealthHandler struct {
	cfg           *config.Config
	history       *store.Store
	pool          *job.Pool
	mqttConnected func() bool
	version       string
	startTime     time.Time
}

func NewHealthHandler(cfg *config.Config, history *store.Store, pool *job.Pool, mqttConnected func() bool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		cfg:           cfg,
		history:       history,
		pool:          pool,
		mqttConnected: mqttConnected,
		version:       version,
		startTime:     startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "ok"
	degrade := func(name, detail string) {
		checks[name] = detail
		status = "degraded"
	}

	if h.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.history.HealthCheck(ctx); err != nil {
			degrade("history", err.Error())
		} else {
			checks["history"] = "ok"
		}
		cancel()
	}

	if _, err := model.Resolve(h.cfg.ModelDir); err != nil {
		degrade("model", err.Error())
	} else {
		checks["model"] = "ok"
	}

	if engine.CheckFFmpeg(h.cfg.FFmpegBin) {
		checks["ffmpeg"] = "ok"
	} else {
		degrade("ffmpeg", "not found in PATH")
	}

	if h.mqttConnected != nil {
		if h.mqttConnected() {
			checks["mqtt"] = "ok"
		} else {
			degrade("mqtt", "disconnected")
		}
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Queue = &stats
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, resp)
}
