package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snarg/sherpa-serve/internal/config"
)

func TestHealthDegradedWithoutModel(t *testing.T) {
	cfg := &config.Config{ModelDir: t.TempDir(), FFmpegBin: "ffmpeg"}
	h := NewHealthHandler(cfg, nil, nil, nil, "test", time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Checks["model"] == "ok" {
		t.Error("model check should fail for an empty model dir")
	}
	if resp.Version != "test" {
		t.Errorf("Version = %q", resp.Version)
	}
}

func TestHealthReportsMQTTState(t *testing.T) {
	cfg := &config.Config{ModelDir: t.TempDir(), FFmpegBin: "ffmpeg"}
	h := NewHealthHandler(cfg, nil, nil, func() bool { return false }, "test", time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Checks["mqtt"] != "disconnected" {
		t.Errorf("mqtt check = %q, want disconnected", resp.Checks["mqtt"])
	}
}
