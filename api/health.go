package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/empire-ui/report-ocr-service/internal/ai"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	OCR       ServiceStatus `json:"ocr"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
	AI        AIStatus      `json:"ai"`
}

// MemoryStats is a runtime.MemStats summary
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus describes one dependency; Enabled is false when it is not configured
type ServiceStatus struct {
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AIStatus reports which text providers have credentials
type AIStatus struct {
	DefaultProvider string          `json:"defaultProvider"`
	Configured      map[string]bool `json:"configured"`
}

var startTime = time.Now()

// Health reports process stats and the state of every dependency
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Memory statistics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		OCR:      ServiceStatus{Enabled: true, Available: true, Version: h.engine.Name()},
		Database: h.checkDatabase(ctx),
		Storage:  h.checkStorage(ctx),
		AI: AIStatus{
			DefaultProvider: h.config.AI.DefaultProvider,
			Configured:      ai.Configured(h.config.AI),
		},
	}

	// Optional dependencies only degrade the service when enabled
	if (response.Database.Enabled && !response.Database.Available) ||
		(response.Storage.Enabled && !response.Storage.Available) {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkDatabase pings the report store
func (h *Handler) checkDatabase(ctx context.Context) ServiceStatus {
	if h.store == nil {
		return ServiceStatus{Error: "report store not configured"}
	}
	if err := h.store.Ping(ctx); err != nil {
		return ServiceStatus{Enabled: true, Version: h.store.Name(), Error: err.Error()}
	}
	return ServiceStatus{Enabled: true, Available: true, Version: h.store.Name()}
}

// checkStorage verifies the MinIO bucket
func (h *Handler) checkStorage(ctx context.Context) ServiceStatus {
	if h.archive == nil {
		return ServiceStatus{Error: "page archive not configured"}
	}
	if err := h.archive.Ping(ctx); err != nil {
		return ServiceStatus{Enabled: true, Version: "MinIO S3", Error: err.Error()}
	}
	return ServiceStatus{Enabled: true, Available: true, Version: "MinIO S3"}
}
