package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"irisapi/internal/config"
	"irisapi/internal/service"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and diagnostics.
type HealthHandler struct {
	dataService service.DataService
	cfg         *config.Config
	redis       Pinger
	started     time.Time
}

// NewHealthHandler creates a new health handler. redis may be nil.
func NewHealthHandler(dataService service.DataService, cfg *config.Config, redis Pinger) *HealthHandler {
	return &HealthHandler{dataService: dataService, cfg: cfg, redis: redis, started: time.Now()}
}

// HealthResponse is the basic health payload.
type HealthResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
	DataLoaded bool      `json:"data_loaded"`
}

// DetailedHealthResponse adds dataset, runtime and configuration details.
type DetailedHealthResponse struct {
	HealthResponse
	Data          service.DatasetStatus `json:"data"`
	System        map[string]any        `json:"system"`
	Dependencies  map[string]string     `json:"dependencies"`
	Configuration map[string]any        `json:"configuration"`
}

// Health godoc
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.basic())
}

// Detailed godoc
// @Summary Detailed health with dataset state
// @Tags health
// @Produce json
// @Success 200 {object} DetailedHealthResponse
// @Router /health/detailed [get]
func (h *HealthHandler) Detailed(c echo.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	deps := map[string]string{"redis": "disabled"}
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			deps["redis"] = "unavailable"
		} else {
			deps["redis"] = "ok"
		}
	}

	return c.JSON(http.StatusOK, DetailedHealthResponse{
		HealthResponse: h.basic(),
		Data:           h.dataService.Status(),
		System: map[string]any{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"heap_alloc_mb":  float64(mem.HeapAlloc) / 1024 / 1024,
			"uptime_seconds": int64(time.Since(h.started).Seconds()),
		},
		Dependencies: deps,
		Configuration: map[string]any{
			"cors_origins":     h.cfg.CORSOrigins,
			"api_key_required": h.cfg.RequireAPIKey,
			"data_path":        h.cfg.DataPath,
		},
	})
}

func (h *HealthHandler) basic() HealthResponse {
	return HealthResponse{
		Status:     "healthy",
		Version:    h.cfg.AppVersion,
		Timestamp:  time.Now().UTC(),
		DataLoaded: h.dataService.Status().Loaded,
	}
}
