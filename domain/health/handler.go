// Package health serves liveness, readiness and service status.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/domain/scheduler"
	"github.com/reactome/release-qa-sub001/internal/version"
)

// Pinger reports database reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	db        Pinger
	checks    *checks.Service
	scheduler *scheduler.Scheduler
	startAt   time.Time
}

// NewHandler creates a health handler. db and sched may be nil.
func NewHandler(db Pinger, svc *checks.Service, sched *scheduler.Scheduler) *Handler {
	return &Handler{
		db:        db,
		checks:    svc,
		scheduler: sched,
		startAt:   time.Now(),
	}
}

// Response is the /health body.
type Response struct {
	Status    string               `json:"status"`
	Timestamp string               `json:"timestamp"`
	Uptime    string               `json:"uptime"`
	Version   version.Info         `json:"version"`
	Checks    map[string]Component `json:"checks"`
	Schedule  []scheduler.TaskInfo `json:"schedule,omitempty"`
}

// Component is one dependency's status.
type Component struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health reports database reachability and the latest run.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Version:   version.Current(),
		Checks:    map[string]Component{},
	}

	if h.db != nil {
		db := Component{Status: "healthy"}
		if err := h.db.Ping(ctx); err != nil {
			db = Component{Status: "unhealthy", Message: err.Error()}
			resp.Status = "unhealthy"
		}
		resp.Checks["database"] = db
	}

	if h.checks != nil {
		run := Component{Status: "pending", Message: "no run yet"}
		if latest, err := h.checks.Latest(); err == nil {
			run = Component{Status: "completed", Message: latest.FinishedAt.Format(time.RFC3339)}
		}
		resp.Checks["lastRun"] = run
	}

	if h.scheduler != nil {
		resp.Schedule = h.scheduler.GetTaskInfo()
	}

	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready is the readiness probe; it fails while the database is unreachable.
func (h *Handler) Ready(c echo.Context) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":  "not_ready",
				"message": "Database connection failed",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready"})
}
