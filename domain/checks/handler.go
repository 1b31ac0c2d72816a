package checks

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reactome/release-qa-sub001/pkg/apperror"
)

// Handler serves the check API.
type Handler struct {
	svc *Service
}

// NewHandler creates a new checks handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RunSummary is the compact view of a run.
type RunSummary struct {
	ID        string         `json:"id"`
	StartedAt string         `json:"startedAt"`
	Anomalies int            `json:"anomalies"`
	Failed    []string       `json:"failed"`
	Checks    map[string]int `json:"checks"`
}

func summarize(run *Run) RunSummary {
	s := RunSummary{
		ID:        run.ID.String(),
		StartedAt: run.StartedAt.Format("2006-01-02T15:04:05Z"),
		Anomalies: run.Anomalies(),
		Failed:    run.Failed(),
		Checks:    make(map[string]int, len(run.Results)),
	}
	if s.Failed == nil {
		s.Failed = []string{}
	}
	for _, r := range run.Results {
		s.Checks[r.Check] = r.Report.Len()
	}
	return s
}

// ListChecks returns the configured checks.
func (h *Handler) ListChecks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Entries())
}

// Trigger runs the suite synchronously and returns the run summary.
func (h *Handler) Trigger(c echo.Context) error {
	// a client disconnect must not abort the run
	run, err := h.svc.Execute(context.WithoutCancel(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarize(run))
}

// Latest returns the latest run in full, or its summary with ?summary=true.
func (h *Handler) Latest(c echo.Context) error {
	run, err := h.svc.Latest()
	if err != nil {
		return err
	}
	if c.QueryParam("summary") == "true" {
		return c.JSON(http.StatusOK, summarize(run))
	}
	return c.JSON(http.StatusOK, run)
}

// LatestCheck returns one check's result from the latest run.
func (h *Handler) LatestCheck(c echo.Context) error {
	run, err := h.svc.Latest()
	if err != nil {
		return err
	}
	res, ok := run.Result(c.Param("check"))
	if !ok {
		return apperror.ErrCheckNotFound
	}
	return c.JSON(http.StatusOK, res)
}
