package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-dispatch/internal/api/dto"
	"github.com/spec-kit/incident-dispatch/internal/service"
)

// PerformanceHandler serves per-agent workload reports.
type PerformanceHandler struct {
	performance *service.PerformanceService
}

// NewPerformanceHandler constructs handler.
func NewPerformanceHandler(performance *service.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{performance: performance}
}

// Daily handles GET /performance/daily.
func (h *PerformanceHandler) Daily(c *fiber.Ctx) error {
	report, err := h.performance.DailyReport(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// History handles GET /performance/:username/history.
func (h *PerformanceHandler) History(c *fiber.Ctx) error {
	entries, err := h.performance.AgentHistory(c.UserContext(), c.Params("username"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromLogEntries(entries)})
}

// Range handles GET /performance?from=&to=.
func (h *PerformanceHandler) Range(c *fiber.Ctx) error {
	from, to, err := parseWindow(c)
	if err != nil {
		return err
	}
	report, err := h.performance.ReportBetween(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
