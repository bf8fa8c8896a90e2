package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-dispatch/internal/api/dto"
	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/service"
)

// DistributionHandler exposes the distribution cycle and manual claims.
type DistributionHandler struct {
	distribution *service.DistributionService
}

// NewDistributionHandler constructs handler.
func NewDistributionHandler(distribution *service.DistributionService) *DistributionHandler {
	return &DistributionHandler{distribution: distribution}
}

// Distribute handles POST /distribution/run. The caller receives whatever
// the cycle assigned to them, which may be nothing.
func (h *DistributionHandler) Distribute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	var req dto.DistributeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.distribution.RunCycle(c.UserContext(), principal.Agent.Username, req.IsBulkUpload, req.ExcludedIncidents)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"assigned":    dto.FromTickets(result.AssignedTickets),
		"reclaimed":   result.ReclaimedCount,
		"escalated":   result.EscalatedCount,
		"archived":    result.ArchivedCount,
		"not_working": result.NotWorking,
	}})
}

// Claim handles POST /distribution/claim/:incident.
func (h *DistributionHandler) Claim(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}

	ticket, err := h.distribution.ClaimTicket(c.UserContext(), principal.Agent.Username, c.Params("incident"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(*ticket)})
}
