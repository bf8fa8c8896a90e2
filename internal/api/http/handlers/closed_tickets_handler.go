package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-dispatch/internal/api/dto"
	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/service"
)

// ClosedTicketsHandler manages the archive.
type ClosedTicketsHandler struct {
	tickets *service.TicketService
}

// NewClosedTicketsHandler constructs handler.
func NewClosedTicketsHandler(tickets *service.TicketService) *ClosedTicketsHandler {
	return &ClosedTicketsHandler{tickets: tickets}
}

// List handles GET /closed-tickets?from=&to=.
func (h *ClosedTicketsHandler) List(c *fiber.Ctx) error {
	from, to, err := parseWindow(c)
	if err != nil {
		return err
	}
	records, err := h.tickets.ClosedBetween(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromClosedTickets(records)})
}

// Close handles POST /closed-tickets/:incident, archiving a live ticket.
func (h *ClosedTicketsHandler) Close(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	var req dto.CloseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	record, err := h.tickets.CloseManually(c.UserContext(), principal.Agent.Username, c.Params("incident"), req.Details)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromClosedTicket(*record)})
}

// Delete handles DELETE /closed-tickets/:incident. Admin only.
func (h *ClosedTicketsHandler) Delete(c *fiber.Ctx) error {
	if err := h.tickets.DeleteClosed(c.UserContext(), c.Params("incident")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
