package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-dispatch/internal/api/dto"
	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/service"
)

// TicketsHandler exposes ticket ingestion, views and resolution endpoints.
type TicketsHandler struct {
	tickets  *service.TicketService
	ingest   *service.IngestService
	presence *service.PresenceService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, ingest *service.IngestService, presence *service.PresenceService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, ingest: ingest, presence: presence}
}

// Upload handles POST /tickets/upload.
func (h *TicketsHandler) Upload(c *fiber.Ctx) error {
	var req dto.UploadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.ingest.ProcessBatch(c.UserContext(), req.ToIncoming())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"inserted":  result.Inserted,
		"updated":   result.Updated,
		"escalated": result.Escalated,
		"closed":    result.Closed,
		"expired":   result.Expired,
	}})
}

// Dashboard handles GET /tickets/dashboard.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	tickets, err := h.tickets.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(tickets)})
}

// Log handles GET /tickets/log?from=&to= (RFC 3339, defaults to the last day).
func (h *TicketsHandler) Log(c *fiber.Ctx) error {
	from, to, err := parseWindow(c)
	if err != nil {
		return err
	}
	completed, closed, err := h.tickets.Log(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"completed": dto.FromTickets(completed),
		"closed":    dto.FromClosedTickets(closed),
	}})
}

// Mine handles GET /tickets/mine.
func (h *TicketsHandler) Mine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	tickets, err := h.tickets.MyTickets(c.UserContext(), principal.Agent.Username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(tickets)})
}

// Complete handles POST /tickets/:incident/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	var req dto.ResolutionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Complete(c.UserContext(), principal.Agent.Username, c.Params("incident"), service.Resolution{
		DetailCase:     req.DetailCase,
		Analisa:        req.Analisa,
		EscalationNote: req.EscalationNote,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(*ticket)})
}

// SaveResolution handles PATCH /tickets/:incident/resolution.
func (h *TicketsHandler) SaveResolution(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	var req dto.ResolutionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.SaveResolution(c.UserContext(), principal.Agent.Username, c.Params("incident"), service.Resolution{
		DetailCase:     req.DetailCase,
		Analisa:        req.Analisa,
		EscalationNote: req.EscalationNote,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(*ticket)})
}

// LastUpload handles GET /tickets/last-upload.
func (h *TicketsHandler) LastUpload(c *fiber.Ctx) error {
	at, err := h.presence.LastUpload(c.UserContext())
	if err != nil {
		return err
	}
	if at.IsZero() {
		return c.JSON(fiber.Map{"data": fiber.Map{"last_upload": nil}})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"last_upload": at}})
}

func parseWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(http.StatusBadRequest, "invalid from timestamp")
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(http.StatusBadRequest, "invalid to timestamp")
		}
		to = parsed
	}
	return from, to, nil
}
