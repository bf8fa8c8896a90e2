package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-dispatch/internal/api/dto"
	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/service"
)

// AgentsHandler exposes session and roster endpoints.
type AgentsHandler struct {
	agents *service.AgentService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agents *service.AgentService) *AgentsHandler {
	return &AgentsHandler{agents: agents}
}

// Login handles POST /auth/login.
func (h *AgentsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "username and password required")
	}

	result, err := h.agents.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"agent": dto.FromAgent(*result.Agent),
			"auth":  dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
		},
	})
}

// Logout handles POST /auth/logout.
func (h *AgentsHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	if err := h.agents.Logout(c.UserContext(), principal.Agent.Username); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"logged_out": true}})
}

// Register handles POST /agents. Admin only.
func (h *AgentsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	agent, err := h.agents.Register(c.UserContext(), req.Username, req.Password, domain.AgentRole(req.Role))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromAgent(*agent)})
}

// SetWorking handles PATCH /agents/me/working.
func (h *AgentsHandler) SetWorking(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	var req dto.WorkingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.agents.SetWorking(c.UserContext(), principal.Agent.Username, req.IsWorking); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"is_working": req.IsWorking}})
}

// SetRole handles PATCH /agents/:username/role. Admin only.
func (h *AgentsHandler) SetRole(c *fiber.Ctx) error {
	var req dto.RoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	username := c.Params("username")
	if err := h.agents.SetRole(c.UserContext(), username, domain.AgentRole(req.Role)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"username": username, "role": req.Role}})
}

// Heartbeat handles POST /agents/me/heartbeat.
func (h *AgentsHandler) Heartbeat(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	if err := h.agents.Heartbeat(c.UserContext(), principal.Agent.Username); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"alive": true}})
}

// List handles GET /agents.
func (h *AgentsHandler) List(c *fiber.Ctx) error {
	agents, err := h.agents.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAgents(agents)})
}

// Active handles GET /agents/active.
func (h *AgentsHandler) Active(c *fiber.Ctx) error {
	agents, err := h.agents.ActiveAgents(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAgents(agents)})
}
