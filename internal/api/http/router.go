package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Agents         *handlers.AgentsHandler
	Tickets        *handlers.TicketsHandler
	Distribution   *handlers.DistributionHandler
	ClosedTickets  *handlers.ClosedTicketsHandler
	Performance    *handlers.PerformanceHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Agents.Login)

	api := app.Group("", cfg.AuthMiddleware.Handle)
	api.Post("/auth/logout", cfg.Agents.Logout)

	agents := api.Group("/agents")
	agents.Get("", cfg.Agents.List)
	agents.Get("/active", cfg.Agents.Active)
	agents.Post("/me/heartbeat", cfg.Agents.Heartbeat)
	agents.Patch("/me/working", cfg.Agents.SetWorking)
	agents.Post("", auth.RequireRole(domain.AgentRoleAdmin), cfg.Agents.Register)
	agents.Patch("/:username/role", auth.RequireRole(domain.AgentRoleAdmin), cfg.Agents.SetRole)

	tickets := api.Group("/tickets")
	tickets.Get("/dashboard", cfg.Tickets.Dashboard)
	tickets.Get("/log", cfg.Tickets.Log)
	tickets.Get("/mine", cfg.Tickets.Mine)
	tickets.Get("/last-upload", cfg.Tickets.LastUpload)
	tickets.Post("/upload", auth.RequireRole(domain.AgentRoleTeamLeader, domain.AgentRoleAdmin), cfg.Tickets.Upload)
	tickets.Post("/:incident/complete", cfg.Tickets.Complete)
	tickets.Patch("/:incident/resolution", cfg.Tickets.SaveResolution)

	distribution := api.Group("/distribution")
	distribution.Post("/run", cfg.Distribution.Distribute)
	distribution.Post("/claim/:incident", cfg.Distribution.Claim)

	closed := api.Group("/closed-tickets")
	closed.Get("", cfg.ClosedTickets.List)
	closed.Post("/:incident", auth.RequireRole(domain.AgentRoleTeamLeader, domain.AgentRoleAdmin), cfg.ClosedTickets.Close)
	closed.Delete("/:incident", auth.RequireRole(domain.AgentRoleAdmin), cfg.ClosedTickets.Delete)

	performance := api.Group("/performance")
	performance.Get("", cfg.Performance.Range)
	performance.Get("/daily", cfg.Performance.Daily)
	performance.Get("/:username/history", cfg.Performance.History)
}
