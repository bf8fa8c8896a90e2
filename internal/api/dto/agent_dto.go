package dto

import (
	"time"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// LoginRequest payload for agent login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest payload for creating an agent.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// WorkingRequest payload for toggling assignment intake.
type WorkingRequest struct {
	IsWorking bool `json:"is_working"`
}

// RoleRequest payload for changing an agent's role.
type RoleRequest struct {
	Role string `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AgentResponse is the wire representation of an agent.
type AgentResponse struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	LoggedIn  bool   `json:"logged_in"`
	IsWorking bool   `json:"is_working"`
}

// FromAgent maps a domain agent.
func FromAgent(a domain.Agent) AgentResponse {
	return AgentResponse{
		Username:  a.Username,
		Role:      string(a.Role),
		LoggedIn:  a.LoggedIn,
		IsWorking: a.IsWorking,
	}
}

// FromAgents maps a slice of agents.
func FromAgents(agents []domain.Agent) []AgentResponse {
	out := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, FromAgent(a))
	}
	return out
}
