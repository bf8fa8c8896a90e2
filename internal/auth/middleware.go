package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/repository"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated agent.
type Principal struct {
	Agent *domain.Agent
	Role  domain.AgentRole
}

// AuthMiddleware validates bearer tokens and loads the agent principal.
type AuthMiddleware struct {
	tokens *TokenManager
	agents repository.AgentRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, agents repository.AgentRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, agents: agents}
}

// Handle enforces authentication for protected routes. A token whose JTI no
// longer matches the stored session is treated as logged out.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	agent, err := m.agents.GetByUsername(c.Context(), claims.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("agent not found")
		}
		return apperrors.MapError(err)
	}
	if !agent.LoggedIn || agent.SessionToken == nil || *agent.SessionToken != claims.ID {
		return apperrors.NewUnauthorized("session expired")
	}

	c.Locals(principalKey, &Principal{Agent: agent, Role: agent.Role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated agent.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
