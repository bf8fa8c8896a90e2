package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/events"
	"github.com/spec-kit/incident-dispatch/internal/repository"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

// AgentService handles authentication, sessions and working-state changes.
type AgentService struct {
	agents     repository.AgentRepository
	tokens     *auth.TokenManager
	presence   *PresenceService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AgentDependencies bundles collaborators.
type AgentDependencies struct {
	AgentRepo  repository.AgentRepository
	Tokens     *auth.TokenManager
	Presence   *PresenceService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	BcryptCost int
}

// NewAgentService creates the service.
func NewAgentService(deps AgentDependencies) *AgentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := deps.BcryptCost
	if cost <= 0 {
		cost = 10
	}
	return &AgentService{
		agents:     deps.AgentRepo,
		tokens:     deps.Tokens,
		presence:   deps.Presence,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cost,
		now:        time.Now,
	}
}

// LoginResult carries the issued token back to the handler.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Agent     *domain.Agent
}

// Register creates a new agent account. Role defaults to AGENT when empty.
func (s *AgentService) Register(ctx context.Context, username, password string, role domain.AgentRole) (*domain.Agent, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}
	if role == "" {
		role = domain.AgentRoleAgent
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	agent := &domain.Agent{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("agent registered", zap.String("username", username), zap.String("role", string(role)))
	return agent, nil
}

// Login verifies credentials and issues a fresh session token. A second
// login replaces the previous session token, which invalidates it.
func (s *AgentService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	agent, err := s.agents.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, jti, expiresAt, err := s.tokens.GenerateToken(agent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now()
	if err := s.agents.SetSession(ctx, username, &jti, true, now); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.presence != nil {
		if err := s.presence.Heartbeat(ctx, username); err != nil {
			s.logger.Warn("presence heartbeat failed", zap.Error(err))
		}
	}

	agent.LoggedIn = true
	agent.SessionToken = &jti
	s.logger.Info("agent logged in", zap.String("username", username))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Agent: agent}, nil
}

// Logout ends the session. The stored session token is cleared, so the JWT
// stops passing middleware checks even before it expires.
func (s *AgentService) Logout(ctx context.Context, username string) error {
	if err := s.agents.SetSession(ctx, username, nil, false, s.now()); err != nil {
		return apperrors.MapError(err)
	}
	if s.presence != nil {
		if err := s.presence.Clear(ctx, username); err != nil {
			s.logger.Warn("presence clear failed", zap.Error(err))
		}
	}
	s.logger.Info("agent logged out", zap.String("username", username))
	return nil
}

// SetWorking flips whether the agent receives assignments.
func (s *AgentService) SetWorking(ctx context.Context, username string, working bool) error {
	if err := s.agents.SetWorking(ctx, username, working, s.now()); err != nil {
		return apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventAgentWorkingChanged,
		Username: username,
		Payload:  events.AgentWorkingChangedPayload{IsWorking: working},
	})
	return nil
}

// SetRole changes an agent's role. Authorization happens at the handler.
func (s *AgentService) SetRole(ctx context.Context, username string, role domain.AgentRole) error {
	switch role {
	case domain.AgentRoleAgent, domain.AgentRoleTeamLeader, domain.AgentRoleAdmin:
	default:
		return apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}
	if err := s.agents.SetRole(ctx, username, role); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("agent role changed", zap.String("username", username), zap.String("role", string(role)))
	return nil
}

// Heartbeat refreshes the agent's presence key.
func (s *AgentService) Heartbeat(ctx context.Context, username string) error {
	if s.presence == nil {
		return nil
	}
	return apperrors.MapError(s.presence.Heartbeat(ctx, username))
}

// List returns every agent.
func (s *AgentService) List(ctx context.Context) ([]domain.Agent, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// ActiveAgents returns logged-in agents, cross-checked against live
// heartbeats when presence tracking is available.
func (s *AgentService) ActiveAgents(ctx context.Context) ([]domain.Agent, error) {
	online, err := s.agents.ListOnline(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.presence == nil {
		return online, nil
	}
	names, err := s.presence.ActiveAgents(ctx)
	if err != nil {
		s.logger.Warn("presence lookup failed", zap.Error(err))
		return online, nil
	}
	alive := make(map[string]struct{}, len(names))
	for _, name := range names {
		alive[name] = struct{}{}
	}
	filtered := online[:0]
	for _, agent := range online {
		if _, ok := alive[agent.Username]; ok {
			filtered = append(filtered, agent)
		}
	}
	return filtered, nil
}

func (s *AgentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
