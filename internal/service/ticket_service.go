package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/repository"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

// TicketService serves ticket views and resolution updates. Distribution and
// ingestion have their own services; this one covers what agents do with
// tickets already on their plate plus archive management.
type TicketService struct {
	tickets repository.TicketRepository
	archive repository.ClosedTicketRepository
	logRepo repository.AssignmentLogRepository
	logger  *zap.Logger
	now     func() time.Time
}

// TicketDependencies bundles repositories.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	ArchiveRepo repository.ClosedTicketRepository
	LogRepo     repository.AssignmentLogRepository
	Logger      *zap.Logger
}

// NewTicketService creates the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets: deps.TicketRepo,
		archive: deps.ArchiveRepo,
		logRepo: deps.LogRepo,
		logger:  logger,
		now:     time.Now,
	}
}

// Dashboard returns the non-terminal board: Open, Active and Pending.
func (s *TicketService) Dashboard(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByStatus(ctx,
		domain.TicketStatusOpen, domain.TicketStatusActive, domain.TicketStatusPending)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Log returns the history view: completed live tickets plus the archive for
// the window.
func (s *TicketService) Log(ctx context.Context, from, to time.Time) ([]domain.Ticket, []domain.ClosedTicket, error) {
	completed, err := s.tickets.ListByStatus(ctx, domain.TicketStatusCompleted)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	closed, err := s.archive.ListBetween(ctx, from, to)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return completed, closed, nil
}

// MyTickets returns the tickets currently assigned to the agent.
func (s *TicketService) MyTickets(ctx context.Context, username string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListAssignedTo(ctx, username)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Resolution carries the free-text fields an agent fills while handling a
// ticket.
type Resolution struct {
	DetailCase     string
	Analisa        string
	EscalationNote string
}

// Complete marks an agent's Active ticket as Completed and stores the
// resolution text. Only the current assignee may complete a ticket.
func (s *TicketService) Complete(ctx context.Context, username, incident string, res Resolution) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByIncident(ctx, incident)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"incident": incident})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.AssignedTo == nil || *ticket.AssignedTo != username {
		return nil, apperrors.NewForbidden("ticket is assigned to another agent")
	}
	if ticket.Status != domain.TicketStatusActive {
		return nil, apperrors.NewConflict("only active tickets can be completed", map[string]any{
			"incident": incident, "status": string(ticket.Status),
		})
	}

	now := s.now()
	ticket.Status = domain.TicketStatusCompleted
	ticket.DetailCase = res.DetailCase
	ticket.Analisa = res.Analisa
	ticket.EscalationNote = res.EscalationNote
	ticket.LastUpdated = now
	if err := s.tickets.UpdateResolution(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	entry := domain.AssignmentLogEntry{
		TicketID:  incident,
		Username:  username,
		Action:    domain.LogActionCompleted,
		Details:   string(ticket.Level),
		Timestamp: now,
	}
	if err := s.logRepo.Append(ctx, []domain.AssignmentLogEntry{entry}); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// SaveResolution stores resolution text without changing status, so agents
// can save drafts while a ticket stays Active.
func (s *TicketService) SaveResolution(ctx context.Context, username, incident string, res Resolution) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByIncident(ctx, incident)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"incident": incident})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.AssignedTo == nil || *ticket.AssignedTo != username {
		return nil, apperrors.NewForbidden("ticket is assigned to another agent")
	}

	ticket.DetailCase = res.DetailCase
	ticket.Analisa = res.Analisa
	ticket.EscalationNote = res.EscalationNote
	ticket.LastUpdated = s.now()
	if err := s.tickets.UpdateResolution(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// CloseManually archives one live ticket with an operator-supplied reason.
func (s *TicketService) CloseManually(ctx context.Context, username, incident, details string) (*domain.ClosedTicket, error) {
	ticket, err := s.tickets.GetByIncident(ctx, incident)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"incident": incident})
		}
		return nil, apperrors.MapError(err)
	}
	if strings.TrimSpace(details) == "" {
		details = "closed manually"
	}

	now := s.now()
	record := domain.ArchiveTicket(*ticket, domain.CloseActionClosed, details, now)
	if err := s.archive.ArchiveAndRemove(ctx, []domain.ClosedTicket{record}); err != nil {
		return nil, apperrors.MapError(err)
	}
	entry := domain.AssignmentLogEntry{
		TicketID:  incident,
		Username:  username,
		Action:    domain.LogActionClosed,
		Details:   details,
		Timestamp: now,
	}
	if err := s.logRepo.Append(ctx, []domain.AssignmentLogEntry{entry}); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("ticket closed manually",
		zap.String("incident", incident), zap.String("username", username))
	return &record, nil
}

// ClosedBetween lists archive records for a window.
func (s *TicketService) ClosedBetween(ctx context.Context, from, to time.Time) ([]domain.ClosedTicket, error) {
	records, err := s.archive.ListBetween(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// DeleteClosed removes an archive record.
func (s *TicketService) DeleteClosed(ctx context.Context, incident string) error {
	if err := s.archive.DeleteByIncident(ctx, incident); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
