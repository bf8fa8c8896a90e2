package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/engine"
	"github.com/spec-kit/incident-dispatch/internal/events"
	"github.com/spec-kit/incident-dispatch/internal/observability"
	"github.com/spec-kit/incident-dispatch/internal/repository"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

// DistributionService runs distribution cycles against the shared store.
type DistributionService struct {
	tickets    repository.TicketRepository
	agents     repository.AgentRepository
	archive    repository.ClosedTicketRepository
	logRepo    repository.AssignmentLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	policy     engine.Policy
	budget     time.Duration
	now        func() time.Time
}

// DistributionDependencies bundles repositories.
type DistributionDependencies struct {
	TicketRepo  repository.TicketRepository
	AgentRepo   repository.AgentRepository
	ArchiveRepo repository.ClosedTicketRepository
	LogRepo     repository.AssignmentLogRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Policy      engine.Policy
	CycleBudget time.Duration
}

// NewDistributionService creates the service.
func NewDistributionService(deps DistributionDependencies) *DistributionService {
	budget := deps.CycleBudget
	if budget <= 0 {
		budget = 8 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistributionService{
		tickets:    deps.TicketRepo,
		agents:     deps.AgentRepo,
		archive:    deps.ArchiveRepo,
		logRepo:    deps.LogRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		policy:     deps.Policy,
		budget:     budget,
		now:        time.Now,
	}
}

// CycleResult is the outcome of one distribution cycle.
type CycleResult struct {
	AssignedTickets []domain.Ticket
	ReclaimedCount  int
	EscalatedCount  int
	ArchivedCount   int
	NotWorking      bool
}

// RunCycle executes one distribution cycle for the requesting agent:
// housekeeping (pending normalization on bulk uploads, stale reclaim,
// escalation sweep, archival) followed by assignment. Assignment writes are
// conditional per document, so a concurrent cycle racing for the same ticket
// loses quietly instead of corrupting state. The whole cycle runs under a
// fixed processing budget; on timeout nothing further is committed and the
// next trigger retries from fresh state.
func (s *DistributionService) RunCycle(ctx context.Context, username string, isBulkUpload bool, excludedIncidents []string) (*CycleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	agent, err := s.agents.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}

	allTickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.logRepo.History(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	input := engine.Input{
		Tickets:            allTickets,
		RequestingUser:     username,
		RequesterOnline:    agent.LoggedIn || isBulkUpload,
		RequesterIsWorking: agent.IsWorking || isBulkUpload,
		ExcludedIncidents:  excludedIncidents,
		History:            history,
		IsBulkUpload:       isBulkUpload,
		Now:                now,
	}
	result := engine.Distribute(input, s.policy)

	assigned, err := s.persistCycle(ctx, username, now, allTickets, &result)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	cycle := &CycleResult{
		AssignedTickets: assigned,
		ReclaimedCount:  len(result.Reclaimed),
		EscalatedCount:  len(result.Escalated),
		ArchivedCount:   len(result.Archive),
		NotWorking:      !agent.IsWorking && !isBulkUpload,
	}

	outcome := "assigned"
	switch {
	case cycle.NotWorking:
		outcome = "not_working"
	case len(assigned) == 0:
		outcome = "idle"
	}
	s.metrics.RecordCycle(outcome, len(assigned), cycle.ReclaimedCount, cycle.ArchivedCount)
	s.logger.Info("distribution cycle finished",
		zap.String("username", username),
		zap.Bool("bulk_upload", isBulkUpload),
		zap.Int("assigned", len(assigned)),
		zap.Int("reclaimed", cycle.ReclaimedCount),
		zap.Int("escalated", cycle.EscalatedCount),
		zap.Int("archived", cycle.ArchivedCount),
	)
	return cycle, nil
}

// RunHousekeeping runs the maintenance half of a cycle with no requesting
// agent: stale reclaim, escalation sweep and archival. The scheduler calls
// this so boards stay current even when nobody is polling.
func (s *DistributionService) RunHousekeeping(ctx context.Context) (*CycleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	allTickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	input := engine.Input{
		Tickets: allTickets,
		Now:     now,
	}
	result := engine.Distribute(input, s.policy)

	if _, err := s.persistCycle(ctx, "", now, allTickets, &result); err != nil {
		return nil, apperrors.MapError(err)
	}

	cycle := &CycleResult{
		ReclaimedCount: len(result.Reclaimed),
		EscalatedCount: len(result.Escalated),
		ArchivedCount:  len(result.Archive),
	}
	s.metrics.RecordCycle("housekeeping", 0, cycle.ReclaimedCount, cycle.ArchivedCount)
	s.logger.Info("housekeeping sweep finished",
		zap.Int("reclaimed", cycle.ReclaimedCount),
		zap.Int("escalated", cycle.EscalatedCount),
		zap.Int("archived", cycle.ArchivedCount),
	)
	return cycle, nil
}

// ClaimTicket lets an agent claim one specific open ticket. The same
// conditional update backs it, so a ticket that was just taken reports a
// conflict instead of double-assigning.
func (s *DistributionService) ClaimTicket(ctx context.Context, username, incident string) (*domain.Ticket, error) {
	agent, err := s.agents.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.IsWorking {
		return nil, apperrors.NewConflict("agent is not working", map[string]any{"username": username})
	}

	now := s.now()
	claimed, err := s.tickets.ClaimForAgent(ctx, incident, username, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !claimed {
		return nil, apperrors.NewConflict("ticket not open or already assigned", map[string]any{"incident": incident})
	}

	ticket, err := s.tickets.GetByIncident(ctx, incident)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.recordAssignments(ctx, username, now, []domain.Ticket{*ticket}); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *DistributionService) persistCycle(ctx context.Context, username string, now time.Time, snapshot []domain.Ticket, result *engine.Result) ([]domain.Ticket, error) {
	byIncident := make(map[string]*domain.Ticket, len(result.Tickets))
	for i := range result.Tickets {
		byIncident[result.Tickets[i].Incident] = &result.Tickets[i]
	}

	if len(result.Normalized) > 0 {
		normalized := make([]domain.Ticket, 0, len(result.Normalized))
		for _, incident := range result.Normalized {
			if t, ok := byIncident[incident]; ok {
				normalized = append(normalized, *t)
			}
		}
		if err := s.tickets.BulkUpsert(ctx, normalized); err != nil {
			return nil, err
		}
	}

	var logEntries []domain.AssignmentLogEntry

	for _, incident := range result.Reclaimed {
		if err := s.tickets.Release(ctx, incident, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue // already released or claimed by someone else
			}
			return nil, err
		}
		previous := previousAssignee(snapshot, incident)
		logEntries = append(logEntries, domain.AssignmentLogEntry{
			TicketID:  incident,
			Username:  previous,
			Action:    domain.LogActionReclaimed,
			Details:   "assignment exceeded reassignment timeout",
			Timestamp: now,
		})
		s.publish(ctx, events.Event{
			Type:     events.EventTicketReclaimed,
			Incident: incident,
			Payload:  events.TicketReclaimedPayload{PreviousAssignee: previous},
		})
	}

	for _, transition := range result.Escalated {
		ticket, ok := byIncident[transition.Incident]
		if !ok {
			continue
		}
		if err := s.tickets.UpdateResolution(ctx, ticket); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, err
		}
		logEntries = append(logEntries, domain.AssignmentLogEntry{
			TicketID:  transition.Incident,
			Username:  transition.AssignedTo,
			Action:    domain.LogActionStatusChange,
			Details:   string(transition.From) + " -> " + string(transition.To),
			Timestamp: now,
		})
		s.publish(ctx, events.Event{
			Type:     events.EventTicketEscalated,
			Incident: transition.Incident,
			Username: transition.AssignedTo,
			Payload: events.TicketEscalatedPayload{
				FromLevel: previousLevel(snapshot, transition.Incident),
				ToLevel:   transition.Level,
				Retained:  transition.AssignedTo != "",
			},
		})
	}

	if len(result.Archive) > 0 {
		records := make([]domain.ClosedTicket, 0, len(result.Archive))
		for _, candidate := range result.Archive {
			records = append(records, domain.ArchiveTicket(candidate.Ticket, candidate.Action, candidate.Details, now))
		}
		if err := s.archive.ArchiveAndRemove(ctx, records); err != nil {
			return nil, err
		}
		for _, candidate := range result.Archive {
			s.publish(ctx, events.Event{
				Type:     events.EventTicketArchived,
				Incident: candidate.Ticket.Incident,
				Payload:  events.TicketArchivedPayload{Action: candidate.Action, Details: candidate.Details},
			})
		}
	}

	var assigned []domain.Ticket
	for _, ticket := range result.Assigned {
		claimed, err := s.tickets.ClaimForAgent(ctx, ticket.Incident, username, now)
		if err != nil {
			return nil, err
		}
		if !claimed {
			s.logger.Debug("lost claim race", zap.String("incident", ticket.Incident), zap.String("username", username))
			continue
		}
		assigned = append(assigned, ticket)
	}
	if len(assigned) > 0 {
		if err := s.recordAssignments(ctx, username, now, assigned); err != nil {
			return nil, err
		}
	}
	if len(logEntries) > 0 {
		if err := s.logRepo.Append(ctx, logEntries); err != nil {
			return nil, err
		}
	}
	return assigned, nil
}

func (s *DistributionService) recordAssignments(ctx context.Context, username string, now time.Time, assigned []domain.Ticket) error {
	entries := make([]domain.AssignmentLogEntry, 0, len(assigned))
	for _, ticket := range assigned {
		entries = append(entries, domain.AssignmentLogEntry{
			TicketID:  ticket.Incident,
			Username:  username,
			Action:    domain.LogActionAssigned,
			Details:   string(ticket.Category) + "/" + string(ticket.Level),
			Timestamp: now,
		})
		s.publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			Incident: ticket.Incident,
			Username: username,
			Payload:  events.TicketAssignedPayload{Category: ticket.Category, Level: ticket.Level},
		})
	}
	if err := s.logRepo.Append(ctx, entries); err != nil {
		return err
	}
	return s.agents.TouchAssignment(ctx, username, now)
}

func (s *DistributionService) publish(ctx context.Context, event events.Event) {
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

func previousAssignee(snapshot []domain.Ticket, incident string) string {
	for i := range snapshot {
		if snapshot[i].Incident == incident && snapshot[i].AssignedTo != nil {
			return *snapshot[i].AssignedTo
		}
	}
	return ""
}

func previousLevel(snapshot []domain.Ticket, incident string) domain.Level {
	for i := range snapshot {
		if snapshot[i].Incident == incident {
			return snapshot[i].Level
		}
	}
	return ""
}
