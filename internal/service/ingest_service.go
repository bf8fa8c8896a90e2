package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/engine"
	"github.com/spec-kit/incident-dispatch/internal/repository"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

// IngestService lands uploaded ticket batches in the live store and retires
// tickets the batches no longer mention.
type IngestService struct {
	tickets  repository.TicketRepository
	archive  repository.ClosedTicketRepository
	presence *PresenceService
	logger   *zap.Logger
	expiry   time.Duration
	budget   time.Duration
	now      func() time.Time
}

// IngestDependencies bundles collaborators.
type IngestDependencies struct {
	TicketRepo       repository.TicketRepository
	ArchiveRepo      repository.ClosedTicketRepository
	Presence         *PresenceService
	Logger           *zap.Logger
	ExpiryWindow     time.Duration
	ProcessingBudget time.Duration
}

// NewIngestService creates the service.
func NewIngestService(deps IngestDependencies) *IngestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	budget := deps.ProcessingBudget
	if budget <= 0 {
		budget = 8 * time.Second
	}
	expiry := deps.ExpiryWindow
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &IngestService{
		tickets:  deps.TicketRepo,
		archive:  deps.ArchiveRepo,
		presence: deps.Presence,
		logger:   logger,
		expiry:   expiry,
		budget:   budget,
		now:      time.Now,
	}
}

// IncomingTicket is one parsed row of an uploaded batch. CSV parsing happens
// upstream; the service receives clean fields.
type IncomingTicket struct {
	Incident string
	SID      string
	Category domain.Category
	TTR      string
}

// BatchResult summarizes one ingest run.
type BatchResult struct {
	Inserted  int
	Updated   int
	Escalated int
	Closed    int
	Expired   int
}

// ProcessBatch merges an uploaded batch into the live store. New incidents
// are created Open with their level classified from TTR. Existing Completed
// tickets either close (at the category ceiling) or escalate into Pending.
// Live tickets absent from the batch expire once they have been inactive
// past the expiry window; absent Completed tickets below the ceiling are
// instead forced back to Pending for redistribution.
func (s *IngestService) ProcessBatch(ctx context.Context, batch []IncomingTicket) (*BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	if len(batch) == 0 {
		return nil, apperrors.NewValidationError("empty batch", nil)
	}
	for _, in := range batch {
		if strings.TrimSpace(in.Incident) == "" {
			return nil, apperrors.NewValidationError("ticket missing incident key", nil)
		}
	}

	existing, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	existingByIncident := make(map[string]*domain.Ticket, len(existing))
	for i := range existing {
		existingByIncident[existing[i].Incident] = &existing[i]
	}
	batchIncidents := make(map[string]struct{}, len(batch))

	now := s.now()
	var result BatchResult
	var upserts []domain.Ticket
	var closures []domain.ClosedTicket

	for _, in := range batch {
		batchIncidents[in.Incident] = struct{}{}
		current, exists := existingByIncident[in.Incident]

		if !exists {
			upserts = append(upserts, domain.Ticket{
				Incident:    in.Incident,
				SID:         in.SID,
				Category:    in.Category,
				TTR:         in.TTR,
				Level:       engine.ClassifyLevel(in.Category, in.TTR),
				Status:      domain.TicketStatusOpen,
				LastUpdated: now,
			})
			result.Inserted++
			continue
		}

		merged := *current
		merged.SID = in.SID
		merged.Category = in.Category
		merged.TTR = in.TTR
		// Re-categorizing a ticket must not leave its level above the new
		// category's ceiling.
		merged.Level = engine.ClampLevel(merged.Category, merged.Level)
		merged.LastUpdated = now

		switch {
		case current.Status == domain.TicketStatusCompleted && engine.IsMaxLevel(current):
			closures = append(closures, domain.ArchiveTicket(*current, domain.CloseActionClosed,
				"completed at max escalation level", now))
			result.Closed++
		case current.Status == domain.TicketStatusCompleted:
			merged.Status = domain.TicketStatusPending
			merged.Level = engine.NextLevel(merged.Category, merged.Level)
			upserts = append(upserts, merged)
			result.Escalated++
		default:
			upserts = append(upserts, merged)
			result.Updated++
		}
	}

	for i := range existing {
		current := &existing[i]
		if _, inBatch := batchIncidents[current.Incident]; inBatch {
			continue
		}
		if current.Status == domain.TicketStatusCompleted && !engine.IsMaxLevel(current) {
			reset := *current
			reset.Status = domain.TicketStatusPending
			reset.Level = engine.NextLevel(current.Category, current.Level)
			reset.LastUpdated = now
			upserts = append(upserts, reset)
			result.Escalated++
			continue
		}
		if now.Sub(current.LastUpdated) > s.expiry {
			closures = append(closures, domain.ArchiveTicket(*current, domain.CloseActionExpired,
				"absent from uploaded batch past inactivity window", now))
			result.Expired++
		}
	}

	// Archive before upserting so a ticket can never be deleted without its
	// archive record existing.
	if err := s.archive.ArchiveAndRemove(ctx, closures); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.tickets.BulkUpsert(ctx, upserts); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.presence != nil {
		s.presence.MarkUpload(ctx, now)
	}
	s.logger.Info("batch processed",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("escalated", result.Escalated),
		zap.Int("closed", result.Closed),
		zap.Int("expired", result.Expired),
	)
	return &result, nil
}

// DailyReset archives the entire live collection. Every ticket closes with
// the daily-reset marker so the next upload starts from an empty board.
func (s *IngestService) DailyReset(ctx context.Context) (int, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if len(tickets) == 0 {
		return 0, nil
	}
	now := s.now()
	records := make([]domain.ClosedTicket, 0, len(tickets))
	for _, t := range tickets {
		records = append(records, domain.ArchiveTicket(t, domain.CloseActionClosed, "Daily Reset", now))
	}
	if err := s.archive.ArchiveAndRemove(ctx, records); err != nil {
		return 0, apperrors.MapError(err)
	}
	s.logger.Info("daily reset completed", zap.Int("archived", len(records)))
	return len(records), nil
}
