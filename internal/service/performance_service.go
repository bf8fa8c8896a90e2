package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/repository"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

// PerformanceService builds per-agent workload reports from the live
// collection, the archive and the assignment log.
type PerformanceService struct {
	tickets repository.TicketRepository
	archive repository.ClosedTicketRepository
	logRepo repository.AssignmentLogRepository
	agents  repository.AgentRepository
	logger  *zap.Logger
	now     func() time.Time
}

// PerformanceDependencies bundles repositories.
type PerformanceDependencies struct {
	TicketRepo  repository.TicketRepository
	ArchiveRepo repository.ClosedTicketRepository
	LogRepo     repository.AssignmentLogRepository
	AgentRepo   repository.AgentRepository
	Logger      *zap.Logger
}

// NewPerformanceService creates the service.
func NewPerformanceService(deps PerformanceDependencies) *PerformanceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{
		tickets: deps.TicketRepo,
		archive: deps.ArchiveRepo,
		logRepo: deps.LogRepo,
		agents:  deps.AgentRepo,
		logger:  logger,
		now:     time.Now,
	}
}

// AgentPerformance aggregates one agent's numbers over a window.
type AgentPerformance struct {
	Username   string         `json:"username"`
	Active     int            `json:"active"`
	Completed  int            `json:"completed"`
	Pending    int            `json:"pending"`
	Closed     int            `json:"closed"`
	Expired    int            `json:"expired"`
	Assigned   int            `json:"assigned"`
	Reclaimed  int            `json:"reclaimed"`
	ByCategory map[string]int `json:"by_category"`
	// AvgHandleMinutes averages assignment-to-completion time over tickets
	// completed inside the window.
	AvgHandleMinutes float64 `json:"avg_handle_minutes"`
}

// Report covers all agents for a window.
type Report struct {
	From   time.Time          `json:"from"`
	To     time.Time          `json:"to"`
	Agents []AgentPerformance `json:"agents"`
}

// AgentHistory returns the full assignment log for one agent, newest last.
func (s *PerformanceService) AgentHistory(ctx context.Context, username string) ([]domain.AssignmentLogEntry, error) {
	entries, err := s.logRepo.ListForUser(ctx, username)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// DailyReport aggregates today's numbers, midnight to now.
func (s *PerformanceService) DailyReport(ctx context.Context) (*Report, error) {
	now := s.now()
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return s.ReportBetween(ctx, midnight, now)
}

// ReportBetween aggregates agent performance across the given window. Live
// ticket counts reflect the current snapshot; archive and log counts are
// restricted to the window.
func (s *PerformanceService) ReportBetween(ctx context.Context, from, to time.Time) (*Report, error) {
	if !to.After(from) {
		return nil, apperrors.NewValidationError("report window is empty", map[string]any{
			"from": from, "to": to,
		})
	}

	live, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	closed, err := s.archive.ListBetween(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	entries, err := s.logRepo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	roster, err := s.agents.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	perAgent := make(map[string]*AgentPerformance)
	lookup := func(username string) *AgentPerformance {
		if username == "" {
			return nil
		}
		p, ok := perAgent[username]
		if !ok {
			p = &AgentPerformance{Username: username, ByCategory: map[string]int{}}
			perAgent[username] = p
		}
		return p
	}
	for _, agent := range roster {
		lookup(agent.Username)
	}

	for i := range live {
		t := &live[i]
		if t.AssignedTo == nil {
			continue
		}
		p := lookup(*t.AssignedTo)
		if p == nil {
			continue
		}
		switch t.Status {
		case domain.TicketStatusActive:
			p.Active++
		case domain.TicketStatusCompleted:
			p.Completed++
		case domain.TicketStatusPending:
			p.Pending++
		}
		p.ByCategory[string(t.Category)]++
	}

	for i := range closed {
		rec := &closed[i]
		if rec.AssignedTo == nil {
			continue
		}
		p := lookup(*rec.AssignedTo)
		if p == nil {
			continue
		}
		switch rec.Action {
		case domain.CloseActionExpired:
			p.Expired++
		default:
			p.Closed++
		}
		p.ByCategory[string(rec.Category)]++
	}

	type handleStats struct {
		assignedAt map[string]time.Time
		total      time.Duration
		completed  int
	}
	perAgentHandle := make(map[string]*handleStats)
	for i := range entries {
		entry := &entries[i]
		p := lookup(entry.Username)
		if p == nil {
			continue
		}
		stats, ok := perAgentHandle[entry.Username]
		if !ok {
			stats = &handleStats{assignedAt: map[string]time.Time{}}
			perAgentHandle[entry.Username] = stats
		}
		switch entry.Action {
		case domain.LogActionAssigned:
			p.Assigned++
			stats.assignedAt[entry.TicketID] = entry.Timestamp
		case domain.LogActionReclaimed:
			p.Reclaimed++
		case domain.LogActionCompleted:
			if startedAt, seen := stats.assignedAt[entry.TicketID]; seen {
				stats.total += entry.Timestamp.Sub(startedAt)
				stats.completed++
			}
		}
	}
	for username, stats := range perAgentHandle {
		if stats.completed == 0 {
			continue
		}
		perAgent[username].AvgHandleMinutes = stats.total.Minutes() / float64(stats.completed)
	}

	report := &Report{From: from, To: to, Agents: make([]AgentPerformance, 0, len(perAgent))}
	for _, p := range perAgent {
		report.Agents = append(report.Agents, *p)
	}
	sort.Slice(report.Agents, func(i, j int) bool {
		return report.Agents[i].Username < report.Agents[j].Username
	})
	return report, nil
}
