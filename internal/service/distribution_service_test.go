package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/engine"
	"github.com/spec-kit/incident-dispatch/internal/observability"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

func newDistributionFixture(t *testing.T, agents *fakeAgentRepo, tickets *fakeTicketRepo, now time.Time) (*DistributionService, *fakeClosedRepo, *fakeLogRepo) {
	t.Helper()
	closed := &fakeClosedRepo{live: tickets}
	logs := &fakeLogRepo{}
	svc := NewDistributionService(DistributionDependencies{
		TicketRepo:  tickets,
		AgentRepo:   agents,
		ArchiveRepo: closed,
		LogRepo:     logs,
		Metrics:     observability.NewMetrics(),
		Policy:      engine.DefaultPolicy(),
	})
	svc.now = func() time.Time { return now }
	return svc, closed, logs
}

func openTicket(incident string, category domain.Category, level domain.Level) domain.Ticket {
	return domain.Ticket{
		Incident:    incident,
		Category:    category,
		Level:       level,
		Status:      domain.TicketStatusOpen,
		LastUpdated: time.Now(),
	}
}

func TestRunCycleAssignsHighestPriorityFirst(t *testing.T) {
	now := time.Now()
	agents := newFakeAgentRepo(domain.Agent{Username: "alice", LoggedIn: true, IsWorking: true})
	tickets := newFakeTicketRepo(
		openTicket("INC-1", domain.CategoryK3, domain.LevelL1),
		openTicket("INC-2", domain.CategoryK1, domain.LevelL7),
		openTicket("INC-3", domain.CategoryK1, domain.LevelL2),
	)
	svc, _, logs := newDistributionFixture(t, agents, tickets, now)

	result, err := svc.RunCycle(context.Background(), "alice", false, nil)
	require.NoError(t, err)
	require.Len(t, result.AssignedTickets, 1)
	assert.Equal(t, "INC-2", result.AssignedTickets[0].Incident)
	assert.False(t, result.NotWorking)

	stored, err := tickets.GetByIncident(context.Background(), "INC-2")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusActive, stored.Status)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, "alice", *stored.AssignedTo)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, domain.LogActionAssigned, logs.entries[0].Action)
}

func TestRunCycleSecondPassAssignsNothing(t *testing.T) {
	now := time.Now()
	agents := newFakeAgentRepo(domain.Agent{Username: "alice", LoggedIn: true, IsWorking: true})
	tickets := newFakeTicketRepo(
		openTicket("INC-1", domain.CategoryK2, domain.LevelL3),
		openTicket("INC-2", domain.CategoryK2, domain.LevelL2),
	)
	svc, _, _ := newDistributionFixture(t, agents, tickets, now)

	first, err := svc.RunCycle(context.Background(), "alice", false, nil)
	require.NoError(t, err)
	require.Len(t, first.AssignedTickets, 1)

	second, err := svc.RunCycle(context.Background(), "alice", false, nil)
	require.NoError(t, err)
	assert.Empty(t, second.AssignedTickets, "an agent with an active ticket gets nothing new")
}

func TestRunCycleNotWorkingDoesHousekeepingOnly(t *testing.T) {
	now := time.Now()
	stale := now.Add(-30 * time.Minute)
	bob := "bob"
	agents := newFakeAgentRepo(
		domain.Agent{Username: "alice", LoggedIn: true, IsWorking: false},
	)
	tickets := newFakeTicketRepo(
		domain.Ticket{
			Incident:         "INC-1",
			Category:         domain.CategoryK1,
			Level:            domain.LevelL3,
			Status:           domain.TicketStatusActive,
			AssignedTo:       &bob,
			LastAssignedTime: &stale,
			LastUpdated:      stale,
		},
	)
	svc, _, logs := newDistributionFixture(t, agents, tickets, now)

	result, err := svc.RunCycle(context.Background(), "alice", false, nil)
	require.NoError(t, err)
	assert.True(t, result.NotWorking)
	assert.Empty(t, result.AssignedTickets)
	assert.Equal(t, 1, result.ReclaimedCount)

	stored, err := tickets.GetByIncident(context.Background(), "INC-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.AssignedTo)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, domain.LogActionReclaimed, logs.entries[0].Action)
	assert.Equal(t, "bob", logs.entries[0].Username)
}

func TestRunCycleArchivesAgedCompleted(t *testing.T) {
	now := time.Now()
	old := now.Add(-25 * time.Hour)
	carol := "carol"
	agents := newFakeAgentRepo(domain.Agent{Username: "alice", LoggedIn: true, IsWorking: true})
	tickets := newFakeTicketRepo(
		domain.Ticket{
			Incident:         "INC-9",
			Category:         domain.CategoryK2,
			Level:            domain.LevelL2,
			Status:           domain.TicketStatusCompleted,
			AssignedTo:       &carol,
			LastAssignedTime: &old,
			LastUpdated:      old,
		},
	)
	svc, closed, _ := newDistributionFixture(t, agents, tickets, now)

	result, err := svc.RunCycle(context.Background(), "alice", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ArchivedCount)

	require.Len(t, closed.records, 1)
	assert.Equal(t, "INC-9", closed.records[0].Incident)
	assert.Equal(t, domain.CloseActionClosed, closed.records[0].Action)

	_, err = tickets.GetByIncident(context.Background(), "INC-9")
	assert.Error(t, err, "archived ticket must leave the live store")
}

func TestRunCycleSkipsHandledIncidents(t *testing.T) {
	now := time.Now()
	agents := newFakeAgentRepo(domain.Agent{Username: "alice", LoggedIn: true, IsWorking: true})
	tickets := newFakeTicketRepo(openTicket("INC-1", domain.CategoryK1, domain.LevelL5))
	svc, _, logs := newDistributionFixture(t, agents, tickets, now)
	logs.entries = append(logs.entries, domain.AssignmentLogEntry{
		TicketID: "INC-1", Username: "alice", Action: domain.LogActionReclaimed, Timestamp: now.Add(-time.Hour),
	})

	result, err := svc.RunCycle(context.Background(), "alice", false, nil)
	require.NoError(t, err)
	assert.Empty(t, result.AssignedTickets, "a reclaimed ticket never returns to the same agent")
}

func TestRunCycleUnknownAgent(t *testing.T) {
	svc, _, _ := newDistributionFixture(t, newFakeAgentRepo(), newFakeTicketRepo(), time.Now())

	_, err := svc.RunCycle(context.Background(), "ghost", false, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestClaimTicketConflictWhenTaken(t *testing.T) {
	now := time.Now()
	bob := "bob"
	agents := newFakeAgentRepo(domain.Agent{Username: "alice", LoggedIn: true, IsWorking: true})
	tickets := newFakeTicketRepo(domain.Ticket{
		Incident:   "INC-1",
		Category:   domain.CategoryK1,
		Level:      domain.LevelL2,
		Status:     domain.TicketStatusActive,
		AssignedTo: &bob,
	})
	svc, _, _ := newDistributionFixture(t, agents, tickets, now)

	_, err := svc.ClaimTicket(context.Background(), "alice", "INC-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestRunHousekeepingEscalatesPending(t *testing.T) {
	now := time.Now()
	dave := "dave"
	recent := now.Add(-5 * time.Minute)
	agents := newFakeAgentRepo()
	tickets := newFakeTicketRepo(domain.Ticket{
		Incident:         "INC-4",
		Category:         domain.CategoryK1,
		Level:            domain.LevelL2,
		Status:           domain.TicketStatusCompleted,
		AssignedTo:       &dave,
		LastAssignedTime: &recent,
		LastUpdated:      recent,
	})
	svc, _, _ := newDistributionFixture(t, agents, tickets, now)

	result, err := svc.RunHousekeeping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.EscalatedCount)

	stored, err := tickets.GetByIncident(context.Background(), "INC-4")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, stored.Status)
	assert.Equal(t, domain.LevelL3, stored.Level)
	require.NotNil(t, stored.AssignedTo, "escalation retains the assignee")
	assert.Equal(t, "dave", *stored.AssignedTo)
}
