package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

func newIngestFixture(t *testing.T, tickets *fakeTicketRepo, now time.Time) (*IngestService, *fakeClosedRepo) {
	t.Helper()
	closed := &fakeClosedRepo{live: tickets}
	svc := NewIngestService(IngestDependencies{
		TicketRepo:  tickets,
		ArchiveRepo: closed,
	})
	svc.now = func() time.Time { return now }
	return svc, closed
}

func TestProcessBatchClassifiesNewTickets(t *testing.T) {
	now := time.Now()
	tickets := newFakeTicketRepo()
	svc, _ := newIngestFixture(t, tickets, now)

	result, err := svc.ProcessBatch(context.Background(), []IncomingTicket{
		{Incident: "INC-1", SID: "S1", Category: domain.CategoryK1, TTR: "10:00:00"},
		{Incident: "INC-2", SID: "S2", Category: domain.CategoryK2, TTR: "01:31:00"},
		{Incident: "INC-3", SID: "S3", Category: domain.CategoryK3, TTR: "00:45:00"},
		{Incident: "INC-4", SID: "S4"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Inserted)

	expect := map[string]domain.Level{
		"INC-1": domain.LevelL7,
		"INC-2": domain.LevelL3,
		"INC-3": domain.LevelL1,
		"INC-4": domain.LevelUnknown,
	}
	for incident, level := range expect {
		stored, err := tickets.GetByIncident(context.Background(), incident)
		require.NoError(t, err)
		assert.Equal(t, level, stored.Level, incident)
		assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	}
}

func TestProcessBatchEscalatesCompletedBelowCeiling(t *testing.T) {
	now := time.Now()
	eve := "eve"
	tickets := newFakeTicketRepo(domain.Ticket{
		Incident:    "INC-1",
		Category:    domain.CategoryK2,
		TTR:         "01:10:00",
		Level:       domain.LevelL2,
		Status:      domain.TicketStatusCompleted,
		AssignedTo:  &eve,
		LastUpdated: now.Add(-10 * time.Minute),
	})
	svc, _ := newIngestFixture(t, tickets, now)

	result, err := svc.ProcessBatch(context.Background(), []IncomingTicket{
		{Incident: "INC-1", Category: domain.CategoryK2, TTR: "01:40:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)

	stored, err := tickets.GetByIncident(context.Background(), "INC-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, stored.Status)
	assert.Equal(t, domain.LevelL3, stored.Level)
	assert.Equal(t, "01:40:00", stored.TTR, "batch fields are merged")
}

func TestProcessBatchClosesCompletedAtCeiling(t *testing.T) {
	now := time.Now()
	tickets := newFakeTicketRepo(domain.Ticket{
		Incident:    "INC-1",
		Category:    domain.CategoryK3,
		Level:       domain.LevelL2,
		Status:      domain.TicketStatusCompleted,
		LastUpdated: now.Add(-10 * time.Minute),
	})
	svc, closed := newIngestFixture(t, tickets, now)

	result, err := svc.ProcessBatch(context.Background(), []IncomingTicket{
		{Incident: "INC-1", Category: domain.CategoryK3, TTR: "01:10:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Closed)

	require.Len(t, closed.records, 1)
	assert.Equal(t, domain.CloseActionClosed, closed.records[0].Action)
	_, err = tickets.GetByIncident(context.Background(), "INC-1")
	assert.Error(t, err)
}

func TestProcessBatchExpiresStaleAbsentees(t *testing.T) {
	now := time.Now()
	tickets := newFakeTicketRepo(
		domain.Ticket{
			Incident:    "INC-OLD",
			Category:    domain.CategoryK1,
			Level:       domain.LevelL1,
			Status:      domain.TicketStatusOpen,
			LastUpdated: now.Add(-2 * time.Hour),
		},
		domain.Ticket{
			Incident:    "INC-FRESH",
			Category:    domain.CategoryK1,
			Level:       domain.LevelL1,
			Status:      domain.TicketStatusOpen,
			LastUpdated: now.Add(-10 * time.Minute),
		},
	)
	svc, closed := newIngestFixture(t, tickets, now)

	result, err := svc.ProcessBatch(context.Background(), []IncomingTicket{
		{Incident: "INC-NEW", Category: domain.CategoryK1, TTR: "00:30:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)

	require.Len(t, closed.records, 1)
	assert.Equal(t, "INC-OLD", closed.records[0].Incident)
	assert.Equal(t, domain.CloseActionExpired, closed.records[0].Action)

	_, err = tickets.GetByIncident(context.Background(), "INC-FRESH")
	assert.NoError(t, err, "recently touched absentees survive")
}

func TestProcessBatchRejectsEmptyAndInvalid(t *testing.T) {
	svc, _ := newIngestFixture(t, newFakeTicketRepo(), time.Now())

	_, err := svc.ProcessBatch(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = svc.ProcessBatch(context.Background(), []IncomingTicket{{Incident: "  "}})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestDailyResetArchivesEverything(t *testing.T) {
	now := time.Now()
	tickets := newFakeTicketRepo(
		openTicket("INC-1", domain.CategoryK1, domain.LevelL2),
		openTicket("INC-2", domain.CategoryK2, domain.LevelL1),
	)
	svc, closed := newIngestFixture(t, tickets, now)

	archived, err := svc.DailyReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	require.Len(t, closed.records, 2)
	for _, rec := range closed.records {
		assert.Equal(t, domain.CloseActionClosed, rec.Action)
		assert.Equal(t, "Daily Reset", rec.Details)
	}
	remaining, err := tickets.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestProcessBatchClampsLevelOnRecategorization(t *testing.T) {
	now := time.Now()
	tickets := newFakeTicketRepo(domain.Ticket{
		Incident:    "INC-RC",
		Category:    domain.CategoryK1,
		TTR:         "08:00:00",
		Level:       domain.LevelL5,
		Status:      domain.TicketStatusOpen,
		LastUpdated: now.Add(-10 * time.Minute),
	})
	svc, _ := newIngestFixture(t, tickets, now)

	result, err := svc.ProcessBatch(context.Background(), []IncomingTicket{
		{Incident: "INC-RC", Category: domain.CategoryK3, TTR: "01:10:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	stored, err := tickets.GetByIncident(context.Background(), "INC-RC")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryK3, stored.Category)
	assert.Equal(t, domain.LevelL2, stored.Level, "level cannot exceed the new category ceiling")
}

func TestProcessBatchReuploadAfterArchiveStartsFresh(t *testing.T) {
	now := time.Now()
	grace := "grace"
	tickets := newFakeTicketRepo(domain.Ticket{
		Incident:    "INC-RT",
		SID:         "S-OLD",
		Category:    domain.CategoryK3,
		TTR:         "01:10:00",
		Level:       domain.LevelL2,
		Status:      domain.TicketStatusCompleted,
		AssignedTo:  &grace,
		DetailCase:  "root cause found",
		LastUpdated: now.Add(-10 * time.Minute),
	})
	svc, closed := newIngestFixture(t, tickets, now)

	result, err := svc.ProcessBatch(context.Background(), []IncomingTicket{
		{Incident: "INC-RT", SID: "S-OLD", Category: domain.CategoryK3, TTR: "01:10:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Closed)
	require.Len(t, closed.records, 1)

	result, err = svc.ProcessBatch(context.Background(), []IncomingTicket{
		{Incident: "INC-RT", SID: "S-NEW", Category: domain.CategoryK3, TTR: "00:45:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	stored, err := tickets.GetByIncident(context.Background(), "INC-RT")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Equal(t, domain.LevelL1, stored.Level, "reclassified from the new TTR")
	assert.Equal(t, "S-NEW", stored.SID)
	assert.Nil(t, stored.AssignedTo)
	assert.Empty(t, stored.DetailCase)

	require.Len(t, closed.records, 1, "re-upload leaves the archive untouched")
	assert.Equal(t, domain.CloseActionClosed, closed.records[0].Action)
	assert.Equal(t, domain.LevelL2, closed.records[0].Level)
	assert.Equal(t, grace, *closed.records[0].AssignedTo)
}
