package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

func TestNextLevel(t *testing.T) {
	assert.Equal(t, domain.LevelL2, NextLevel(domain.CategoryK1, domain.LevelL1))
	assert.Equal(t, domain.LevelL7, NextLevel(domain.CategoryK1, domain.LevelL6))
	assert.Equal(t, domain.LevelL7, NextLevel(domain.CategoryK1, domain.LevelL7))
	assert.Equal(t, domain.LevelUnknown, NextLevel(domain.CategoryK1, domain.LevelUnknown))
}

func TestNextLevelCapsAtCategoryCeiling(t *testing.T) {
	assert.Equal(t, domain.LevelL3, NextLevel(domain.CategoryK2, domain.LevelL2))
	assert.Equal(t, domain.LevelL3, NextLevel(domain.CategoryK2, domain.LevelL3))
	assert.Equal(t, domain.LevelL2, NextLevel(domain.CategoryK3, domain.LevelL1))
	assert.Equal(t, domain.LevelL2, NextLevel(domain.CategoryK3, domain.LevelL2))
	assert.Equal(t, domain.LevelL2, NextLevel(domain.CategoryK3, domain.LevelL5))
}

func TestClampLevel(t *testing.T) {
	assert.Equal(t, domain.LevelL2, ClampLevel(domain.CategoryK3, domain.LevelL5))
	assert.Equal(t, domain.LevelL3, ClampLevel(domain.CategoryK2, domain.LevelL7))
	assert.Equal(t, domain.LevelL1, ClampLevel(domain.CategoryK3, domain.LevelL1))
	assert.Equal(t, domain.LevelL5, ClampLevel(domain.CategoryK1, domain.LevelL5))
	assert.Equal(t, domain.LevelUnknown, ClampLevel(domain.CategoryK3, domain.LevelUnknown))
}

func TestIsMaxLevelAboveCeiling(t *testing.T) {
	over := domain.Ticket{Incident: "INC-9", Category: domain.CategoryK3, Level: domain.LevelL5}
	assert.True(t, IsMaxLevel(&over))
	at := domain.Ticket{Incident: "INC-10", Category: domain.CategoryK3, Level: domain.LevelL2}
	assert.True(t, IsMaxLevel(&at))
	under := domain.Ticket{Incident: "INC-11", Category: domain.CategoryK2, Level: domain.LevelL2}
	assert.False(t, IsMaxLevel(&under))
}

func TestMaxLevel(t *testing.T) {
	assert.Equal(t, domain.LevelL7, MaxLevel(domain.CategoryK1))
	assert.Equal(t, domain.LevelL3, MaxLevel(domain.CategoryK2))
	assert.Equal(t, domain.LevelL2, MaxLevel(domain.CategoryK3))
	assert.Equal(t, domain.LevelL7, MaxLevel(domain.CategoryUnknown))
}

func TestEvaluateEscalationBelowCeiling(t *testing.T) {
	now := time.Now()
	agent := "lina"
	ticket := domain.Ticket{
		Incident:    "INC-1",
		Category:    domain.CategoryK1,
		Level:       domain.LevelL2,
		Status:      domain.TicketStatusCompleted,
		AssignedTo:  &agent,
		LastUpdated: now.Add(-time.Hour),
	}

	outcome := EvaluateEscalation(&ticket, now, 24*time.Hour)
	assert.False(t, outcome.Archive)
	assert.Equal(t, domain.TicketStatusPending, outcome.Status)
	assert.Equal(t, domain.LevelL3, outcome.Level)
}

func TestEvaluateEscalationAtCeiling(t *testing.T) {
	now := time.Now()
	ticket := domain.Ticket{
		Incident:    "INC-2",
		Category:    domain.CategoryK2,
		Level:       domain.LevelL3,
		Status:      domain.TicketStatusCompleted,
		LastUpdated: now,
	}

	outcome := EvaluateEscalation(&ticket, now, 24*time.Hour)
	assert.True(t, outcome.Archive)
	assert.Equal(t, domain.CloseActionClosed, outcome.Action)
}

func TestEvaluateEscalationAgedOut(t *testing.T) {
	now := time.Now()
	ticket := domain.Ticket{
		Incident:    "INC-3",
		Category:    domain.CategoryK1,
		Level:       domain.LevelL1,
		Status:      domain.TicketStatusCompleted,
		LastUpdated: now.Add(-25 * time.Hour),
	}

	outcome := EvaluateEscalation(&ticket, now, 24*time.Hour)
	assert.True(t, outcome.Archive, "a completed ticket past retention closes regardless of level")
}

func TestEvaluateEscalationIgnoresNonCompleted(t *testing.T) {
	now := time.Now()
	for _, status := range []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusActive, domain.TicketStatusPending} {
		ticket := domain.Ticket{Incident: "INC-4", Category: domain.CategoryK1, Level: domain.LevelL1, Status: status}
		outcome := EvaluateEscalation(&ticket, now, 24*time.Hour)
		assert.False(t, outcome.Archive)
		assert.Equal(t, status, outcome.Status)
		assert.Equal(t, domain.LevelL1, outcome.Level)
	}
}

func TestIsStaleActive(t *testing.T) {
	now := time.Now()
	recent := now.Add(-5 * time.Minute)
	old := now.Add(-21 * time.Minute)
	agent := "dimas"

	fresh := domain.Ticket{Status: domain.TicketStatusActive, AssignedTo: &agent, LastAssignedTime: &recent}
	stale := domain.Ticket{Status: domain.TicketStatusActive, AssignedTo: &agent, LastAssignedTime: &old}
	open := domain.Ticket{Status: domain.TicketStatusOpen, LastAssignedTime: &old}

	assert.False(t, IsStaleActive(&fresh, now, 20*time.Minute))
	assert.True(t, IsStaleActive(&stale, now, 20*time.Minute))
	assert.False(t, IsStaleActive(&open, now, 20*time.Minute))
}
