package engine

import (
	"time"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

var levelOrder = []domain.Level{
	domain.LevelL1,
	domain.LevelL2,
	domain.LevelL3,
	domain.LevelL4,
	domain.LevelL5,
	domain.LevelL6,
	domain.LevelL7,
}

var categoryMaxLevel = map[domain.Category]domain.Level{
	domain.CategoryK1: domain.LevelL7,
	domain.CategoryK2: domain.LevelL3,
	domain.CategoryK3: domain.LevelL2,
}

// MaxLevel returns the escalation ceiling for a category. Unknown
// categories get the K1 ceiling so that malformed tickets are never
// escalated past L7.
func MaxLevel(category domain.Category) domain.Level {
	if max, ok := categoryMaxLevel[category]; ok {
		return max
	}
	return domain.LevelL7
}

// IsMaxLevel reports whether the ticket sits at or above its category
// ceiling. Tickets pushed past the ceiling by a re-categorization count as
// maxed so they still archive instead of escalating forever.
func IsMaxLevel(t *domain.Ticket) bool {
	return levelRank(t.Level) <= levelRank(MaxLevel(t.Category))
}

// ClampLevel pins a level to the category ceiling. LevelUnknown passes
// through untouched.
func ClampLevel(category domain.Category, level domain.Level) domain.Level {
	max := MaxLevel(category)
	if levelRank(level) < levelRank(max) {
		return max
	}
	return level
}

// NextLevel advances one escalation step, capped at the category ceiling.
// LevelUnknown never advances.
func NextLevel(category domain.Category, level domain.Level) domain.Level {
	for i, l := range levelOrder {
		if l == level {
			if i == len(levelOrder)-1 {
				return ClampLevel(category, l)
			}
			return ClampLevel(category, levelOrder[i+1])
		}
	}
	return level
}

// levelRank orders levels for scheduling: the most escalated level ranks
// first within a category.
func levelRank(level domain.Level) int {
	for i := len(levelOrder) - 1; i >= 0; i-- {
		if levelOrder[i] == level {
			return len(levelOrder) - i
		}
	}
	return len(levelOrder) + 1
}

func categoryRank(category domain.Category) int {
	switch category {
	case domain.CategoryK1:
		return 1
	case domain.CategoryK2:
		return 2
	case domain.CategoryK3:
		return 3
	default:
		return 4
	}
}

// EscalationOutcome describes where the state machine sends a Completed
// ticket.
type EscalationOutcome struct {
	Status  domain.TicketStatus
	Level   domain.Level
	Archive bool
	Action  domain.CloseAction
	Details string
}

// EvaluateEscalation decides the fate of a Completed ticket: archive when at
// the category ceiling or older than maxCompletedAge since its last
// assignment, otherwise escalate one level into Pending. The assignee is
// retained across the escalation so the same agent re-handles the ticket.
func EvaluateEscalation(t *domain.Ticket, now time.Time, maxCompletedAge time.Duration) EscalationOutcome {
	if t.Status != domain.TicketStatusCompleted {
		return EscalationOutcome{Status: t.Status, Level: t.Level}
	}
	if IsMaxLevel(t) {
		return EscalationOutcome{
			Status:  t.Status,
			Level:   t.Level,
			Archive: true,
			Action:  domain.CloseActionClosed,
			Details: "completed at max escalation level",
		}
	}
	if age, ok := completedAge(t, now); ok && age >= maxCompletedAge {
		return EscalationOutcome{
			Status:  t.Status,
			Level:   t.Level,
			Archive: true,
			Action:  domain.CloseActionClosed,
			Details: "completed ticket exceeded retention age",
		}
	}
	if t.Level == domain.LevelUnknown {
		// Unclassifiable tickets park in Pending without advancing.
		return EscalationOutcome{Status: domain.TicketStatusPending, Level: t.Level}
	}
	return EscalationOutcome{Status: domain.TicketStatusPending, Level: NextLevel(t.Category, t.Level)}
}

// IsStaleActive reports whether an Active assignment has outlived the
// reassignment timeout and must be reclaimed.
func IsStaleActive(t *domain.Ticket, now time.Time, timeout time.Duration) bool {
	if t.Status != domain.TicketStatusActive || t.LastAssignedTime == nil {
		return false
	}
	return now.Sub(*t.LastAssignedTime) >= timeout
}

func completedAge(t *domain.Ticket, now time.Time) (time.Duration, bool) {
	ref := t.LastUpdated
	if ref.IsZero() {
		if t.LastAssignedTime == nil {
			return 0, false
		}
		ref = *t.LastAssignedTime
	}
	return now.Sub(ref), true
}
