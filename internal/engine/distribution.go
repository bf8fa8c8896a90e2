package engine

import (
	"sort"
	"time"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// Policy carries the tunable scheduling constants. The values mirror the
// production defaults; ActiveTicketLimit is the effective admission rule
// (one ticket in flight per agent) while MaxTicketsPerAgent remains the
// configurable ceiling for future tuning.
type Policy struct {
	ReassignmentTimeout time.Duration
	MaxTicketsPerAgent  int
	ActiveTicketLimit   int
	CompletedMaxAge     time.Duration
}

// DefaultPolicy returns the validated production constants.
func DefaultPolicy() Policy {
	return Policy{
		ReassignmentTimeout: 20 * time.Minute,
		MaxTicketsPerAgent:  5,
		ActiveTicketLimit:   1,
		CompletedMaxAge:     24 * time.Hour,
	}
}

// History maps an incident to the set of usernames that already handled it.
type History map[string]map[string]struct{}

// Handled reports whether username already worked the incident.
func (h History) Handled(incident, username string) bool {
	users, ok := h[incident]
	if !ok {
		return false
	}
	_, handled := users[username]
	return handled
}

// Record adds a handled pair.
func (h History) Record(incident, username string) {
	if h[incident] == nil {
		h[incident] = make(map[string]struct{})
	}
	h[incident][username] = struct{}{}
}

// Input is the snapshot a distribution pass operates on. The engine never
// touches storage; the caller loads the snapshot and persists the result.
type Input struct {
	Tickets            []domain.Ticket
	RequestingUser     string
	RequesterOnline    bool
	RequesterIsWorking bool
	ExcludedIncidents  []string
	History            History
	IsBulkUpload       bool
	Now                time.Time
}

// Transition records a status change produced by a pass, for audit logging.
type Transition struct {
	Incident   string
	AssignedTo string
	From       domain.TicketStatus
	To         domain.TicketStatus
	Level      domain.Level
}

// ArchiveCandidate is a ticket leaving the live set.
type ArchiveCandidate struct {
	Ticket  domain.Ticket
	Action  domain.CloseAction
	Details string
}

// Result is everything a pass decided. Tickets holds the surviving live set
// including untouched tickets; Archive holds the ones to move out.
type Result struct {
	Tickets    []domain.Ticket
	Assigned   []domain.Ticket
	Reclaimed  []string
	Normalized []string
	Escalated  []Transition
	Archive    []ArchiveCandidate
}

// Distribute runs one scheduling pass: bulk-upload normalization, stale
// reclaim, escalation sweep, archival filter, then assignment for the
// requesting agent. Pure; all effects are in the returned Result.
func Distribute(in Input, p Policy) Result {
	tickets := make([]domain.Ticket, len(in.Tickets))
	copy(tickets, in.Tickets)

	var result Result

	if in.IsBulkUpload {
		for i := range tickets {
			if tickets[i].Status != domain.TicketStatusPending {
				continue
			}
			tickets[i].Status = domain.TicketStatusOpen
			tickets[i].ClearAssignment()
			tickets[i].DetailCase = ""
			tickets[i].Analisa = ""
			tickets[i].LastUpdated = in.Now
			result.Normalized = append(result.Normalized, tickets[i].Incident)
		}
	}

	for i := range tickets {
		if IsStaleActive(&tickets[i], in.Now, p.ReassignmentTimeout) {
			tickets[i].Status = domain.TicketStatusOpen
			tickets[i].ClearAssignment()
			tickets[i].LastUpdated = in.Now
			result.Reclaimed = append(result.Reclaimed, tickets[i].Incident)
		}
	}

	for i := range tickets {
		if tickets[i].Status != domain.TicketStatusCompleted {
			continue
		}
		outcome := EvaluateEscalation(&tickets[i], in.Now, p.CompletedMaxAge)
		if outcome.Archive {
			continue // picked up by the archival filter below
		}
		transition := Transition{
			Incident: tickets[i].Incident,
			From:     tickets[i].Status,
			To:       outcome.Status,
			Level:    outcome.Level,
		}
		if tickets[i].AssignedTo != nil {
			transition.AssignedTo = *tickets[i].AssignedTo
		}
		tickets[i].Status = outcome.Status
		tickets[i].Level = outcome.Level
		tickets[i].LastUpdated = in.Now
		result.Escalated = append(result.Escalated, transition)
	}

	live := tickets[:0]
	for _, t := range tickets {
		if t.Status == domain.TicketStatusCompleted {
			outcome := EvaluateEscalation(&t, in.Now, p.CompletedMaxAge)
			if outcome.Archive {
				result.Archive = append(result.Archive, ArchiveCandidate{
					Ticket:  t,
					Action:  outcome.Action,
					Details: outcome.Details,
				})
				continue
			}
		}
		live = append(live, t)
	}
	result.Tickets = live

	remaining := remainingCapacity(live, in.RequestingUser, p)
	if remaining <= 0 || !in.RequesterOnline || !in.RequesterIsWorking {
		return result
	}

	excluded := make(map[string]struct{}, len(in.ExcludedIncidents))
	for _, incident := range in.ExcludedIncidents {
		excluded[incident] = struct{}{}
	}

	eligible := make([]int, 0, len(live))
	for i := range live {
		t := &live[i]
		if t.Status != domain.TicketStatusOpen || t.AssignedTo != nil {
			continue
		}
		if t.Level == domain.LevelUnknown {
			continue
		}
		if _, skip := excluded[t.Incident]; skip {
			continue
		}
		if in.History.Handled(t.Incident, in.RequestingUser) {
			continue
		}
		eligible = append(eligible, i)
	}

	sort.SliceStable(eligible, func(a, b int) bool {
		ta, tb := &live[eligible[a]], &live[eligible[b]]
		if ca, cb := categoryRank(ta.Category), categoryRank(tb.Category); ca != cb {
			return ca < cb
		}
		return levelRank(ta.Level) < levelRank(tb.Level)
	})

	if remaining > len(eligible) {
		remaining = len(eligible)
	}
	for _, idx := range eligible[:remaining] {
		t := &live[idx]
		username := in.RequestingUser
		assignedAt := in.Now
		t.Status = domain.TicketStatusActive
		t.AssignedTo = &username
		t.LastAssignedTime = &assignedAt
		t.LastUpdated = in.Now
		result.Assigned = append(result.Assigned, *t)
	}

	return result
}

func remainingCapacity(tickets []domain.Ticket, username string, p Policy) int {
	active := 0
	for i := range tickets {
		if tickets[i].Status == domain.TicketStatusActive && tickets[i].Assigned(username) {
			active++
		}
	}
	limit := p.ActiveTicketLimit
	if limit <= 0 || limit > p.MaxTicketsPerAgent {
		limit = p.MaxTicketsPerAgent
	}
	return limit - active
}
