package domain

import "time"

// TicketStatus enumerates lifecycle states for live tickets. Anything
// beyond these four lives in the closed_tickets archive as a ClosedTicket.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "Open"
	TicketStatusActive    TicketStatus = "Active"
	TicketStatusCompleted TicketStatus = "Completed"
	TicketStatusPending   TicketStatus = "Pending"
)

// Category is the priority class of an incident. K1 carries the highest
// escalation ceiling, K3 the lowest.
type Category string

const (
	CategoryK1      Category = "K1"
	CategoryK2      Category = "K2"
	CategoryK3      Category = "K3"
	CategoryUnknown Category = ""
)

// Level is the escalation level of a ticket within its category.
type Level string

const (
	LevelL1 Level = "L1"
	LevelL2 Level = "L2"
	LevelL3 Level = "L3"
	LevelL4 Level = "L4"
	LevelL5 Level = "L5"
	LevelL6 Level = "L6"
	LevelL7 Level = "L7"

	// LevelUnknown marks tickets that arrived without a category or TTR.
	// They are never auto-assigned and never escalate.
	LevelUnknown Level = "Unknown"
)

// Ticket is the live incident aggregate, keyed by Incident.
type Ticket struct {
	Incident         string
	SID              string
	Category         Category
	TTR              string // elapsed time-to-resolve, HH:MM:SS
	Level            Level
	Status           TicketStatus
	AssignedTo       *string
	LastAssignedTime *time.Time
	LastUpdated      time.Time
	DetailCase       string
	Analisa          string
	EscalationNote   string
	CreatedAt        time.Time
}

// Assigned reports whether the ticket is held by the given agent.
func (t *Ticket) Assigned(username string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == username
}

// ClearAssignment drops the assignment fields. Status is left to the caller.
func (t *Ticket) ClearAssignment() {
	t.AssignedTo = nil
	t.LastAssignedTime = nil
}
