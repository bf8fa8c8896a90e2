package events

import (
	"time"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketReclaimed     EventType = "ticket_reclaimed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketArchived      EventType = "ticket_archived"
	EventAgentWorkingChanged EventType = "agent_working_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Incident  string      `json:"incident,omitempty"`
	Username  string      `json:"username,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Category domain.Category `json:"category"`
	Level    domain.Level    `json:"level"`
}

// TicketReclaimedPayload payload.
type TicketReclaimedPayload struct {
	PreviousAssignee string `json:"previous_assignee,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	FromLevel domain.Level `json:"from_level"`
	ToLevel   domain.Level `json:"to_level"`
	Retained  bool         `json:"assignee_retained"`
}

// TicketArchivedPayload payload.
type TicketArchivedPayload struct {
	Action  domain.CloseAction `json:"action"`
	Details string             `json:"details,omitempty"`
}

// AgentWorkingChangedPayload payload.
type AgentWorkingChangedPayload struct {
	IsWorking bool `json:"is_working"`
}
