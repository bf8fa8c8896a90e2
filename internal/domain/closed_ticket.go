package domain

import "time"

// CloseAction records why a ticket left the live collection.
type CloseAction string

const (
	CloseActionClosed  CloseAction = "Closed"
	CloseActionExpired CloseAction = "Expired"
)

// ClosedTicket is an immutable archive record. It retains the ticket fields
// as they were at closing time and is never mutated afterwards.
type ClosedTicket struct {
	Incident         string
	SID              string
	Category         Category
	TTR              string
	Level            Level
	Status           TicketStatus
	AssignedTo       *string
	LastAssignedTime *time.Time
	Action           CloseAction
	Details          string
	ClosedAt         time.Time
}

// ArchiveTicket builds the archive record for a live ticket.
func ArchiveTicket(t Ticket, action CloseAction, details string, closedAt time.Time) ClosedTicket {
	return ClosedTicket{
		Incident:         t.Incident,
		SID:              t.SID,
		Category:         t.Category,
		TTR:              t.TTR,
		Level:            t.Level,
		Status:           t.Status,
		AssignedTo:       t.AssignedTo,
		LastAssignedTime: t.LastAssignedTime,
		Action:           action,
		Details:          details,
		ClosedAt:         closedAt,
	}
}
