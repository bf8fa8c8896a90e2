package domain

import "time"

// LogAction enumerates assignment-log entry kinds.
type LogAction string

const (
	LogActionAssigned     LogAction = "Assigned"
	LogActionReclaimed    LogAction = "Reclaimed"
	LogActionCompleted    LogAction = "Completed"
	LogActionStatusChange LogAction = "Status Change"
	LogActionClosed       LogAction = "Closed"
)

// AssignmentLogEntry is an append-only record of what happened to a ticket
// for an agent. The (TicketID, Username) pairs double as the history
// exclusion set: an agent never receives a ticket it already handled.
type AssignmentLogEntry struct {
	ID        string
	TicketID  string
	Username  string
	Action    LogAction
	Details   string
	Timestamp time.Time
}
