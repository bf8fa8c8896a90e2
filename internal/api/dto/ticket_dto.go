package dto

import (
	"time"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/service"
)

// UploadTicket is one row of an uploaded batch.
type UploadTicket struct {
	Incident string `json:"incident"`
	SID      string `json:"sid"`
	Category string `json:"category"`
	TTR      string `json:"ttr"`
}

// UploadRequest payload for batch uploads.
type UploadRequest struct {
	Tickets []UploadTicket `json:"tickets"`
}

// ToIncoming converts the wire rows to service inputs.
func (r *UploadRequest) ToIncoming() []service.IncomingTicket {
	batch := make([]service.IncomingTicket, 0, len(r.Tickets))
	for _, row := range r.Tickets {
		batch = append(batch, service.IncomingTicket{
			Incident: row.Incident,
			SID:      row.SID,
			Category: domain.Category(row.Category),
			TTR:      row.TTR,
		})
	}
	return batch
}

// DistributeRequest payload for a distribution cycle.
type DistributeRequest struct {
	IsBulkUpload      bool     `json:"is_bulk_upload"`
	ExcludedIncidents []string `json:"excluded_incidents,omitempty"`
}

// ResolutionRequest payload for completing or saving a ticket.
type ResolutionRequest struct {
	DetailCase     string `json:"detail_case"`
	Analisa        string `json:"analisa"`
	EscalationNote string `json:"escalation_note"`
}

// CloseRequest payload for manually archiving a ticket.
type CloseRequest struct {
	Details string `json:"details"`
}

// TicketResponse is the wire representation of a live ticket.
type TicketResponse struct {
	Incident         string     `json:"incident"`
	SID              string     `json:"sid"`
	Category         string     `json:"category"`
	TTR              string     `json:"ttr"`
	Level            string     `json:"level"`
	Status           string     `json:"status"`
	AssignedTo       *string    `json:"assigned_to,omitempty"`
	LastAssignedTime *time.Time `json:"last_assigned_time,omitempty"`
	LastUpdated      time.Time  `json:"last_updated"`
	DetailCase       string     `json:"detail_case,omitempty"`
	Analisa          string     `json:"analisa,omitempty"`
	EscalationNote   string     `json:"escalation_note,omitempty"`
}

// FromTicket maps a domain ticket.
func FromTicket(t domain.Ticket) TicketResponse {
	return TicketResponse{
		Incident:         t.Incident,
		SID:              t.SID,
		Category:         string(t.Category),
		TTR:              t.TTR,
		Level:            string(t.Level),
		Status:           string(t.Status),
		AssignedTo:       t.AssignedTo,
		LastAssignedTime: t.LastAssignedTime,
		LastUpdated:      t.LastUpdated,
		DetailCase:       t.DetailCase,
		Analisa:          t.Analisa,
		EscalationNote:   t.EscalationNote,
	}
}

// FromTickets maps a slice of domain tickets.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, FromTicket(t))
	}
	return out
}

// ClosedTicketResponse is the wire representation of an archive record.
type ClosedTicketResponse struct {
	Incident   string    `json:"incident"`
	SID        string    `json:"sid"`
	Category   string    `json:"category"`
	TTR        string    `json:"ttr"`
	Level      string    `json:"level"`
	AssignedTo *string   `json:"assigned_to,omitempty"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	ClosedAt   time.Time `json:"closed_at"`
}

// FromClosedTicket maps an archive record.
func FromClosedTicket(rec domain.ClosedTicket) ClosedTicketResponse {
	return ClosedTicketResponse{
		Incident:   rec.Incident,
		SID:        rec.SID,
		Category:   string(rec.Category),
		TTR:        rec.TTR,
		Level:      string(rec.Level),
		AssignedTo: rec.AssignedTo,
		Action:     string(rec.Action),
		Details:    rec.Details,
		ClosedAt:   rec.ClosedAt,
	}
}

// LogEntryResponse is the wire representation of an assignment-log entry.
type LogEntryResponse struct {
	TicketID  string    `json:"ticket_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FromLogEntries maps a slice of log entries.
func FromLogEntries(entries []domain.AssignmentLogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, LogEntryResponse{
			TicketID:  entry.TicketID,
			Username:  entry.Username,
			Action:    string(entry.Action),
			Details:   entry.Details,
			Timestamp: entry.Timestamp,
		})
	}
	return out
}

// FromClosedTickets maps a slice of archive records.
func FromClosedTickets(records []domain.ClosedTicket) []ClosedTicketResponse {
	out := make([]ClosedTicketResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, FromClosedTicket(rec))
	}
	return out
}
