package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// TicketRepository encapsulates live-ticket persistence.
type TicketRepository interface {
	GetByIncident(ctx context.Context, incident string) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListByStatus(ctx context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error)
	ListAssignedTo(ctx context.Context, username string) ([]domain.Ticket, error)
	// BulkUpsert writes the full ticket set as per-document upserts keyed by
	// incident. Idempotent under retry.
	BulkUpsert(ctx context.Context, tickets []domain.Ticket) error
	// ClaimForAgent assigns an Open, unassigned ticket to the agent with a
	// conditional update. Returns false when another cycle won the race.
	ClaimForAgent(ctx context.Context, incident, username string, at time.Time) (bool, error)
	// Release reopens one Active ticket, clearing the assignment.
	Release(ctx context.Context, incident string, at time.Time) error
	UpdateResolution(ctx context.Context, ticket *domain.Ticket) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `incident, sid, category, ttr, level, status, assigned_to,
        last_assigned_time, last_updated, detail_case, analisa, escalation_note, created_at`

func (r *ticketRepository) GetByIncident(ctx context.Context, incident string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE incident=$1`
	row := r.pool.QueryRow(ctx, query, incident)
	ticket, err := scanTicket(row)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets ORDER BY incident`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE status = ANY($1) ORDER BY incident`
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, query, values)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListAssignedTo(ctx context.Context, username string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE assigned_to=$1 ORDER BY incident`
	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) BulkUpsert(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	const query = `
        INSERT INTO tickets (incident, sid, category, ttr, level, status, assigned_to,
            last_assigned_time, last_updated, detail_case, analisa, escalation_note)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (incident) DO UPDATE SET
            sid=EXCLUDED.sid,
            category=EXCLUDED.category,
            ttr=EXCLUDED.ttr,
            level=EXCLUDED.level,
            status=EXCLUDED.status,
            assigned_to=EXCLUDED.assigned_to,
            last_assigned_time=EXCLUDED.last_assigned_time,
            last_updated=EXCLUDED.last_updated,
            detail_case=EXCLUDED.detail_case,
            analisa=EXCLUDED.analisa,
            escalation_note=EXCLUDED.escalation_note`

	batch := &pgx.Batch{}
	for i := range tickets {
		t := &tickets[i]
		batch.Queue(query,
			t.Incident,
			t.SID,
			t.Category,
			t.TTR,
			t.Level,
			t.Status,
			t.AssignedTo,
			t.LastAssignedTime,
			t.LastUpdated,
			t.DetailCase,
			t.Analisa,
			t.EscalationNote,
		)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range tickets {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *ticketRepository) ClaimForAgent(ctx context.Context, incident, username string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets
        SET status=$3, assigned_to=$2, last_assigned_time=$4, last_updated=$4
        WHERE incident=$1 AND status=$5 AND assigned_to IS NULL`
	cmd, err := r.pool.Exec(ctx, query,
		incident,
		username,
		domain.TicketStatusActive,
		at,
		domain.TicketStatusOpen,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) Release(ctx context.Context, incident string, at time.Time) error {
	const query = `
        UPDATE tickets
        SET status=$2, assigned_to=NULL, last_assigned_time=NULL, last_updated=$3
        WHERE incident=$1 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query, incident, domain.TicketStatusOpen, at, domain.TicketStatusActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateResolution(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets
        SET status=$2, level=$3, detail_case=$4, analisa=$5, escalation_note=$6, last_updated=$7
        WHERE incident=$1`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Incident,
		ticket.Status,
		ticket.Level,
		ticket.DetailCase,
		ticket.Analisa,
		ticket.EscalationNote,
		ticket.LastUpdated,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.Incident,
		&ticket.SID,
		&ticket.Category,
		&ticket.TTR,
		&ticket.Level,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.LastAssignedTime,
		&ticket.LastUpdated,
		&ticket.DetailCase,
		&ticket.Analisa,
		&ticket.EscalationNote,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
