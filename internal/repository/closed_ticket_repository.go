package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// ClosedTicketRepository manages the immutable archive.
type ClosedTicketRepository interface {
	// ArchiveAndRemove inserts archive records and deletes the matching live
	// tickets in one transaction. The insert happens first so a partial
	// failure can never delete a ticket that has no archive record.
	// Idempotent: a retried insert for the same (incident, closed_at) is a
	// no-op.
	ArchiveAndRemove(ctx context.Context, records []domain.ClosedTicket) error
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.ClosedTicket, error)
	DeleteByIncident(ctx context.Context, incident string) error
}

type closedTicketRepository struct {
	pool *pgxpool.Pool
}

// NewClosedTicketRepository instantiates repository.
func NewClosedTicketRepository(pool *pgxpool.Pool) ClosedTicketRepository {
	return &closedTicketRepository{pool: pool}
}

func (r *closedTicketRepository) ArchiveAndRemove(ctx context.Context, records []domain.ClosedTicket) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
            INSERT INTO closed_tickets (incident, sid, category, ttr, level, status,
                assigned_to, last_assigned_time, action, details, closed_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
            ON CONFLICT (incident, closed_at) DO NOTHING`

		incidents := make([]string, 0, len(records))
		for i := range records {
			rec := &records[i]
			if _, err := tx.Exec(ctx, insert,
				rec.Incident,
				rec.SID,
				rec.Category,
				rec.TTR,
				rec.Level,
				rec.Status,
				rec.AssignedTo,
				rec.LastAssignedTime,
				rec.Action,
				rec.Details,
				rec.ClosedAt,
			); err != nil {
				return err
			}
			incidents = append(incidents, rec.Incident)
		}

		_, err := tx.Exec(ctx, `DELETE FROM tickets WHERE incident = ANY($1)`, incidents)
		return err
	})
}

func (r *closedTicketRepository) ListBetween(ctx context.Context, from, to time.Time) ([]domain.ClosedTicket, error) {
	const query = `
        SELECT incident, sid, category, ttr, level, status, assigned_to,
               last_assigned_time, action, details, closed_at
        FROM closed_tickets
        WHERE closed_at >= $1 AND closed_at < $2
        ORDER BY closed_at DESC`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ClosedTicket
	for rows.Next() {
		var rec domain.ClosedTicket
		if err := rows.Scan(
			&rec.Incident,
			&rec.SID,
			&rec.Category,
			&rec.TTR,
			&rec.Level,
			&rec.Status,
			&rec.AssignedTo,
			&rec.LastAssignedTime,
			&rec.Action,
			&rec.Details,
			&rec.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *closedTicketRepository) DeleteByIncident(ctx context.Context, incident string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM closed_tickets WHERE incident=$1`, incident)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
