package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/engine"
)

// AssignmentLogRepository persists the append-only assignment log.
type AssignmentLogRepository interface {
	Append(ctx context.Context, entries []domain.AssignmentLogEntry) error
	// History returns the incident -> handled-by-usernames map used for
	// assignment exclusion.
	History(ctx context.Context) (engine.History, error)
	ListForUser(ctx context.Context, username string) ([]domain.AssignmentLogEntry, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.AssignmentLogEntry, error)
}

type assignmentLogRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentLogRepository instantiates repository.
func NewAssignmentLogRepository(pool *pgxpool.Pool) AssignmentLogRepository {
	return &assignmentLogRepository{pool: pool}
}

func (r *assignmentLogRepository) Append(ctx context.Context, entries []domain.AssignmentLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	const query = `
        INSERT INTO assignment_log (ticket_id, username, action, details, ts)
        VALUES ($1,$2,$3,$4,$5)`
	batch := &pgx.Batch{}
	for i := range entries {
		e := &entries[i]
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		batch.Queue(query, e.TicketID, e.Username, e.Action, e.Details, ts)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *assignmentLogRepository) History(ctx context.Context) (engine.History, error) {
	const query = `SELECT DISTINCT ticket_id, username FROM assignment_log`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := engine.History{}
	for rows.Next() {
		var ticketID, username string
		if err := rows.Scan(&ticketID, &username); err != nil {
			return nil, err
		}
		history.Record(ticketID, username)
	}
	return history, rows.Err()
}

func (r *assignmentLogRepository) ListForUser(ctx context.Context, username string) ([]domain.AssignmentLogEntry, error) {
	const query = `
        SELECT id, ticket_id, username, action, details, ts
        FROM assignment_log WHERE username=$1 ORDER BY ts DESC`
	return r.queryEntries(ctx, query, username)
}

func (r *assignmentLogRepository) ListBetween(ctx context.Context, from, to time.Time) ([]domain.AssignmentLogEntry, error) {
	const query = `
        SELECT id, ticket_id, username, action, details, ts
        FROM assignment_log WHERE ts >= $1 AND ts < $2 ORDER BY ts DESC`
	return r.queryEntries(ctx, query, from, to)
}

func (r *assignmentLogRepository) queryEntries(ctx context.Context, query string, args ...any) ([]domain.AssignmentLogEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentLogEntry
	for rows.Next() {
		var entry domain.AssignmentLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Username,
			&entry.Action,
			&entry.Details,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
