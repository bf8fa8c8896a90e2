package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

// AgentRepository defines persistence access for the agent roster.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	GetByUsername(ctx context.Context, username string) (*domain.Agent, error)
	List(ctx context.Context) ([]domain.Agent, error)
	ListOnline(ctx context.Context) ([]domain.Agent, error)
	SetSession(ctx context.Context, username string, token *string, loggedIn bool, at time.Time) error
	SetWorking(ctx context.Context, username string, working bool, at time.Time) error
	SetRole(ctx context.Context, username string, role domain.AgentRole) error
	TouchAssignment(ctx context.Context, username string, at time.Time) error
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository returns a Postgres-backed implementation.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, username, password_hash, role, logged_in, is_working, session_token,
        last_login_time, last_logout_time, last_assigned_time, last_activity, created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (username, password_hash, role)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		agent.Username,
		agent.PasswordHash,
		agent.Role,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
}

func (r *agentRepository) GetByUsername(ctx context.Context, username string) (*domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE username=$1`
	return scanAgentRow(r.pool.QueryRow(ctx, query, username))
}

func (r *agentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents ORDER BY username`
	return r.queryAgents(ctx, query)
}

func (r *agentRepository) ListOnline(ctx context.Context) ([]domain.Agent, error) {
	const query = `SELECT ` + agentColumns + ` FROM agents WHERE logged_in=TRUE ORDER BY username`
	return r.queryAgents(ctx, query)
}

func (r *agentRepository) SetSession(ctx context.Context, username string, token *string, loggedIn bool, at time.Time) error {
	const query = `
        UPDATE agents
        SET session_token=$2,
            logged_in=$3,
            last_login_time=CASE WHEN $3 THEN $4 ELSE last_login_time END,
            last_logout_time=CASE WHEN $3 THEN last_logout_time ELSE $4 END,
            last_activity=$4,
            updated_at=NOW()
        WHERE username=$1`
	cmd, err := r.pool.Exec(ctx, query, username, token, loggedIn, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) SetWorking(ctx context.Context, username string, working bool, at time.Time) error {
	const query = `
        UPDATE agents SET is_working=$2, last_activity=$3, updated_at=NOW()
        WHERE username=$1`
	cmd, err := r.pool.Exec(ctx, query, username, working, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) SetRole(ctx context.Context, username string, role domain.AgentRole) error {
	const query = `UPDATE agents SET role=$2, updated_at=NOW() WHERE username=$1`
	cmd, err := r.pool.Exec(ctx, query, username, role)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) TouchAssignment(ctx context.Context, username string, at time.Time) error {
	const query = `
        UPDATE agents SET last_assigned_time=$2, last_activity=$2, updated_at=NOW()
        WHERE username=$1`
	_, err := r.pool.Exec(ctx, query, username, at)
	return err
}

func (r *agentRepository) queryAgents(ctx context.Context, query string, args ...any) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func scanAgentRow(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.Username,
		&agent.PasswordHash,
		&agent.Role,
		&agent.LoggedIn,
		&agent.IsWorking,
		&agent.SessionToken,
		&agent.LastLoginTime,
		&agent.LastLogoutTime,
		&agent.LastAssignedTime,
		&agent.LastActivity,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
