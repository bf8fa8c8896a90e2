package service

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-dispatch/internal/domain"
	"github.com/spec-kit/incident-dispatch/internal/engine"
)

type fakeTicketRepo struct {
	tickets map[string]domain.Ticket
}

func newFakeTicketRepo(tickets ...domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: map[string]domain.Ticket{}}
	for _, t := range tickets {
		repo.tickets[t.Incident] = t
	}
	return repo
}

func (r *fakeTicketRepo) GetByIncident(_ context.Context, incident string) (*domain.Ticket, error) {
	t, ok := r.tickets[incident]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r *fakeTicketRepo) ListAll(context.Context) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Incident < out[j].Incident })
	return out, nil
}

func (r *fakeTicketRepo) ListByStatus(_ context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range r.tickets {
		for _, status := range statuses {
			if t.Status == status {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Incident < out[j].Incident })
	return out, nil
}

func (r *fakeTicketRepo) ListAssignedTo(_ context.Context, username string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.Assigned(username) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Incident < out[j].Incident })
	return out, nil
}

func (r *fakeTicketRepo) BulkUpsert(_ context.Context, tickets []domain.Ticket) error {
	for _, t := range tickets {
		r.tickets[t.Incident] = t
	}
	return nil
}

func (r *fakeTicketRepo) ClaimForAgent(_ context.Context, incident, username string, at time.Time) (bool, error) {
	t, ok := r.tickets[incident]
	if !ok || t.Status != domain.TicketStatusOpen || t.AssignedTo != nil {
		return false, nil
	}
	t.Status = domain.TicketStatusActive
	t.AssignedTo = &username
	t.LastAssignedTime = &at
	t.LastUpdated = at
	r.tickets[incident] = t
	return true, nil
}

func (r *fakeTicketRepo) Release(_ context.Context, incident string, at time.Time) error {
	t, ok := r.tickets[incident]
	if !ok || t.Status != domain.TicketStatusActive {
		return pgx.ErrNoRows
	}
	t.Status = domain.TicketStatusOpen
	t.ClearAssignment()
	t.LastUpdated = at
	r.tickets[incident] = t
	return nil
}

func (r *fakeTicketRepo) UpdateResolution(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.Incident]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.Incident] = *ticket
	return nil
}

type fakeClosedRepo struct {
	records []domain.ClosedTicket
	live    *fakeTicketRepo
}

func (r *fakeClosedRepo) ArchiveAndRemove(_ context.Context, records []domain.ClosedTicket) error {
	r.records = append(r.records, records...)
	if r.live != nil {
		for _, rec := range records {
			delete(r.live.tickets, rec.Incident)
		}
	}
	return nil
}

func (r *fakeClosedRepo) ListBetween(_ context.Context, from, to time.Time) ([]domain.ClosedTicket, error) {
	var out []domain.ClosedTicket
	for _, rec := range r.records {
		if !rec.ClosedAt.Before(from) && !rec.ClosedAt.After(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeClosedRepo) DeleteByIncident(_ context.Context, incident string) error {
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.Incident != incident {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

type fakeAgentRepo struct {
	agents map[string]domain.Agent
}

func newFakeAgentRepo(agents ...domain.Agent) *fakeAgentRepo {
	repo := &fakeAgentRepo{agents: map[string]domain.Agent{}}
	for _, a := range agents {
		repo.agents[a.Username] = a
	}
	return repo
}

func (r *fakeAgentRepo) Create(_ context.Context, agent *domain.Agent) error {
	r.agents[agent.Username] = *agent
	return nil
}

func (r *fakeAgentRepo) GetByUsername(_ context.Context, username string) (*domain.Agent, error) {
	a, ok := r.agents[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *fakeAgentRepo) List(context.Context) ([]domain.Agent, error) {
	out := make([]domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *fakeAgentRepo) ListOnline(ctx context.Context) ([]domain.Agent, error) {
	all, _ := r.List(ctx)
	online := all[:0]
	for _, a := range all {
		if a.LoggedIn {
			online = append(online, a)
		}
	}
	return online, nil
}

func (r *fakeAgentRepo) SetSession(_ context.Context, username string, token *string, loggedIn bool, _ time.Time) error {
	a, ok := r.agents[username]
	if !ok {
		return pgx.ErrNoRows
	}
	a.SessionToken = token
	a.LoggedIn = loggedIn
	r.agents[username] = a
	return nil
}

func (r *fakeAgentRepo) SetWorking(_ context.Context, username string, working bool, _ time.Time) error {
	a, ok := r.agents[username]
	if !ok {
		return pgx.ErrNoRows
	}
	a.IsWorking = working
	r.agents[username] = a
	return nil
}

func (r *fakeAgentRepo) SetRole(_ context.Context, username string, role domain.AgentRole) error {
	a, ok := r.agents[username]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Role = role
	r.agents[username] = a
	return nil
}

func (r *fakeAgentRepo) TouchAssignment(_ context.Context, username string, _ time.Time) error {
	if _, ok := r.agents[username]; !ok {
		return pgx.ErrNoRows
	}
	return nil
}

type fakeLogRepo struct {
	entries []domain.AssignmentLogEntry
}

func (r *fakeLogRepo) Append(_ context.Context, entries []domain.AssignmentLogEntry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *fakeLogRepo) History(context.Context) (engine.History, error) {
	history := engine.History{}
	for _, entry := range r.entries {
		history.Record(entry.TicketID, entry.Username)
	}
	return history, nil
}

func (r *fakeLogRepo) ListForUser(_ context.Context, username string) ([]domain.AssignmentLogEntry, error) {
	var out []domain.AssignmentLogEntry
	for _, entry := range r.entries {
		if entry.Username == username {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) ListBetween(_ context.Context, from, to time.Time) ([]domain.AssignmentLogEntry, error) {
	var out []domain.AssignmentLogEntry
	for _, entry := range r.entries {
		if !entry.Timestamp.Before(from) && !entry.Timestamp.After(to) {
			out = append(out, entry)
		}
	}
	return out, nil
}
