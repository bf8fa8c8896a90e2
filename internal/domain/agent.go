package domain

import "time"

// AgentRole enumerates roster roles.
type AgentRole string

const (
	AgentRoleAgent      AgentRole = "AGENT"
	AgentRoleTeamLeader AgentRole = "TEAM_LEADER"
	AgentRoleAdmin      AgentRole = "ADMIN"
)

// Agent is a roster member, keyed by username. LoggedIn tracks session
// presence; IsWorking is the independent opt-in for receiving assignments.
type Agent struct {
	ID               string
	Username         string
	PasswordHash     string
	Role             AgentRole
	LoggedIn         bool
	IsWorking        bool
	SessionToken     *string
	LastLoginTime    *time.Time
	LastLogoutTime   *time.Time
	LastAssignedTime *time.Time
	LastActivity     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
