package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/domain"
	apperrors "github.com/spec-kit/incident-dispatch/pkg/util"
)

func newAgentFixture(t *testing.T, agents *fakeAgentRepo) *AgentService {
	t.Helper()
	return NewAgentService(AgentDependencies{
		AgentRepo:  agents,
		Tokens:     auth.NewTokenManager("test-secret", 60),
		BcryptCost: 4,
	})
}

func TestRegisterAndLogin(t *testing.T) {
	agents := newFakeAgentRepo()
	svc := newAgentFixture(t, agents)

	created, err := svc.Register(context.Background(), "alice", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRoleAgent, created.Role)
	assert.NotEqual(t, "s3cret", created.PasswordHash)

	result, err := svc.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.True(t, result.Agent.LoggedIn)

	stored, err := agents.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, stored.LoggedIn)
	require.NotNil(t, stored.SessionToken)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	agents := newFakeAgentRepo()
	svc := newAgentFixture(t, agents)

	_, err := svc.Register(context.Background(), "alice", "s3cret", "")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	_, err = svc.Login(context.Background(), "nobody", "s3cret")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestLogoutClearsSession(t *testing.T) {
	agents := newFakeAgentRepo()
	svc := newAgentFixture(t, agents)

	_, err := svc.Register(context.Background(), "alice", "s3cret", "")
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "alice"))

	stored, err := agents.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, stored.LoggedIn)
	assert.Nil(t, stored.SessionToken)
}

func TestSetRoleValidation(t *testing.T) {
	agents := newFakeAgentRepo(domain.Agent{Username: "alice", Role: domain.AgentRoleAgent})
	svc := newAgentFixture(t, agents)

	require.NoError(t, svc.SetRole(context.Background(), "alice", domain.AgentRoleTeamLeader))
	stored, err := agents.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRoleTeamLeader, stored.Role)

	err = svc.SetRole(context.Background(), "alice", "SUPERUSER")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}
