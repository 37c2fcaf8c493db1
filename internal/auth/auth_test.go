package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/sprintwatch/internal/model"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := LoadProvider(filepath.Join(t.TempDir(), "users.toml"))
	require.NoError(t, err)
	require.NoError(t, p.AddUser("alice", "Alice A", "s3cret", model.TeamBlue, false))
	require.NoError(t, p.AddUser("coach", "", "whistle", model.TeamCoach, true))
	return p
}

func TestAuthenticate(t *testing.T) {
	p := newProvider(t)

	id, status, err := p.Authenticate(" alice ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, Identity{Username: "alice", DisplayName: "Alice A", Team: model.TeamBlue}, id)

	_, status, err = p.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, StatusFailure, status)

	_, _, err = p.Authenticate("mallory", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSetTeamPersists(t *testing.T) {
	p := newProvider(t)
	require.NoError(t, p.SetTeam("alice", model.TeamWhite))

	reloaded, err := LoadProvider(p.path)
	require.NoError(t, err)
	id, err := reloaded.Lookup("alice")
	require.NoError(t, err)
	assert.Equal(t, model.TeamWhite, id.Team)

	coach, err := reloaded.Lookup("coach")
	require.NoError(t, err)
	assert.True(t, coach.IsAdmin)
	assert.Equal(t, "coach", coach.DisplayName)

	assert.ErrorIs(t, p.SetTeam("nobody", model.TeamBlue), ErrUnknownUser)
}

func TestFailedWriteLeavesUsersUnchanged(t *testing.T) {
	p := newProvider(t)
	require.NoError(t, os.Remove(p.path))
	require.NoError(t, os.MkdirAll(filepath.Join(p.path, "occupied"), 0o755))

	require.Error(t, p.SetTeam("alice", model.TeamWhite))
	id, err := p.Lookup("alice")
	require.NoError(t, err)
	assert.Equal(t, model.TeamBlue, id.Team)

	require.Error(t, p.AddUser("bob", "", "pw", model.TeamBlue, false))
	_, err = p.Lookup("bob")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestUsersAndTeamMembers(t *testing.T) {
	p := newProvider(t)
	users := p.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, []string{"alice"}, p.TeamMembers(model.TeamBlue))
	assert.Empty(t, p.TeamMembers(model.TeamWhite))
}

func TestLoadProviderRejectsUnknownTeam(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.toml")
	require.NoError(t, os.WriteFile(path, []byte("[users.bob]\npassword = \"x\"\nteam = \"Red\"\n"), 0o600))
	_, err := LoadProvider(path)
	assert.ErrorIs(t, err, model.ErrUnknownTeam)
}

func TestIssuerRoundTrip(t *testing.T) {
	iss, err := NewIssuer(TokenConfig{Secret: "k", Issuer: "sprintwatch", TTL: time.Hour})
	require.NoError(t, err)

	token, exp, err := iss.Issue(Identity{Username: "alice"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	sub, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	coachToken, _, err := iss.Issue(Identity{Username: "coach", IsAdmin: true})
	require.NoError(t, err)
	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(coachToken, claims)
	require.NoError(t, err)
	assert.NotContains(t, claims, "admin")
	assert.Equal(t, "coach", claims["sub"])

	other, err := NewIssuer(TokenConfig{Secret: "other", Issuer: "sprintwatch"})
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuerRejectsExpired(t *testing.T) {
	iss, err := NewIssuer(TokenConfig{Secret: "k", TTL: time.Minute})
	require.NoError(t, err)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := iss.Issue(Identity{Username: "alice"})
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	ctx := WithIdentity(context.Background(), Identity{Username: "alice"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)
}
