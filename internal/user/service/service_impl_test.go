package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/user/domain"
	"github.com/smallbiznis/bootcamp/internal/user/repository"
	"github.com/smallbiznis/bootcamp/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest(&domain.User{}, &domain.Profile{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestEnsureUserIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, created, err := svc.EnsureUser(ctx, nil, "  U@X.example ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u@x.example", first.Email)

	second, created, err := svc.EnsureUser(ctx, nil, "u@x.EXAMPLE")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, _, err = svc.EnsureUser(ctx, nil, "not-an-email")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestEnsureProfileLinksUpstreamIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, _, err := svc.EnsureUser(ctx, nil, "a@b.example")
	require.NoError(t, err)

	profile, err := svc.EnsureProfile(ctx, nil, user.ID, catalogdomain.SourceIntakeA, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", profile.UpstreamID(catalogdomain.SourceIntakeA))
	assert.Equal(t, "", profile.UpstreamID(catalogdomain.SourceIntakeB))

	again, err := svc.EnsureProfile(ctx, nil, user.ID, catalogdomain.SourceIntakeB, "sm-9")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)

	stored, err := svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", stored.UpstreamID(catalogdomain.SourceIntakeA))
	assert.Equal(t, "sm-9", stored.UpstreamID(catalogdomain.SourceIntakeB))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, _, err := svc.EnsureUser(ctx, nil, "u@x.example")
	require.NoError(t, err)

	byID, err := svc.Resolve(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.ID, byID.ID)

	byEmail, err := svc.Resolve(ctx, "U@x.example")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byUsername, err := svc.Resolve(ctx, user.Username)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	_, err = svc.Resolve(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.Resolve(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidIdent)
}
