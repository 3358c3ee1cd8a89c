package service_test

import (
	"context"
	"testing"

	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/enrollment/domain"
	"github.com/smallbiznis/bootcamp/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureReactivatesRefundedEnrollment(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 3, "100.00", catalogdomain.SourceIntakeA)
	user, _, err := k.Users.EnsureUser(ctx, nil, "e@x.example")
	require.NoError(t, err)

	first, err := k.Enrollments.Ensure(ctx, nil, user.ID, run.ID)
	require.NoError(t, err)
	assert.True(t, first.Active)

	refunded, err := k.Enrollments.MarkRefunded(ctx, nil, first.ID)
	require.NoError(t, err)
	assert.True(t, refunded.Refunded())
	assert.False(t, refunded.Active)

	again, err := k.Enrollments.Ensure(ctx, nil, user.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Active)
	assert.Nil(t, again.ChangeStatus)
	assert.Equal(t, int64(1), k.Count(t, "SELECT COUNT(1) FROM enrollments"))
}

func TestGetByIDNotFound(t *testing.T) {
	k := testkit.New(t)
	_, err := k.Enrollments.GetByID(context.Background(), k.Node.Generate())
	assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)
}
