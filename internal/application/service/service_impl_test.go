package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/testkit"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCreatesAwaitingPaymentOnce(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 10, "500.00", catalogdomain.SourceIntakeB)
	user, _, err := k.Users.EnsureUser(ctx, nil, "a@x.example")
	require.NoError(t, err)

	first, err := k.Apps.Ensure(ctx, nil, user.ID, run.ID)
	require.NoError(t, err)
	second, err := k.Apps.Ensure(ctx, nil, user.ID, run.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StateAwaitingPayment, first.State)
	assert.Equal(t, int64(1), k.Count(t, "SELECT COUNT(1) FROM applications"))
}

func TestRecomputeMissingApplicationIsNoop(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 10, "500.00", catalogdomain.SourceIntakeA)
	user, _, err := k.Users.EnsureUser(ctx, nil, "a@x.example")
	require.NoError(t, err)

	tr, err := k.Apps.Recompute(ctx, nil, user.ID, run.ID, domain.EventPayment)
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestZeroPriceRunCompletesWithoutPayment(t *testing.T) {
	k := testkit.New(t)
	run := k.SeedRun(t, 10, "0.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "a@x.example", "7", run)

	app := k.Application(t, user.ID, run.ID)
	assert.Equal(t, domain.StateComplete, app.State)
	require.NotNil(t, app.Price)
	assert.True(t, app.Price.IsZero())
}

func TestPriceRaiseReopensCompletedApplication(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 10, "1000.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "a@x.example", "7", run)
	k.Fulfill(t, user.ID, 10, "1000.00")
	require.Equal(t, domain.StateComplete, k.Application(t, user.ID, run.ID).State)

	_, changed, err := k.Prices.Set(ctx, nil, user.ID, run.ID, money.MustParse("1200.00"))
	require.NoError(t, err)
	require.True(t, changed)

	app := k.Application(t, user.ID, run.ID)
	assert.Equal(t, domain.StateAwaitingPayment, app.State)
	assert.Equal(t, "1200.00", app.Price.String())

	k.Fulfill(t, user.ID, 10, "200.00")
	assert.Equal(t, domain.StateComplete, k.Application(t, user.ID, run.ID).State)
}

func TestRecomputeSkipsReviewStates(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 10, "100.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "a@x.example", "7", run)
	app := k.Application(t, user.ID, run.ID)

	require.NoError(t, k.DB.Exec("UPDATE applications SET state = ? WHERE id = ?", domain.StateAwaitingReview, app.ID).Error)

	tr, err := k.Apps.Recompute(ctx, nil, user.ID, run.ID, domain.EventPriceChanged)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.False(t, tr.Changed())
	assert.Equal(t, domain.StateAwaitingReview, k.Application(t, user.ID, run.ID).State)
}
