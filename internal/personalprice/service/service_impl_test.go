package service_test

import (
	"context"
	"encoding/json"
	"testing"

	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	"github.com/smallbiznis/bootcamp/internal/testkit"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetWritesAuditAndReprices(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 5, "1000.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "p@x.example", "9", run)

	pp, changed, err := k.Prices.Set(ctx, nil, user.ID, run.ID, money.MustParse("750.00"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "750.00", pp.Price.String())

	_, changed, err = k.Prices.Set(ctx, nil, user.ID, run.ID, money.MustParse("750.00"))
	require.NoError(t, err)
	assert.False(t, changed)

	audits, err := k.Audit.ListPersonalPriceAudits(ctx, user.ID, run.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, domain.AuditActionSet, audits[0].Action)
	assert.JSONEq(t, "null", string(audits[0].DataBefore))

	var after map[string]any
	require.NoError(t, json.Unmarshal(audits[0].DataAfter, &after))
	assert.Equal(t, "750.00", after["price"])

	app := k.Application(t, user.ID, run.ID)
	assert.Equal(t, "750.00", app.Price.String())
	assert.Equal(t, appdomain.StateAwaitingPayment, app.State)
}

func TestDeleteRevertsToListPrice(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 5, "1000.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "p@x.example", "9", run)

	_, _, err := k.Prices.Set(ctx, nil, user.ID, run.ID, money.MustParse("0.00"))
	require.NoError(t, err)
	assert.Equal(t, appdomain.StateComplete, k.Application(t, user.ID, run.ID).State)

	deleted, err := k.Prices.Delete(ctx, nil, user.ID, run.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = k.Prices.Delete(ctx, nil, user.ID, run.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	app := k.Application(t, user.ID, run.ID)
	assert.Equal(t, "1000.00", app.Price.String())
	assert.Equal(t, appdomain.StateAwaitingPayment, app.State)
	assert.Equal(t, int64(2), k.Count(t, "SELECT COUNT(1) FROM personal_price_audits"))
}

func TestSetValidation(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 5, "1000.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "p@x.example", "9", run)

	_, _, err := k.Prices.Set(ctx, nil, user.ID, run.ID, money.MustParse("-1.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	_, _, err = k.Prices.Set(ctx, nil, 0, run.ID, money.MustParse("1.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
}
