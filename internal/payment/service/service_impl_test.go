package service_test

import (
	"context"
	"testing"
	"time"

	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/config"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	"github.com/smallbiznis/bootcamp/internal/payment/domain"
	"github.com/smallbiznis/bootcamp/internal/payment/gateway"
	"github.com/smallbiznis/bootcamp/internal/payment/service"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	tasksrepo "github.com/smallbiznis/bootcamp/internal/tasks/repository"
	tasksservice "github.com/smallbiznis/bootcamp/internal/tasks/service"
	"github.com/smallbiznis/bootcamp/internal/testkit"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const securityKey = "s3cr3t"

type fixture struct {
	*testkit.Kit
	svc   domain.Service
	codec domain.ReferenceCodec
	run   *catalogdomain.BootcampRun
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()
	k := testkit.New(t)
	cfg := config.Config{
		Gateway: config.GatewayConfig{
			AccessKey:   "ak",
			ProfileID:   "profile",
			SecurityKey: securityKey,
			URL:         "https://gateway.example/pay",
		},
		ReferencePrefix: "test-env",
		BaseURL:         "https://bootcamp.example",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	tasksRepo := tasksrepo.Provide()
	queue := tasksservice.NewQueue(tasksservice.QueueParams{
		DB: k.DB, Log: k.Log, GenID: k.Node, Clock: k.Clock, Repo: tasksRepo, Config: cfg,
	})
	svc, err := service.NewService(service.Params{
		DB: k.DB, Log: k.Log, GenID: k.Node, Clock: k.Clock, Config: cfg,
		OrderSvc: k.Orders, OrderRepo: k.OrderRepo, CatalogRepo: k.CatalogRepo,
		PriceRepo: k.PriceRepo, AppRepo: k.AppRepo, UserRepo: k.UserRepo,
		Gate: k.Gate, Tasks: queue,
	})
	require.NoError(t, err)
	codec, err := domain.NewReferenceCodec(cfg.ReferencePrefix)
	require.NoError(t, err)

	return &fixture{
		Kit:   k,
		svc:   svc,
		codec: codec,
		run:   k.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA),
	}
}

func (f *fixture) confirmation(t *testing.T, order *orderdomain.Order, decision domain.Decision) map[string]string {
	t.Helper()
	fields := map[string]string{
		domain.FieldReference: f.codec.Encode(order.ID),
		domain.FieldDecision:  string(decision),
		domain.FieldMessage:   "gateway says " + string(decision),
		"req_amount":          order.TotalPricePaid.String(),
	}
	fields[gateway.FieldSignedNames] = gateway.SignedFieldNames(fields)
	sig, err := gateway.Sign(fields, securityKey)
	require.NoError(t, err)
	fields[gateway.FieldSignature] = sig
	return fields
}

func TestPayIntentBuildsSignedCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)

	checkout, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("800.00")})
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example/pay", checkout.URL)
	assert.Equal(t, orderdomain.StatusCreated, checkout.Order.Status)
	assert.Equal(t, f.codec.Encode(checkout.Order.ID), checkout.Payload["reference_number"])
	assert.Equal(t, "800.00", checkout.Payload["amount"])
	assert.Equal(t, "u@x.example", checkout.Payload["merchant_defined_data6"])
	assert.True(t, gateway.Verify(checkout.Payload, securityKey))
}

func TestPayIntentGuardsBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)
	stranger, _, err := f.Users.EnsureUser(ctx, nil, "stranger@x.example")
	require.NoError(t, err)

	_, err = f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("1000.01")})
	assert.ErrorIs(t, err, domain.ErrPaymentExceedsDue)

	_, err = f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.Zero})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidAmount)

	_, err = f.svc.PayIntent(ctx, stranger.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("10.00")})
	assert.ErrorIs(t, err, orderdomain.ErrNotAdmitted)

	_, err = f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 99, Amount: money.MustParse("10.00")})
	assert.ErrorIs(t, err, orderdomain.ErrRunNotFound)

	f.Fulfill(t, user.ID, 77, "1000.00")
	_, err = f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("1.00")})
	assert.ErrorIs(t, err, domain.ErrNothingDue)
}

func TestPayIntentLeavesNoOrderWhenCheckoutCannotBeBuilt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *config.Config) { c.Gateway.AccessKey = "" })
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)

	_, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("100.00")})
	assert.ErrorIs(t, err, gateway.ErrMissingCredentials)
	assert.Equal(t, int64(0), f.Count(t, "SELECT COUNT(1) FROM orders"))
}

func TestPayIntentDoesNotReserveOpenCheckouts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)

	first, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("1000.00")})
	require.NoError(t, err)
	second, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("1000.00")})
	require.NoError(t, err)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)

	_, err = f.svc.HandleConfirmation(ctx, f.confirmation(t, first.Order, domain.DecisionAccept))
	require.NoError(t, err)
	_, err = f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("1.00")})
	assert.ErrorIs(t, err, domain.ErrNothingDue)
}

func TestConfirmationAcceptFulfills(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)
	_, _, err := f.Prices.Set(ctx, nil, user.ID, f.run.ID, money.MustParse("800.00"))
	require.NoError(t, err)

	checkout, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("800.00")})
	require.NoError(t, err)

	res, err := f.svc.HandleConfirmation(ctx, f.confirmation(t, checkout.Order, domain.DecisionAccept))
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusFulfilled, res.Status)
	assert.False(t, res.Duplicate)

	assert.Equal(t, appdomain.StateComplete, f.Application(t, user.ID, f.run.ID).State)
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM receipts WHERE order_id = ?", checkout.Order.ID))
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM enrollments WHERE user_id = ? AND active = ?", user.ID, true))
	for _, kind := range []string{tasksdomain.KindIntakePaymentSync, tasksdomain.KindCRMDealSync, tasksdomain.KindReceiptEmail} {
		assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM deferred_tasks WHERE kind = ?", kind), kind)
	}
	assert.Equal(t, int64(0), f.Count(t, "SELECT COUNT(1) FROM deferred_tasks WHERE kind = ?", tasksdomain.KindOpsAlertEmail))
}

func TestConfirmationAcceptAfterAbandonedMarkFulfills(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)

	checkout, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("1000.00")})
	require.NoError(t, err)

	f.Clock.Advance(25 * time.Hour)
	marked, err := f.Orders.MarkAbandonedOrders(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Equal(t, 1, marked)

	res, err := f.svc.HandleConfirmation(ctx, f.confirmation(t, checkout.Order, domain.DecisionAccept))
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusFulfilled, res.Status)

	got, err := f.Orders.Get(ctx, checkout.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusFulfilled, got.Status)
	assert.Equal(t, appdomain.StateComplete, f.Application(t, user.ID, f.run.ID).State)
}

func TestConfirmationDuplicateAcceptIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)
	checkout, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("400.00")})
	require.NoError(t, err)

	fields := f.confirmation(t, checkout.Order, domain.DecisionAccept)
	_, err = f.svc.HandleConfirmation(ctx, fields)
	require.NoError(t, err)

	_, err = f.svc.HandleConfirmation(ctx, fields)
	assert.ErrorIs(t, err, orderdomain.ErrDuplicateFulfillment)

	assert.Equal(t, int64(2), f.Count(t, "SELECT COUNT(1) FROM receipts WHERE order_id = ?", checkout.Order.ID))
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM deferred_tasks WHERE kind = ?", tasksdomain.KindReceiptEmail))

	paid, err := f.Orders.TotalPaidForRun(ctx, nil, user.ID, f.run.ID)
	require.NoError(t, err)
	assert.Equal(t, "400.00", paid.String())
}

func TestConfirmationCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)
	checkout, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("400.00")})
	require.NoError(t, err)

	fields := f.confirmation(t, checkout.Order, domain.DecisionCancel)
	res, err := f.svc.HandleConfirmation(ctx, fields)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusFailed, res.Status)
	assert.False(t, res.Duplicate)

	res, err = f.svc.HandleConfirmation(ctx, fields)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	assert.Equal(t, int64(2), f.Count(t, "SELECT COUNT(1) FROM receipts WHERE order_id = ?", checkout.Order.ID))
	assert.Equal(t, int64(0), f.Count(t, "SELECT COUNT(1) FROM deferred_tasks"))
	assert.Equal(t, appdomain.StateAwaitingPayment, f.Application(t, user.ID, f.run.ID).State)
}

func TestConfirmationDeclineAlertsOps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)
	checkout, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("400.00")})
	require.NoError(t, err)

	res, err := f.svc.HandleConfirmation(ctx, f.confirmation(t, checkout.Order, domain.DecisionDecline))
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusFailed, res.Status)
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM deferred_tasks WHERE kind = ?", tasksdomain.KindOpsAlertEmail))
}

func TestConfirmationRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)
	checkout, err := f.svc.PayIntent(ctx, user.ID, domain.PayRequest{RunKey: 77, Amount: money.MustParse("400.00")})
	require.NoError(t, err)

	fields := f.confirmation(t, checkout.Order, domain.DecisionAccept)
	fields["req_amount"] = "1.00"

	_, err = f.svc.HandleConfirmation(ctx, fields)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Equal(t, int64(0), f.Count(t, "SELECT COUNT(1) FROM receipts"))

	stored, err := f.Orders.Get(ctx, checkout.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCreated, stored.Status)
}

func TestConfirmationUnknownReferenceKeepsReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fields := map[string]string{
		domain.FieldReference: "BOOTCAMP-other-env-12",
		domain.FieldDecision:  string(domain.DecisionAccept),
	}
	fields[gateway.FieldSignedNames] = gateway.SignedFieldNames(fields)
	sig, err := gateway.Sign(fields, securityKey)
	require.NoError(t, err)
	fields[gateway.FieldSignature] = sig

	res, err := f.svc.HandleConfirmation(ctx, fields)
	assert.ErrorIs(t, err, domain.ErrReferenceMismatch)
	require.NotNil(t, res)
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM receipts WHERE order_id IS NULL"))
}

func TestStatusReportsBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.SeedAdmitted(t, "u@x.example", "42", f.run)
	f.SeedInstallment(t, f.run, testkit.Now.AddDate(0, 0, 3), "600.00")
	f.SeedInstallment(t, f.run, testkit.Now.AddDate(0, 1, 0), "400.00")
	f.Fulfill(t, user.ID, 77, "250.00")

	st, err := f.svc.Status(ctx, user.ID, 77)
	require.NoError(t, err)
	assert.Equal(t, appdomain.StateAwaitingPayment, st.State)
	assert.Equal(t, "250.00", st.TotalPaid.String())
	assert.Equal(t, "750.00", st.Balance.String())
	assert.Equal(t, "600.00", st.TotalDueByNextDeadline.String())
	require.NotNil(t, st.NextPaymentDeadlineDays)
	assert.Equal(t, 3, *st.NextPaymentDeadlineDays)
	assert.Len(t, st.Installments, 2)
}
