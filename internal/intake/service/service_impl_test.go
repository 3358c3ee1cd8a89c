package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	"github.com/smallbiznis/bootcamp/internal/intake/oauth"
	"github.com/smallbiznis/bootcamp/internal/intake/service"
	"github.com/smallbiznis/bootcamp/internal/intake/sourcea"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"github.com/smallbiznis/bootcamp/internal/testkit"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

const tokenA = "hook-secret"

type report struct {
	submissionID string
	total        string
}

type fakeReporter struct {
	reports []report
	err     error
}

func (f *fakeReporter) ReportPaid(_ context.Context, submissionID string, total money.Amount) error {
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, report{submissionID, total.String()})
	return nil
}

type fixture struct {
	*testkit.Kit
	svc      *service.Service
	reporter *fakeReporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	k := testkit.New(t)
	reporter := &fakeReporter{}
	registry := service.NewRegistry(&domain.Adapter{
		Source:       catalogdomain.SourceIntakeA,
		WebhookToken: tokenA,
		Parser:       sourcea.Parser{},
		Reporter:     reporter,
	})
	svc := service.NewService(service.Params{
		DB: k.DB, Log: k.Log, GenID: k.Node, Clock: k.Clock,
		Repo: k.IntakeRepo, Registry: registry,
		CatalogRepo: k.CatalogRepo, UserRepo: k.UserRepo, OrderRepo: k.OrderRepo,
		Users: k.Users, Apps: k.Apps, Prices: k.Prices, OrderSvc: k.Orders,
	})
	return &fixture{Kit: k, svc: svc, reporter: reporter}
}

func body(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func TestIngestProvisionsApplicant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)

	rec, err := f.svc.Ingest(ctx, catalogdomain.SourceIntakeA, "Basic "+tokenA, body(t, map[string]any{
		"user_email":    "Ada@X.example",
		"user_id":       "u-1",
		"submission_id": "sub-1",
		"award_id":      77,
		"amount_to_pay": "800.00",
	}))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, rec.Status)

	stored, err := f.IntakeRepo.FindRecord(ctx, f.DB, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, stored.Status)
	require.NotNil(t, stored.SubmissionID)
	assert.Equal(t, "sub-1", *stored.SubmissionID)

	user, err := f.Users.FindByEmail(ctx, "ada@x.example")
	require.NoError(t, err)
	require.NotNil(t, user)
	profile, err := f.Users.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "u-1", profile.UpstreamID(catalogdomain.SourceIntakeA))

	app := f.Application(t, user.ID, run.ID)
	assert.Equal(t, appdomain.StateAwaitingPayment, app.State)
	require.NotNil(t, app.Price)
	assert.Equal(t, "800.00", app.Price.String())

	admitted, err := f.Gate.Admitted(ctx, f.DB, user.ID, run)
	require.NoError(t, err)
	assert.True(t, admitted)
}

func TestIngestRedeliveryConverges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)
	payload := body(t, map[string]any{"user_email": "a@x.example", "user_id": "u-1", "award_id": 77, "amount_to_pay": "800"})

	for i := 0; i < 2; i++ {
		_, err := f.svc.Ingest(ctx, catalogdomain.SourceIntakeA, "Basic "+tokenA, payload)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), f.Count(t, "SELECT COUNT(1) FROM webhook_records"))
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM personal_prices"))
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM personal_price_audits"))
	assert.Equal(t, int64(1), f.Count(t, "SELECT COUNT(1) FROM users"))
}

func TestIngestClearedAmountRevertsToListPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)

	_, err := f.svc.Ingest(ctx, catalogdomain.SourceIntakeA, "Basic "+tokenA,
		body(t, map[string]any{"user_email": "a@x.example", "user_id": "u-1", "award_id": 77, "amount_to_pay": "800"}))
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, catalogdomain.SourceIntakeA, "Basic "+tokenA,
		body(t, map[string]any{"user_email": "a@x.example", "user_id": "u-1", "award_id": 77, "amount_to_pay": nil}))
	require.NoError(t, err)

	assert.Equal(t, int64(0), f.Count(t, "SELECT COUNT(1) FROM personal_prices"))
	user, err := f.Users.FindByEmail(ctx, "a@x.example")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", f.Application(t, user.ID, run.ID).Price.String())
}

func TestIngestAuthFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, header := range []string{"", "Basic wrong", tokenA, "Bearer " + tokenA} {
		_, err := f.svc.Ingest(ctx, catalogdomain.SourceIntakeA, header, []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrAuthFailure, header)
	}
	_, err := f.svc.Ingest(ctx, catalogdomain.SourceIntakeB, "Basic "+tokenA, []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
	assert.Equal(t, int64(0), f.Count(t, "SELECT COUNT(1) FROM webhook_records"))
}

func TestIngestMalformedBodyIsKeptAsFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.svc.Ingest(ctx, catalogdomain.SourceIntakeA, "Basic "+tokenA, []byte(`{"user_id":"u-1"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, rec.Status)

	stored, err := f.IntakeRepo.FindRecord(ctx, f.DB, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, `{"user_id":"u-1"}`, string(stored.Body))
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "user_email")
	assert.Equal(t, int64(0), f.Count(t, "SELECT COUNT(1) FROM users"))
}

func orderTask(t *testing.T, orderID any) tasksdomain.Task {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"order_id": orderID})
	require.NoError(t, err)
	return tasksdomain.Task{Kind: tasksdomain.KindIntakePaymentSync, Payload: datatypes.JSON(raw)}
}

func TestSyncPaymentReportsNetTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)
	user := f.SeedAdmitted(t, "a@x.example", "u-1", run)
	f.Fulfill(t, user.ID, 77, "300.00")
	order := f.Fulfill(t, user.ID, 77, "200.00")

	require.NoError(t, f.svc.SyncPayment(ctx, orderTask(t, order.ID)))
	assert.Equal(t, []report{{"sub-u-1", "500.00"}}, f.reporter.reports)
}

func TestSyncPaymentFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)
	user := f.SeedAdmitted(t, "a@x.example", "u-1", run)
	order := f.Fulfill(t, user.ID, 77, "300.00")

	err := f.svc.SyncPayment(ctx, orderTask(t, "12345"))
	assert.True(t, tasksdomain.IsPermanent(err))

	f.reporter.err = &oauth.StatusError{Source: catalogdomain.SourceIntakeA, StatusCode: 503}
	err = f.svc.SyncPayment(ctx, orderTask(t, order.ID))
	require.Error(t, err)
	assert.False(t, tasksdomain.IsPermanent(err))

	f.reporter.err = &oauth.StatusError{Source: catalogdomain.SourceIntakeA, StatusCode: 404}
	err = f.svc.SyncPayment(ctx, orderTask(t, order.ID))
	assert.True(t, tasksdomain.IsPermanent(err))

	f.reporter.err = errors.New("dial tcp: timeout")
	err = f.svc.SyncPayment(ctx, orderTask(t, order.ID))
	assert.False(t, tasksdomain.IsPermanent(err))
}

func TestSyncPaymentWithoutSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)
	user := f.SeedAdmitted(t, "a@x.example", "u-1", run)
	order := f.Fulfill(t, user.ID, 77, "300.00")
	require.NoError(t, f.DB.Exec(`UPDATE webhook_records SET submission_id = NULL`).Error)

	err := f.svc.SyncPayment(ctx, orderTask(t, order.ID))
	assert.ErrorIs(t, err, domain.ErrMissingSubmission)
	assert.True(t, tasksdomain.IsPermanent(err))
	assert.Empty(t, f.reporter.reports)
}
