package crm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/crm"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"github.com/smallbiznis/bootcamp/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type captured struct {
	method, path, auth string
	body               map[string]any
}

func TestSyncDealPutsCurrentTotals(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "a@x.example", "u-1", run)
	k.Fulfill(t, user.ID, 77, "600.00")
	order := k.Fulfill(t, user.ID, 77, "400.00")

	var got captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got = captured{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		_ = json.Unmarshal(raw, &got.body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := crm.NewSyncer(crm.Params{
		DB: k.DB, Log: k.Log, OrderRepo: k.OrderRepo, OrderSvc: k.Orders,
		AppRepo: k.AppRepo, CatalogRepo: k.CatalogRepo,
		Client: crm.NewClient(srv.URL, "crm-key", srv.Client()),
	})
	require.NoError(t, s.SyncDeal(ctx, task(t, order.ID.String())))

	app := k.Application(t, user.ID, run.ID)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/deals/"+app.ID.String(), got.path)
	assert.Equal(t, "Bearer crm-key", got.auth)
	assert.Equal(t, "1000.00", got.body["amount_paid"])
	assert.Equal(t, "COMPLETE", got.body["stage"])
	assert.Equal(t, float64(77), got.body["run_key"])
}

func TestSyncDealClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	k := testkit.New(t)
	run := k.SeedRun(t, 77, "1000.00", catalogdomain.SourceIntakeA)
	user := k.SeedAdmitted(t, "a@x.example", "u-1", run)
	order := k.Fulfill(t, user.ID, 77, "600.00")

	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	s := crm.NewSyncer(crm.Params{
		DB: k.DB, Log: k.Log, OrderRepo: k.OrderRepo, OrderSvc: k.Orders,
		AppRepo: k.AppRepo, CatalogRepo: k.CatalogRepo,
		Client: crm.NewClient(srv.URL, "crm-key", srv.Client()),
	})

	err := s.SyncDeal(ctx, task(t, order.ID.String()))
	require.Error(t, err)
	assert.False(t, tasksdomain.IsPermanent(err))

	status = http.StatusUnprocessableEntity
	err = s.SyncDeal(ctx, task(t, order.ID.String()))
	assert.True(t, tasksdomain.IsPermanent(err))

	err = s.SyncDeal(ctx, task(t, "999"))
	assert.True(t, tasksdomain.IsPermanent(err))
}

func TestSyncDealWithoutCRMIsNoop(t *testing.T) {
	k := testkit.New(t)
	s := crm.NewSyncer(crm.Params{DB: k.DB, Log: k.Log})
	assert.NoError(t, s.SyncDeal(context.Background(), task(t, "1")))
}

func task(t *testing.T, orderID string) tasksdomain.Task {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"order_id": orderID})
	require.NoError(t, err)
	return tasksdomain.Task{Kind: tasksdomain.KindCRMDealSync, Payload: datatypes.JSON(raw)}
}
