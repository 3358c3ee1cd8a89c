package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/config"
	intakedomain "github.com/smallbiznis/bootcamp/internal/intake/domain"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	paymentdomain "github.com/smallbiznis/bootcamp/internal/payment/domain"
	"github.com/smallbiznis/bootcamp/internal/ratelimit"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const knownUser = snowflake.ID(200)

type fakePaymentService struct {
	payUser    snowflake.ID
	payReq     paymentdomain.PayRequest
	payErr     error
	statusErr  error
	fields     map[string]string
	confirmErr error
}

func (f *fakePaymentService) PayIntent(_ context.Context, userID snowflake.ID, req paymentdomain.PayRequest) (*paymentdomain.Checkout, error) {
	f.payUser = userID
	f.payReq = req
	if f.payErr != nil {
		return nil, f.payErr
	}
	return &paymentdomain.Checkout{
		URL:     "https://gateway.test/pay",
		Payload: map[string]string{"amount": req.Amount.String()},
	}, nil
}

func (f *fakePaymentService) HandleConfirmation(_ context.Context, fields map[string]string) (*paymentdomain.ConfirmationResult, error) {
	f.fields = fields
	if f.confirmErr != nil {
		return &paymentdomain.ConfirmationResult{ReceiptID: 9}, f.confirmErr
	}
	return &paymentdomain.ConfirmationResult{
		ReceiptID: 9,
		OrderID:   12,
		Decision:  paymentdomain.DecisionAccept,
		Status:    orderdomain.StatusFulfilled,
	}, nil
}

func (f *fakePaymentService) Status(_ context.Context, userID snowflake.ID, runKey int64) (*paymentdomain.Status, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &paymentdomain.Status{
		RunKey:    runKey,
		Price:     money.MustParse("1000"),
		TotalPaid: money.MustParse("250"),
		Balance:   money.MustParse("750"),
	}, nil
}

type fakeIntakeService struct {
	source catalogdomain.Source
	auth   string
	body   string
	err    error
}

func (f *fakeIntakeService) Ingest(_ context.Context, source catalogdomain.Source, authorization string, body []byte) (*intakedomain.WebhookRecord, error) {
	f.source = source
	f.auth = authorization
	f.body = string(body)
	if f.err != nil {
		return nil, f.err
	}
	return &intakedomain.WebhookRecord{}, nil
}

type fakeUserService struct {
	userdomain.Service
}

func (fakeUserService) GetByID(_ context.Context, id snowflake.ID) (*userdomain.User, error) {
	if id != knownUser {
		return nil, userdomain.ErrUserNotFound
	}
	return &userdomain.User{ID: id, Email: "learner@example.com"}, nil
}

type fixture struct {
	server  *Server
	payment *fakePaymentService
	intake  *fakeIntakeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	f := &fixture{payment: &fakePaymentService{}, intake: &fakeIntakeService{}}
	f.server = NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{Environment: "test"},
		Log:        zap.NewNop(),
		PaymentSvc: f.payment,
		IntakeSvc:  f.intake,
		UserSvc:    fakeUserService{},
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string, user snowflake.ID) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set(HeaderUserID, user.String())
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestPayIntentRequiresAuthenticatedUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/v0/payment/", `{"run_key":77,"payment_amount":"300"}`, 0))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(jsonRequest(http.MethodPost, "/api/v0/payment/", `{"run_key":77,"payment_amount":"300"}`, 999))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPayIntentReturnsCheckout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/v0/payment/", `{"run_key":77,"payment_amount":"300"}`, knownUser))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, knownUser, f.payment.payUser)
	assert.Equal(t, int64(77), f.payment.payReq.RunKey)
	assert.Equal(t, "300.00", f.payment.payReq.Amount.String())

	var checkout paymentdomain.Checkout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checkout))
	assert.Equal(t, "300.00", checkout.Payload["amount"])
}

func TestPayIntentValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/v0/payment/", `{"run_key":77,"payment_amount":"lots"}`, knownUser))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "payment_amount", payload.Errors[0].Field)

	f.payment.payErr = paymentdomain.ErrPaymentExceedsDue
	rec = f.do(jsonRequest(http.MethodPost, "/api/v0/payment/", `{"run_key":77,"payment_amount":"5000"}`, knownUser))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "payment_exceeds_balance", decodeError(t, rec).Errors[0].Code)

	f.payment.payErr = orderdomain.ErrNotAdmitted
	rec = f.do(jsonRequest(http.MethodPost, "/api/v0/payment/", `{"run_key":77,"payment_amount":"100"}`, knownUser))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "run_key", decodeError(t, rec).Errors[0].Field)

	f.payment.payErr = orderdomain.ErrRunNotFound
	rec = f.do(jsonRequest(http.MethodPost, "/api/v0/payment/", `{"run_key":78,"payment_amount":"100"}`, knownUser))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(http.MethodGet, "/api/v0/applications/77/payment", "", knownUser))
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "750.00", status["balance"])

	rec = f.do(jsonRequest(http.MethodGet, "/api/v0/applications/abc/payment", "", knownUser))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.payment.statusErr = appdomain.ErrApplicationNotFound
	rec = f.do(jsonRequest(http.MethodGet, "/api/v0/applications/77/payment", "", knownUser))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func fulfillmentRequest() *http.Request {
	form := url.Values{
		"req_reference_number": {"BOOTCAMP-test-12"},
		"decision":             {"ACCEPT"},
		"signed_field_names":   {"decision,req_reference_number,signed_field_names"},
		"signature":            {"sig"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v0/order_fulfillment/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestOrderFulfillmentPassesFormFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(fulfillmentRequest())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BOOTCAMP-test-12", f.payment.fields["req_reference_number"])
	assert.Equal(t, "ACCEPT", f.payment.fields["decision"])
	assert.Equal(t, "sig", f.payment.fields["signature"])
}

func TestOrderFulfillmentErrorStatuses(t *testing.T) {
	cases := map[error]int{
		paymentdomain.ErrInvalidSignature:   http.StatusForbidden,
		paymentdomain.ErrReferenceMismatch:  http.StatusBadRequest,
		paymentdomain.ErrParseFailure:       http.StatusBadRequest,
		paymentdomain.ErrMissingReference:   http.StatusBadRequest,
		orderdomain.ErrOrderNotFound:        http.StatusNotFound,
		orderdomain.ErrDuplicateFulfillment: http.StatusConflict,
	}
	for err, want := range cases {
		f := newFixture(t)
		f.payment.confirmErr = err
		rec := f.do(fulfillmentRequest())
		assert.Equal(t, want, rec.Code, err.Error())
	}
}

func TestIntakeWebhook(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v0/webhooks/intake/intake_A", strings.NewReader(`{"user_email":"a@b.c"}`))
	req.Header.Set("Authorization", "Basic hook-secret")
	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, catalogdomain.SourceIntakeA, f.intake.source)
	assert.Equal(t, "Basic hook-secret", f.intake.auth)
	assert.Equal(t, `{"user_email":"a@b.c"}`, f.intake.body)

	f.intake.err = intakedomain.ErrAuthFailure
	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/v0/webhooks/intake/intake_A", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Body.String())

	f.intake.err = intakedomain.ErrUnknownSource
	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/v0/webhooks/intake/other", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestRateLimitedMapsTo429(t *testing.T) {
	status, payload := mapError(ratelimit.ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", payload.Type)

	kind, code := classifyErrorForLog(ratelimit.ErrRateLimited)
	assert.Equal(t, "client", kind)
	assert.Equal(t, "rate_limited", code)
}
