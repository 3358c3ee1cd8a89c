package sourcea

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	body := []byte(`{
		"user_email": "Ada@Example.com",
		"user_id": 1001,
		"submission_id": "s-9",
		"award_id": "77",
		"award_name": "Data Engineering",
		"award_cost": "1000.00",
		"amount_to_pay": "800.00"
	}`)
	p, err := Parser{}.Parse(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "Ada@Example.com", p.UserEmail)
	assert.Equal(t, "1001", p.UserID)
	assert.Equal(t, "s-9", p.SubmissionID)
	require.NotNil(t, p.AwardID)
	assert.Equal(t, int64(77), *p.AwardID)
	assert.Equal(t, "1000.00", p.AwardCost.String())
	assert.Equal(t, "800.00", p.AmountToPay.String())
	assert.False(t, p.AmountToPayCleared)
}

func TestParseClearedAmount(t *testing.T) {
	p, err := Parser{}.Parse(context.Background(), []byte(`{"user_email":"a@x.example","user_id":"1","award_id":77,"amount_to_pay":null}`))
	require.NoError(t, err)
	assert.Nil(t, p.AmountToPay)
	assert.True(t, p.AmountToPayCleared)
}

func TestParseRejectsPartialBodies(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"user_email":`,
		"missing email": `{"user_id":"1"}`,
		"missing user":  `{"user_email":"a@x.example"}`,
		"bad award":     `{"user_email":"a@x.example","user_id":"1","award_id":"seventy"}`,
		"bad amount":    `{"user_email":"a@x.example","user_id":"1","amount_to_pay":"lots"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parser{}.Parse(context.Background(), []byte(body))
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

type recorder struct {
	method, path string
	payload      any
}

func (r *recorder) Do(_ context.Context, method, path string, payload any) ([]byte, error) {
	r.method, r.path, r.payload = method, path, payload
	return nil, nil
}

func TestReportPaid(t *testing.T) {
	api := &recorder{}
	err := Reporter{API: api}.ReportPaid(context.Background(), "s 9", money.MustParse("500"))
	require.NoError(t, err)
	assert.Equal(t, "PUT", api.method)
	assert.Equal(t, "/installments/s%209", api.path)
	raw, err := json.Marshal(api.payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"500.00"}`, string(raw))

	err = Reporter{API: api}.ReportPaid(context.Background(), "", money.Zero)
	assert.ErrorIs(t, err, domain.ErrMissingSubmission)
}
