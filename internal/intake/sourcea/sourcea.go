// Package sourcea adapts intake system A: flat JSON webhooks and an
// installments endpoint for paid totals.
package sourcea

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

type Parser struct{}

func (Parser) Parse(_ context.Context, body []byte) (*domain.Parsed, error) {
	f, err := domain.DecodeFields(body)
	if err != nil {
		return nil, err
	}
	out := &domain.Parsed{}
	if out.UserEmail, err = f.Require("user_email"); err != nil {
		return nil, err
	}
	if out.UserID, err = f.Require("user_id"); err != nil {
		return nil, err
	}
	if out.SubmissionID, err = f.String("submission_id"); err != nil {
		return nil, err
	}
	if out.AwardID, err = f.Int("award_id"); err != nil {
		return nil, err
	}
	if out.AwardName, err = f.String("award_name"); err != nil {
		return nil, err
	}
	if out.AwardCost, _, err = f.Amount("award_cost"); err != nil {
		return nil, err
	}
	if out.AmountToPay, out.AmountToPayCleared, err = f.Amount("amount_to_pay"); err != nil {
		return nil, err
	}
	return out, nil
}

type Reporter struct {
	API domain.API
}

type valueBody struct {
	Value string `json:"value"`
}

func (r Reporter) ReportPaid(ctx context.Context, submissionID string, total money.Amount) error {
	if submissionID == "" {
		return domain.ErrMissingSubmission
	}
	path := fmt.Sprintf("/installments/%s", url.PathEscape(submissionID))
	_, err := r.API.Do(ctx, http.MethodPut, path, valueBody{Value: total.String()})
	return err
}
