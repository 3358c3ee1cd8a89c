// Package sourceb adapts intake system B. Its webhooks carry only ids; the
// applicant's email and pricing are read back from the submission.
package sourceb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

type submission struct {
	UserEmail string        `json:"user_email"`
	Metadata  domain.Fields `json:"metadata"`
}

type Parser struct {
	API domain.API
}

func (p Parser) Parse(ctx context.Context, body []byte) (*domain.Parsed, error) {
	f, err := domain.DecodeFields(body)
	if err != nil {
		return nil, err
	}
	out := &domain.Parsed{}
	if out.SubmissionID, err = f.Require("id"); err != nil {
		return nil, err
	}
	if out.UserID, err = f.Require("user_id"); err != nil {
		return nil, err
	}
	if out.AwardID, err = f.Int("award"); err != nil {
		return nil, err
	}
	if out.AwardID == nil {
		return nil, fmt.Errorf("%w: award is required", domain.ErrParse)
	}
	if out.AwardName, err = f.String("award_name"); err != nil {
		return nil, err
	}
	if out.UserEmail, err = f.String("user_email"); err != nil {
		return nil, err
	}

	if p.API != nil {
		sub, err := p.fetch(ctx, out.SubmissionID)
		if err != nil {
			return nil, err
		}
		if out.UserEmail == "" {
			out.UserEmail = sub.UserEmail
		}
		if sub.Metadata != nil {
			if out.AwardCost, _, err = sub.Metadata.Amount("award_cost"); err != nil {
				return nil, err
			}
			if out.AmountToPay, out.AmountToPayCleared, err = sub.Metadata.Amount("amount_to_pay"); err != nil {
				return nil, err
			}
		}
	}
	if out.UserEmail == "" {
		return nil, fmt.Errorf("%w: user_email is required", domain.ErrParse)
	}
	return out, nil
}

func (p Parser) fetch(ctx context.Context, id string) (*submission, error) {
	raw, err := p.API.Do(ctx, http.MethodGet, fmt.Sprintf("/submissions/%s/", url.PathEscape(id)), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch submission %s: %w", id, err)
	}
	var sub submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: submission %s: %v", domain.ErrParse, id, err)
	}
	return &sub, nil
}

type Reporter struct {
	API           domain.API
	AmountFieldID string
}

type valueBody struct {
	Value string `json:"value"`
}

func (r Reporter) ReportPaid(ctx context.Context, submissionID string, total money.Amount) error {
	if submissionID == "" {
		return domain.ErrMissingSubmission
	}
	if r.AmountFieldID == "" {
		return fmt.Errorf("intake_B amount field id is not configured")
	}
	path := fmt.Sprintf("/submissions/%s/metadata/%s/", url.PathEscape(submissionID), url.PathEscape(r.AmountFieldID))
	_, err := r.API.Do(ctx, http.MethodPut, path, valueBody{Value: total.String()})
	return err
}
