package domain

import (
	"context"
	"errors"

	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

type Service interface {
	// Ingest stores body for source and provisions the user it describes.
	// Parse failures are recorded on the row, not returned.
	Ingest(ctx context.Context, source catalogdomain.Source, authorization string, body []byte) (*WebhookRecord, error)
}

// Syncer reports paid totals back to the intake system that owns a run.
type Syncer interface {
	SyncPayment(ctx context.Context, task tasksdomain.Task) error
}

// Parser turns a webhook body into Parsed. Any error fails the whole record.
type Parser interface {
	Parse(ctx context.Context, body []byte) (*Parsed, error)
}

// Reporter writes the paid total onto an upstream submission.
type Reporter interface {
	ReportPaid(ctx context.Context, submissionID string, total money.Amount) error
}

// API is an authenticated JSON client for one intake system.
type API interface {
	Do(ctx context.Context, method, path string, payload any) ([]byte, error)
}

// Adapter is everything the core can do with one intake system.
type Adapter struct {
	Source       catalogdomain.Source
	WebhookToken string
	Parser       Parser
	Reporter     Reporter
}

var (
	ErrAuthFailure       = errors.New("intake_auth_failure")
	ErrUnknownSource     = errors.New("unknown_intake_source")
	ErrParse             = errors.New("intake_parse_failed")
	ErrMissingSubmission = errors.New("intake_submission_missing")
	ErrNoCredentials     = errors.New("intake_credentials_missing")
)
