package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// WebhookRecord is one inbound intake callback. The body is stored verbatim
// before parsing and rows are never deleted.
type WebhookRecord struct {
	ID           snowflake.ID         `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Source       catalogdomain.Source `json:"source" gorm:"type:text;not null;index:ix_webhook_records_award,priority:1"`
	Body         []byte               `json:"-" gorm:"not null"`
	Status       Status               `json:"status" gorm:"type:text;not null"`
	UserEmail    *string              `json:"user_email,omitempty" gorm:"type:text"`
	UserID       *string              `json:"user_id,omitempty" gorm:"type:text;index:ix_webhook_records_award,priority:3"`
	SubmissionID *string              `json:"submission_id,omitempty" gorm:"type:text"`
	AwardID      *int64               `json:"award_id,omitempty" gorm:"index:ix_webhook_records_award,priority:2"`
	AwardName    *string              `json:"award_name,omitempty" gorm:"type:text"`
	AwardCost    *money.Amount        `json:"award_cost,omitempty"`
	AmountToPay  *money.Amount        `json:"amount_to_pay,omitempty"`
	Error        *string              `json:"error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time            `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time            `json:"updated_at" gorm:"not null"`
}

func (WebhookRecord) TableName() string { return "webhook_records" }

// Token is the OAuth2 session for one intake API. The upstream invalidates a
// refresh token on use, so the row must be rewritten before the next call.
type Token struct {
	ID           snowflake.ID         `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Source       catalogdomain.Source `json:"source" gorm:"type:text;not null;uniqueIndex:ux_intake_tokens_source"`
	AccessToken  string               `json:"-" gorm:"type:text;not null"`
	RefreshToken string               `json:"-" gorm:"type:text;not null"`
	ExpiresOn    time.Time            `json:"expires_on" gorm:"not null"`
	CreatedAt    time.Time            `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time            `json:"updated_at" gorm:"not null"`
}

func (Token) TableName() string { return "intake_tokens" }

func (t *Token) Expired(now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresOn)
}

// Parsed is what a source parser extracts from a webhook body.
type Parsed struct {
	UserEmail    string
	UserID       string
	SubmissionID string
	AwardID      *int64
	AwardName    string
	AwardCost    *money.Amount
	AmountToPay  *money.Amount
	// AmountToPayCleared is set when the body explicitly carries an empty or
	// null amount_to_pay, which reverts the user to list price.
	AmountToPayCleared bool
}
