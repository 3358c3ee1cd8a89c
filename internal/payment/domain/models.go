package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

type Decision string

const (
	DecisionAccept  Decision = "ACCEPT"
	DecisionDecline Decision = "DECLINE"
	DecisionReview  Decision = "REVIEW"
	DecisionError   Decision = "ERROR"
	DecisionCancel  Decision = "CANCEL"
)

// Inbound confirmation fields read by the handler.
const (
	FieldReference     = "req_reference_number"
	FieldDecision      = "decision"
	FieldReasonCode    = "reason_code"
	FieldMessage       = "message"
	FieldPaymentMethod = "req_payment_method"
	FieldCardType      = "req_card_type"
	FieldCardNumber    = "req_card_number"
)

var (
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrMissingReference  = errors.New("missing_reference_number")
	ErrPaymentExceedsDue = errors.New("payment_exceeds_balance")
	ErrNothingDue        = errors.New("nothing_due")
)

type PayRequest struct {
	RunKey int64        `json:"run_key"`
	Amount money.Amount `json:"payment_amount"`
}

// Checkout is the form a browser posts to the hosted checkout page.
type Checkout struct {
	URL     string             `json:"url"`
	Payload map[string]string  `json:"payload"`
	Order   *orderdomain.Order `json:"order"`
}

type ConfirmationResult struct {
	ReceiptID snowflake.ID       `json:"receipt_id"`
	OrderID   snowflake.ID       `json:"order_id"`
	Decision  Decision           `json:"decision"`
	Status    orderdomain.Status `json:"status"`
	// Duplicate is set when a CANCEL arrived for an order that already failed.
	Duplicate bool `json:"duplicate"`
}

// Status is what a learner owes on one run.
type Status struct {
	RunKey                  int64                       `json:"run_key"`
	RunTitle                string                      `json:"run_title"`
	State                   appdomain.State             `json:"state"`
	Price                   money.Amount                `json:"price"`
	TotalPaid               money.Amount                `json:"total_paid"`
	Balance                 money.Amount                `json:"balance"`
	TotalDueByNextDeadline  money.Amount                `json:"total_due_by_next_deadline"`
	NextPaymentDeadlineDays *int                        `json:"next_payment_deadline_days"`
	Installments            []catalogdomain.Installment `json:"installments"`
}

type Service interface {
	// PayIntent opens a CREATED order and returns its signed checkout form.
	PayIntent(ctx context.Context, userID snowflake.ID, req PayRequest) (*Checkout, error)
	HandleConfirmation(ctx context.Context, fields map[string]string) (*ConfirmationResult, error)
	Status(ctx context.Context, userID snowflake.ID, runKey int64) (*Status, error)
}
