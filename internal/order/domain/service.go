package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"gorm.io/gorm"
)

type Service interface {
	CreateUnfulfilledOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	// CompleteSuccessfulOrder and HandleRejectedOrder expect order to be
	// locked by the caller's transaction.
	CompleteSuccessfulOrder(ctx context.Context, tx *gorm.DB, order *Order) error
	HandleRejectedOrder(ctx context.Context, tx *gorm.DB, order *Order, decision string) error

	ProcessRefund(ctx context.Context, req RefundRequest) (*Order, error)
	RefundEnrollment(ctx context.Context, req RefundEnrollmentRequest) (*Order, error)
	RecordWireTransfer(ctx context.Context, req WireTransferRequest) (*Order, error)
	MarkAbandonedOrders(ctx context.Context, olderThan time.Duration, limit int) (int, error)

	// TotalPaidForRun sums FULFILLED line prices for (user, run).
	TotalPaidForRun(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (money.Amount, error)
	// NetPaidForRun also subtracts refunds.
	NetPaidForRun(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (money.Amount, error)

	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	ListReceipts(ctx context.Context, orderID snowflake.ID) ([]Receipt, error)
}

var (
	ErrInvalidUser           = errors.New("invalid_user")
	ErrInvalidRunKey         = errors.New("invalid_run_key")
	ErrRunNotFound           = errors.New("bootcamp_run_not_found")
	ErrNotAdmitted           = errors.New("user_not_admitted")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrRefundExceedsPaid     = errors.New("refund_exceeds_paid")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrInvalidTransition     = errors.New("invalid_order_transition")
	ErrDuplicateFulfillment  = errors.New("duplicate_fulfillment")
	ErrEnrollmentNotFound    = errors.New("enrollment_not_found")
	ErrAlreadyRefunded       = errors.New("enrollment_already_refunded")
	ErrDuplicateWireTransfer = errors.New("duplicate_wire_transfer")
	ErrInvalidWireTransferID = errors.New("invalid_wire_transfer_id")
)
