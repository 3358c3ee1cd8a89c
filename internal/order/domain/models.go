package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusFulfilled Status = "FULFILLED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

type PaymentType string

const (
	PaymentTypeCreditCard   PaymentType = "credit_card"
	PaymentTypeWireTransfer PaymentType = "wire_transfer"
	PaymentTypeRefund       PaymentType = "refund"
)

// CanTransition lists the only status changes an existing order may make.
// Refund orders are written as REFUNDED when created.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusFulfilled || to == StatusFailed
	case StatusFulfilled:
		return to == StatusRefunded
	default:
		return false
	}
}

// NetStatuses are the statuses whose lines count toward what a user has paid.
var NetStatuses = []Status{StatusFulfilled, StatusRefunded}

type Order struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID         snowflake.ID  `json:"user_id" gorm:"not null;index"`
	Status         Status        `json:"status" gorm:"type:text;not null;index"`
	TotalPricePaid money.Amount  `json:"total_price_paid" gorm:"not null"`
	PaymentType    PaymentType   `json:"payment_type" gorm:"type:text;not null"`
	ApplicationID  *snowflake.ID `json:"application_id,omitempty"`
	AbandonedAt    *time.Time    `json:"abandoned_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"not null"`
	Lines          []Line        `json:"lines" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// RunID returns the run of the first line.
func (o *Order) RunID() snowflake.ID {
	if o == nil || len(o.Lines) == 0 {
		return 0
	}
	return o.Lines[0].BootcampRunID
}

type Line struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID       snowflake.ID `json:"order_id" gorm:"not null;index"`
	BootcampRunID snowflake.ID `json:"bootcamp_run_id" gorm:"not null;index"`
	Price         money.Amount `json:"price" gorm:"not null"`
	Description   string       `json:"description" gorm:"type:text;not null;default:''"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

func (Line) TableName() string { return "order_lines" }

// Receipt is a raw gateway callback. It is stored before matching so that
// malformed callbacks are kept.
type Receipt struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID   *snowflake.ID  `json:"order_id,omitempty" gorm:"index"`
	Data      datatypes.JSON `json:"data" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
}

func (Receipt) TableName() string { return "receipts" }

type WireTransferReceipt struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	WireTransferID    string         `json:"wire_transfer_id" gorm:"type:text;not null;uniqueIndex:ux_wire_transfer_receipts_wire_id"`
	OrderID           snowflake.ID   `json:"order_id" gorm:"not null;index"`
	LearnerEmail      string         `json:"learner_email" gorm:"type:text;not null"`
	Amount            money.Amount   `json:"amount" gorm:"not null"`
	BootcampRunKey    int64          `json:"bootcamp_run_key" gorm:"not null"`
	BootcampName      string         `json:"bootcamp_name" gorm:"type:text;not null;default:''"`
	BootcampStartDate string         `json:"bootcamp_start_date" gorm:"type:text;not null;default:''"`
	Data              datatypes.JSON `json:"data" gorm:"not null"`
	CreatedAt         time.Time      `json:"created_at" gorm:"not null"`
}

func (WireTransferReceipt) TableName() string { return "wire_transfer_receipts" }

const (
	AuditActionCreate  = "order.create"
	AuditActionFulfill = "order.fulfill"
	AuditActionFail    = "order.fail"
	AuditActionRefund  = "order.refund"
	AuditActionAbandon = "order.abandon"
	AuditActionWire    = "order.wire_transfer"
)

type CreateOrderRequest struct {
	UserID snowflake.ID
	RunKey int64
	Amount money.Amount
}

type RefundRequest struct {
	UserID snowflake.ID
	RunKey int64
	Amount money.Amount
}

type RefundEnrollmentRequest struct {
	UserID       snowflake.ID
	EnrollmentID snowflake.ID
	Amount       money.Amount
}

type WireTransferRequest struct {
	UserID            snowflake.ID
	RunKey            int64
	Amount            money.Amount
	WireTransferID    string
	LearnerEmail      string
	BootcampName      string
	BootcampStartDate string
	Raw               map[string]string
}
