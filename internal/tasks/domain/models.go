package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Kinds of deferred work scheduled by the ledger.
const (
	KindIntakePaymentSync = "intake_payment_sync"
	KindCRMDealSync       = "crm_deal_sync"
	KindReceiptEmail      = "receipt_email"
	KindOpsAlertEmail     = "ops_alert_email"
)

// Task is one row of the outbox. DedupeKey, when set, makes enqueueing the
// same logical job twice a no-op.
type Task struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Kind        string         `json:"kind" gorm:"type:text;not null;index"`
	Payload     datatypes.JSON `json:"payload" gorm:"not null"`
	Status      Status         `json:"status" gorm:"type:text;not null;index:ix_deferred_tasks_due,priority:1"`
	Attempts    int            `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int            `json:"max_attempts" gorm:"not null"`
	RunAfter    time.Time      `json:"run_after" gorm:"not null;index:ix_deferred_tasks_due,priority:2"`
	LastError   *string        `json:"last_error,omitempty"`
	DedupeKey   *string        `json:"dedupe_key,omitempty" gorm:"uniqueIndex"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null"`
}

func (Task) TableName() string { return "deferred_tasks" }

// EnqueueRequest describes a task to schedule.
type EnqueueRequest struct {
	Kind      string
	Payload   any
	DedupeKey string
	Delay     time.Duration
}

// Payloads shared by producers and handlers.

type OrderPayload struct {
	OrderID snowflake.ID `json:"order_id"`
}

type AlertPayload struct {
	OrderID  snowflake.ID `json:"order_id"`
	Decision string       `json:"decision"`
	Reason   string       `json:"reason,omitempty"`
}
