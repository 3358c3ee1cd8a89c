package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

// Source names the external intake system that provisioned a run.
type Source string

const (
	SourceNone    Source = ""
	SourceIntakeA Source = "intake_A"
	SourceIntakeB Source = "intake_B"
)

func (s Source) Valid() bool {
	switch s {
	case SourceNone, SourceIntakeA, SourceIntakeB:
		return true
	default:
		return false
	}
}

type Bootcamp struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title     string       `json:"title" gorm:"type:text;not null"`
	Slug      string       `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_bootcamps_slug"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Bootcamp) TableName() string { return "bootcamps" }

// BootcampRun is one scheduled offering. RunKey is the SKU shared with the
// intake systems and the payment gateway and never changes once assigned.
type BootcampRun struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	BootcampID         snowflake.ID `json:"bootcamp_id" gorm:"not null;index"`
	RunKey             int64        `json:"run_key" gorm:"not null;uniqueIndex:ux_bootcamp_runs_run_key"`
	Title              string       `json:"title" gorm:"type:text;not null"`
	Price              money.Amount `json:"price" gorm:"not null"`
	Source             Source       `json:"source" gorm:"type:text;not null;default:''"`
	AllowsSkippedSteps bool         `json:"allows_skipped_steps" gorm:"not null;default:false"`
	StartDate          *time.Time   `json:"start_date,omitempty"`
	EndDate            *time.Time   `json:"end_date,omitempty"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null"`
}

func (BootcampRun) TableName() string { return "bootcamp_runs" }

// Installment is a portion of tuition due by Deadline.
type Installment struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	BootcampRunID snowflake.ID `json:"bootcamp_run_id" gorm:"not null;uniqueIndex:ux_installments_run_deadline,priority:1"`
	Deadline      time.Time    `json:"deadline" gorm:"not null;uniqueIndex:ux_installments_run_deadline,priority:2"`
	Amount        money.Amount `json:"amount" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

func (Installment) TableName() string { return "installments" }

type CreateBootcampRequest struct {
	Title string
}

type CreateRunRequest struct {
	BootcampID         snowflake.ID
	RunKey             int64
	Title              string
	Price              money.Amount
	Source             Source
	AllowsSkippedSteps bool
	StartDate          *time.Time
	EndDate            *time.Time
}

type AddInstallmentRequest struct {
	BootcampRunID snowflake.ID
	Deadline      time.Time
	Amount        money.Amount
}
