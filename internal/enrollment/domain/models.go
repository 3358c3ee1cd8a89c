package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const ChangeStatusRefunded = "refunded"

// Enrollment records that a user holds a seat on a run.
type Enrollment struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_enrollments_user_run,priority:1"`
	BootcampRunID snowflake.ID `json:"bootcamp_run_id" gorm:"not null;uniqueIndex:ux_enrollments_user_run,priority:2"`
	Active        bool         `json:"active" gorm:"not null;default:true"`
	ChangeStatus  *string      `json:"change_status,omitempty" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null"`
}

func (Enrollment) TableName() string { return "enrollments" }

func (e *Enrollment) Refunded() bool {
	return e != nil && e.ChangeStatus != nil && *e.ChangeStatus == ChangeStatusRefunded
}
