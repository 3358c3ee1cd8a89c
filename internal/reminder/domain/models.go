package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// SentReminder records that template was delivered to a user for a run.
// The unique index is what makes dispatch at-most-once.
type SentReminder struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_sent_reminders,priority:1"`
	Template      string       `json:"template" gorm:"type:text;not null;uniqueIndex:ux_sent_reminders,priority:2"`
	BootcampRunID snowflake.ID `json:"bootcamp_run_id" gorm:"not null;uniqueIndex:ux_sent_reminders,priority:3"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

func (SentReminder) TableName() string { return "sent_reminders" }

// TemplateName is the mail template for a reminder sent offset days ahead.
func TemplateName(prefix string, offset int) string {
	return fmt.Sprintf("%s_%d", prefix, offset)
}

// Report summarizes one reminder pass.
type Report struct {
	RunsChecked int
	Sent        int
	Skipped     int
	Failed      int
}
