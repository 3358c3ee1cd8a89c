// Package domain holds the applicant identity records the core reads and
// provisions from intake webhooks.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
)

type User struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Email     string       `json:"email" gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	Username  string       `json:"username" gorm:"type:text;not null;uniqueIndex:ux_users_username"`
	FirstName string       `json:"first_name" gorm:"type:text;not null;default:''"`
	LastName  string       `json:"last_name" gorm:"type:text;not null;default:''"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Profile links a user to the ids the intake systems know them by.
type Profile struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_profiles_user"`
	IntakeAUserID *string      `json:"intake_a_user_id,omitempty" gorm:"type:text"`
	IntakeBUserID *string      `json:"intake_b_user_id,omitempty" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null"`
}

func (Profile) TableName() string { return "profiles" }

// UpstreamID returns the profile's user id at source, or "" when unlinked.
func (p *Profile) UpstreamID(source catalogdomain.Source) string {
	if p == nil {
		return ""
	}
	var v *string
	switch source {
	case catalogdomain.SourceIntakeA:
		v = p.IntakeAUserID
	case catalogdomain.SourceIntakeB:
		v = p.IntakeBUserID
	}
	if v == nil {
		return ""
	}
	return *v
}

// NormalizeEmail is the comparison form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
