package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

// PersonalPrice overrides a run's list price for one user.
type PersonalPrice struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_personal_prices_user_run,priority:1"`
	BootcampRunID snowflake.ID `json:"bootcamp_run_id" gorm:"not null;uniqueIndex:ux_personal_prices_user_run,priority:2"`
	Price         money.Amount `json:"price" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null"`
}

func (PersonalPrice) TableName() string { return "personal_prices" }

// Effective is the personal price when one exists, else the list price.
func Effective(pp *PersonalPrice, listPrice money.Amount) money.Amount {
	if pp == nil {
		return listPrice
	}
	return pp.Price
}

const (
	AuditActionSet    = "personal_price.set"
	AuditActionDelete = "personal_price.delete"
)
