package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Actor types recorded on audit rows.
const (
	ActorTypeUser     = "user"
	ActorTypeOperator = "operator"
	ActorTypeSystem   = "system"
	ActorTypeGateway  = "gateway"
	ActorTypeIntake   = "intake"
)

// OrderAudit is an append-only before/after snapshot of an order and its lines.
type OrderAudit struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrderID    snowflake.ID   `gorm:"not null;index" json:"order_id"`
	Action     string         `gorm:"not null" json:"action"`
	ActorType  string         `gorm:"not null" json:"actor_type"`
	ActorID    *string        `json:"actor_id,omitempty"`
	DataBefore datatypes.JSON `json:"data_before"`
	DataAfter  datatypes.JSON `json:"data_after"`
	RequestID  *string        `json:"request_id,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (OrderAudit) TableName() string { return "order_audits" }

// PersonalPriceAudit is an append-only before/after snapshot of a personal price.
type PersonalPriceAudit struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID   `gorm:"not null;index" json:"user_id"`
	BootcampRunID snowflake.ID   `gorm:"not null;index" json:"bootcamp_run_id"`
	Action        string         `gorm:"not null" json:"action"`
	ActorType     string         `gorm:"not null" json:"actor_type"`
	ActorID       *string        `json:"actor_id,omitempty"`
	DataBefore    datatypes.JSON `json:"data_before"`
	DataAfter     datatypes.JSON `json:"data_after"`
	RequestID     *string        `json:"request_id,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

func (PersonalPriceAudit) TableName() string { return "personal_price_audits" }
