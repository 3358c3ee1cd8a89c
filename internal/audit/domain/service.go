package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrderAudit(ctx context.Context, db *gorm.DB, entry *OrderAudit) error
	InsertPersonalPriceAudit(ctx context.Context, db *gorm.DB, entry *PersonalPriceAudit) error
	ListOrderAudits(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderAudit, error)
	ListPersonalPriceAudits(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) ([]PersonalPriceAudit, error)
}

// Service writes audit snapshots. Writers pass the transaction that carries
// the mutation so the snapshot commits with it.
type Service interface {
	RecordOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, action string, before, after any) error
	RecordPersonalPrice(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID, action string, before, after any) error
	ListOrderAudits(ctx context.Context, orderID snowflake.ID) ([]OrderAudit, error)
	ListPersonalPriceAudits(ctx context.Context, userID, runID snowflake.ID) ([]PersonalPriceAudit, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidTarget = errors.New("invalid_target")
)
