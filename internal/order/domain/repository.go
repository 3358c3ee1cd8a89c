package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertOrder writes the order row and its lines.
	InsertOrder(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// FindForUpdate locks the order row for the rest of the transaction.
	FindForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (int64, error)
	ListStaleCreatedIDs(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]snowflake.ID, error)
	MarkAbandoned(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)

	// LinePrices returns the prices of lines for (user, run) whose order has
	// one of statuses.
	LinePrices(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID, statuses []Status) ([]money.Amount, error)

	InsertReceipt(ctx context.Context, db *gorm.DB, receipt *Receipt) error
	AttachReceipt(ctx context.Context, db *gorm.DB, receiptID, orderID snowflake.ID) error
	ListReceipts(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Receipt, error)

	FindWireTransferReceipt(ctx context.Context, db *gorm.DB, wireTransferID string) (*WireTransferReceipt, error)
	InsertWireTransferReceipt(ctx context.Context, db *gorm.DB, receipt *WireTransferReceipt) error
}
