package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRecord(ctx context.Context, db *gorm.DB, rec *WebhookRecord) error
	FindRecord(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WebhookRecord, error)
	SaveParsed(ctx context.Context, db *gorm.DB, rec *WebhookRecord) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) error
	// LatestSucceeded returns the newest SUCCEEDED record for an upstream
	// user and award.
	LatestSucceeded(ctx context.Context, db *gorm.DB, source catalogdomain.Source, awardID int64, upstreamUserID string) (*WebhookRecord, error)

	FindToken(ctx context.Context, db *gorm.DB, source catalogdomain.Source) (*Token, error)
	FindTokenForUpdate(ctx context.Context, db *gorm.DB, source catalogdomain.Source) (*Token, error)
	// SeedToken inserts token unless the source already has a row.
	SeedToken(ctx context.Context, db *gorm.DB, token *Token) error
	UpsertToken(ctx context.Context, db *gorm.DB, token *Token) error
}
