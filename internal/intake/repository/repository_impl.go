package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/intake/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRecord(ctx context.Context, db *gorm.DB, rec *domain.WebhookRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO webhook_records (id, source, body, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Source,
		rec.Body,
		rec.Status,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Error
}

func (r *repo) FindRecord(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WebhookRecord, error) {
	var rows []domain.WebhookRecord
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) SaveParsed(ctx context.Context, db *gorm.DB, rec *domain.WebhookRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_records
		 SET status = ?, user_email = ?, user_id = ?, submission_id = ?, award_id = ?,
		     award_name = ?, award_cost = ?, amount_to_pay = ?, error = NULL, updated_at = ?
		 WHERE id = ?`,
		rec.Status,
		rec.UserEmail,
		rec.UserID,
		rec.SubmissionID,
		rec.AwardID,
		rec.AwardName,
		rec.AwardCost,
		rec.AmountToPay,
		rec.UpdatedAt,
		rec.ID,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_records SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		domain.StatusFailed,
		reason,
		now,
		id,
	).Error
}

func (r *repo) LatestSucceeded(ctx context.Context, db *gorm.DB, source catalogdomain.Source, awardID int64, upstreamUserID string) (*domain.WebhookRecord, error) {
	var rows []domain.WebhookRecord
	err := db.WithContext(ctx).
		Where("source = ? AND status = ? AND award_id = ? AND user_id = ?", source, domain.StatusSucceeded, awardID, upstreamUserID).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) FindToken(ctx context.Context, db *gorm.DB, source catalogdomain.Source) (*domain.Token, error) {
	return firstToken(db.WithContext(ctx).Where("source = ?", source))
}

func (r *repo) FindTokenForUpdate(ctx context.Context, db *gorm.DB, source catalogdomain.Source) (*domain.Token, error) {
	return firstToken(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("source = ?", source))
}

func firstToken(stmt *gorm.DB) (*domain.Token, error) {
	var rows []domain.Token
	if err := stmt.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) SeedToken(ctx context.Context, db *gorm.DB, token *domain.Token) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source"}}, DoNothing: true}).
		Create(token).Error
}

func (r *repo) UpsertToken(ctx context.Context, db *gorm.DB, token *domain.Token) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO intake_tokens (id, source, access_token, refresh_token, expires_on, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   expires_on = excluded.expires_on,
		   updated_at = excluded.updated_at`,
		token.ID,
		token.Source,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresOn,
		token.CreatedAt,
		token.UpdatedAt,
	).Error
}
