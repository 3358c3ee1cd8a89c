package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*domain.PersonalPrice, error) {
	return first(db.WithContext(ctx).Where("user_id = ? AND bootcamp_run_id = ?", userID, runID))
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*domain.PersonalPrice, error) {
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND bootcamp_run_id = ?", userID, runID))
}

func first(stmt *gorm.DB) (*domain.PersonalPrice, error) {
	var rows []domain.PersonalPrice
	if err := stmt.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, pp *domain.PersonalPrice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO personal_prices (id, user_id, bootcamp_run_id, price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, bootcamp_run_id)
		 DO UPDATE SET price = excluded.price, updated_at = excluded.updated_at`,
		pp.ID,
		pp.UserID,
		pp.BootcampRunID,
		pp.Price,
		pp.CreatedAt,
		pp.UpdatedAt,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM personal_prices WHERE user_id = ? AND bootcamp_run_id = ?`,
		userID,
		runID,
	)
	return res.RowsAffected, res.Error
}
