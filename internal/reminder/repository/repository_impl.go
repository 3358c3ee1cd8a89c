package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/reminder/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.SentReminder) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO sent_reminders (id, user_id, template, bootcamp_run_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, template, bootcamp_run_id) DO NOTHING`,
		s.ID, s.UserID, s.Template, s.BootcampRunID, s.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, userID snowflake.ID, template string, runID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.SentReminder{}).
		Where("user_id = ? AND template = ? AND bootcamp_run_id = ?", userID, template, runID).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) ListByRun(ctx context.Context, db *gorm.DB, runID snowflake.ID) ([]domain.SentReminder, error) {
	var out []domain.SentReminder
	err := db.WithContext(ctx).
		Where("bootcamp_run_id = ?", runID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
