package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/enrollment/domain"
	"gorm.io/gorm"
)

const columns = `id, user_id, bootcamp_run_id, active, change_status, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *domain.Enrollment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO enrollments (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		e.ID,
		e.UserID,
		e.BootcampRunID,
		e.Active,
		e.ChangeStatus,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM enrollments WHERE user_id = ? AND bootcamp_run_id = ?`,
		userID,
		runID,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM enrollments WHERE id = ?`,
		id,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, changeStatus *string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE enrollments SET active = ?, change_status = ?, updated_at = ? WHERE id = ?`,
		active,
		changeStatus,
		now,
		id,
	).Error
}
