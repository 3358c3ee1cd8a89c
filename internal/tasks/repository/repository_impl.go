package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/tasks/domain"
	"github.com/smallbiznis/bootcamp/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, task *domain.Task) (bool, error) {
	res := conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(task)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimDue moves up to limit due tasks to running and pushes their run_after
// to leaseUntil, so a crashed worker's tasks become due again.
func (r *repo) ClaimDue(ctx context.Context, conn *gorm.DB, now, leaseUntil time.Time, limit int) ([]domain.Task, error) {
	query := `SELECT * FROM deferred_tasks
		WHERE status IN (?, ?) AND run_after <= ?
		ORDER BY run_after ASC, id ASC
		LIMIT ?`
	if db.IsPostgres(conn) {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	var tasks []domain.Task
	if err := conn.WithContext(ctx).Raw(query, domain.StatusPending, domain.StatusRunning, now, limit).Scan(&tasks).Error; err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].ID)
		tasks[i].Status = domain.StatusRunning
		tasks[i].Attempts++
		tasks[i].RunAfter = leaseUntil
	}
	err := conn.WithContext(ctx).Exec(
		`UPDATE deferred_tasks
		 SET status = ?, attempts = attempts + 1, run_after = ?, updated_at = ?
		 WHERE id IN ?`,
		domain.StatusRunning, leaseUntil, now, ids,
	).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) MarkSucceeded(ctx context.Context, conn *gorm.DB, id snowflake.ID, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE deferred_tasks SET status = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		domain.StatusSucceeded, now, id,
	).Error
}

func (r *repo) MarkRetry(ctx context.Context, conn *gorm.DB, id snowflake.ID, runAfter time.Time, reason string, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE deferred_tasks SET status = ?, run_after = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		domain.StatusPending, runAfter, reason, now, id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, conn *gorm.DB, id snowflake.ID, reason string, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE deferred_tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		domain.StatusFailed, reason, now, id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Task, error) {
	var task domain.Task
	err := conn.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repo) ListByKind(ctx context.Context, conn *gorm.DB, kind string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := conn.WithContext(ctx).
		Where("kind = ?", kind).
		Order("created_at asc, id asc").
		Find(&tasks).Error
	return tasks, err
}
