package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/order/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, user_id, status, total_price_paid, payment_type, application_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		order.Status,
		order.TotalPricePaid,
		order.PaymentType,
		order.ApplicationID,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
	if err != nil {
		return err
	}
	for _, line := range order.Lines {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO order_lines (id, order_id, bootcamp_run_id, price, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			line.ID,
			order.ID,
			line.BootcampRunID,
			line.Price,
			line.Description,
			line.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.find(ctx, db, id, false)
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.find(ctx, db, id, true)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, id snowflake.ID, lock bool) (*domain.Order, error) {
	stmt := db.WithContext(ctx)
	if lock {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var orders []domain.Order
	if err := stmt.Where("id = ?", id).Limit(1).Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	order := orders[0]

	var lines []domain.Line
	err := db.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Order("created_at asc, id asc").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return &order, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		now,
		id,
		from,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListStaleCreatedIDs(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("status = ? AND abandoned_at IS NULL AND created_at < ?", domain.StatusCreated, before).
		Order("created_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkAbandoned stamps a CREATED order without touching its status, so a
// late gateway callback can still fulfill it.
func (r *repo) MarkAbandoned(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET abandoned_at = ?, updated_at = ? WHERE id = ? AND status = ? AND abandoned_at IS NULL`,
		now,
		now,
		id,
		domain.StatusCreated,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) LinePrices(ctx context.Context, db *gorm.DB, userID, runID snowflake.ID, statuses []domain.Status) ([]money.Amount, error) {
	rows, err := db.WithContext(ctx).Raw(
		`SELECT l.price
		 FROM order_lines l
		 JOIN orders o ON o.id = l.order_id
		 WHERE o.user_id = ? AND l.bootcamp_run_id = ? AND o.status IN ?`,
		userID,
		runID,
		statuses,
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []money.Amount
	for rows.Next() {
		var price money.Amount
		if err := rows.Scan(&price); err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	return prices, rows.Err()
}

func (r *repo) InsertReceipt(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO receipts (id, order_id, data, created_at) VALUES (?, ?, ?, ?)`,
		receipt.ID,
		receipt.OrderID,
		receipt.Data,
		receipt.CreatedAt,
	).Error
}

func (r *repo) AttachReceipt(ctx context.Context, db *gorm.DB, receiptID, orderID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE receipts SET order_id = ? WHERE id = ?`,
		orderID,
		receiptID,
	).Error
}

func (r *repo) ListReceipts(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Receipt, error) {
	var receipts []domain.Receipt
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repo) FindWireTransferReceipt(ctx context.Context, db *gorm.DB, wireTransferID string) (*domain.WireTransferReceipt, error) {
	var rows []domain.WireTransferReceipt
	err := db.WithContext(ctx).
		Where("wire_transfer_id = ?", wireTransferID).
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

func (r *repo) InsertWireTransferReceipt(ctx context.Context, db *gorm.DB, receipt *domain.WireTransferReceipt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO wire_transfer_receipts (
			id, wire_transfer_id, order_id, learner_email, amount, bootcamp_run_key,
			bootcamp_name, bootcamp_start_date, data, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receipt.ID,
		receipt.WireTransferID,
		receipt.OrderID,
		receipt.LearnerEmail,
		receipt.Amount,
		receipt.BootcampRunKey,
		receipt.BootcampName,
		receipt.BootcampStartDate,
		receipt.Data,
		receipt.CreatedAt,
	).Error
}
