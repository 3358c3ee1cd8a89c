package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/admissions"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	auditdomain "github.com/smallbiznis/bootcamp/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	enrollmentdomain "github.com/smallbiznis/bootcamp/internal/enrollment/domain"
	"github.com/smallbiznis/bootcamp/internal/observability/metrics"
	"github.com/smallbiznis/bootcamp/internal/order/domain"
	"github.com/smallbiznis/bootcamp/pkg/db"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	CatalogRepo   catalogdomain.Repository
	AppRepo       appdomain.Repository
	Recomputer    appdomain.Recomputer
	EnrollmentSvc enrollmentdomain.Service
	AuditSvc      auditdomain.Service
	Gate          admissions.Gate
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	catalogRepo   catalogdomain.Repository
	appRepo       appdomain.Repository
	recomputer    appdomain.Recomputer
	enrollmentSvc enrollmentdomain.Service
	auditSvc      auditdomain.Service
	gate          admissions.Gate
	metrics       *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("order.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		catalogRepo:   p.CatalogRepo,
		appRepo:       p.AppRepo,
		recomputer:    p.Recomputer,
		enrollmentSvc: p.EnrollmentSvc,
		auditSvc:      p.AuditSvc,
		gate:          p.Gate,
		metrics:       p.Metrics,
	}
}

func (s *Service) CreateUnfulfilledOrder(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	run, err := s.runByKey(ctx, s.db, req.RunKey)
	if err != nil {
		return nil, err
	}
	admitted, err := s.gate.Admitted(ctx, s.db, req.UserID, run)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, domain.ErrNotAdmitted
	}

	var order *domain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.newOrder(ctx, tx, req.UserID, run, domain.StatusCreated, domain.PaymentTypeCreditCard, req.Amount, run.Title)
		if err != nil {
			return err
		}
		if err := s.auditSvc.RecordOrder(ctx, tx, created.ID, domain.AuditActionCreate, nil, created); err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderTransition(ctx, string(order.PaymentType), string(order.Status))
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.Int64("run_key", run.RunKey),
		zap.String("amount", req.Amount.String()),
	)
	return order, nil
}

func (s *Service) CompleteSuccessfulOrder(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	if err := s.transition(ctx, tx, order, domain.StatusFulfilled, domain.AuditActionFulfill); err != nil {
		return err
	}
	for _, runID := range runIDs(order) {
		if _, err := s.recomputer.Recompute(ctx, tx, order.UserID, runID, appdomain.EventPayment); err != nil {
			return err
		}
		if _, err := s.enrollmentSvc.Ensure(ctx, tx, order.UserID, runID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) HandleRejectedOrder(ctx context.Context, tx *gorm.DB, order *domain.Order, decision string) error {
	if err := s.transition(ctx, tx, order, domain.StatusFailed, domain.AuditActionFail); err != nil {
		return err
	}
	s.log.Info("order rejected",
		zap.String("order_id", order.ID.String()),
		zap.String("decision", decision),
	)
	return nil
}

func (s *Service) ProcessRefund(ctx context.Context, req domain.RefundRequest) (*domain.Order, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	run, err := s.runByKey(ctx, s.db, req.RunKey)
	if err != nil {
		return nil, err
	}
	return s.refund(ctx, req.UserID, run, req.Amount, nil)
}

func (s *Service) RefundEnrollment(ctx context.Context, req domain.RefundEnrollmentRequest) (*domain.Order, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	enrollment, err := s.enrollmentSvc.GetByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, enrollmentdomain.ErrEnrollmentNotFound) {
			return nil, domain.ErrEnrollmentNotFound
		}
		return nil, err
	}
	if enrollment.UserID != req.UserID {
		return nil, domain.ErrEnrollmentNotFound
	}
	if enrollment.Refunded() {
		return nil, domain.ErrAlreadyRefunded
	}
	run, err := s.catalogRepo.FindRunByID(ctx, s.db, enrollment.BootcampRunID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return s.refund(ctx, req.UserID, run, req.Amount, enrollment)
}

// refund writes a REFUNDED order with a single negative line. When enrollment
// is nil the user's enrollment on run, if any, is marked refunded.
func (s *Service) refund(ctx context.Context, userID snowflake.ID, run *catalogdomain.BootcampRun, amount money.Amount, enrollment *enrollmentdomain.Enrollment) (*domain.Order, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes refunds and payments for the same application.
		if _, err := s.appRepo.FindForUpdate(ctx, tx, userID, run.ID); err != nil {
			return err
		}
		net, err := s.NetPaidForRun(ctx, tx, userID, run.ID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(net) {
			return fmt.Errorf("%w: refund %s, paid %s", domain.ErrRefundExceedsPaid, amount.Display(), net.Display())
		}

		refund, err := s.newOrder(ctx, tx, userID, run, domain.StatusRefunded, domain.PaymentTypeRefund, amount.Neg(), "Refund: "+run.Title)
		if err != nil {
			return err
		}
		if err := s.auditSvc.RecordOrder(ctx, tx, refund.ID, domain.AuditActionRefund, nil, refund); err != nil {
			return err
		}

		target := enrollment
		if target == nil {
			target, err = s.enrollmentSvc.Find(ctx, tx, userID, run.ID)
			if err != nil {
				return err
			}
		}
		if target != nil {
			if _, err := s.enrollmentSvc.MarkRefunded(ctx, tx, target.ID); err != nil {
				return err
			}
		}

		if _, err := s.recomputer.Recompute(ctx, tx, userID, run.ID, appdomain.EventRefund); err != nil {
			return err
		}
		order = refund
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderTransition(ctx, string(order.PaymentType), string(order.Status))
	s.log.Info("refund recorded",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("run_key", run.RunKey),
		zap.String("amount", amount.String()),
	)
	return order, nil
}

func (s *Service) RecordWireTransfer(ctx context.Context, req domain.WireTransferRequest) (*domain.Order, error) {
	wireID := strings.TrimSpace(req.WireTransferID)
	if wireID == "" {
		return nil, domain.ErrInvalidWireTransferID
	}
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	run, err := s.runByKey(ctx, s.db, req.RunKey)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req.Raw)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindWireTransferReceipt(ctx, tx, wireID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateWireTransfer
		}

		created, err := s.newOrder(ctx, tx, req.UserID, run, domain.StatusCreated, domain.PaymentTypeWireTransfer, req.Amount, "Wire transfer "+wireID)
		if err != nil {
			return err
		}
		if err := s.auditSvc.RecordOrder(ctx, tx, created.ID, domain.AuditActionWire, nil, created); err != nil {
			return err
		}
		receipt := domain.WireTransferReceipt{
			ID:                s.genID.Generate(),
			WireTransferID:    wireID,
			OrderID:           created.ID,
			LearnerEmail:      req.LearnerEmail,
			Amount:            req.Amount,
			BootcampRunKey:    run.RunKey,
			BootcampName:      req.BootcampName,
			BootcampStartDate: req.BootcampStartDate,
			Data:              datatypes.JSON(raw),
			CreatedAt:         s.clock.Now(),
		}
		if err := s.repo.InsertWireTransferReceipt(ctx, tx, &receipt); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateWireTransfer
			}
			return err
		}
		if err := s.CompleteSuccessfulOrder(ctx, tx, created); err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// MarkAbandonedOrders flags CREATED orders older than olderThan. The status
// stays CREATED: only a gateway decision may move an order out of it.
func (s *Service) MarkAbandonedOrders(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := s.clock.Now().Add(-olderThan)
	ids, err := s.repo.ListStaleCreatedIDs(ctx, s.db, cutoff, limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			order, err := s.repo.FindForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if order == nil || order.Status != domain.StatusCreated || order.AbandonedAt != nil {
				return nil
			}
			before := *order
			now := s.clock.Now()
			n, err := s.repo.MarkAbandoned(ctx, tx, order.ID, now)
			if err != nil || n == 0 {
				return err
			}
			order.AbandonedAt = &now
			order.UpdatedAt = now
			if err := s.auditSvc.RecordOrder(ctx, tx, order.ID, domain.AuditActionAbandon, before, order); err != nil {
				return err
			}
			marked++
			return nil
		})
		if err != nil {
			return marked, err
		}
	}
	return marked, nil
}

func (s *Service) TotalPaidForRun(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID) (money.Amount, error) {
	prices, err := s.repo.LinePrices(ctx, s.conn(conn), userID, runID, []domain.Status{domain.StatusFulfilled})
	if err != nil {
		return money.Zero, err
	}
	return money.Sum(prices...), nil
}

func (s *Service) NetPaidForRun(ctx context.Context, conn *gorm.DB, userID, runID snowflake.ID) (money.Amount, error) {
	prices, err := s.repo.LinePrices(ctx, s.conn(conn), userID, runID, domain.NetStatuses)
	if err != nil {
		return money.Zero, err
	}
	return money.Sum(prices...), nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListReceipts(ctx context.Context, orderID snowflake.ID) ([]domain.Receipt, error) {
	return s.repo.ListReceipts(ctx, s.db, orderID)
}

func (s *Service) newOrder(ctx context.Context, tx *gorm.DB, userID snowflake.ID, run *catalogdomain.BootcampRun, status domain.Status, paymentType domain.PaymentType, amount money.Amount, description string) (*domain.Order, error) {
	now := s.clock.Now()
	order := &domain.Order{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Status:         status,
		TotalPricePaid: amount,
		PaymentType:    paymentType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.Lines = []domain.Line{{
		ID:            s.genID.Generate(),
		OrderID:       order.ID,
		BootcampRunID: run.ID,
		Price:         amount,
		Description:   description,
		CreatedAt:     now,
	}}

	app, err := s.appRepo.Find(ctx, tx, userID, run.ID)
	if err != nil {
		return nil, err
	}
	if app != nil {
		appID := app.ID
		order.ApplicationID = &appID
	}

	if err := s.repo.InsertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// transition moves order to status with a conditional update and writes the
// before/after audit in the same transaction.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, order *domain.Order, to domain.Status, action string) error {
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if !domain.CanTransition(order.Status, to) {
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, order.Status, to)
	}

	before := *order
	before.Lines = append([]domain.Line(nil), order.Lines...)

	now := s.clock.Now()
	n, err := s.repo.UpdateStatus(ctx, tx, order.ID, order.Status, to, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, order.ID)
	}
	order.Status = to
	order.UpdatedAt = now

	if err := s.auditSvc.RecordOrder(ctx, tx, order.ID, action, before, order); err != nil {
		return err
	}
	s.metrics.RecordOrderTransition(ctx, string(order.PaymentType), string(to))
	return nil
}

func (s *Service) runByKey(ctx context.Context, conn *gorm.DB, runKey int64) (*catalogdomain.BootcampRun, error) {
	if runKey <= 0 {
		return nil, domain.ErrInvalidRunKey
	}
	run, err := s.catalogRepo.FindRunByKey(ctx, conn, runKey)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (s *Service) conn(conn *gorm.DB) *gorm.DB {
	if conn != nil {
		return conn
	}
	return s.db
}

func runIDs(order *domain.Order) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(order.Lines))
	out := make([]snowflake.ID, 0, len(order.Lines))
	for _, line := range order.Lines {
		if _, ok := seen[line.BootcampRunID]; ok {
			continue
		}
		seen[line.BootcampRunID] = struct{}{}
		out = append(out, line.BootcampRunID)
	}
	return out
}
