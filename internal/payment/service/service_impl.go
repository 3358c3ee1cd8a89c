package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/admissions"
	appdomain "github.com/smallbiznis/bootcamp/internal/application/domain"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/config"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	"github.com/smallbiznis/bootcamp/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	"github.com/smallbiznis/bootcamp/internal/payment/domain"
	"github.com/smallbiznis/bootcamp/internal/payment/gateway"
	ppdomain "github.com/smallbiznis/bootcamp/internal/personalprice/domain"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	OrderSvc    orderdomain.Service
	OrderRepo   orderdomain.Repository
	CatalogRepo catalogdomain.Repository
	PriceRepo   ppdomain.Repository
	AppRepo     appdomain.Repository
	UserRepo    userdomain.Repository
	Gate        admissions.Gate
	Tasks       tasksdomain.Enqueuer
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	codec       domain.ReferenceCodec
	merchant    gateway.Merchant
	gatewayURL  string
	redirectURL string
	orderSvc    orderdomain.Service
	orderRepo   orderdomain.Repository
	catalogRepo catalogdomain.Repository
	priceRepo   ppdomain.Repository
	appRepo     appdomain.Repository
	userRepo    userdomain.Repository
	gate        admissions.Gate
	tasks       tasksdomain.Enqueuer
	metrics     *metrics.Metrics
}

func NewService(p Params) (domain.Service, error) {
	codec, err := domain.NewReferenceCodec(p.Config.ReferencePrefix)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.service"),
		genID: p.GenID,
		clock: p.Clock,
		codec: codec,
		merchant: gateway.Merchant{
			AccessKey:   p.Config.Gateway.AccessKey,
			ProfileID:   p.Config.Gateway.ProfileID,
			SecurityKey: p.Config.Gateway.SecurityKey,
		},
		gatewayURL:  p.Config.Gateway.URL,
		redirectURL: strings.TrimRight(p.Config.BaseURL, "/") + "/pay/",
		orderSvc:    p.OrderSvc,
		orderRepo:   p.OrderRepo,
		catalogRepo: p.CatalogRepo,
		priceRepo:   p.PriceRepo,
		appRepo:     p.AppRepo,
		userRepo:    p.UserRepo,
		gate:        p.Gate,
		tasks:       p.Tasks,
		metrics:     p.Metrics,
	}, nil
}

func (s *Service) PayIntent(ctx context.Context, userID snowflake.ID, req domain.PayRequest) (*domain.Checkout, error) {
	if !req.Amount.IsPositive() {
		return nil, orderdomain.ErrInvalidAmount
	}
	if err := s.merchant.Validate(); err != nil {
		return nil, err
	}
	run, err := s.run(ctx, req.RunKey)
	if err != nil {
		return nil, err
	}
	admitted, err := s.gate.Admitted(ctx, s.db, userID, run)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, orderdomain.ErrNotAdmitted
	}

	price, paid, err := s.totals(ctx, userID, run)
	if err != nil {
		return nil, err
	}
	balance := price.Sub(paid)
	if !balance.IsPositive() {
		return nil, domain.ErrNothingDue
	}
	if req.Amount.GreaterThan(balance) {
		return nil, fmt.Errorf("%w: %s requested, %s due", domain.ErrPaymentExceedsDue, req.Amount.Display(), balance.Display())
	}

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}
	bootcamp, err := s.catalogRepo.FindBootcampByID(ctx, s.db, run.BootcampID)
	if err != nil {
		return nil, err
	}
	bootcampTitle := ""
	if bootcamp != nil {
		bootcampTitle = bootcamp.Title
	}

	// everything the payload needs is loaded before the order is written
	order, err := s.orderSvc.CreateUnfulfilledOrder(ctx, orderdomain.CreateOrderRequest{
		UserID: userID,
		RunKey: run.RunKey,
		Amount: req.Amount,
	})
	if err != nil {
		return nil, err
	}

	runKey := strconv.FormatInt(run.RunKey, 10)
	payload, err := gateway.BuildPayload(s.merchant, gateway.Checkout{
		Reference:   s.codec.Encode(order.ID),
		Amount:      req.Amount,
		RunKey:      run.RunKey,
		OrderID:     order.ID.String(),
		ItemName:    run.Title,
		RedirectURL: s.redirectURL,
		MerchantData: [8]string{
			bootcampTitle,
			run.Title,
			runKey,
			formatDate(run.StartDate),
			formatDate(run.EndDate),
			user.Email,
			user.FullName(),
			user.ID.String(),
		},
		SignedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout issued",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("run_key", run.RunKey),
		zap.String("amount", req.Amount.String()),
	)
	return &domain.Checkout{URL: s.gatewayURL, Payload: payload, Order: order}, nil
}

func (s *Service) HandleConfirmation(ctx context.Context, fields map[string]string) (*domain.ConfirmationResult, error) {
	ctx = obscontext.WithActor(ctx, "gateway", "confirmation")
	decision := domain.Decision(strings.ToUpper(strings.TrimSpace(fields[domain.FieldDecision])))

	if !gateway.Verify(fields, s.merchant.SecurityKey) {
		s.metrics.RecordConfirmation(ctx, string(decision), "invalid_signature")
		s.log.Warn("gateway confirmation signature mismatch",
			zap.String("reference", fields[domain.FieldReference]),
		)
		return nil, domain.ErrInvalidSignature
	}

	receipt, err := s.storeReceipt(ctx, fields)
	if err != nil {
		return nil, err
	}
	result := &domain.ConfirmationResult{ReceiptID: receipt.ID, Decision: decision}

	order, err := s.resolve(ctx, fields[domain.FieldReference])
	if err != nil {
		s.metrics.RecordConfirmation(ctx, string(decision), "unresolved")
		s.log.Error("gateway confirmation reference unresolved",
			zap.String("receipt_id", receipt.ID.String()),
			zap.String("reference", fields[domain.FieldReference]),
			zap.Error(err),
		)
		return result, err
	}
	result.OrderID = order.ID
	ctx = obscontext.WithOrderID(ctx, order.ID.String())

	if err := s.orderRepo.AttachReceipt(ctx, s.db, receipt.ID, order.ID); err != nil {
		return result, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		locked, err := s.orderRepo.FindForUpdate(ctx, tx, order.ID)
		metrics.Scheduler().ObserveDBLockWait(metrics.LockResourceOrder, time.Since(lockStart))
		if err != nil {
			return err
		}
		if locked == nil {
			return orderdomain.ErrOrderNotFound
		}

		if locked.Status == orderdomain.StatusFailed && decision == domain.DecisionCancel {
			result.Duplicate = true
			result.Status = locked.Status
			return nil
		}
		if locked.Status != orderdomain.StatusCreated {
			return fmt.Errorf("%w: order %s is %s", orderdomain.ErrDuplicateFulfillment, locked.ID, locked.Status)
		}

		if decision == domain.DecisionAccept {
			if err := s.orderSvc.CompleteSuccessfulOrder(ctx, tx, locked); err != nil {
				return err
			}
			err := tasksdomain.EnqueueForOrder(ctx, s.tasks, tx, locked.ID,
				tasksdomain.KindIntakePaymentSync,
				tasksdomain.KindCRMDealSync,
				tasksdomain.KindReceiptEmail,
			)
			if err != nil {
				return err
			}
		} else {
			if err := s.orderSvc.HandleRejectedOrder(ctx, tx, locked, string(decision)); err != nil {
				return err
			}
			if decision != domain.DecisionCancel {
				alert := tasksdomain.AlertPayload{
					OrderID:  locked.ID,
					Decision: string(decision),
					Reason:   strings.TrimSpace(fields[domain.FieldReasonCode] + " " + fields[domain.FieldMessage]),
				}
				_, err := s.tasks.Enqueue(ctx, tx, tasksdomain.EnqueueRequest{
					Kind:      tasksdomain.KindOpsAlertEmail,
					Payload:   alert,
					DedupeKey: tasksdomain.KindOpsAlertEmail + ":" + locked.ID.String(),
				})
				if err != nil {
					return err
				}
			}
		}
		result.Status = locked.Status
		return nil
	})
	if err != nil {
		s.metrics.RecordConfirmation(ctx, string(decision), "rejected")
		s.log.Error("gateway confirmation not applied",
			zap.String("order_id", order.ID.String()),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
		return result, err
	}

	outcome := string(result.Status)
	if result.Duplicate {
		outcome = "duplicate"
	}
	s.metrics.RecordConfirmation(ctx, string(decision), outcome)
	s.log.Info("gateway confirmation applied",
		zap.String("order_id", order.ID.String()),
		zap.String("decision", string(decision)),
		zap.String("status", string(result.Status)),
		zap.Bool("duplicate", result.Duplicate),
	)
	return result, nil
}

func (s *Service) Status(ctx context.Context, userID snowflake.ID, runKey int64) (*domain.Status, error) {
	run, err := s.run(ctx, runKey)
	if err != nil {
		return nil, err
	}
	price, paid, err := s.totals(ctx, userID, run)
	if err != nil {
		return nil, err
	}
	installments, err := s.catalogRepo.ListInstallments(ctx, s.db, run.ID)
	if err != nil {
		return nil, err
	}
	app, err := s.appRepo.Find(ctx, s.db, userID, run.ID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, appdomain.ErrApplicationNotFound
	}

	now := s.clock.Now()
	return &domain.Status{
		RunKey:                  run.RunKey,
		RunTitle:                run.Title,
		State:                   app.State,
		Price:                   price,
		TotalPaid:               paid,
		Balance:                 money.Max(price.Sub(paid), money.Zero),
		TotalDueByNextDeadline:  catalogdomain.TotalDueByNextDeadline(installments, now),
		NextPaymentDeadlineDays: catalogdomain.NextPaymentDeadlineDays(installments, now),
		Installments:            installments,
	}, nil
}

// storeReceipt commits the raw callback on its own so that it survives
// whatever happens next.
func (s *Service) storeReceipt(ctx context.Context, fields map[string]string) (*orderdomain.Receipt, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	receipt := &orderdomain.Receipt{
		ID:        s.genID.Generate(),
		Data:      datatypes.JSON(raw),
		CreatedAt: s.clock.Now(),
	}
	if err := s.orderRepo.InsertReceipt(ctx, s.db, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *Service) resolve(ctx context.Context, ref string) (*orderdomain.Order, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, domain.ErrMissingReference
	}
	id, err := s.codec.Decode(ref)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) run(ctx context.Context, runKey int64) (*catalogdomain.BootcampRun, error) {
	if runKey <= 0 {
		return nil, orderdomain.ErrInvalidRunKey
	}
	run, err := s.catalogRepo.FindRunByKey(ctx, s.db, runKey)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, orderdomain.ErrRunNotFound
	}
	return run, nil
}

func (s *Service) totals(ctx context.Context, userID snowflake.ID, run *catalogdomain.BootcampRun) (money.Amount, money.Amount, error) {
	pp, err := s.priceRepo.Find(ctx, s.db, userID, run.ID)
	if err != nil {
		return money.Zero, money.Zero, err
	}
	paid, err := s.orderSvc.NetPaidForRun(ctx, s.db, userID, run.ID)
	if err != nil {
		return money.Zero, money.Zero, err
	}
	return ppdomain.Effective(pp, run.Price), paid, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
