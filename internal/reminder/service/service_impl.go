package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/admissions"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/mail"
	"github.com/smallbiznis/bootcamp/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	"github.com/smallbiznis/bootcamp/internal/reminder/domain"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Config      config.Config
	Reminders   *config.ReminderConfigHolder
	Repo        domain.Repository
	CatalogRepo catalogdomain.Repository
	UserRepo    userdomain.Repository
	OrderSvc    orderdomain.Service
	Gate        admissions.Gate
	Mailer      *mail.Mailer
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	baseURL     string
	reminders   *config.ReminderConfigHolder
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
	userRepo    userdomain.Repository
	orderSvc    orderdomain.Service
	gate        admissions.Gate
	mailer      *mail.Mailer
	metrics     *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("reminder.service"),
		genID:       p.GenID,
		baseURL:     p.Config.BaseURL,
		reminders:   p.Reminders,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		userRepo:    p.UserRepo,
		orderSvc:    p.OrderSvc,
		gate:        p.Gate,
		mailer:      p.Mailer,
		metrics:     p.Metrics,
	}
}

type pending struct {
	userID    snowflake.ID
	recipient mail.Recipient
}

func (s *Service) SendReminders(ctx context.Context, now time.Time) (domain.Report, error) {
	var report domain.Report
	cfg := s.reminders.Get()

	runs, err := s.catalogRepo.ListActiveRuns(ctx, s.db, now)
	if err != nil {
		return report, err
	}
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		run := &runs[i]
		report.RunsChecked++
		if err := s.remindRun(ctx, run, cfg, now, &report); err != nil {
			return report, fmt.Errorf("run %d: %w", run.RunKey, err)
		}
	}
	return report, nil
}

func (s *Service) remindRun(ctx context.Context, run *catalogdomain.BootcampRun, cfg config.ReminderConfig, now time.Time, report *domain.Report) error {
	installments, err := s.catalogRepo.ListInstallments(ctx, s.db, run.ID)
	if err != nil {
		return err
	}
	next := catalogdomain.NextInstallment(installments, now)
	if next == nil {
		return nil
	}
	offset := catalogdomain.CalendarDaysUntil(next.Deadline, now)
	if !slices.Contains(cfg.OffsetDays, offset) {
		return nil
	}
	template := domain.TemplateName(cfg.TemplatePrefix, offset)
	due := catalogdomain.TotalDueBy(installments, next.Deadline)

	userIDs, err := s.gate.AdmittedUserIDs(ctx, s.db, run)
	if err != nil {
		return err
	}

	var batch []pending
	for _, userID := range userIDs {
		sent, err := s.repo.Exists(ctx, s.db, userID, template, run.ID)
		if err != nil {
			return err
		}
		if sent {
			report.Skipped++
			continue
		}
		paid, err := s.orderSvc.NetPaidForRun(ctx, s.db, userID, run.ID)
		if err != nil {
			return err
		}
		remaining := due.Sub(paid)
		if !remaining.IsPositive() {
			report.Skipped++
			continue
		}
		user, err := s.userRepo.FindByID(ctx, s.db, userID)
		if err != nil {
			return err
		}
		if user == nil {
			continue
		}
		batch = append(batch, pending{
			userID: userID,
			recipient: mail.Recipient{
				Email: user.Email,
				Data: map[string]any{
					"name":      user.FullName(),
					"run_title": run.Title,
					"run_key":   run.RunKey,
					"deadline":  next.Deadline.UTC().Format("2006-01-02"),
					"remaining": remaining.Display(),
					"due":       due.Display(),
					"paid":      paid.Display(),
					"pay_url":   fmt.Sprintf("%s/pay/%d", s.baseURL, run.RunKey),
				},
			},
		})
	}
	if len(batch) == 0 {
		return nil
	}

	recipients := make([]mail.Recipient, 0, len(batch))
	for _, p := range batch {
		recipients = append(recipients, p.recipient)
	}
	sendErr := s.mailer.SendBatch(ctx, template, recipients)
	var failure *mail.SendBatchFailure
	partial := errors.As(sendErr, &failure)
	if sendErr != nil && !partial {
		return sendErr
	}

	sent := 0
	for _, p := range batch {
		if partial && failure.Failed(p.recipient.Email) {
			report.Failed++
			continue
		}
		inserted, err := s.repo.Insert(ctx, s.db, &domain.SentReminder{
			ID:            s.genID.Generate(),
			UserID:        p.userID,
			Template:      template,
			BootcampRunID: run.ID,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			report.Skipped++
			continue
		}
		sent++
	}
	report.Sent += sent
	s.metrics.RecordRemindersSent(ctx, template, sent)

	log := s.log.With(
		zap.Int64("run_key", run.RunKey),
		zap.String("template", template),
		zap.Int("sent", sent),
	)
	if partial {
		log.Warn("reminders partially sent", zap.Error(failure))
		return nil
	}
	log.Info("reminders sent")
	return nil
}
