// Package notification sends the mails that follow an order decision.
package notification

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/mail"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	paymentdomain "github.com/smallbiznis/bootcamp/internal/payment/domain"
	"github.com/smallbiznis/bootcamp/internal/payment/gateway"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	Mailer      *mail.Mailer
	OrderRepo   orderdomain.Repository
	OrderSvc    orderdomain.Service
	CatalogRepo catalogdomain.Repository
	UserRepo    userdomain.Repository
}

type Notifier struct {
	db          *gorm.DB
	log         *zap.Logger
	mailer      *mail.Mailer
	ops         []string
	orderRepo   orderdomain.Repository
	orderSvc    orderdomain.Service
	catalogRepo catalogdomain.Repository
	userRepo    userdomain.Repository
}

func NewNotifier(p Params) *Notifier {
	return &Notifier{
		db:          p.DB,
		log:         p.Log.Named("notification"),
		mailer:      p.Mailer,
		ops:         p.Config.Mail.OpsRecipients,
		orderRepo:   p.OrderRepo,
		orderSvc:    p.OrderSvc,
		catalogRepo: p.CatalogRepo,
		userRepo:    p.UserRepo,
	}
}

// SendReceipt mails the learner a receipt for a fulfilled order.
func (n *Notifier) SendReceipt(ctx context.Context, task tasksdomain.Task) error {
	var payload tasksdomain.OrderPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.OrderID == 0 {
		return tasksdomain.Permanent(tasksdomain.ErrInvalidPayload)
	}
	order, err := n.orderRepo.FindByID(ctx, n.db, payload.OrderID)
	if err != nil {
		return err
	}
	if order == nil || len(order.Lines) == 0 {
		return tasksdomain.Permanent(orderdomain.ErrOrderNotFound)
	}
	user, err := n.userRepo.FindByID(ctx, n.db, order.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return tasksdomain.Permanent(userdomain.ErrUserNotFound)
	}
	run, err := n.catalogRepo.FindRunByID(ctx, n.db, order.Lines[0].BootcampRunID)
	if err != nil {
		return err
	}
	if run == nil {
		return tasksdomain.Permanent(orderdomain.ErrRunNotFound)
	}
	paid, err := n.orderSvc.NetPaidForRun(ctx, n.db, user.ID, run.ID)
	if err != nil {
		return err
	}

	data := map[string]any{
		"name":        user.FullName(),
		"amount":      order.TotalPricePaid.Display(),
		"run_title":   run.Title,
		"order_id":    order.ID.String(),
		"total_paid":  paid.Display(),
		"card_type":   "",
		"card_number": "",
	}
	if data["name"] == "" {
		data["name"] = user.Email
	}
	if fields := n.lastReceipt(ctx, order.ID); fields != nil {
		if code := fields[paymentdomain.FieldCardType]; code != "" {
			data["card_type"] = gateway.CardTypeName(code)
		}
		data["card_number"] = fields[paymentdomain.FieldCardNumber]
	}

	if err := n.mailer.Send(ctx, mail.TemplateReceipt, []string{user.Email}, data); err != nil {
		return err
	}
	n.log.Info("receipt sent", zap.String("order_id", order.ID.String()))
	return nil
}

// SendOpsAlert tells operations about a declined or errored payment.
func (n *Notifier) SendOpsAlert(ctx context.Context, task tasksdomain.Task) error {
	var payload tasksdomain.AlertPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.OrderID == 0 {
		return tasksdomain.Permanent(tasksdomain.ErrInvalidPayload)
	}
	if len(n.ops) == 0 {
		n.log.Warn("no ops recipients configured, dropping alert", zap.String("order_id", payload.OrderID.String()))
		return nil
	}
	data := map[string]any{
		"order_id": payload.OrderID.String(),
		"decision": payload.Decision,
		"reason":   payload.Reason,
	}
	return n.mailer.Send(ctx, mail.TemplateOpsAlert, n.ops, data)
}

// lastReceipt returns the newest gateway callback stored for the order.
func (n *Notifier) lastReceipt(ctx context.Context, orderID snowflake.ID) map[string]string {
	receipts, err := n.orderRepo.ListReceipts(ctx, n.db, orderID)
	if err != nil || len(receipts) == 0 {
		return nil
	}
	var fields map[string]string
	if err := json.Unmarshal(receipts[len(receipts)-1].Data, &fields); err != nil {
		n.log.Warn("unreadable receipt", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil
	}
	return fields
}
