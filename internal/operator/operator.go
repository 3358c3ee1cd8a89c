// Package operator implements the privileged commands run by staff from
// bootcampctl.
package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/clock"
	enrollmentdomain "github.com/smallbiznis/bootcamp/internal/enrollment/domain"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	reminderdomain "github.com/smallbiznis/bootcamp/internal/reminder/domain"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"github.com/smallbiznis/bootcamp/internal/wiretransfer"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrMissingUser   = errors.New("missing --user")
	ErrInvalidRun    = errors.New("invalid --run")
	ErrInvalidAmount = errors.New("invalid --amount")
	ErrNoEnrollment  = errors.New("no enrollment for user on run")
)

var Module = fx.Module("operator",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Users       userdomain.Service
	Catalog     catalogdomain.Service
	Enrollments enrollmentdomain.Service
	Orders      orderdomain.Service
	Reminders   reminderdomain.Service
	Importer    *wiretransfer.Importer
	Tasks       tasksdomain.Enqueuer `optional:"true"`
}

type Operator struct {
	log         *zap.Logger
	clock       clock.Clock
	users       userdomain.Service
	catalog     catalogdomain.Service
	enrollments enrollmentdomain.Service
	orders      orderdomain.Service
	reminders   reminderdomain.Service
	importer    *wiretransfer.Importer
	tasks       tasksdomain.Enqueuer
}

func New(p Params) *Operator {
	return &Operator{
		log:         p.Log.Named("operator"),
		clock:       p.Clock,
		users:       p.Users,
		catalog:     p.Catalog,
		enrollments: p.Enrollments,
		orders:      p.Orders,
		reminders:   p.Reminders,
		importer:    p.Importer,
		tasks:       p.Tasks,
	}
}

// RefundArgs carries the raw flag values of the refund commands.
type RefundArgs struct {
	User   string
	Run    string
	Amount string
}

type refundTarget struct {
	user   *userdomain.User
	run    *catalogdomain.BootcampRun
	amount money.Amount
}

func (o *Operator) resolve(ctx context.Context, args RefundArgs) (*refundTarget, error) {
	if strings.TrimSpace(args.User) == "" {
		return nil, ErrMissingUser
	}
	runKey, err := strconv.ParseInt(strings.TrimSpace(args.Run), 10, 64)
	if err != nil || runKey <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRun, args.Run)
	}
	amount, err := money.Parse(args.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, args.Amount)
	}

	user, err := o.users.Resolve(ctx, args.User)
	if err != nil {
		return nil, fmt.Errorf("resolve user %q: %w", args.User, err)
	}
	run, err := o.catalog.GetRunByKey(ctx, runKey)
	if err != nil {
		return nil, fmt.Errorf("resolve run %d: %w", runKey, err)
	}
	return &refundTarget{user: user, run: run, amount: amount}, nil
}

// Refund records a refund against the user's payments for the run.
func (o *Operator) Refund(ctx context.Context, args RefundArgs) (*orderdomain.Order, error) {
	ctx = obscontext.WithActor(ctx, "operator", "refund")
	target, err := o.resolve(ctx, args)
	if err != nil {
		return nil, err
	}
	ctx = obscontext.WithRunKey(ctx, target.run.RunKey)
	order, err := o.orders.ProcessRefund(ctx, orderdomain.RefundRequest{
		UserID: target.user.ID,
		RunKey: target.run.RunKey,
		Amount: target.amount,
	})
	if err != nil {
		return nil, err
	}
	o.followUp(ctx, order)
	return order, nil
}

// RefundEnrollment refunds through the user's enrollment on the run. It
// fails when the user was never enrolled.
func (o *Operator) RefundEnrollment(ctx context.Context, args RefundArgs) (*orderdomain.Order, error) {
	ctx = obscontext.WithActor(ctx, "operator", "refund_enrollment")
	target, err := o.resolve(ctx, args)
	if err != nil {
		return nil, err
	}
	ctx = obscontext.WithRunKey(ctx, target.run.RunKey)
	enrollment, err := o.enrollments.Find(ctx, nil, target.user.ID, target.run.ID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrNoEnrollment
	}
	order, err := o.orders.RefundEnrollment(ctx, orderdomain.RefundEnrollmentRequest{
		UserID:       target.user.ID,
		EnrollmentID: enrollment.ID,
		Amount:       target.amount,
	})
	if err != nil {
		return nil, err
	}
	o.followUp(ctx, order)
	return order, nil
}

// followUp schedules the intake status sync. The refund is already
// committed, so failures are only logged.
func (o *Operator) followUp(ctx context.Context, order *orderdomain.Order) {
	if o.tasks == nil {
		return
	}
	if err := tasksdomain.EnqueueForOrder(ctx, o.tasks, nil, order.ID, tasksdomain.KindIntakePaymentSync); err != nil {
		o.log.Error("enqueue refund sync", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

// ImportWireTransfers imports r and writes one line per row to out.
func (o *Operator) ImportWireTransfers(ctx context.Context, r io.Reader, out io.Writer) (*wiretransfer.Report, error) {
	report, err := o.importer.Import(ctx, r)
	if err != nil {
		return nil, err
	}
	for _, row := range report.Rows {
		switch {
		case row.Err != nil:
			fmt.Fprintf(out, "line %d\t%s\t%s\t%s: %v\n", row.Line, row.WireTransferID, row.LearnerEmail, row.Status, row.Err)
		case row.OrderID != 0:
			fmt.Fprintf(out, "line %d\t%s\t%s\t%s order=%s\n", row.Line, row.WireTransferID, row.LearnerEmail, row.Status, row.OrderID)
		default:
			fmt.Fprintf(out, "line %d\t%s\t%s\t%s\n", row.Line, row.WireTransferID, row.LearnerEmail, row.Status)
		}
	}
	fmt.Fprintf(out, "imported=%d skipped=%d failed=%d\n",
		report.Count(wiretransfer.RowImported),
		report.Count(wiretransfer.RowSkipped),
		report.Count(wiretransfer.RowFailed),
	)
	return report, nil
}

// SendReminders runs one reminder pass at the current time.
func (o *Operator) SendReminders(ctx context.Context, out io.Writer) (reminderdomain.Report, error) {
	ctx = obscontext.WithActor(ctx, "operator", "send_reminders")
	report, err := o.reminders.SendReminders(ctx, o.clock.Now())
	if err != nil {
		return report, err
	}
	fmt.Fprintf(out, "runs=%d sent=%d skipped=%d failed=%d\n", report.RunsChecked, report.Sent, report.Skipped, report.Failed)
	return report, nil
}
