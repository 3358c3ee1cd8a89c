// Package wiretransfer imports bank wire transfers exported as CSV and turns
// each row into a fulfilled order.
package wiretransfer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/bootcamp/internal/observability/context"
	orderdomain "github.com/smallbiznis/bootcamp/internal/order/domain"
	tasksdomain "github.com/smallbiznis/bootcamp/internal/tasks/domain"
	userdomain "github.com/smallbiznis/bootcamp/internal/user/domain"
	"github.com/smallbiznis/bootcamp/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	ColumnAmount            = "Amount"
	ColumnLearnerEmail      = "Learner Email"
	ColumnID                = "Id"
	ColumnRunKey            = "Bootcamp Run ID"
	ColumnBootcampName      = "Bootcamp Name"
	ColumnBootcampStartDate = "Bootcamp Start Date"
)

// Columns is the exact header set, in any order.
var Columns = []string{
	ColumnAmount,
	ColumnLearnerEmail,
	ColumnID,
	ColumnRunKey,
	ColumnBootcampName,
	ColumnBootcampStartDate,
}

var (
	ErrInvalidHeader = errors.New("invalid_wire_transfer_header")
	ErrInvalidRow    = errors.New("invalid_wire_transfer_row")
)

type RowStatus string

const (
	RowImported RowStatus = "imported"
	RowSkipped  RowStatus = "skipped"
	RowFailed   RowStatus = "failed"
)

type RowResult struct {
	Line           int
	WireTransferID string
	LearnerEmail   string
	Status         RowStatus
	OrderID        snowflake.ID
	Err            error
}

type Report struct {
	Rows []RowResult
}

func (r *Report) Count(status RowStatus) int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == status {
			n++
		}
	}
	return n
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Users  userdomain.Service
	Orders orderdomain.Service
	Tasks  tasksdomain.Enqueuer `optional:"true"`
}

type Importer struct {
	log    *zap.Logger
	users  userdomain.Service
	orders orderdomain.Service
	tasks  tasksdomain.Enqueuer
}

func NewImporter(p Params) *Importer {
	return &Importer{
		log:    p.Log.Named("wiretransfer.importer"),
		users:  p.Users,
		orders: p.Orders,
		tasks:  p.Tasks,
	}
}

// Import processes every row of r. Only a bad header or unreadable input
// aborts; row failures are reported and the next row is tried.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Report, error) {
	ctx = obscontext.WithActor(ctx, "operator", "import_wire_transfers")
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}
	reader.FieldsPerRecord = len(header)

	report := &Report{}
	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
				report.Rows = append(report.Rows, RowResult{Line: line, Status: RowFailed, Err: fmt.Errorf("%w: %v", ErrInvalidRow, err)})
				continue
			}
			return report, err
		}
		row := make(map[string]string, len(index))
		for name, col := range index {
			row[name] = strings.TrimSpace(record[col])
		}
		report.Rows = append(report.Rows, i.importRow(ctx, line, row))
	}

	i.log.Info("wire transfer import finished",
		zap.Int("imported", report.Count(RowImported)),
		zap.Int("skipped", report.Count(RowSkipped)),
		zap.Int("failed", report.Count(RowFailed)),
	)
	return report, nil
}

func (i *Importer) importRow(ctx context.Context, line int, row map[string]string) RowResult {
	res := RowResult{Line: line, WireTransferID: row[ColumnID], LearnerEmail: row[ColumnLearnerEmail]}
	fail := func(err error) RowResult {
		res.Status = RowFailed
		res.Err = err
		i.log.Warn("wire transfer row failed", zap.Int("line", line), zap.String("wire_transfer_id", res.WireTransferID), zap.Error(err))
		return res
	}

	amount, err := money.Parse(row[ColumnAmount])
	if err != nil {
		return fail(fmt.Errorf("%w: amount: %v", ErrInvalidRow, err))
	}
	runKey, err := strconv.ParseInt(row[ColumnRunKey], 10, 64)
	if err != nil {
		return fail(fmt.Errorf("%w: run key %q", ErrInvalidRow, row[ColumnRunKey]))
	}
	user, err := i.users.FindByEmail(ctx, res.LearnerEmail)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", res.LearnerEmail, err))
	}

	order, err := i.orders.RecordWireTransfer(ctx, orderdomain.WireTransferRequest{
		UserID:            user.ID,
		RunKey:            runKey,
		Amount:            amount,
		WireTransferID:    res.WireTransferID,
		LearnerEmail:      res.LearnerEmail,
		BootcampName:      row[ColumnBootcampName],
		BootcampStartDate: row[ColumnBootcampStartDate],
		Raw:               row,
	})
	if errors.Is(err, orderdomain.ErrDuplicateWireTransfer) {
		res.Status = RowSkipped
		return res
	}
	if err != nil {
		return fail(err)
	}
	res.Status = RowImported
	res.OrderID = order.ID

	if i.tasks != nil {
		err := tasksdomain.EnqueueForOrder(ctx, i.tasks, nil, order.ID,
			tasksdomain.KindIntakePaymentSync,
			tasksdomain.KindCRMDealSync,
		)
		if err != nil {
			i.log.Error("enqueue wire transfer follow-ups", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
	return res
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for col, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, name)
		}
		index[name] = col
	}
	var missing, extra []string
	for _, name := range Columns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range index {
		if !known(name) {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: missing %v, unexpected %v", ErrInvalidHeader, missing, extra)
	}
	return index, nil
}

func known(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}
