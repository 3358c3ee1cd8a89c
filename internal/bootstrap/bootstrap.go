// Package bootstrap assembles the fx graph shared by every binary.
package bootstrap

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bootcamp/internal/admissions"
	"github.com/smallbiznis/bootcamp/internal/application"
	"github.com/smallbiznis/bootcamp/internal/audit"
	"github.com/smallbiznis/bootcamp/internal/catalog"
	"github.com/smallbiznis/bootcamp/internal/clock"
	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/crm"
	"github.com/smallbiznis/bootcamp/internal/enrollment"
	"github.com/smallbiznis/bootcamp/internal/intake"
	"github.com/smallbiznis/bootcamp/internal/mail"
	"github.com/smallbiznis/bootcamp/internal/notification"
	"github.com/smallbiznis/bootcamp/internal/observability"
	"github.com/smallbiznis/bootcamp/internal/order"
	"github.com/smallbiznis/bootcamp/internal/payment"
	"github.com/smallbiznis/bootcamp/internal/personalprice"
	"github.com/smallbiznis/bootcamp/internal/reminder"
	"github.com/smallbiznis/bootcamp/internal/tasks"
	"github.com/smallbiznis/bootcamp/internal/user"
	"github.com/smallbiznis/bootcamp/internal/wiretransfer"
	"github.com/smallbiznis/bootcamp/pkg/db"
	"go.uber.org/fx"
)

// Infrastructure is config, logging, tracing, the database and ids.
var Infrastructure = fx.Options(
	config.Module,
	observability.Module,
	fx.Provide(RegisterSnowflake),
	db.Module,
	clock.Module,
)

// Domain is every service module. Task handlers are registered only by the
// worker.
var Domain = fx.Options(
	catalog.Module,
	user.Module,
	audit.Module,
	application.Module,
	personalprice.Module,
	enrollment.Module,
	admissions.Module,
	tasks.Module,
	order.Module,
	payment.Module,
	intake.Module,
	crm.Module,
	mail.Module,
	notification.Module,
	reminder.Module,
	wiretransfer.Module,
)

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
