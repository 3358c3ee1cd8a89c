package main

import (
	"context"
	"fmt"
	"os"

	"github.com/smallbiznis/bootcamp/internal/config"
	"github.com/smallbiznis/bootcamp/internal/migration"
	"github.com/smallbiznis/bootcamp/internal/operator"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func refundFlags(cmd *cobra.Command, args *operator.RefundArgs) {
	cmd.Flags().StringVar(&args.User, "user", "", "user id, email or username")
	cmd.Flags().StringVar(&args.Run, "run", "", "bootcamp run key")
	cmd.Flags().StringVar(&args.Amount, "amount", "", "amount to refund, e.g. 300.00")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("amount")
}

func newRefundCmd() *cobra.Command {
	var args operator.RefundArgs
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Refund part or all of a user's payments for a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOperator(cmd.Context(), func(ctx context.Context, op *operator.Operator) error {
				order, err := op.Refund(ctx, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refund order %s recorded\n", order.ID)
				return nil
			})
		},
	}
	refundFlags(cmd, &args)
	return cmd
}

func newRefundEnrollmentCmd() *cobra.Command {
	var args operator.RefundArgs
	cmd := &cobra.Command{
		Use:   "refund_enrollment",
		Short: "Refund a user's enrollment on a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOperator(cmd.Context(), func(ctx context.Context, op *operator.Operator) error {
				order, err := op.RefundEnrollment(ctx, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refund order %s recorded\n", order.ID)
				return nil
			})
		},
	}
	refundFlags(cmd, &args)
	return cmd
}

func newImportWireTransfersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import_wire_transfers <csv-path>",
		Short: "Import fulfilled wire-transfer payments from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withOperator(cmd.Context(), func(ctx context.Context, op *operator.Operator) error {
				_, err := op.ImportWireTransfers(ctx, f, cmd.OutOrStdout())
				return err
			})
		},
	}
}

func newSendRemindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send_reminders",
		Short: "Send installment reminder emails once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withOperator(cmd.Context(), func(ctx context.Context, op *operator.Operator) error {
				_, err := op.SendReminders(ctx, cmd.OutOrStdout())
				return err
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				conn *gorm.DB
				cfg  config.Config
			)
			return runApp(cmd.Context(), func(context.Context) error {
				if err := migration.Apply(conn, cfg.DBType); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}, fx.Populate(&conn, &cfg))
		},
	}
}
