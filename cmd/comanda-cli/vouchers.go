package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/comandago/comanda/pkg/store"
)

func newVouchersCommand() *cobra.Command {
	var (
		status string
		offset int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "vouchers",
		Short: "List payment vouchers by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			page, err := client.ListVouchers(ctx, status, offset, limit)
			if err != nil {
				return err
			}

			fmt.Printf("%d voucher(s), total %d\n", len(page.Items), page.Total)
			for _, v := range page.Items {
				line := fmt.Sprintf("#%d order %d  %s  %.2f (%s)",
					v.ID, v.OrderID, v.Status, v.Amount, v.PaymentMethod)
				if v.RejectReason != nil {
					line += "  reason: " + *v.RejectReason
				}
				fmt.Println(line)
			}
			if page.HasMore {
				fmt.Printf("More available; retry with --offset %d\n", offset+len(page.Items))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", store.VoucherPending, "Voucher status filter")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	return cmd
}

func newApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <voucher-id>",
		Short: "Approve a payment voucher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voucherID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid voucher id %q", args[0])
			}
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			resp, err := client.ApproveVoucher(ctx, voucherID)
			if err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func newRejectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <voucher-id> <reason>",
		Short: "Reject a payment voucher with a reason",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			voucherID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid voucher id %q", args[0])
			}
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			resp, err := client.RejectVoucher(ctx, voucherID, args[1])
			if err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-status voucher counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuthentication(cmd); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			stats, err := client.VoucherStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Pending:  %d\n", stats.Pending)
			fmt.Printf("Approved: %d\n", stats.Approved)
			fmt.Printf("Rejected: %d\n", stats.Rejected)
			return nil
		},
	}
}
