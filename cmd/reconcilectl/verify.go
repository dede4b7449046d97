package main

import (
	"github.com/zidane123-web/payment/internal/adapter/http/dto"
	"github.com/zidane123-web/payment/internal/app"

	"github.com/spf13/cobra"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <transaction-id>",
		Short: "Verify a transaction with KKiaPay and record the result",
		Long: `Runs the same authoritative check as POST /api/v1/payments/verify and
merges the result into the configured store with source=callable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				status, err := a.Reconciler.VerifyTransaction(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.VerifyResponse{OK: true, Status: string(status)})
			})
		},
	}
}
