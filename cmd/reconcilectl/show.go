package main

import (
	"github.com/zidane123-web/payment/internal/adapter/http/dto"
	"github.com/zidane123-web/payment/internal/app"

	"github.com/spf13/cobra"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <document-id>",
		Short: "Print a stored payment record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				rec, err := a.Reconciler.GetPayment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.ToPaymentResponse(rec))
			})
		},
	}
}
