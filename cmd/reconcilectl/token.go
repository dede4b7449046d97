package main

import (
	"errors"
	"time"

	"github.com/zidane123-web/payment/internal/service"

	"github.com/spf13/cobra"
)

type tokenOutput struct {
	Token     string `json:"token"`
	Subject   string `json:"subject"`
	ExpiresAt string `json:"expires_at"`
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token for the payments API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return errors.New("jwt.secret is not configured")
			}
			if expiry <= 0 {
				expiry = cfg.JWT.Expiry
			}

			tok, exp, err := service.NewJWTTokenService(cfg.JWT.Secret, expiry, cfg.JWT.Issuer).Generate(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tokenOutput{
				Token:     tok,
				Subject:   args[0],
				ExpiresAt: exp.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default jwt.expiry)")

	return cmd
}
