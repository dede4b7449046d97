package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/zidane123-web/payment/config"
	"github.com/zidane123-web/payment/internal/app"
	"github.com/zidane123-web/payment/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "reconcilectl",
		Short:         "Operate the payment reconciler: verify transactions, inspect records, run migrations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	rootCmd.AddCommand(newVerifyCmd(opts))
	rootCmd.AddCommand(newShowCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newTokenCmd(opts))

	return rootCmd
}

func (o *rootOptions) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	return cfg, logger.NewWithWriter(o.logLevel, os.Stderr), nil
}

// withApp builds the application graph, runs fn and closes everything again.
func (o *rootOptions) withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, log, err := o.load()
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
