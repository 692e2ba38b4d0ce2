package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/99minutos/delivery-tracking/internal/app"
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/service"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/config"
	"github.com/99minutos/delivery-tracking/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

// @title                       Delivery Tracking API
// @version                     1.0
// @description                 Courier location ingestion and privacy-preserving order tracking.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	rootCmd := &cobra.Command{
		Use:           "tracking",
		Short:         "Real-time delivery tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(), newTokenCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var opts app.Options

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and/or the projection worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}

			log := logger.Init(logger.Options{
				Level:   cfg.LogLevel,
				Pretty:  cfg.LogPretty,
				Service: "delivery-tracking",
			})
			log.Info().
				Str("version", version).
				Str("env", cfg.Env).
				Bool("api", opts.API).
				Bool("worker", opts.Worker).
				Str("stream", cfg.StreamDriver).
				Str("store", cfg.StoreDriver).
				Str("kill_switch", cfg.KillSwitch).
				Str("order_source", cfg.OrderSource).
				Msg("starting")

			a, err := app.New(ctx, cfg, opts, log)
			if err != nil {
				return err
			}

			runErr := a.Run(ctx)

			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			if err := a.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown")
			}
			log.Info().Msg("stopped")
			return runErr
		},
	}

	cmd.Flags().BoolVar(&opts.API, "api", true, "serve the HTTP API")
	cmd.Flags().BoolVar(&opts.Worker, "worker", true, "run the projection worker")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed JWT for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case domain.RoleCourier, domain.RoleCustomer, domain.RoleOps:
			default:
				return fmt.Errorf("invalid --role %q; use courier|customer|ops", role)
			}
			if subject == "" {
				return errors.New("--subject is required")
			}

			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			token, err := service.IssueToken(secret, subject, role, time.Now().Add(ttl))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (courier ID for couriers)")
	cmd.Flags().StringVar(&role, "role", domain.RoleCourier, "courier, customer or ops")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
