package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	"github.com/railzwaylabs/cipherpoll/internal/aggregation"
	"github.com/railzwaylabs/cipherpoll/internal/channel"
	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/dispatcher"
	"github.com/railzwaylabs/cipherpoll/internal/encryption"
	"github.com/railzwaylabs/cipherpoll/internal/ledger"
	"github.com/railzwaylabs/cipherpoll/internal/migration"
	"github.com/railzwaylabs/cipherpoll/internal/observability"
	"github.com/railzwaylabs/cipherpoll/internal/payment"
	"github.com/railzwaylabs/cipherpoll/internal/redis"
	"github.com/railzwaylabs/cipherpoll/internal/report"
	"github.com/railzwaylabs/cipherpoll/internal/scheduler"
	"github.com/railzwaylabs/cipherpoll/internal/server"
	"github.com/railzwaylabs/cipherpoll/internal/subscription"
	"github.com/railzwaylabs/cipherpoll/internal/topic"
	"github.com/railzwaylabs/cipherpoll/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "cipherpoll",
		Short:   "Confidential channel and topic aggregation service",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(
		newMigrateCmd(),
		newServeCmd(),
		newSchedulerCmd(),
		newAllCmd(),
		newKeygenCmd(),
		newEncryptCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and record the schema state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the decryption coprocessor",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run background jobs: outbox dispatch, topic expiry, decryption retry",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

// coreModules is everything that touches ledger state.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.SchemaGate,
		clock.Module,
		ledger.Module,
		encryption.Module,
		channel.Module,
		topic.Module,
		payment.Module,
		subscription.Module,
		aggregation.Module,
		fx.Invoke(encryption.RunCoprocessor),
	)
}

func runServe() {
	app := fx.New(
		coreModules(),
		accesspass.Module,
		report.Module,
		server.Module,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		coreModules(),
		accesspass.Module,
		redis.Module,
		dispatcher.Module,
		scheduler.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		coreModules(),
		accesspass.Module,
		redis.Module,
		dispatcher.Module,
		report.Module,
		server.Module,
		scheduler.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
