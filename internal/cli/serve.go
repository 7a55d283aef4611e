package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"user-registry/internal/application/service"
	"user-registry/internal/application/worker"
	"user-registry/internal/infrastructure/config"
	"user-registry/internal/infrastructure/kafka"
	"user-registry/internal/infrastructure/postgres"
	"user-registry/internal/infrastructure/redis"
	"user-registry/internal/infrastructure/repository/memory"
	pgrepo "user-registry/internal/infrastructure/repository/postgres"
	"user-registry/internal/infrastructure/telemetry"
	h "user-registry/internal/interface/http"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadConfig(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	shutdownTimeout := time.Duration(cfg.App.ShutdownTimeoutSecs) * time.Second

	tel, shutdown, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := shutdown(shutdownCtx); serr != nil {
			telemetry.Log(context.Background(), telemetry.LevelError, "Error during telemetry shutdown", serr)
		}
	}()

	repo := memory.NewUserRepository().WithTracer(tel.Tracer)
	users := service.NewUserService(repo, tel)
	app := service.NewAppService(cfg.App.Name, cfg.App.Version, tel)

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis, tel)
		if err != nil {
			return err
		}
		defer client.Close()

		users.WithCache(redis.NewUserCache(client), time.Duration(cfg.Redis.CacheTTLSecs)*time.Second)
		app.RegisterCheck("redis", client)
	}

	// the worker must stop before the clients it uses are closed
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, tel)
		if err != nil {
			return err
		}
		defer producer.Close()

		users.WithPublisher(kafka.NewEventPublisher(producer, cfg.Kafka.Topic))
		app.RegisterCheck("kafka", producer)
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.NewClient(ctx, cfg.Postgres, tel)
		if err != nil {
			return err
		}
		defer db.Close()
		app.RegisterCheck("postgres", db)

		if cfg.Kafka.Enabled {
			auditWorker, err := startAuditWorker(workerCtx, cfg, tel, db)
			if err != nil {
				return err
			}
			defer auditWorker.Wait()
			defer stopWorker()
		} else {
			telemetry.Log(ctx, telemetry.LevelWarn, "Postgres is configured without Kafka, audit trail disabled", nil)
		}
	}

	if err := seedUsers(ctx, users, cfg.App.SeedFile); err != nil {
		return err
	}

	handler := h.NewHandler(users, app, cfg.Otel)

	serveErr := make(chan error, 1)
	go func() {
		telemetry.Log(ctx, telemetry.LevelInfo, "Starting server", nil,
			attribute.String("http.port", cfg.App.Port),
		)
		serveErr <- handler.StartWithAddr(ctx, cfg.App.Port)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %s is already in use: %w", cfg.App.Port, err)
		}
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	telemetry.Log(context.Background(), telemetry.LevelInfo, "Shutting down application gracefully", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := handler.Stop(shutdownCtx); err != nil {
		telemetry.Log(shutdownCtx, telemetry.LevelError, "Error during server shutdown", err)
	}
	return <-serveErr
}

func startAuditWorker(ctx context.Context, cfg config.Config, tel *telemetry.Telemetry, db *postgres.Client) (*worker.AuditWorker, error) {
	audit := pgrepo.NewAuditRepository(db.DB, tel.Tracer)
	if err := audit.Migrate(ctx); err != nil {
		return nil, err
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka, tel)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(ctx, consumer.Close)

	w := worker.NewAuditWorker(consumer, audit)
	w.Start(ctx)
	return w, nil
}
