package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/app"
	"github.com/budgetdesk/budgetdesk/internal/budgets"
	"github.com/budgetdesk/budgetdesk/internal/chat"
	"github.com/budgetdesk/budgetdesk/internal/employees"
	"github.com/budgetdesk/budgetdesk/internal/observability"
	"github.com/budgetdesk/budgetdesk/internal/platform/cache"
	"github.com/budgetdesk/budgetdesk/internal/platform/db"
	"github.com/budgetdesk/budgetdesk/internal/procurement"
	"github.com/budgetdesk/budgetdesk/internal/shared"
	"github.com/budgetdesk/budgetdesk/jobs"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	if app.SkipStartup(nil, "server") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.PGMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("schema migrated")
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	services := app.NewServices(pool)
	conversation := services.Conversation(cfg.ChatPassphrase, metrics, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer jobClient.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		ChatHandler:        chat.NewHandler(logger, conversation),
		AOPHandler:         aop.NewHandler(logger, services.AOP),
		BudgetHandler:      budgets.NewHandler(logger, services.Budgets),
		EmployeeHandler:    employees.NewHandler(logger, services.Employees),
		ProcurementHandler: procurement.NewHandler(logger, services.Procurement),
		JobHandler:         jobs.NewHandler(inspector, jobClient, logger),
		Metrics:            metrics,
		Readiness: map[string]app.Pinger{
			"postgres": pool,
			"redis":    redisPinger{client: redisClient},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
