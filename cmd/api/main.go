package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/incident-dispatch/internal/api/http"
	"github.com/spec-kit/incident-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/incident-dispatch/internal/auth"
	"github.com/spec-kit/incident-dispatch/internal/config"
	"github.com/spec-kit/incident-dispatch/internal/engine"
	"github.com/spec-kit/incident-dispatch/internal/events"
	"github.com/spec-kit/incident-dispatch/internal/observability"
	"github.com/spec-kit/incident-dispatch/internal/persistence"
	"github.com/spec-kit/incident-dispatch/internal/repository"
	"github.com/spec-kit/incident-dispatch/internal/service"
	"github.com/spec-kit/incident-dispatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	closedRepo := repository.NewClosedTicketRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	logRepo := repository.NewAssignmentLogRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	policy := engine.Policy{
		ReassignmentTimeout: cfg.Engine.ReassignmentTimeout(),
		MaxTicketsPerAgent:  cfg.Engine.MaxTicketsPerAgent,
		ActiveTicketLimit:   cfg.Engine.ActiveTicketLimit,
		CompletedMaxAge:     cfg.Engine.CompletedMaxAge(),
	}

	presenceService := service.NewPresenceService(redis.Client, 2*time.Minute, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	distributionService := service.NewDistributionService(service.DistributionDependencies{
		TicketRepo:  ticketRepo,
		AgentRepo:   agentRepo,
		ArchiveRepo: closedRepo,
		LogRepo:     logRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
		Policy:      policy,
		CycleBudget: cfg.Engine.CycleTimeout(),
	})
	ingestService := service.NewIngestService(service.IngestDependencies{
		TicketRepo:       ticketRepo,
		ArchiveRepo:      closedRepo,
		Presence:         presenceService,
		Logger:           logger,
		ExpiryWindow:     cfg.Engine.ExpiryInactivity(),
		ProcessingBudget: cfg.Engine.CycleTimeout(),
	})
	agentService := service.NewAgentService(service.AgentDependencies{
		AgentRepo:  agentRepo,
		Tokens:     tokens,
		Presence:   presenceService,
		Dispatcher: dispatcher,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		ArchiveRepo: closedRepo,
		LogRepo:     logRepo,
		Logger:      logger,
	})
	performanceService := service.NewPerformanceService(service.PerformanceDependencies{
		TicketRepo:  ticketRepo,
		ArchiveRepo: closedRepo,
		LogRepo:     logRepo,
		AgentRepo:   agentRepo,
		Logger:      logger,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	scheduler := worker.NewScheduler(cfg.Scheduler, distributionService, ingestService, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(tokens, agentRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Agents:         handlers.NewAgentsHandler(agentService),
		Tickets:        handlers.NewTicketsHandler(ticketService, ingestService, presenceService),
		Distribution:   handlers.NewDistributionHandler(distributionService),
		ClosedTickets:  handlers.NewClosedTicketsHandler(ticketService),
		Performance:    handlers.NewPerformanceHandler(performanceService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	scheduler.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
