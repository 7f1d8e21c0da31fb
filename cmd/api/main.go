package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/trace-api/internal/config"
	"github.com/jwalitptl/trace-api/internal/handler"
	catalogHandler "github.com/jwalitptl/trace-api/internal/handler/catalog"
	historyHandler "github.com/jwalitptl/trace-api/internal/handler/history"
	ledgerHandler "github.com/jwalitptl/trace-api/internal/handler/ledger"
	organizationHandler "github.com/jwalitptl/trace-api/internal/handler/organization"
	recallHandler "github.com/jwalitptl/trace-api/internal/handler/recall"
	"github.com/jwalitptl/trace-api/internal/middleware"
	"github.com/jwalitptl/trace-api/internal/repository/postgres"
	"github.com/jwalitptl/trace-api/internal/router"
	allocationService "github.com/jwalitptl/trace-api/internal/service/allocation"
	catalogService "github.com/jwalitptl/trace-api/internal/service/catalog"
	eventService "github.com/jwalitptl/trace-api/internal/service/event"
	historyService "github.com/jwalitptl/trace-api/internal/service/history"
	ledgerService "github.com/jwalitptl/trace-api/internal/service/ledger"
	recallService "github.com/jwalitptl/trace-api/internal/service/recall"
	"github.com/jwalitptl/trace-api/pkg/auth"
	"github.com/jwalitptl/trace-api/pkg/logger"
	"github.com/jwalitptl/trace-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	organizationRepo := postgres.NewOrganizationRepository(db)
	productRepo := postgres.NewProductRepository(db)
	lotRepo := postgres.NewLotRepository(db)
	codeRepo := postgres.NewCodeRepository(db)
	shipmentRepo := postgres.NewShipmentRepository(db)
	treatmentRepo := postgres.NewTreatmentRepository(db)
	disposalRepo := postgres.NewDisposalRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)
	idempotencyRepo := postgres.NewIdempotencyRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	appMetrics := metrics.NewMetrics("trace", "api")

	// Services
	allocator := allocationService.NewEngine(codeRepo)
	eventSvc := eventService.NewService(outboxRepo)
	catalogSvc := catalogService.NewService(organizationRepo, productRepo, lotRepo, codeRepo)
	ledgerSvc := ledgerService.NewService(ledgerService.Config{
		TxManager:     &baseRepo,
		Organizations: organizationRepo,
		Products:      productRepo,
		Lots:          lotRepo,
		Codes:         codeRepo,
		Shipments:     shipmentRepo,
		Treatments:    treatmentRepo,
		Disposals:     disposalRepo,
		History:       historyRepo,
		Idempotency:   idempotencyRepo,
		Allocator:     allocator,
		Events:        eventSvc,
		Logger:        appLogger,
		Metrics:       appMetrics,
	})
	recallSvc := recallService.NewService(recallService.Config{
		TxManager:  &baseRepo,
		Codes:      codeRepo,
		Shipments:  shipmentRepo,
		Treatments: treatmentRepo,
		History:    historyRepo,
		Events:     eventSvc,
		Window:     cfg.Recall.Window(),
		Logger:     appLogger,
		Metrics:    appMetrics,
	})
	historySvc := historyService.NewService(historyRepo, codeRepo, shipmentRepo, treatmentRepo, cfg.Recall.Window())

	// Middleware
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	// Handlers
	h := handler.NewHandler(db)
	orgH := organizationHandler.NewHandler(catalogSvc)
	catalogH := catalogHandler.NewHandler(catalogSvc)
	ledgerH := ledgerHandler.NewHandler(ledgerSvc)
	recallH := recallHandler.NewHandler(recallSvc)
	historyH := historyHandler.NewHandler(historySvc)

	r := router.NewRouter(
		authMiddleware,
		orgH,
		catalogH,
		ledgerH,
		recallH,
		historyH,
		h,
		router.Config{
			RateLimit:     rate.Limit(cfg.Server.RateLimitRPS),
			RateBurst:     cfg.Server.RateLimitBurst,
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			MetricsPrefix: "trace_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
