package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/application/culture"
	"github.com/biocultivo/labstock-api/internal/application/media"
	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/infrastructure/postgres"
	httpRouter "github.com/biocultivo/labstock-api/internal/interfaces/http"
	"github.com/biocultivo/labstock-api/pkg/config"
	"github.com/biocultivo/labstock-api/pkg/logger"
	"github.com/biocultivo/labstock-api/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	met := metrics.New()

	batchRepo := postgres.NewBatchRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	entityRepo := postgres.NewPrimaryEntityRepository(pool)
	txRepo := postgres.NewTransactionRepository(pool)

	minDispense := decimal.Zero
	if cfg.Alloc.MinDispense != "" {
		minDispense, err = decimal.NewFromString(cfg.Alloc.MinDispense)
		if err != nil {
			log.Fatal().Err(err).Str("valor", cfg.Alloc.MinDispense).Msg("ALLOC_MIN_DISPENSE inválido")
		}
	}
	allocator := allocation.NewAllocator(allocation.Config{MinDispense: minDispense})

	planner := stock.NewPlanner(batchRepo, allocator, log, met)
	writeoffs := stock.NewWriteOffService(batchRepo, ledgerRepo, log, met)
	coordinator := stock.NewCoordinator(planner, writeoffs, entityRepo, txRepo, cfg.Alloc.RollbackRetries, log, met)

	cultureUC := culture.NewCreateCultureUseCase(coordinator, log)
	mediumUC := media.NewCreateMediumUseCase(coordinator, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Planner:   planner,
		CultureUC: cultureUC,
		MediumUC:  mediumUC,
		Metrics:   met,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("servidor detenido")
}
