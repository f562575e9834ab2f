package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/biocultivo/labstock-api/internal/application/culture"
	"github.com/biocultivo/labstock-api/internal/application/media"
	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/pkg/metrics"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Planner   *stock.Planner
	CultureUC *culture.CreateCultureUseCase
	MediumUC  *media.CreateMediumUseCase
	Metrics   *metrics.Metrics
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))

	api := app.Group("/api")

	// Stock: catálogo y planes FEFO (solo lectura)
	stockGroup := api.Group("/stock")
	stockHandler := NewStockHandler(deps.Planner)
	stockGroup.Get("/batches", stockHandler.ListBatches)
	stockGroup.Post("/allocation-plan", stockHandler.PlanAllocation)

	// Creaciones compuestas (descuentan stock)
	creationHandler := NewCreationHandler(deps.CultureUC, deps.MediumUC)
	api.Post("/cultures", creationHandler.CreateCulture)
	api.Post("/media", creationHandler.CreateMedium)
}
