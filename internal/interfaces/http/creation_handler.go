package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/biocultivo/labstock-api/internal/application/culture"
	"github.com/biocultivo/labstock-api/internal/application/dto"
	"github.com/biocultivo/labstock-api/internal/application/media"
)

// CreationHandler maneja las creaciones compuestas: cultivos y medios listos.
// Ambas operaciones descuentan stock y crean entidades de forma atómica (saga).
type CreationHandler struct {
	cultureUC *culture.CreateCultureUseCase
	mediumUC  *media.CreateMediumUseCase
}

// NewCreationHandler construye el handler.
func NewCreationHandler(cultureUC *culture.CreateCultureUseCase, mediumUC *media.CreateMediumUseCase) *CreationHandler {
	return &CreationHandler{cultureUC: cultureUC, mediumUC: mediumUC}
}

// CreateCulture crea cultivo + lote + envases descontando stock de envases e
// insumos. Todo o nada: si algo falla, la reversa restituye el stock.
func (h *CreationHandler) CreateCulture(c *fiber.Ctx) error {
	var in dto.CreateCultureRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.cultureUC.Create(c.Context(), requestUserID(c), in)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// CreateMedium prepara un medio listo a partir de una fórmula, descontando los
// ingredientes seleccionados.
func (h *CreationHandler) CreateMedium(c *fiber.Ctx) error {
	var in dto.CreateMediumRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.mediumUC.Create(c.Context(), requestUserID(c), in)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// requestUserID identidad del operador para el rastro de auditoría. Sin capa de
// autenticación, se acepta la cabecera X-User-Id; vacío se registra como "system".
func requestUserID(c *fiber.Ctx) string {
	if id := c.Get("X-User-Id"); id != "" {
		return id
	}
	return "system"
}
