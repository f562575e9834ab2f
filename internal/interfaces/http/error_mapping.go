package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/biocultivo/labstock-api/internal/application/dto"
	"github.com/biocultivo/labstock-api/internal/domain"
)

// mapDomainError traduce errores de dominio a respuestas HTTP. Todos los handlers
// pasan por aquí para que los códigos sean consistentes en toda la API.
func mapDomainError(c *fiber.Ctx, err error) error {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		return c.Status(fiber.StatusConflict).JSON(insufficientStockBody(insufficient))
	}
	var conflict *domain.ConcurrentModificationError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "CONCURRENT_MODIFICATION", Message: err.Error(),
		})
	}
	var subMin *domain.SubMinimumAllocationError
	if errors.As(err, &subMin) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "SUB_MINIMUM_ALLOCATION", Message: err.Error(),
		})
	}
	var rollbackErr *domain.RollbackError
	if errors.As(err, &rollbackErr) {
		// Compensación agotada: el sistema quedó en estado FAILED y requiere
		// conciliación manual. Se expone el id de transacción para rastrearlo.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":           "ROLLBACK_FAILED",
			"message":        "la reversa no pudo completarse; se requiere conciliación manual",
			"transaction_id": rollbackErr.TransactionID,
		})
	}
	var partial *domain.PartialFailureError
	if errors.As(err, &partial) {
		// La causa raíz determina el código; la reversa sí se completó.
		if cause := partialCause(partial); cause != nil {
			return cause(c)
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":           "PARTIAL_FAILURE_ROLLED_BACK",
			"message":        partial.Error(),
			"transaction_id": partial.TransactionID,
		})
	}
	switch {
	case errors.Is(err, domain.ErrUnknownUnit),
		errors.Is(err, domain.ErrIncompatibleUnitKind),
		errors.Is(err, domain.ErrMissingConversionContext),
		errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: err.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Code: "NOT_FOUND", Message: err.Error(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Code: "INTERNAL", Message: err.Error(),
	})
}

// partialCause devuelve un emisor específico cuando la causa raíz de una saga
// revertida merece su propio código (stock insuficiente detectado al confirmar).
func partialCause(partial *domain.PartialFailureError) func(*fiber.Ctx) error {
	var insufficient *domain.InsufficientStockError
	if errors.As(partial.Cause, &insufficient) {
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusConflict).JSON(insufficientStockBody(insufficient))
		}
	}
	var conflict *domain.ConcurrentModificationError
	if errors.As(partial.Cause, &conflict) {
		return func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code: "CONCURRENT_MODIFICATION", Message: partial.Cause.Error(),
			})
		}
	}
	return nil
}

func insufficientStockBody(e *domain.InsufficientStockError) fiber.Map {
	unsatisfied := make([]fiber.Map, 0, len(e.Unsatisfied))
	for _, u := range e.Unsatisfied {
		unsatisfied = append(unsatisfied, fiber.Map{
			"nomenclature_id":   u.NomenclatureID,
			"container_type_id": u.ContainerTypeID,
			"requested":         u.Requested,
			"remaining":         u.Remaining,
			"unit_code":         u.UnitCode,
		})
	}
	return fiber.Map{
		"code":        "INSUFFICIENT_STOCK",
		"message":     e.Error(),
		"unsatisfied": unsatisfied,
	}
}
