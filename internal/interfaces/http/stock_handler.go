package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/biocultivo/labstock-api/internal/application/dto"
	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
)

// StockHandler maneja las peticiones HTTP de stock: vista de catálogo y planes FEFO.
type StockHandler struct {
	planner *stock.Planner
}

// NewStockHandler construye el handler.
func NewStockHandler(planner *stock.Planner) *StockHandler {
	return &StockHandler{planner: planner}
}

// PlanAllocation calcula un plan FEFO sin confirmar nada. Un pedido insatisfacible
// no es un error HTTP: devuelve 200 con satisfied=false y el plan parcial, para que
// el cliente pueda mostrar qué alcanza a cubrirse.
func (h *StockHandler) PlanAllocation(c *fiber.Ctx) error {
	var in dto.PlanAllocationRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	req, err := planRequest(in)
	if err != nil {
		return mapDomainError(c, err)
	}
	plan, err := h.planner.PlanAllocation(c.Context(), req)
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) && plan != nil {
			return c.JSON(dto.NewAllocationPlanResponse(plan))
		}
		return mapDomainError(c, err)
	}
	return c.JSON(dto.NewAllocationPlanResponse(plan))
}

// ListBatches vista de catálogo: lotes asignables en orden FEFO para una
// nomenclatura o un tipo de envase.
func (h *StockHandler) ListBatches(c *fiber.Ctx) error {
	nomenclatureID := c.Query("nomenclature_id")
	containerTypeID := c.Query("container_type_id")

	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "as_of debe ser RFC3339"})
		}
		asOf = parsed
	}

	batches, err := h.planner.ListAvailable(c.Context(), nomenclatureID, containerTypeID, asOf)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"batches": dto.NewBatchResponses(batches, asOf)})
}

// planRequest arma el pedido de dominio desde el DTO de planificación.
func planRequest(in dto.PlanAllocationRequest) (allocation.Request, error) {
	q, err := unit.NewQuantity(in.Quantity, in.UnitCode)
	if err != nil {
		return allocation.Request{}, err
	}
	var bridge *unit.Bridge
	if in.MolecularWeight != nil || in.Density != nil || in.SpecificActivity != nil {
		bridge = &unit.Bridge{
			MolecularWeight:  in.MolecularWeight,
			Density:          in.Density,
			SpecificActivity: in.SpecificActivity,
		}
	}
	req := allocation.Request{
		NomenclatureID:  in.NomenclatureID,
		ContainerTypeID: in.ContainerTypeID,
		Quantity:        q,
		Bridge:          bridge,
	}
	if err := req.Validate(); err != nil {
		return allocation.Request{}, err
	}
	return req, nil
}
