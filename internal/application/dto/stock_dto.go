package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
)

// ConsumableSelectionDTO selección de un insumo a consumir: nomenclatura, cantidad
// y unidad, más los factores de cruce de magnitud cuando la unidad del pedido no
// coincide con la del stock (ej. dosis en mmol contra stock en mg).
type ConsumableSelectionDTO struct {
	NomenclatureID   string           `json:"nomenclature_id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitCode         string           `json:"unit_code"`
	MolecularWeight  *decimal.Decimal `json:"molecular_weight,omitempty"`  // g/mol
	Density          *decimal.Decimal `json:"density,omitempty"`           // g/mL
	SpecificActivity *decimal.Decimal `json:"specific_activity,omitempty"` // UI/mg
}

// ToRequest construye el pedido de asignación para una entidad destino.
func (s ConsumableSelectionDTO) ToRequest(targetRef, reason string) (allocation.Request, error) {
	q, err := unit.NewQuantity(s.Quantity, s.UnitCode)
	if err != nil {
		return allocation.Request{}, err
	}
	var bridge *unit.Bridge
	if s.MolecularWeight != nil || s.Density != nil || s.SpecificActivity != nil {
		bridge = &unit.Bridge{
			MolecularWeight:  s.MolecularWeight,
			Density:          s.Density,
			SpecificActivity: s.SpecificActivity,
		}
	}
	return allocation.Request{
		NomenclatureID: s.NomenclatureID,
		Quantity:       q,
		Bridge:         bridge,
		TargetRef:      targetRef,
		Reason:         reason,
	}, nil
}

// CreateCultureRequest crear cultivo desde una donación: cultivo + lote + N envases,
// descontando stock de envases e insumos seleccionados.
type CreateCultureRequest struct {
	DonationID      string                   `json:"donation_id"`
	StrainName      string                   `json:"strain_name"`
	LotCode         string                   `json:"lot_code"`
	ContainerTypeID string                   `json:"container_type_id"`
	ContainerCount  int                      `json:"container_count"`
	Consumables     []ConsumableSelectionDTO `json:"consumables"`
}

// CreateMediumRequest preparar un medio listo a partir de una fórmula.
type CreateMediumRequest struct {
	FormulaName string                   `json:"formula_name"`
	Volume      decimal.Decimal          `json:"volume"`
	UnitCode    string                   `json:"unit_code"`
	Ingredients []ConsumableSelectionDTO `json:"ingredients"`
}

// PlanAllocationRequest calcular un plan FEFO sin confirmar nada.
type PlanAllocationRequest struct {
	NomenclatureID   string           `json:"nomenclature_id"`
	ContainerTypeID  string           `json:"container_type_id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitCode         string           `json:"unit_code"`
	MolecularWeight  *decimal.Decimal `json:"molecular_weight,omitempty"`
	Density          *decimal.Decimal `json:"density,omitempty"`
	SpecificActivity *decimal.Decimal `json:"specific_activity,omitempty"`
}

// PlanLineResponse línea de plan en la respuesta.
type PlanLineResponse struct {
	BatchID         string          `json:"batch_id"`
	Amount          decimal.Decimal `json:"amount"`
	UnitCode        string          `json:"unit_code"`
	AmountRequested decimal.Decimal `json:"amount_requested"`
}

// AllocationPlanResponse plan calculado (Satisfied=false conserva el plan parcial
// y reporta el faltante).
type AllocationPlanResponse struct {
	Satisfied bool               `json:"satisfied"`
	Remaining decimal.Decimal    `json:"remaining"`
	UnitCode  string             `json:"unit_code"`
	Lines     []PlanLineResponse `json:"lines"`
}

// NewAllocationPlanResponse proyecta un plan de dominio.
func NewAllocationPlanResponse(plan *allocation.Plan) AllocationPlanResponse {
	resp := AllocationPlanResponse{
		Satisfied: plan.Satisfied,
		Remaining: plan.Remaining,
		UnitCode:  plan.Request.Quantity.Unit.Code,
		Lines:     make([]PlanLineResponse, 0, len(plan.Lines)),
	}
	for _, l := range plan.Lines {
		resp.Lines = append(resp.Lines, PlanLineResponse{
			BatchID:         l.BatchID,
			Amount:          l.Amount,
			UnitCode:        l.Unit.Code,
			AmountRequested: l.AmountRequested,
		})
	}
	return resp
}

// WriteOffResponse asiento de baja en respuestas de creación.
type WriteOffResponse struct {
	ID             string          `json:"id"`
	BatchID        string          `json:"batch_id"`
	Amount         decimal.Decimal `json:"amount"`
	UnitCode       string          `json:"unit_code"`
	Reason         string          `json:"reason"`
	TargetEntityID string          `json:"target_entity_id"`
}

// NewWriteOffResponses proyecta asientos de dominio.
func NewWriteOffResponses(entries []*entity.WriteOffEntry) []WriteOffResponse {
	out := make([]WriteOffResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, WriteOffResponse{
			ID:             e.ID,
			BatchID:        e.BatchID,
			Amount:         e.Amount,
			UnitCode:       e.UnitCode,
			Reason:         e.Reason,
			TargetEntityID: e.TargetEntityID,
		})
	}
	return out
}

// CreateCultureResponse resultado de la creación de cultivo.
type CreateCultureResponse struct {
	TransactionID string             `json:"transaction_id"`
	CultureID     string             `json:"culture_id"`
	LotID         string             `json:"lot_id"`
	ContainerIDs  []string           `json:"container_ids"`
	WriteOffs     []WriteOffResponse `json:"write_offs"`
}

// CreateMediumResponse resultado de la preparación de medio.
type CreateMediumResponse struct {
	TransactionID string             `json:"transaction_id"`
	MediumID      string             `json:"medium_id"`
	WriteOffs     []WriteOffResponse `json:"write_offs"`
}

// BatchResponse lote en la vista de catálogo.
type BatchResponse struct {
	ID                string          `json:"id"`
	NomenclatureID    string          `json:"nomenclature_id,omitempty"`
	ContainerTypeID   string          `json:"container_type_id,omitempty"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	UnitCode          string          `json:"unit_code"`
	ExpirationDate    *time.Time      `json:"expiration_date,omitempty"`
	Status            string          `json:"status"`
}

// NewBatchResponses proyecta lotes de dominio con su estado efectivo a la fecha.
func NewBatchResponses(batches []entity.ConsumableBatch, asOf time.Time) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, BatchResponse{
			ID:                b.ID,
			NomenclatureID:    b.NomenclatureID,
			ContainerTypeID:   b.ContainerTypeID,
			QuantityRemaining: b.QuantityRemaining,
			UnitCode:          b.Unit.Code,
			ExpirationDate:    b.ExpirationDate,
			Status:            b.EffectiveStatus(asOf),
		})
	}
	return out
}
