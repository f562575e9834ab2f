package allocation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
)

// Request pedido efímero de asignación: cantidad requerida + unidad + filtro de
// nomenclatura o tipo de envase + referencia a la entidad destino. No se persiste;
// existe solo durante una llamada de planificación.
type Request struct {
	NomenclatureID  string
	ContainerTypeID string
	Quantity        unit.Quantity
	Bridge          *unit.Bridge // factores de cruce de magnitud (opcional)
	TargetRef       string       // entidad que consumirá el stock
	Reason          string       // motivo de la baja (entity.WriteOffReason*)
}

// Validate rechaza pedidos malformados en el borde.
func (r Request) Validate() error {
	if r.Quantity.Unit.IsZero() {
		return fmt.Errorf("pedido sin unidad: %w", domain.ErrValidation)
	}
	if !r.Quantity.Amount.GreaterThan(decimal.Zero) {
		return fmt.Errorf("cantidad pedida %s no positiva: %w", r.Quantity.Amount, domain.ErrValidation)
	}
	if (r.NomenclatureID == "") == (r.ContainerTypeID == "") {
		return fmt.Errorf("el pedido requiere nomenclatura o tipo de envase (exactamente uno): %w", domain.ErrValidation)
	}
	return nil
}

// PlanLine línea de plan: cuánto tomar de qué lote, en la unidad nativa del lote
// (para descontar después sin deriva de conversión) y en la unidad del pedido.
type PlanLine struct {
	BatchID         string
	Amount          decimal.Decimal // unidad nativa del lote
	Unit            unit.Unit
	AmountRequested decimal.Decimal // misma toma, en la unidad del pedido
}

// Plan salida del asignador: secuencia ordenada de líneas cuya suma convertida
// iguala lo pedido (dentro de la tolerancia) cuando Satisfied es true. Si el
// catálogo se agota, Satisfied es false y el plan parcial se conserva para
// diagnóstico; Remaining reporta el faltante en la unidad del pedido.
type Plan struct {
	Request   Request
	Lines     []PlanLine
	Satisfied bool
	Remaining decimal.Decimal
}

// Config política del asignador. MinDispense (en la unidad del pedido) rechaza
// líneas de plan por debajo del mínimo dispensable; cero la desactiva.
type Config struct {
	MinDispense decimal.Decimal
}

// Allocator asignador FEFO puro: decide sobre un snapshot, nunca muta stock.
type Allocator struct {
	cfg Config
}

func NewAllocator(cfg Config) *Allocator {
	return &Allocator{cfg: cfg}
}

// Allocate recorre el catálogo en orden FEFO y particiona el pedido entre lotes:
// por cada lote convierte su restante a la unidad del pedido, toma el mínimo entre
// lo que falta y lo disponible, convierte la toma de vuelta a la unidad nativa del
// lote y la anota como línea; se detiene al satisfacer el pedido o agotar el
// catálogo. Determinista: entradas idénticas producen planes idénticos.
func (a *Allocator) Allocate(req Request, catalog []entity.ConsumableBatch, asOf time.Time) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{Request: req}
	remaining := req.Quantity.Amount

	for _, batch := range CatalogView(catalog, asOf) {
		if !a.matches(req, batch) {
			continue
		}
		available, err := unit.ConvertBridged(batch.QuantityRemaining, batch.Unit, req.Quantity.Unit, req.Bridge)
		if err != nil {
			return nil, fmt.Errorf("lote %s: %w", batch.ID, err)
		}
		take := decimal.Min(remaining, available)
		if !take.GreaterThan(decimal.Zero) || unit.NegligibleAgainst(take, req.Quantity.Amount) {
			continue
		}
		if a.cfg.MinDispense.GreaterThan(decimal.Zero) && take.LessThan(a.cfg.MinDispense) {
			return nil, &domain.SubMinimumAllocationError{
				BatchID:  batch.ID,
				Amount:   take,
				Minimum:  a.cfg.MinDispense,
				UnitCode: req.Quantity.Unit.Code,
			}
		}

		// Monto en unidad nativa del lote. Si la toma drena el lote completo se usa
		// su restante exacto, evitando residuos de redondeo al descontar.
		var native decimal.Decimal
		if take.Equal(available) {
			native = batch.QuantityRemaining
		} else {
			native, err = unit.ConvertBridged(take, req.Quantity.Unit, batch.Unit, req.Bridge)
			if err != nil {
				return nil, fmt.Errorf("lote %s: %w", batch.ID, err)
			}
		}

		plan.Lines = append(plan.Lines, PlanLine{
			BatchID:         batch.ID,
			Amount:          native,
			Unit:            batch.Unit,
			AmountRequested: take,
		})
		remaining = remaining.Sub(take)
		if unit.NegligibleAgainst(remaining, req.Quantity.Amount) {
			remaining = decimal.Zero
			break
		}
	}

	plan.Remaining = remaining
	plan.Satisfied = remaining.IsZero()
	return plan, nil
}

// matches filtra por nomenclatura o tipo de envase según el pedido.
func (a *Allocator) matches(req Request, batch entity.ConsumableBatch) bool {
	if req.NomenclatureID != "" {
		return batch.NomenclatureID == req.NomenclatureID
	}
	return batch.ContainerTypeID == req.ContainerTypeID
}
