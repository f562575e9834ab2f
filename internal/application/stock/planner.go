package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/repository"
	"github.com/biocultivo/labstock-api/pkg/logger"
	"github.com/biocultivo/labstock-api/pkg/metrics"
)

// Planner calcula planes de asignación contra un snapshot fresco del catálogo.
// Es el punto de entrada planAllocation del motor: no muta stock.
type Planner struct {
	batches repository.BatchRepository
	alloc   *allocation.Allocator
	log     *logger.Logger
	met     *metrics.Metrics
}

// NewPlanner construye el planificador.
func NewPlanner(batches repository.BatchRepository, alloc *allocation.Allocator, log *logger.Logger, met *metrics.Metrics) *Planner {
	return &Planner{batches: batches, alloc: alloc, log: log, met: met}
}

// PlanAllocation toma un snapshot fresco y calcula el plan FEFO para un pedido.
// Si el catálogo no alcanza devuelve InsufficientStockError junto con el plan
// parcial (para diagnóstico del faltante).
func (p *Planner) PlanAllocation(ctx context.Context, req allocation.Request) (*allocation.Plan, error) {
	asOf := time.Now()
	snapshot, err := p.snapshot(ctx, req, asOf)
	if err != nil {
		return nil, err
	}
	plan, err := p.alloc.Allocate(req, snapshot, asOf)
	if err != nil {
		return nil, err
	}
	p.met.PlansTotal.Inc()
	if !plan.Satisfied {
		p.met.PlansUnsatisfied.Inc()
		return plan, &domain.InsufficientStockError{Unsatisfied: []domain.UnsatisfiedRequest{unsatisfied(plan)}}
	}
	return plan, nil
}

// PlanAll valida que todos los pedidos sean satisfacibles contra un único snapshot
// coherente, antes de mutar nada (paso 1 de la creación compuesta). Los pedidos se
// planifican en orden descontando del snapshot lo ya planificado, para que dos
// pedidos sobre la misma nomenclatura no reserven dos veces el mismo stock.
// Si alguno no se satisface, el error lista todos los insatisfechos.
func (p *Planner) PlanAll(ctx context.Context, reqs []allocation.Request) ([]*allocation.Plan, error) {
	asOf := time.Now()
	snapshots := make(map[string][]entity.ConsumableBatch)

	plans := make([]*allocation.Plan, 0, len(reqs))
	var unsat []domain.UnsatisfiedRequest
	for _, req := range reqs {
		key := filterKey(req)
		if _, ok := snapshots[key]; !ok {
			snap, err := p.snapshot(ctx, req, asOf)
			if err != nil {
				return nil, err
			}
			snapshots[key] = snap
		}
		plan, err := p.alloc.Allocate(req, snapshots[key], asOf)
		if err != nil {
			return nil, err
		}
		p.met.PlansTotal.Inc()
		if !plan.Satisfied {
			p.met.PlansUnsatisfied.Inc()
			unsat = append(unsat, unsatisfied(plan))
			continue
		}
		snapshots[key] = consume(snapshots[key], plan)
		plans = append(plans, plan)
	}
	if len(unsat) > 0 {
		return nil, &domain.InsufficientStockError{Unsatisfied: unsat}
	}
	return plans, nil
}

// ListAvailable vista de catálogo de solo lectura: lotes disponibles y no
// vencidos a la fecha dada, en orden FEFO. El snapshot puede quedar invalidado por
// escritores concurrentes; el descuento posterior re-valida por lote.
func (p *Planner) ListAvailable(ctx context.Context, nomenclatureID, containerTypeID string, asOf time.Time) ([]entity.ConsumableBatch, error) {
	if (nomenclatureID == "") == (containerTypeID == "") {
		return nil, fmt.Errorf("el filtro requiere nomenclatura o tipo de envase (exactamente uno): %w", domain.ErrValidation)
	}
	snapshot, err := p.batches.ListBatches(ctx, repository.BatchFilter{
		NomenclatureID:  nomenclatureID,
		ContainerTypeID: containerTypeID,
		AsOf:            asOf,
	})
	if err != nil {
		return nil, err
	}
	return allocation.CatalogView(snapshot, asOf), nil
}

func (p *Planner) snapshot(ctx context.Context, req allocation.Request, asOf time.Time) ([]entity.ConsumableBatch, error) {
	return p.batches.ListBatches(ctx, repository.BatchFilter{
		NomenclatureID:  req.NomenclatureID,
		ContainerTypeID: req.ContainerTypeID,
		AsOf:            asOf,
	})
}

// consume descuenta del snapshot local lo comprometido por un plan ya aceptado.
func consume(snapshot []entity.ConsumableBatch, plan *allocation.Plan) []entity.ConsumableBatch {
	byID := make(map[string]int, len(snapshot))
	for i := range snapshot {
		byID[snapshot[i].ID] = i
	}
	for _, line := range plan.Lines {
		if i, ok := byID[line.BatchID]; ok {
			snapshot[i].QuantityRemaining = snapshot[i].QuantityRemaining.Sub(line.Amount)
		}
	}
	return snapshot
}

func filterKey(req allocation.Request) string {
	if req.NomenclatureID != "" {
		return "n:" + req.NomenclatureID
	}
	return "c:" + req.ContainerTypeID
}

func unsatisfied(plan *allocation.Plan) domain.UnsatisfiedRequest {
	return domain.UnsatisfiedRequest{
		NomenclatureID:  plan.Request.NomenclatureID,
		ContainerTypeID: plan.Request.ContainerTypeID,
		Requested:       plan.Request.Quantity.Amount,
		Remaining:       plan.Remaining,
		UnitCode:        plan.Request.Quantity.Unit.Code,
	}
}
