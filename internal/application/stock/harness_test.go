package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
	"github.com/biocultivo/labstock-api/internal/infrastructure/memory"
	"github.com/biocultivo/labstock-api/pkg/logger"
	"github.com/biocultivo/labstock-api/pkg/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Arnés de test: motor completo sobre el almacén en memoria
// ──────────────────────────────────────────────────────────────────────────────

type harness struct {
	store     *memory.Store
	planner   *stock.Planner
	writeoffs *stock.WriteOffService
	coord     *stock.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, allocation.Config{}, 2)
}

func newHarnessWithConfig(t *testing.T, cfg allocation.Config, rollbackRetries int) *harness {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	met := metrics.New()
	alloc := allocation.NewAllocator(cfg)
	planner := stock.NewPlanner(store.Batches(), alloc, log, met)
	writeoffs := stock.NewWriteOffService(store.Batches(), store.Ledger(), log, met)
	coord := stock.NewCoordinator(planner, writeoffs, store.Entities(), store.Transactions(), rollbackRetries, log, met)
	return &harness{store: store, planner: planner, writeoffs: writeoffs, coord: coord}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func expira(t *testing.T, s string) *time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return &ts
}

// seedLote registra un lote AVAILABLE de una nomenclatura.
func (h *harness) seedLote(t *testing.T, id, nomenclatureID, cantidad, unitCode string, exp *time.Time) {
	t.Helper()
	h.store.SeedBatch(entity.ConsumableBatch{
		ID:                id,
		NomenclatureID:    nomenclatureID,
		QuantityRemaining: dec(t, cantidad),
		Unit:              unit.MustParse(unitCode),
		ExpirationDate:    exp,
		Status:            entity.BatchStatusAvailable,
	})
}

// seedEnvases registra stock de envases de un tipo dado, en unidades de conteo.
func (h *harness) seedEnvases(t *testing.T, id, containerTypeID, cantidad string) {
	t.Helper()
	h.store.SeedBatch(entity.ConsumableBatch{
		ID:                id,
		ContainerTypeID:   containerTypeID,
		QuantityRemaining: dec(t, cantidad),
		Unit:              unit.MustParse("ud"),
		Status:            entity.BatchStatusAvailable,
	})
}

// saldo devuelve la cantidad restante actual de un lote.
func (h *harness) saldo(t *testing.T, batchID string) decimal.Decimal {
	t.Helper()
	b, err := h.store.Batches().GetBatch(context.Background(), batchID)
	require.NoError(t, err)
	return b.QuantityRemaining
}

// pedido arma un pedido por nomenclatura.
func pedido(t *testing.T, nomenclatureID, cantidad, unitCode, targetRef string) allocation.Request {
	t.Helper()
	q, err := unit.NewQuantity(dec(t, cantidad), unitCode)
	require.NoError(t, err)
	return allocation.Request{
		NomenclatureID: nomenclatureID,
		Quantity:       q,
		TargetRef:      targetRef,
		Reason:         entity.WriteOffReasonAdjustment,
	}
}
