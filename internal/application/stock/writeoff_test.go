package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Confirmación de bajas
// ──────────────────────────────────────────────────────────────────────────────

// Caso: confirmar un plan descuenta cada lote y crea exactamente un asiento por
// línea, en la unidad nativa del lote.
func TestCommit_DescuentaYAnotaPorLinea(t *testing.T) {
	h := newHarness(t)
	h.seedLote(t, "b1", "agar-001", "100", "mL", expira(t, "2026-05-01"))
	h.seedLote(t, "b2", "agar-001", "200", "mL", expira(t, "2026-09-01"))

	plan, err := h.planner.PlanAllocation(context.Background(), pedido(t, "agar-001", "150", "mL", "cultivo-1"))
	require.NoError(t, err)

	entries, err := h.writeoffs.Commit(context.Background(), plan, "tx-1", "operador-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// b1 drenado completo pasa a DEPLETED; b2 conserva 150.
	b1, err := h.store.Batches().GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, b1.QuantityRemaining.IsZero())
	assert.Equal(t, entity.BatchStatusDepleted, b1.Status)
	assert.True(t, h.saldo(t, "b2").Equal(dec(t, "150")))

	// Asientos rastreables por transacción y por entidad destino.
	byTx, err := h.store.Ledger().ListByTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Len(t, byTx, 2)
	byTarget, err := h.store.Ledger().ListByTarget(context.Background(), "cultivo-1")
	require.NoError(t, err)
	assert.Len(t, byTarget, 2)
	for _, e := range byTx {
		assert.Equal(t, "operador-1", e.CreatedBy)
		assert.Equal(t, "mL", e.UnitCode)
	}
}

// Caso: solo un plan satisfecho puede confirmarse.
func TestCommit_RechazaPlanInsatisfecho(t *testing.T) {
	h := newHarness(t)
	h.seedLote(t, "b1", "agar-001", "50", "mL", nil)

	plan, err := h.planner.PlanAllocation(context.Background(), pedido(t, "agar-001", "80", "mL", "x"))
	require.Error(t, err)
	require.NotNil(t, plan)

	_, err = h.writeoffs.Commit(context.Background(), plan, "tx-1", "op")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, h.saldo(t, "b1").Equal(dec(t, "50")))
}

// Caso: un escritor concurrente agota un lote entre el snapshot y la confirmación.
// La línea falla, las líneas ya aplicadas de esta llamada se deshacen y ningún
// asiento parcial sobrevive.
func TestCommit_ConflictoDeshaceLineasPrevias(t *testing.T) {
	h := newHarness(t)
	h.seedLote(t, "b1", "agar-001", "100", "mL", expira(t, "2026-05-01"))
	h.seedLote(t, "b2", "agar-001", "200", "mL", expira(t, "2026-09-01"))

	plan, err := h.planner.PlanAllocation(context.Background(), pedido(t, "agar-001", "150", "mL", "x"))
	require.NoError(t, err)

	// Otro flujo drena b2 después del snapshot: quedan 30 < los 50 planificados.
	require.NoError(t, h.store.Batches().Decrement(context.Background(), "b2", dec(t, "170"), dec(t, "170")))

	_, err = h.writeoffs.Commit(context.Background(), plan, "tx-1", "op")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	var conflict *domain.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "b2", conflict.BatchID)

	// b1 fue descontado y repuesto; el libro queda vacío.
	assert.True(t, h.saldo(t, "b1").Equal(dec(t, "100")))
	assert.Equal(t, 0, h.store.LedgerSize())
}

// Caso: si el asiento no puede anotarse, el descuento huérfano de esa línea se
// repone y las líneas previas se deshacen.
func TestCommit_FalloDeAsientoReponeElStock(t *testing.T) {
	h := newHarness(t)
	h.seedLote(t, "b1", "agar-001", "100", "mL", expira(t, "2026-05-01"))
	h.seedLote(t, "b2", "agar-001", "200", "mL", expira(t, "2026-09-01"))

	plan, err := h.planner.PlanAllocation(context.Background(), pedido(t, "agar-001", "150", "mL", "x"))
	require.NoError(t, err)

	// El libro acepta el primer asiento y rechaza el segundo.
	falloInyectado := errors.New("fallo inyectado del libro")
	appended := 0
	h.store.BeforeAppend = func(*entity.WriteOffEntry) error {
		appended++
		if appended == 2 {
			return falloInyectado
		}
		return nil
	}

	_, err = h.writeoffs.Commit(context.Background(), plan, "tx-1", "op")
	require.Error(t, err)
	assert.ErrorIs(t, err, falloInyectado)

	assert.True(t, h.saldo(t, "b1").Equal(dec(t, "100")))
	assert.True(t, h.saldo(t, "b2").Equal(dec(t, "200")))
	assert.Equal(t, 0, h.store.LedgerSize())
}

// Caso: la reversa de un asiento es segura ante reintentos — un asiento ya
// borrado no vuelve a reponer stock.
func TestRevertEntry_ReintentoNoDuplicaStock(t *testing.T) {
	h := newHarness(t)
	h.seedLote(t, "b1", "agar-001", "100", "mL", nil)

	plan, err := h.planner.PlanAllocation(context.Background(), pedido(t, "agar-001", "40", "mL", "x"))
	require.NoError(t, err)
	entries, err := h.writeoffs.Commit(context.Background(), plan, "tx-1", "op")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, h.saldo(t, "b1").Equal(dec(t, "60")))

	require.NoError(t, h.writeoffs.RevertEntry(context.Background(), entries[0]))
	assert.True(t, h.saldo(t, "b1").Equal(dec(t, "100")))
	assert.Equal(t, 0, h.store.LedgerSize())

	// Segundo intento sobre el mismo asiento: ya está borrado, no repone de nuevo.
	require.NoError(t, h.writeoffs.RevertEntry(context.Background(), entries[0]))
	assert.True(t, h.saldo(t, "b1").Equal(dec(t, "100")))
}
