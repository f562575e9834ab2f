package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
)

// BatchFilter criterio de lectura del catálogo de lotes. Exactamente uno de
// NomenclatureID o ContainerTypeID debe estar presente.
type BatchFilter struct {
	NomenclatureID  string
	ContainerTypeID string
	AsOf            time.Time
}

// BatchRepository puerto de persistencia de lotes de insumo. La lectura es un
// snapshot (otros escritores pueden invalidarlo); el descuento re-valida frescura
// por lote en lugar de confiar en el snapshot — control de concurrencia optimista,
// sin bloqueo global.
type BatchRepository interface {
	// ListBatches lee el snapshot de lotes que cumplen el filtro, sin ordenar ni
	// filtrar por estado: eso es responsabilidad de la vista de catálogo.
	ListBatches(ctx context.Context, filter BatchFilter) ([]entity.ConsumableBatch, error)

	// GetBatch obtiene un lote por id. ErrNotFound si no existe.
	GetBatch(ctx context.Context, batchID string) (*entity.ConsumableBatch, error)

	// Decrement descuenta amount (unidad nativa del lote) solo si la cantidad
	// restante es >= expectedMin. Si la condición falla, devuelve
	// ConcurrentModificationError y no modifica nada. Al llegar a cero el lote
	// pasa a DEPLETED.
	Decrement(ctx context.Context, batchID string, amount, expectedMin decimal.Decimal) error

	// Increment repone amount sobre el lote (reversa compensatoria de Decrement).
	// Un lote DEPLETED vuelve a AVAILABLE si recupera cantidad.
	Increment(ctx context.Context, batchID string, amount decimal.Decimal) error
}
