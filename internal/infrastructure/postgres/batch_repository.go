package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/repository"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo implementación de BatchRepository sobre PostgreSQL (usable con pool o tx).
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

const batchColumns = `id, nomenclature_id, container_type_id, quantity_remaining, unit_code, expiration_date, status, updated_at`

// ListBatches lee el snapshot de lotes que cumplen el filtro (por nomenclatura o
// tipo de envase). No ordena ni filtra por estado: eso es de la vista de catálogo.
func (r *BatchRepo) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]entity.ConsumableBatch, error) {
	var (
		query string
		arg   string
	)
	switch {
	case filter.NomenclatureID != "":
		query = `SELECT ` + batchColumns + ` FROM consumable_batches WHERE nomenclature_id = $1`
		arg = filter.NomenclatureID
	case filter.ContainerTypeID != "":
		query = `SELECT ` + batchColumns + ` FROM consumable_batches WHERE container_type_id = $1`
		arg = filter.ContainerTypeID
	default:
		return nil, fmt.Errorf("filtro de lotes vacío: %w", domain.ErrValidation)
	}

	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []entity.ConsumableBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// GetBatch obtiene un lote por id.
func (r *BatchRepo) GetBatch(ctx context.Context, batchID string) (*entity.ConsumableBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM consumable_batches WHERE id = $1`
	b, err := scanBatch(r.q.QueryRow(ctx, query, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// Decrement descuenta condicionalmente en un solo UPDATE: la cláusula
// quantity_remaining >= expectedMin es la re-validación optimista por lote — si un
// escritor concurrente agotó el lote desde el snapshot, no se afecta ninguna fila y
// se devuelve ConcurrentModificationError. El lote pasa a DEPLETED cuando el
// restante llega a cero o queda en polvo de redondeo despreciable frente a la toma
// (misma tolerancia relativa 1e-9 del conversor).
func (r *BatchRepo) Decrement(ctx context.Context, batchID string, amount, expectedMin decimal.Decimal) error {
	query := `
		UPDATE consumable_batches
		SET quantity_remaining = quantity_remaining - $2,
		    status = CASE WHEN quantity_remaining - $2 <= $2 * 0.000000001 THEN 'DEPLETED' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'AVAILABLE' AND quantity_remaining >= $3`
	tag, err := r.q.Exec(ctx, query, batchID, amount, expectedMin)
	if err != nil {
		return fmt.Errorf("decrement batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguir lote inexistente de lote pisado por otra operación.
		if _, getErr := r.GetBatch(ctx, batchID); getErr != nil {
			return getErr
		}
		return &domain.ConcurrentModificationError{BatchID: batchID}
	}
	return nil
}

// Increment repone cantidad (reversa compensatoria); un lote DEPLETED vuelve a AVAILABLE.
func (r *BatchRepo) Increment(ctx context.Context, batchID string, amount decimal.Decimal) error {
	query := `
		UPDATE consumable_batches
		SET quantity_remaining = quantity_remaining + $2,
		    status = CASE WHEN status = 'DEPLETED' THEN 'AVAILABLE' ELSE status END,
		    updated_at = now()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, batchID, amount)
	if err != nil {
		return fmt.Errorf("increment batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
	}
	return nil
}

// scanBatch mapea una fila a la entidad, resolviendo el código de unidad contra el
// catálogo cerrado (los códigos desconocidos se rechazan aquí, en el borde).
func scanBatch(row pgx.Row) (*entity.ConsumableBatch, error) {
	var (
		b               entity.ConsumableBatch
		nomenclatureID  *string
		containerTypeID *string
		unitCode        string
	)
	if err := row.Scan(
		&b.ID, &nomenclatureID, &containerTypeID, &b.QuantityRemaining,
		&unitCode, &b.ExpirationDate, &b.Status, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if nomenclatureID != nil {
		b.NomenclatureID = *nomenclatureID
	}
	if containerTypeID != nil {
		b.ContainerTypeID = *containerTypeID
	}
	u, err := unit.Parse(unitCode)
	if err != nil {
		return nil, fmt.Errorf("lote %s: %w", b.ID, err)
	}
	b.Unit = u
	return &b, nil
}
