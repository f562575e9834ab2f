package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo libro de bajas sobre PostgreSQL: inserciones append-only, sin updates.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador del libro de bajas.
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

// Append inserta un asiento inmutable.
func (r *LedgerRepo) Append(ctx context.Context, entry *entity.WriteOffEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	query := `
		INSERT INTO write_off_entries (id, transaction_id, batch_id, amount, unit_code, reason, target_entity_id, ts, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		entry.ID, entry.TransactionID, entry.BatchID, entry.Amount, entry.UnitCode,
		entry.Reason, entry.TargetEntityID, entry.Timestamp, entry.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("asiento %s duplicado: %w", entry.ID, err)
		}
		return fmt.Errorf("append write-off: %w", err)
	}
	return nil
}

// Delete elimina un asiento; existe solo para la compensación de sagas fallidas.
func (r *LedgerRepo) Delete(ctx context.Context, entryID string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM write_off_entries WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("delete write-off: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asiento %s: %w", entryID, domain.ErrNotFound)
	}
	return nil
}

// ListByTransaction asientos de una creación compuesta.
func (r *LedgerRepo) ListByTransaction(ctx context.Context, transactionID string) ([]*entity.WriteOffEntry, error) {
	return r.list(ctx, `transaction_id`, transactionID)
}

// ListByTarget asientos atribuidos a una entidad consumidora.
func (r *LedgerRepo) ListByTarget(ctx context.Context, targetEntityID string) ([]*entity.WriteOffEntry, error) {
	return r.list(ctx, `target_entity_id`, targetEntityID)
}

func (r *LedgerRepo) list(ctx context.Context, column, value string) ([]*entity.WriteOffEntry, error) {
	query := `
		SELECT id, transaction_id, batch_id, amount, unit_code, reason, target_entity_id, ts, created_by
		FROM write_off_entries WHERE ` + column + ` = $1 ORDER BY ts, id`
	rows, err := r.q.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("list write-offs: %w", err)
	}
	defer rows.Close()

	var entries []*entity.WriteOffEntry
	for rows.Next() {
		var e entity.WriteOffEntry
		if err := rows.Scan(
			&e.ID, &e.TransactionID, &e.BatchID, &e.Amount, &e.UnitCode,
			&e.Reason, &e.TargetEntityID, &e.Timestamp, &e.CreatedBy,
		); err != nil {
			return nil, fmt.Errorf("scan write-off: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
