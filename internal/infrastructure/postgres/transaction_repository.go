package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/repository"
)

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo registro de creaciones compuestas sobre PostgreSQL.
type TransactionRepo struct {
	q Querier
}

// NewTransactionRepository construye el adaptador.
func NewTransactionRepository(q Querier) *TransactionRepo {
	return &TransactionRepo{q: q}
}

// Create registra la transacción en estado OPEN.
func (r *TransactionRepo) Create(ctx context.Context, tx *entity.CompositeTransaction) error {
	query := `
		INSERT INTO composite_transactions (id, state, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.Exec(ctx, query, tx.ID, tx.State, tx.CreatedAt, tx.UpdatedAt, tx.CreatedBy)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// UpdateState avanza el estado del ciclo de vida (OPEN → COMMITTED | ROLLED_BACK | FAILED).
func (r *TransactionRepo) UpdateState(ctx context.Context, transactionID, state string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE composite_transactions SET state = $2, updated_at = now() WHERE id = $1`,
		transactionID, state)
	if err != nil {
		return fmt.Errorf("update transaction state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transacción %s: %w", transactionID, domain.ErrNotFound)
	}
	return nil
}

// GetByID obtiene una transacción por id.
func (r *TransactionRepo) GetByID(ctx context.Context, transactionID string) (*entity.CompositeTransaction, error) {
	var tx entity.CompositeTransaction
	err := r.q.QueryRow(ctx, `
		SELECT id, state, created_at, updated_at, created_by
		FROM composite_transactions WHERE id = $1`, transactionID).
		Scan(&tx.ID, &tx.State, &tx.CreatedAt, &tx.UpdatedAt, &tx.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transacción %s: %w", transactionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tx, nil
}
