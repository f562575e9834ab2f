package repository

import (
	"context"

	"github.com/biocultivo/labstock-api/internal/domain/entity"
)

// TransactionRepository puerto del registro de creaciones compuestas. El estado
// permite detectar sagas abiertas o FAILED que requieren conciliación manual.
type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.CompositeTransaction) error
	UpdateState(ctx context.Context, transactionID, state string) error
	GetByID(ctx context.Context, transactionID string) (*entity.CompositeTransaction, error)
}
