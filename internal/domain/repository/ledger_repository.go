package repository

import (
	"context"

	"github.com/biocultivo/labstock-api/internal/domain/entity"
)

// LedgerRepository puerto del libro de bajas (append-only). Los asientos nunca se
// editan; Delete existe únicamente para la compensación de una saga fallida.
type LedgerRepository interface {
	Append(ctx context.Context, entry *entity.WriteOffEntry) error
	Delete(ctx context.Context, entryID string) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*entity.WriteOffEntry, error)
	ListByTarget(ctx context.Context, targetEntityID string) ([]*entity.WriteOffEntry, error)
}
