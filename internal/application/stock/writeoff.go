package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/repository"
	"github.com/biocultivo/labstock-api/pkg/logger"
	"github.com/biocultivo/labstock-api/pkg/metrics"
)

// WriteOffService confirma planes de asignación como bajas durables: por cada línea
// descuenta condicionalmente el lote y crea exactamente un asiento inmutable.
// Ninguna escritura parcial sobrevive a una confirmación fallida.
type WriteOffService struct {
	batches repository.BatchRepository
	ledger  repository.LedgerRepository
	log     *logger.Logger
	met     *metrics.Metrics
}

// NewWriteOffService construye el servicio de bajas.
func NewWriteOffService(batches repository.BatchRepository, ledger repository.LedgerRepository, log *logger.Logger, met *metrics.Metrics) *WriteOffService {
	return &WriteOffService{batches: batches, ledger: ledger, log: log, met: met}
}

// Commit aplica un plan satisfecho. Por cada línea verifica y descuenta
// atómicamente (restante >= monto) y anota el asiento; si un escritor concurrente
// agotó el lote desde el snapshot, la línea falla con ConcurrentModification, se
// deshacen las líneas ya aplicadas de esta llamada y se aborta la confirmación
// completa. El reintento, si lo hay, es una invocación nueva con snapshot fresco,
// nunca un retry silencioso aquí dentro.
func (s *WriteOffService) Commit(ctx context.Context, plan *allocation.Plan, transactionID, createdBy string) ([]*entity.WriteOffEntry, error) {
	if plan == nil || !plan.Satisfied {
		return nil, fmt.Errorf("solo un plan satisfecho puede confirmarse: %w", domain.ErrValidation)
	}

	now := time.Now()
	committed := make([]*entity.WriteOffEntry, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		if err := s.batches.Decrement(ctx, line.BatchID, line.Amount, line.Amount); err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) {
				s.met.ConflictsTotal.Inc()
			}
			if rbErr := s.revertEntries(ctx, committed); rbErr != nil {
				return nil, &domain.RollbackError{TransactionID: transactionID, Cause: err, RollbackErr: rbErr}
			}
			return nil, err
		}
		entry := &entity.WriteOffEntry{
			ID:             uuid.New().String(),
			TransactionID:  transactionID,
			BatchID:        line.BatchID,
			Amount:         line.Amount,
			UnitCode:       line.Unit.Code,
			Reason:         plan.Request.Reason,
			TargetEntityID: plan.Request.TargetRef,
			Timestamp:      now,
			CreatedBy:      createdBy,
		}
		if err := s.ledger.Append(ctx, entry); err != nil {
			// Reponer el descuento huérfano de esta línea y deshacer las previas.
			if incErr := s.batches.Increment(ctx, line.BatchID, line.Amount); incErr != nil {
				return nil, &domain.RollbackError{TransactionID: transactionID, Cause: err, RollbackErr: incErr}
			}
			if rbErr := s.revertEntries(ctx, committed); rbErr != nil {
				return nil, &domain.RollbackError{TransactionID: transactionID, Cause: err, RollbackErr: rbErr}
			}
			return nil, err
		}
		committed = append(committed, entry)
	}

	s.met.WriteOffsTotal.Add(float64(len(committed)))
	s.log.Debug().
		Str("transaction_id", transactionID).
		Str("target", plan.Request.TargetRef).
		Int("lines", len(committed)).
		Msg("bajas confirmadas")
	return committed, nil
}

// RevertEntry reversa compensatoria de un asiento: borra el asiento y repone la
// cantidad en el lote. Borrar primero hace la reversa idempotente: un asiento ya
// borrado (ErrNotFound) se considera revertido y no vuelve a reponer stock, así
// un reintento de compensación nunca duplica la reposición.
func (s *WriteOffService) RevertEntry(ctx context.Context, e *entity.WriteOffEntry) error {
	if err := s.ledger.Delete(ctx, e.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.batches.Increment(ctx, e.BatchID, e.Amount)
}

// revertEntries deshace en orden inverso los asientos de una confirmación fallida.
func (s *WriteOffService) revertEntries(ctx context.Context, entries []*entity.WriteOffEntry) error {
	for i := len(entries) - 1; i >= 0; i-- {
		if err := s.RevertEntry(ctx, entries[i]); err != nil {
			return err
		}
	}
	return nil
}
