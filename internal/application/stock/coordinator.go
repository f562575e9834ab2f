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

// Coordinator orquesta la creación compuesta (entidades primarias + bajas de stock)
// como una saga: el backend no ofrece transacción multi-objeto, así que la
// atomicidad se logra con pasos hacia adelante y reversas compensatorias. Entre la
// persistencia de entidades y la confirmación completa de bajas existe una ventana
// transitoria observable; el coordinador garantiza que converge (confirma todo o
// revierte todo) con reintentos de compensación acotados.
type Coordinator struct {
	planner         *Planner
	writeoffs       *WriteOffService
	entities        repository.PrimaryEntityRepository
	txs             repository.TransactionRepository
	rollbackRetries int
	log             *logger.Logger
	met             *metrics.Metrics
}

// NewCoordinator construye el coordinador. rollbackRetries acota los intentos de
// compensación antes de marcar la creación FAILED para conciliación manual.
func NewCoordinator(
	planner *Planner,
	writeoffs *WriteOffService,
	entities repository.PrimaryEntityRepository,
	txs repository.TransactionRepository,
	rollbackRetries int,
	log *logger.Logger,
	met *metrics.Metrics,
) *Coordinator {
	if rollbackRetries < 1 {
		rollbackRetries = 1
	}
	return &Coordinator{
		planner:         planner,
		writeoffs:       writeoffs,
		entities:        entities,
		txs:             txs,
		rollbackRetries: rollbackRetries,
		log:             log,
		met:             met,
	}
}

// CreatedResult resultado de una creación compuesta confirmada.
type CreatedResult struct {
	TransactionID string
	Entities      []entity.PrimaryEntity
	WriteOffs     []*entity.WriteOffEntry
	Plans         []*allocation.Plan
}

// CreateWithAllocations ejecuta la creación compuesta:
//  1. valida que todos los pedidos sean satisfacibles contra un snapshot fresco —
//     falla rápido con InsufficientStock (listando cada pedido insatisfecho) sin
//     mutar nada;
//  2. persiste las entidades primarias en orden;
//  3. confirma las bajas de cada plan.
//
// Cualquier fallo en 2 o 3 dispara la compensación (borrar entidades creadas y
// asientos confirmados, reponiendo stock) y devuelve PartialFailureError con la
// causa original. Si la compensación agota sus reintentos, la transacción queda
// FAILED y se devuelve RollbackError, distinguible para el operador.
func (c *Coordinator) CreateWithAllocations(
	ctx context.Context,
	createdBy string,
	primaries []entity.PrimaryEntity,
	reqs []allocation.Request,
) (*CreatedResult, error) {
	if len(primaries) == 0 {
		return nil, fmt.Errorf("creación sin entidades primarias: %w", domain.ErrValidation)
	}

	// Paso 1: planificación contra snapshot fresco. Sin mutaciones todavía: un
	// abandono del caller antes del paso 2 no deja efectos.
	plans, err := c.planner.PlanAll(ctx, reqs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	txRec := &entity.CompositeTransaction{
		ID:        uuid.New().String(),
		State:     entity.TxStateOpen,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: createdBy,
	}
	if err := c.txs.Create(ctx, txRec); err != nil {
		return nil, fmt.Errorf("registrar transacción: %w", err)
	}
	log := c.log.With().Str("transaction_id", txRec.ID).Logger()

	// Paso 2: persistir entidades primarias.
	created := make([]entity.PrimaryEntity, 0, len(primaries))
	for _, e := range primaries {
		if err := c.entities.Create(ctx, e); err != nil {
			log.Warn().Err(err).
				Str("kind", string(e.EntityKind())).
				Msg("persistencia de entidad fallida; compensando")
			return nil, c.abort(ctx, txRec.ID, created, nil, err)
		}
		created = append(created, e)
	}

	// Paso 3: confirmar las bajas plan por plan. Un ConcurrentModification aquí no
	// se reintenta en el lugar: se compensa todo y el caller decide si replanifica.
	writeOffs := make([]*entity.WriteOffEntry, 0)
	for _, plan := range plans {
		entries, err := c.writeoffs.Commit(ctx, plan, txRec.ID, createdBy)
		if err != nil {
			var rbErr *domain.RollbackError
			if errors.As(err, &rbErr) {
				// La propia confirmación no pudo deshacerse: estado FAILED directo.
				return nil, c.markFailed(ctx, txRec.ID, rbErr)
			}
			log.Warn().Err(err).
				Str("target", plan.Request.TargetRef).
				Msg("confirmación de bajas fallida; compensando")
			return nil, c.abort(ctx, txRec.ID, created, writeOffs, err)
		}
		writeOffs = append(writeOffs, entries...)
	}

	if err := c.txs.UpdateState(ctx, txRec.ID, entity.TxStateCommitted); err != nil {
		return nil, c.abort(ctx, txRec.ID, created, writeOffs, err)
	}
	c.met.CreationsTotal.Inc()
	log.Info().
		Int("entities", len(created)).
		Int("writeoffs", len(writeOffs)).
		Msg("creación compuesta confirmada")

	return &CreatedResult{
		TransactionID: txRec.ID,
		Entities:      created,
		WriteOffs:     writeOffs,
		Plans:         plans,
	}, nil
}

// abort compensa lo persistido y clasifica el desenlace: ROLLED_BACK con
// PartialFailureError si la compensación funcionó, FAILED con RollbackError si se
// agotaron los reintentos.
func (c *Coordinator) abort(
	ctx context.Context,
	txID string,
	created []entity.PrimaryEntity,
	writeOffs []*entity.WriteOffEntry,
	cause error,
) error {
	if rbErr := c.compensate(ctx, txID, created, writeOffs); rbErr != nil {
		return c.markFailed(ctx, txID, &domain.RollbackError{
			TransactionID: txID,
			Cause:         cause,
			RollbackErr:   rbErr,
		})
	}
	if err := c.txs.UpdateState(ctx, txID, entity.TxStateRolledBack); err != nil {
		c.log.Error().Err(err).Str("transaction_id", txID).Msg("no se pudo marcar ROLLED_BACK")
	}
	c.met.RollbacksTotal.Inc()
	return &domain.PartialFailureError{TransactionID: txID, Cause: cause}
}

// compensate deshace asientos y entidades en orden inverso, con reintentos
// acotados. Cada intento reprocesa solo lo que sigue pendiente, de modo que un
// reintento nunca repone stock dos veces.
func (c *Coordinator) compensate(
	ctx context.Context,
	txID string,
	created []entity.PrimaryEntity,
	writeOffs []*entity.WriteOffEntry,
) error {
	pendingEntries := append([]*entity.WriteOffEntry(nil), writeOffs...)
	pendingEntities := append([]entity.PrimaryEntity(nil), created...)

	var lastErr error
	for attempt := 1; attempt <= c.rollbackRetries; attempt++ {
		pendingEntries, pendingEntities, lastErr = c.compensateOnce(ctx, pendingEntries, pendingEntities)
		if lastErr == nil {
			return nil
		}
		c.log.Warn().Err(lastErr).
			Str("transaction_id", txID).
			Int("attempt", attempt).
			Int("pending_entries", len(pendingEntries)).
			Int("pending_entities", len(pendingEntities)).
			Msg("intento de compensación fallido")
	}
	return lastErr
}

// compensateOnce procesa las reversas pendientes y devuelve lo que siga sin deshacer.
func (c *Coordinator) compensateOnce(
	ctx context.Context,
	entries []*entity.WriteOffEntry,
	created []entity.PrimaryEntity,
) ([]*entity.WriteOffEntry, []entity.PrimaryEntity, error) {
	var lastErr error

	var remEntries []*entity.WriteOffEntry
	for i := len(entries) - 1; i >= 0; i-- {
		if err := c.writeoffs.RevertEntry(ctx, entries[i]); err != nil {
			remEntries = append(remEntries, entries[i])
			lastErr = err
		}
	}

	var remEntities []entity.PrimaryEntity
	for i := len(created) - 1; i >= 0; i-- {
		e := created[i]
		err := c.entities.Delete(ctx, e.EntityKind(), e.EntityID())
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			remEntities = append(remEntities, e)
			lastErr = err
		}
	}

	return remEntries, remEntities, lastErr
}

// markFailed deja la transacción en FAILED para conciliación manual y propaga el
// RollbackError; este desenlace nunca se silencia.
func (c *Coordinator) markFailed(ctx context.Context, txID string, rbErr *domain.RollbackError) error {
	if err := c.txs.UpdateState(ctx, txID, entity.TxStateFailed); err != nil {
		c.log.Error().Err(err).Str("transaction_id", txID).Msg("no se pudo marcar FAILED")
	}
	c.met.RollbackFailures.Inc()
	c.log.Error().
		Str("transaction_id", txID).
		AnErr("cause", rbErr.Cause).
		AnErr("rollback_error", rbErr.RollbackErr).
		Msg("compensación agotada: transacción FAILED, conciliación manual requerida")
	return rbErr
}
