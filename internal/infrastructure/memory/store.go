package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/repository"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
)

// Store estado compartido de la persistencia en memoria. Se usa en los tests del
// motor y como backend de desarrollo sin PostgreSQL. Los hooks Before* permiten
// inyectar fallos para ejercitar los caminos de compensación de la saga.
type Store struct {
	mu sync.Mutex

	batches      map[string]*entity.ConsumableBatch
	ledger       map[string]*entity.WriteOffEntry
	entities     map[string]entity.PrimaryEntity // key: kind/id
	transactions map[string]*entity.CompositeTransaction

	// Hooks de inyección de fallos (opcionales, solo tests).
	BeforeCreateEntity func(e entity.PrimaryEntity) error
	BeforeDeleteEntity func(kind entity.EntityKind, id string) error
	BeforeDecrement    func(batchID string) error
	BeforeIncrement    func(batchID string) error
	BeforeAppend       func(entry *entity.WriteOffEntry) error
	BeforeLedgerDelete func(entryID string) error
}

// NewStore construye un almacén vacío.
func NewStore() *Store {
	return &Store{
		batches:      make(map[string]*entity.ConsumableBatch),
		ledger:       make(map[string]*entity.WriteOffEntry),
		entities:     make(map[string]entity.PrimaryEntity),
		transactions: make(map[string]*entity.CompositeTransaction),
	}
}

// SeedBatch registra un lote en el almacén (seeding de tests/desarrollo).
func (s *Store) SeedBatch(b entity.ConsumableBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := b
	s.batches[b.ID] = &copied
}

// LedgerSize total de asientos vivos (inspección en tests).
func (s *Store) LedgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

// HasEntity indica si una entidad primaria sigue persistida (inspección en tests).
func (s *Store) HasEntity(kind entity.EntityKind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entities[entityKey(kind, id)]
	return ok
}

// EntityCount entidades primarias vivas (inspección en tests).
func (s *Store) EntityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

func entityKey(kind entity.EntityKind, id string) string {
	return string(kind) + "/" + id
}

// ---------------------------------------------------------------------------
// Lotes
// ---------------------------------------------------------------------------

var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo adaptador de lotes sobre el almacén en memoria.
type BatchRepo struct {
	s *Store
}

// Batches devuelve el adaptador de lotes.
func (s *Store) Batches() *BatchRepo { return &BatchRepo{s: s} }

// ListBatches snapshot de lotes que cumplen el filtro; devuelve copias para que
// el caller no comparta estado mutable con el almacén. El filtro vacío se rechaza
// igual que en el adaptador de PostgreSQL: el contrato del puerto exige
// nomenclatura o tipo de envase.
func (r *BatchRepo) ListBatches(_ context.Context, filter repository.BatchFilter) ([]entity.ConsumableBatch, error) {
	if filter.NomenclatureID == "" && filter.ContainerTypeID == "" {
		return nil, fmt.Errorf("filtro de lotes vacío: %w", domain.ErrValidation)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.ConsumableBatch
	for _, b := range r.s.batches {
		if filter.NomenclatureID != "" && b.NomenclatureID != filter.NomenclatureID {
			continue
		}
		if filter.ContainerTypeID != "" && b.ContainerTypeID != filter.ContainerTypeID {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetBatch copia del lote por id.
func (r *BatchRepo) GetBatch(_ context.Context, batchID string) (*entity.ConsumableBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

// Decrement descuenta bajo el mutex solo si el restante es >= expectedMin; la
// verificación y el descuento son un único paso atómico, así dos flujos
// concurrentes sobre el mismo lote se serializan y el perdedor recibe
// ConcurrentModification, nunca un saldo negativo.
func (r *BatchRepo) Decrement(_ context.Context, batchID string, amount, expectedMin decimal.Decimal) error {
	if r.s.BeforeDecrement != nil {
		if err := r.s.BeforeDecrement(batchID); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[batchID]
	if !ok {
		return fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
	}
	if b.Status != entity.BatchStatusAvailable || b.QuantityRemaining.LessThan(expectedMin) {
		return &domain.ConcurrentModificationError{BatchID: batchID}
	}
	b.QuantityRemaining = b.QuantityRemaining.Sub(amount)
	// El polvo de redondeo de una toma cruzada de magnitud no mantiene vivo un
	// lote efectivamente vacío: el restante despreciable frente a la toma agota.
	if !b.QuantityRemaining.GreaterThan(decimal.Zero) || unit.NegligibleAgainst(b.QuantityRemaining, amount) {
		b.Status = entity.BatchStatusDepleted
	}
	return nil
}

// Increment repone cantidad (reversa compensatoria).
func (r *BatchRepo) Increment(_ context.Context, batchID string, amount decimal.Decimal) error {
	if r.s.BeforeIncrement != nil {
		if err := r.s.BeforeIncrement(batchID); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[batchID]
	if !ok {
		return fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
	}
	b.QuantityRemaining = b.QuantityRemaining.Add(amount)
	if b.Status == entity.BatchStatusDepleted && b.QuantityRemaining.GreaterThan(decimal.Zero) {
		b.Status = entity.BatchStatusAvailable
	}
	return nil
}

// ---------------------------------------------------------------------------
// Libro de bajas
// ---------------------------------------------------------------------------

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo adaptador del libro de bajas sobre el almacén en memoria.
type LedgerRepo struct {
	s *Store
}

// Ledger devuelve el adaptador del libro de bajas.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Append inserta un asiento; los ids duplicados se rechazan.
func (r *LedgerRepo) Append(_ context.Context, entry *entity.WriteOffEntry) error {
	if r.s.BeforeAppend != nil {
		if err := r.s.BeforeAppend(entry); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.ledger[entry.ID]; exists {
		return fmt.Errorf("asiento %s duplicado", entry.ID)
	}
	copied := *entry
	r.s.ledger[entry.ID] = &copied
	return nil
}

// Delete elimina un asiento (solo compensación).
func (r *LedgerRepo) Delete(_ context.Context, entryID string) error {
	if r.s.BeforeLedgerDelete != nil {
		if err := r.s.BeforeLedgerDelete(entryID); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.ledger[entryID]; !ok {
		return fmt.Errorf("asiento %s: %w", entryID, domain.ErrNotFound)
	}
	delete(r.s.ledger, entryID)
	return nil
}

// ListByTransaction asientos de una creación compuesta, en orden estable.
func (r *LedgerRepo) ListByTransaction(_ context.Context, transactionID string) ([]*entity.WriteOffEntry, error) {
	return r.list(func(e *entity.WriteOffEntry) bool { return e.TransactionID == transactionID })
}

// ListByTarget asientos atribuidos a una entidad consumidora.
func (r *LedgerRepo) ListByTarget(_ context.Context, targetEntityID string) ([]*entity.WriteOffEntry, error) {
	return r.list(func(e *entity.WriteOffEntry) bool { return e.TargetEntityID == targetEntityID })
}

func (r *LedgerRepo) list(match func(*entity.WriteOffEntry) bool) ([]*entity.WriteOffEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.WriteOffEntry
	for _, e := range r.s.ledger {
		if match(e) {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// Entidades primarias
// ---------------------------------------------------------------------------

var _ repository.PrimaryEntityRepository = (*EntityRepo)(nil)

// EntityRepo adaptador de entidades primarias sobre el almacén en memoria.
type EntityRepo struct {
	s *Store
}

// Entities devuelve el adaptador de entidades primarias.
func (s *Store) Entities() *EntityRepo { return &EntityRepo{s: s} }

// Create persiste una entidad primaria.
func (r *EntityRepo) Create(_ context.Context, e entity.PrimaryEntity) error {
	if r.s.BeforeCreateEntity != nil {
		if err := r.s.BeforeCreateEntity(e); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := entityKey(e.EntityKind(), e.EntityID())
	if _, exists := r.s.entities[key]; exists {
		return fmt.Errorf("entidad %s duplicada", key)
	}
	r.s.entities[key] = e
	return nil
}

// Delete borra una entidad primaria (compensación).
func (r *EntityRepo) Delete(_ context.Context, kind entity.EntityKind, id string) error {
	if r.s.BeforeDeleteEntity != nil {
		if err := r.s.BeforeDeleteEntity(kind, id); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := entityKey(kind, id)
	if _, ok := r.s.entities[key]; !ok {
		return fmt.Errorf("entidad %s: %w", key, domain.ErrNotFound)
	}
	delete(r.s.entities, key)
	return nil
}

// ---------------------------------------------------------------------------
// Transacciones compuestas
// ---------------------------------------------------------------------------

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo adaptador del registro de creaciones compuestas en memoria.
type TransactionRepo struct {
	s *Store
}

// Transactions devuelve el adaptador de transacciones compuestas.
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }

// Create registra la transacción en estado OPEN.
func (r *TransactionRepo) Create(_ context.Context, tx *entity.CompositeTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.transactions[tx.ID]; exists {
		return fmt.Errorf("transacción %s duplicada", tx.ID)
	}
	copied := *tx
	r.s.transactions[tx.ID] = &copied
	return nil
}

// UpdateState avanza el estado del ciclo de vida.
func (r *TransactionRepo) UpdateState(_ context.Context, transactionID, state string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transacción %s: %w", transactionID, domain.ErrNotFound)
	}
	tx.State = state
	return nil
}

// GetByID copia de la transacción por id.
func (r *TransactionRepo) GetByID(_ context.Context, transactionID string) (*entity.CompositeTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("transacción %s: %w", transactionID, domain.ErrNotFound)
	}
	copied := *tx
	return &copied, nil
}
