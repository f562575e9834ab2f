package entity

import "time"

// Estados del ciclo de vida de una creación compuesta.
const (
	TxStateOpen       = "OPEN"        // entidades en preparación
	TxStateCommitted  = "COMMITTED"   // entidades y asientos persistidos
	TxStateRolledBack = "ROLLED_BACK" // compensación aplicada con éxito
	TxStateFailed     = "FAILED"      // compensación agotada: conciliación manual
)

// CompositeTransaction agrupa la creación de entidades primarias con sus bajas de
// stock. El backend no ofrece transacción multi-objeto, así que la atomicidad se
// logra por saga: pasos hacia adelante más reversas compensatorias.
type CompositeTransaction struct {
	ID        string
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
}
