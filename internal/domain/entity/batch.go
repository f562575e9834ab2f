package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
)

// Estados de un lote de insumo.
const (
	BatchStatusAvailable  = "AVAILABLE"  // disponible para asignación
	BatchStatusQuarantine = "QUARANTINE" // retenido por control de calidad
	BatchStatusExpired    = "EXPIRED"    // vencido (calculado desde la fecha, no almacenado como evento)
	BatchStatusDepleted   = "DEPLETED"   // agotado
)

// ConsumableBatch lote físico de un ítem de nomenclatura (reactivo, componente de
// medio o stock de envases). Lo muta únicamente el libro de bajas; la cantidad
// restante nunca queda negativa.
type ConsumableBatch struct {
	ID                string
	NomenclatureID    string
	ContainerTypeID   string // vacío salvo para stock de envases
	QuantityRemaining decimal.Decimal
	Unit              unit.Unit
	ExpirationDate    *time.Time // nil = sin vencimiento
	Status            string
	UpdatedAt         time.Time
}

// EffectiveStatus estado del lote a una fecha dada: EXPIRED se deriva del
// vencimiento en lectura, nunca se persiste como transición aparte.
func (b *ConsumableBatch) EffectiveStatus(asOf time.Time) string {
	if b.Status == BatchStatusAvailable && b.ExpirationDate != nil && !b.ExpirationDate.After(asOf) {
		return BatchStatusExpired
	}
	return b.Status
}

// Allocatable indica si el lote puede participar en una asignación a la fecha dada.
func (b *ConsumableBatch) Allocatable(asOf time.Time) bool {
	return b.EffectiveStatus(asOf) == BatchStatusAvailable && b.QuantityRemaining.GreaterThan(decimal.Zero)
}
