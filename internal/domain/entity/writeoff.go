package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Motivos de baja de stock.
const (
	WriteOffReasonCulture    = "CULTURE_CREATION"   // consumo al crear cultivo/lote/envases
	WriteOffReasonMedium     = "MEDIUM_PREPARATION" // consumo de ingredientes de medio listo
	WriteOffReasonAdjustment = "ADJUSTMENT"         // ajuste manual
)

// WriteOffEntry registro inmutable del libro de bajas: un descuento durable sobre un
// lote, atribuido a la entidad que lo consume. Nunca se edita; las correcciones son
// nuevos asientos compensatorios.
type WriteOffEntry struct {
	ID             string
	TransactionID  string // creación compuesta que originó la baja
	BatchID        string
	Amount         decimal.Decimal // en la unidad nativa del lote
	UnitCode       string
	Reason         string
	TargetEntityID string // cultivo, lote, envase o medio que consume
	Timestamp      time.Time
	CreatedBy      string
}
