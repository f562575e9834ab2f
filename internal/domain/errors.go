package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound                 = errors.New("recurso no encontrado")
	ErrValidation               = errors.New("entrada inválida")
	ErrUnknownUnit              = errors.New("código de unidad desconocido")
	ErrIncompatibleUnitKind     = errors.New("unidades de magnitudes físicas incompatibles")
	ErrMissingConversionContext = errors.New("falta el factor de conversión entre magnitudes")
	ErrInsufficientStock        = errors.New("stock insuficiente")
	ErrConcurrentModification   = errors.New("el lote fue modificado por otra operación")
	ErrSubMinimumAllocation     = errors.New("cantidad por debajo del mínimo dispensable")
	ErrPartialFailureRollback   = errors.New("creación revertida por fallo parcial")
	ErrRollbackFailed           = errors.New("compensación fallida: requiere conciliación manual")
)

// UnsatisfiedRequest describe un pedido que el catálogo no pudo cubrir.
type UnsatisfiedRequest struct {
	NomenclatureID  string
	ContainerTypeID string
	Requested       decimal.Decimal
	Remaining       decimal.Decimal // faltante en la unidad del pedido
	UnitCode        string
}

// InsufficientStockError lista todos los pedidos insatisfechos de una planificación.
// Envuelve ErrInsufficientStock para errors.Is.
type InsufficientStockError struct {
	Unsatisfied []UnsatisfiedRequest
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Unsatisfied))
	for _, u := range e.Unsatisfied {
		ref := u.NomenclatureID
		if ref == "" {
			ref = u.ContainerTypeID
		}
		parts = append(parts, fmt.Sprintf("%s: faltan %s %s", ref, u.Remaining, u.UnitCode))
	}
	return "stock insuficiente: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ConcurrentModificationError identifica el lote cuyo descuento condicional falló.
type ConcurrentModificationError struct {
	BatchID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("el lote %s fue modificado por otra operación", e.BatchID)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// SubMinimumAllocationError señala una línea de plan por debajo del mínimo dispensable.
type SubMinimumAllocationError struct {
	BatchID  string
	Amount   decimal.Decimal
	Minimum  decimal.Decimal
	UnitCode string
}

func (e *SubMinimumAllocationError) Error() string {
	return fmt.Sprintf("línea de %s %s sobre el lote %s por debajo del mínimo dispensable (%s %s)",
		e.Amount, e.UnitCode, e.BatchID, e.Minimum, e.UnitCode)
}

func (e *SubMinimumAllocationError) Unwrap() error { return ErrSubMinimumAllocation }

// PartialFailureError indica que la creación compuesta falló a mitad de camino y la
// compensación dejó el sistema como estaba antes (ROLLED_BACK). Conserva la causa original.
type PartialFailureError struct {
	TransactionID string
	Cause         error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("creación %s revertida: %v", e.TransactionID, e.Cause)
}

// Unwrap expone tanto el sentinel como la causa original (errors.Is encuentra ambos).
func (e *PartialFailureError) Unwrap() []error { return []error{ErrPartialFailureRollback, e.Cause} }

// RollbackError indica que la compensación misma falló tras agotar los reintentos.
// La transacción queda en estado FAILED y exige conciliación manual; nunca se silencia.
type RollbackError struct {
	TransactionID string
	Cause         error // fallo original del flujo
	RollbackErr   error // fallo de la compensación
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("creación %s en estado FAILED: compensación fallida (%v) tras fallo original (%v)",
		e.TransactionID, e.RollbackErr, e.Cause)
}

func (e *RollbackError) Unwrap() error { return ErrRollbackFailed }
