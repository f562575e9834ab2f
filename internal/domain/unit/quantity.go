package unit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain"
)

// Quantity cantidad con su unidad, validada en la construcción. Nunca circula
// un monto sin unidad ni una unidad fuera del catálogo.
type Quantity struct {
	Unit   Unit
	Amount decimal.Decimal
}

// NewQuantity construye una cantidad positiva en una unidad del catálogo.
func NewQuantity(amount decimal.Decimal, unitCode string) (Quantity, error) {
	u, err := Parse(unitCode)
	if err != nil {
		return Quantity{}, err
	}
	if !amount.GreaterThan(decimal.Zero) {
		return Quantity{}, fmt.Errorf("cantidad %s %s no positiva: %w", amount, unitCode, domain.ErrValidation)
	}
	return Quantity{Unit: u, Amount: amount}, nil
}

// In devuelve la cantidad expresada en otra unidad de la misma magnitud.
func (q Quantity) In(to Unit) (Quantity, error) {
	converted, err := Convert(q.Amount, q.Unit, to)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Unit: to, Amount: converted}, nil
}

func (q Quantity) String() string {
	return fmt.Sprintf("%s %s", q.Amount, q.Unit.Code)
}
