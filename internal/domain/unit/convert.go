package unit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain"
)

// relTolerance tolerancia relativa fija para comparar cantidades convertidas.
// Absorbe el redondeo de la división decimal; la conversión A→B→A reproduce el
// valor original dentro de esta tolerancia, no de forma exacta en general.
var relTolerance = decimal.New(1, -9)

// Bridge factores explícitos para convertir entre magnitudes distintas.
// Nunca se asume un valor por defecto: el factor ausente produce
// ErrMissingConversionContext.
type Bridge struct {
	MolecularWeight  *decimal.Decimal // g/mol   (MOLAR ↔ MASS)
	Density          *decimal.Decimal // g/mL    (MASS ↔ VOLUME)
	SpecificActivity *decimal.Decimal // UI/mg   (ACTIVITY ↔ MASS)
}

// Convert convierte amount entre unidades de la misma magnitud.
// Función pura y determinista: misma entrada, misma salida (reproducibilidad de auditoría).
func Convert(amount decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	if from.Kind != to.Kind {
		return decimal.Decimal{}, fmt.Errorf("convertir %s a %s: %w", from.Code, to.Code, domain.ErrIncompatibleUnitKind)
	}
	return amount.Mul(from.ScaleToBase).Div(to.ScaleToBase), nil
}

// ConvertBridged convierte entre magnitudes distintas usando los factores del puente.
// Si from y to comparten magnitud delega en Convert (el puente se ignora).
// La masa actúa como magnitud pivote: MOLAR↔VOLUME requiere peso molecular y densidad.
func ConvertBridged(amount decimal.Decimal, from, to Unit, bridge *Bridge) (decimal.Decimal, error) {
	if from.Kind == to.Kind {
		return Convert(amount, from, to)
	}
	// A la base de la magnitud origen
	inBase := amount.Mul(from.ScaleToBase)
	// Cruce de magnitud, expresado en la base de la magnitud destino
	crossed, err := crossKinds(inBase, from.Kind, to.Kind, bridge)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return crossed.Div(to.ScaleToBase), nil
}

// crossKinds convierte un valor en unidad base de fromKind a unidad base de toKind.
// Pares soportados: MOLAR↔MASS, MASS↔VOLUME, ACTIVITY↔MASS, MOLAR↔VOLUME (dos saltos).
// COUNT no admite puente: contar no se deriva de ninguna otra magnitud.
func crossKinds(inBase decimal.Decimal, fromKind, toKind Kind, bridge *Bridge) (decimal.Decimal, error) {
	switch {
	case fromKind == KindMolar && toKind == KindMass:
		mw, err := requireFactor(bridge, bridgeMolecularWeight, fromKind, toKind)
		if err != nil {
			return decimal.Decimal{}, err
		}
		// mmol → mol → g
		return inBase.Div(thousand).Mul(mw), nil

	case fromKind == KindMass && toKind == KindMolar:
		mw, err := requireFactor(bridge, bridgeMolecularWeight, fromKind, toKind)
		if err != nil {
			return decimal.Decimal{}, err
		}
		// g → mol → mmol
		return inBase.Div(mw).Mul(thousand), nil

	case fromKind == KindMass && toKind == KindVolume:
		d, err := requireFactor(bridge, bridgeDensity, fromKind, toKind)
		if err != nil {
			return decimal.Decimal{}, err
		}
		// g → mL
		return inBase.Div(d), nil

	case fromKind == KindVolume && toKind == KindMass:
		d, err := requireFactor(bridge, bridgeDensity, fromKind, toKind)
		if err != nil {
			return decimal.Decimal{}, err
		}
		// mL → g
		return inBase.Mul(d), nil

	case fromKind == KindActivity && toKind == KindMass:
		sa, err := requireFactor(bridge, bridgeSpecificActivity, fromKind, toKind)
		if err != nil {
			return decimal.Decimal{}, err
		}
		// UI → mg → g
		return inBase.Div(sa).Div(thousand), nil

	case fromKind == KindMass && toKind == KindActivity:
		sa, err := requireFactor(bridge, bridgeSpecificActivity, fromKind, toKind)
		if err != nil {
			return decimal.Decimal{}, err
		}
		// g → mg → UI
		return inBase.Mul(thousand).Mul(sa), nil

	case fromKind == KindMolar && toKind == KindVolume:
		// mmol → g → mL
		mass, err := crossKinds(inBase, KindMolar, KindMass, bridge)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return crossKinds(mass, KindMass, KindVolume, bridge)

	case fromKind == KindVolume && toKind == KindMolar:
		// mL → g → mmol
		mass, err := crossKinds(inBase, KindVolume, KindMass, bridge)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return crossKinds(mass, KindMass, KindMolar, bridge)
	}

	return decimal.Decimal{}, fmt.Errorf("convertir %s a %s: %w", fromKind, toKind, domain.ErrIncompatibleUnitKind)
}

var thousand = decimal.New(1, 3)

type bridgeFactor string

const (
	bridgeMolecularWeight  bridgeFactor = "peso molecular (g/mol)"
	bridgeDensity          bridgeFactor = "densidad (g/mL)"
	bridgeSpecificActivity bridgeFactor = "actividad específica (UI/mg)"
)

// requireFactor extrae el factor pedido del puente o falla con
// ErrMissingConversionContext; el factor debe ser positivo.
func requireFactor(bridge *Bridge, f bridgeFactor, fromKind, toKind Kind) (decimal.Decimal, error) {
	var v *decimal.Decimal
	if bridge != nil {
		switch f {
		case bridgeMolecularWeight:
			v = bridge.MolecularWeight
		case bridgeDensity:
			v = bridge.Density
		case bridgeSpecificActivity:
			v = bridge.SpecificActivity
		}
	}
	if v == nil {
		return decimal.Decimal{}, fmt.Errorf("convertir %s a %s sin %s: %w",
			fromKind, toKind, f, domain.ErrMissingConversionContext)
	}
	if !v.GreaterThan(decimal.Zero) {
		return decimal.Decimal{}, fmt.Errorf("%s debe ser positivo: %w", f, domain.ErrValidation)
	}
	return *v, nil
}

// WithinTolerance compara dos cantidades con tolerancia relativa fija (1e-9).
func WithinTolerance(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	scale := decimal.Max(a.Abs(), b.Abs())
	if scale.IsZero() {
		return diff.IsZero()
	}
	return diff.LessThanOrEqual(scale.Mul(relTolerance))
}

// NegligibleAgainst indica si x es despreciable frente a scale (bajo la tolerancia relativa).
func NegligibleAgainst(x, scale decimal.Decimal) bool {
	if scale.IsZero() {
		return x.IsZero()
	}
	return x.Abs().LessThanOrEqual(scale.Abs().Mul(relTolerance))
}
