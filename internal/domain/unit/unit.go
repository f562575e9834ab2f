package unit

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/domain"
)

// Kind magnitud física de una unidad de medida.
type Kind string

const (
	KindMass     Kind = "MASS"     // masa
	KindVolume   Kind = "VOLUME"   // volumen
	KindCount    Kind = "COUNT"    // conteo (unidades físicas)
	KindActivity Kind = "ACTIVITY" // actividad biológica (UI)
	KindMolar    Kind = "MOLAR"    // cantidad de sustancia
)

// Unit unidad de medida cerrada: magnitud, código y factor lineal a la unidad base
// de su magnitud (base MASS = gramo, VOLUME = mililitro, COUNT = unidad,
// ACTIVITY = UI, MOLAR = milimol).
type Unit struct {
	Kind        Kind
	Code        string
	ScaleToBase decimal.Decimal
}

// registry catálogo cerrado de unidades soportadas. Los códigos desconocidos se
// rechazan en el borde (Parse), nunca aguas abajo.
var registry = buildRegistry()

func buildRegistry() map[string]Unit {
	units := []Unit{
		// Masa (base: gramo)
		{KindMass, "ug", decimal.New(1, -6)},
		{KindMass, "mg", decimal.New(1, -3)},
		{KindMass, "g", decimal.New(1, 0)},
		{KindMass, "kg", decimal.New(1, 3)},
		// Volumen (base: mililitro)
		{KindVolume, "uL", decimal.New(1, -3)},
		{KindVolume, "mL", decimal.New(1, 0)},
		{KindVolume, "L", decimal.New(1, 3)},
		// Conteo (base: unidad)
		{KindCount, "ud", decimal.New(1, 0)},
		// Actividad biológica (base: UI)
		{KindActivity, "UI", decimal.New(1, 0)},
		{KindActivity, "kUI", decimal.New(1, 3)},
		// Cantidad de sustancia (base: milimol)
		{KindMolar, "umol", decimal.New(1, -3)},
		{KindMolar, "mmol", decimal.New(1, 0)},
		{KindMolar, "mol", decimal.New(1, 3)},
	}
	m := make(map[string]Unit, len(units))
	for _, u := range units {
		m[u.Code] = u
	}
	return m
}

// Parse resuelve un código de unidad contra el catálogo cerrado.
func Parse(code string) (Unit, error) {
	u, ok := registry[code]
	if !ok {
		return Unit{}, fmt.Errorf("unidad %q: %w", code, domain.ErrUnknownUnit)
	}
	return u, nil
}

// MustParse como Parse pero con panic; solo para catálogos estáticos y tests.
func MustParse(code string) Unit {
	u, err := Parse(code)
	if err != nil {
		panic(err)
	}
	return u
}

func (u Unit) String() string { return u.Code }

// IsZero indica si la unidad no fue inicializada (no proviene del catálogo).
func (u Unit) IsZero() bool { return u.Code == "" }
