package allocation

import (
	"sort"
	"time"

	"github.com/biocultivo/labstock-api/internal/domain/entity"
)

// CatalogView proyección de solo lectura de los lotes asignables a una fecha dada,
// ordenada para consumo FEFO (primero-en-vencer, primero-en-salir):
// vencimiento ascendente, lotes sin vencimiento al final, empate por id de lote
// (orden estable → planes reproducibles para entradas idénticas).
func CatalogView(batches []entity.ConsumableBatch, asOf time.Time) []entity.ConsumableBatch {
	view := make([]entity.ConsumableBatch, 0, len(batches))
	for _, b := range batches {
		if b.Allocatable(asOf) {
			view = append(view, b)
		}
	}
	sort.SliceStable(view, func(i, j int) bool {
		a, b := view[i], view[j]
		switch {
		case a.ExpirationDate == nil && b.ExpirationDate == nil:
			return a.ID < b.ID
		case a.ExpirationDate == nil:
			return false
		case b.ExpirationDate == nil:
			return true
		case a.ExpirationDate.Equal(*b.ExpirationDate):
			return a.ID < b.ID
		default:
			return a.ExpirationDate.Before(*b.ExpirationDate)
		}
	})
	return view
}
