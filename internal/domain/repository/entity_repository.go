package repository

import (
	"context"

	"github.com/biocultivo/labstock-api/internal/domain/entity"
)

// PrimaryEntityRepository puerto de creación/borrado de entidades primarias
// (cultivo, lote, envase, medio). Delete se usa en la compensación de la saga.
type PrimaryEntityRepository interface {
	Create(ctx context.Context, e entity.PrimaryEntity) error
	Delete(ctx context.Context, kind entity.EntityKind, id string) error
}
