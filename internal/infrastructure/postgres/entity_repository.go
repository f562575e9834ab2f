package postgres

import (
	"context"
	"fmt"

	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/repository"
)

var _ repository.PrimaryEntityRepository = (*PrimaryEntityRepo)(nil)

// PrimaryEntityRepo creación/borrado de entidades primarias sobre PostgreSQL.
// El borrado lo usa únicamente la compensación de la saga.
type PrimaryEntityRepo struct {
	q Querier
}

// NewPrimaryEntityRepository construye el adaptador de entidades primarias.
func NewPrimaryEntityRepository(q Querier) *PrimaryEntityRepo {
	return &PrimaryEntityRepo{q: q}
}

// Create persiste la entidad según su tipo concreto.
func (r *PrimaryEntityRepo) Create(ctx context.Context, e entity.PrimaryEntity) error {
	switch v := e.(type) {
	case *entity.Culture:
		_, err := r.q.Exec(ctx, `
			INSERT INTO cultures (id, donation_id, strain_name, created_at, created_by)
			VALUES ($1, $2, $3, $4, $5)`,
			v.ID, v.DonationID, v.StrainName, v.CreatedAt, v.CreatedBy)
		return wrapCreate("culture", err)
	case *entity.CultureLot:
		_, err := r.q.Exec(ctx, `
			INSERT INTO culture_lots (id, culture_id, code, created_at)
			VALUES ($1, $2, $3, $4)`,
			v.ID, v.CultureID, v.Code, v.CreatedAt)
		return wrapCreate("lot", err)
	case *entity.Container:
		_, err := r.q.Exec(ctx, `
			INSERT INTO containers (id, lot_id, container_type_id, position_label, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			v.ID, v.LotID, v.ContainerTypeID, v.PositionLabel, v.CreatedAt)
		return wrapCreate("container", err)
	case *entity.ReadyMedium:
		_, err := r.q.Exec(ctx, `
			INSERT INTO ready_media (id, formula_name, volume, unit_code, prepared_at, prepared_by)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			v.ID, v.FormulaName, v.Volume.Amount, v.Volume.Unit.Code, v.PreparedAt, v.PreparedBy)
		return wrapCreate("medium", err)
	}
	return fmt.Errorf("tipo de entidad primaria no soportado %T: %w", e, domain.ErrValidation)
}

// Delete borra una entidad primaria por tipo e id.
func (r *PrimaryEntityRepo) Delete(ctx context.Context, kind entity.EntityKind, id string) error {
	table, ok := tableByKind[kind]
	if !ok {
		return fmt.Errorf("tipo de entidad primaria desconocido %q: %w", kind, domain.ErrValidation)
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

var tableByKind = map[entity.EntityKind]string{
	entity.KindCulture:   "cultures",
	entity.KindLot:       "culture_lots",
	entity.KindContainer: "containers",
	entity.KindMedium:    "ready_media",
}

func wrapCreate(kind string, err error) error {
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create %s: id duplicado: %w", kind, err)
		}
		return fmt.Errorf("create %s: %w", kind, err)
	}
	return nil
}
