package media

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/biocultivo/labstock-api/internal/application/dto"
	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
	"github.com/biocultivo/labstock-api/pkg/logger"
)

// CreateMediumUseCase prepara un medio listo: crea la entidad medio y descuenta
// cada ingrediente de la fórmula como bajas de stock, todo-o-nada.
type CreateMediumUseCase struct {
	coordinator *stock.Coordinator
	log         *logger.Logger
}

// NewCreateMediumUseCase construye el caso de uso.
func NewCreateMediumUseCase(coordinator *stock.Coordinator, log *logger.Logger) *CreateMediumUseCase {
	return &CreateMediumUseCase{coordinator: coordinator, log: log}
}

// Create valida la fórmula y delega en el coordinador.
func (uc *CreateMediumUseCase) Create(ctx context.Context, userID string, in dto.CreateMediumRequest) (*dto.CreateMediumResponse, error) {
	if in.FormulaName == "" {
		return nil, fmt.Errorf("la fórmula es obligatoria: %w", domain.ErrValidation)
	}
	if len(in.Ingredients) == 0 {
		return nil, fmt.Errorf("un medio requiere al menos un ingrediente: %w", domain.ErrValidation)
	}
	volume, err := unit.NewQuantity(in.Volume, in.UnitCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	medium := &entity.ReadyMedium{
		ID:          uuid.New().String(),
		FormulaName: in.FormulaName,
		Volume:      volume,
		PreparedAt:  now,
		PreparedBy:  userID,
	}

	reqs := make([]allocation.Request, 0, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		req, err := ing.ToRequest(medium.ID, entity.WriteOffReasonMedium)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	result, err := uc.coordinator.CreateWithAllocations(ctx, userID, []entity.PrimaryEntity{medium}, reqs)
	if err != nil {
		return nil, err
	}

	return &dto.CreateMediumResponse{
		TransactionID: result.TransactionID,
		MediumID:      medium.ID,
		WriteOffs:     dto.NewWriteOffResponses(result.WriteOffs),
	}, nil
}
