package culture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/biocultivo/labstock-api/internal/application/dto"
	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
	"github.com/biocultivo/labstock-api/pkg/logger"
)

// CreateCultureUseCase crea un cultivo desde una donación: cultivo + lote + N
// envases como una sola operación todo-o-nada, descontando el stock de envases y
// los insumos seleccionados a través del coordinador de creación compuesta.
type CreateCultureUseCase struct {
	coordinator *stock.Coordinator
	log         *logger.Logger
}

// NewCreateCultureUseCase construye el caso de uso.
func NewCreateCultureUseCase(coordinator *stock.Coordinator, log *logger.Logger) *CreateCultureUseCase {
	return &CreateCultureUseCase{coordinator: coordinator, log: log}
}

// Create valida la entrada, arma las entidades primarias y los pedidos de
// asignación, y delega la atomicidad en el coordinador.
func (uc *CreateCultureUseCase) Create(ctx context.Context, userID string, in dto.CreateCultureRequest) (*dto.CreateCultureResponse, error) {
	if in.DonationID == "" || in.StrainName == "" || in.ContainerTypeID == "" {
		return nil, fmt.Errorf("donación, cepa y tipo de envase son obligatorios: %w", domain.ErrValidation)
	}
	if in.ContainerCount < 1 {
		return nil, fmt.Errorf("se requiere al menos un envase: %w", domain.ErrValidation)
	}

	now := time.Now()
	cult := &entity.Culture{
		ID:         uuid.New().String(),
		DonationID: in.DonationID,
		StrainName: in.StrainName,
		CreatedAt:  now,
		CreatedBy:  userID,
	}
	lotCode := in.LotCode
	if lotCode == "" {
		lotCode = fmt.Sprintf("%s-%d", in.StrainName, now.Unix())
	}
	lot := &entity.CultureLot{
		ID:        uuid.New().String(),
		CultureID: cult.ID,
		Code:      lotCode,
		CreatedAt: now,
	}
	primaries := []entity.PrimaryEntity{cult, lot}
	containerIDs := make([]string, 0, in.ContainerCount)
	for i := 0; i < in.ContainerCount; i++ {
		cont := &entity.Container{
			ID:              uuid.New().String(),
			LotID:           lot.ID,
			ContainerTypeID: in.ContainerTypeID,
			PositionLabel:   fmt.Sprintf("%s/%d", lotCode, i+1),
			CreatedAt:       now,
		}
		primaries = append(primaries, cont)
		containerIDs = append(containerIDs, cont.ID)
	}

	// Un pedido de 1 unidad por envase, atribuido al envase que la consume: así
	// la confirmación produce un asiento de baja por envase, no una baja en bloque.
	unitQty, err := unit.NewQuantity(decimal.NewFromInt(1), "ud")
	if err != nil {
		return nil, err
	}
	reqs := make([]allocation.Request, 0, in.ContainerCount+len(in.Consumables))
	for _, containerID := range containerIDs {
		reqs = append(reqs, allocation.Request{
			ContainerTypeID: in.ContainerTypeID,
			Quantity:        unitQty,
			TargetRef:       containerID,
			Reason:          entity.WriteOffReasonCulture,
		})
	}
	for _, sel := range in.Consumables {
		req, err := sel.ToRequest(cult.ID, entity.WriteOffReasonCulture)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	result, err := uc.coordinator.CreateWithAllocations(ctx, userID, primaries, reqs)
	if err != nil {
		return nil, err
	}

	return &dto.CreateCultureResponse{
		TransactionID: result.TransactionID,
		CultureID:     cult.ID,
		LotID:         lot.ID,
		ContainerIDs:  containerIDs,
		WriteOffs:     dto.NewWriteOffResponses(result.WriteOffs),
	}, nil
}
