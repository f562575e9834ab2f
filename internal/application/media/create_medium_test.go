package media_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biocultivo/labstock-api/internal/application/dto"
	"github.com/biocultivo/labstock-api/internal/application/media"
	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/internal/domain"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
	"github.com/biocultivo/labstock-api/internal/infrastructure/memory"
	"github.com/biocultivo/labstock-api/pkg/logger"
	"github.com/biocultivo/labstock-api/pkg/metrics"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func newUseCase(t *testing.T) (*media.CreateMediumUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	met := metrics.New()
	alloc := allocation.NewAllocator(allocation.Config{})
	planner := stock.NewPlanner(store.Batches(), alloc, log, met)
	writeoffs := stock.NewWriteOffService(store.Batches(), store.Ledger(), log, met)
	coord := stock.NewCoordinator(planner, writeoffs, store.Entities(), store.Transactions(), 2, log, met)
	return media.NewCreateMediumUseCase(coord, log), store
}

// Caso: preparación de medio con dos ingredientes, uno dosificado en mmol contra
// stock en mg (cruce por peso molecular).
func TestCreateMedium_PreparacionConCruceDeUnidades(t *testing.T) {
	uc, store := newUseCase(t)
	store.SeedBatch(entity.ConsumableBatch{
		ID:                "dex-1",
		NomenclatureID:    "dextrosa-010",
		QuantityRemaining: dec(t, "500"),
		Unit:              unit.MustParse("g"),
		Status:            entity.BatchStatusAvailable,
	})
	store.SeedBatch(entity.ConsumableBatch{
		ID:                "nacl-1",
		NomenclatureID:    "nacl-020",
		QuantityRemaining: dec(t, "1000"),
		Unit:              unit.MustParse("mg"),
		Status:            entity.BatchStatusAvailable,
	})

	mw := dec(t, "58.44")
	out, err := uc.Create(context.Background(), "operador-1", dto.CreateMediumRequest{
		FormulaName: "PDA",
		Volume:      dec(t, "1"),
		UnitCode:    "L",
		Ingredients: []dto.ConsumableSelectionDTO{
			{NomenclatureID: "dextrosa-010", Quantity: dec(t, "20"), UnitCode: "g"},
			{NomenclatureID: "nacl-020", Quantity: dec(t, "2"), UnitCode: "mmol", MolecularWeight: &mw},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.MediumID)
	require.Len(t, out.WriteOffs, 2)
	assert.True(t, store.HasEntity(entity.KindMedium, out.MediumID))

	dex, err := store.Batches().GetBatch(context.Background(), "dex-1")
	require.NoError(t, err)
	assert.True(t, dex.QuantityRemaining.Equal(dec(t, "480")))

	// 2 mmol × 58.44 g/mol = 116.88 mg descontados en la unidad nativa del lote.
	nacl, err := store.Batches().GetBatch(context.Background(), "nacl-1")
	require.NoError(t, err)
	assert.True(t, nacl.QuantityRemaining.Equal(dec(t, "883.12")), "restante %s", nacl.QuantityRemaining)

	porMedio, err := store.Ledger().ListByTarget(context.Background(), out.MediumID)
	require.NoError(t, err)
	require.Len(t, porMedio, 2)
	for _, e := range porMedio {
		assert.Equal(t, entity.WriteOffReasonMedium, e.Reason)
	}
}

// Caso: cruce de magnitud sin peso molecular → la preparación no arranca.
func TestCreateMedium_CruceSinFactorFalla(t *testing.T) {
	uc, store := newUseCase(t)
	store.SeedBatch(entity.ConsumableBatch{
		ID:                "nacl-1",
		NomenclatureID:    "nacl-020",
		QuantityRemaining: dec(t, "1000"),
		Unit:              unit.MustParse("mg"),
		Status:            entity.BatchStatusAvailable,
	})

	_, err := uc.Create(context.Background(), "op", dto.CreateMediumRequest{
		FormulaName: "PDA",
		Volume:      dec(t, "500"),
		UnitCode:    "mL",
		Ingredients: []dto.ConsumableSelectionDTO{
			{NomenclatureID: "nacl-020", Quantity: dec(t, "2"), UnitCode: "mmol"},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingConversionContext)
	assert.Equal(t, 0, store.EntityCount())
	assert.Equal(t, 0, store.LedgerSize())
}

// Caso: validaciones de entrada.
func TestCreateMedium_Validaciones(t *testing.T) {
	uc, _ := newUseCase(t)

	// Sin fórmula
	_, err := uc.Create(context.Background(), "op", dto.CreateMediumRequest{
		Volume: dec(t, "1"), UnitCode: "L",
		Ingredients: []dto.ConsumableSelectionDTO{{NomenclatureID: "x", Quantity: dec(t, "1"), UnitCode: "g"}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Sin ingredientes
	_, err = uc.Create(context.Background(), "op", dto.CreateMediumRequest{
		FormulaName: "PDA", Volume: dec(t, "1"), UnitCode: "L",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Unidad de volumen desconocida
	_, err = uc.Create(context.Background(), "op", dto.CreateMediumRequest{
		FormulaName: "PDA", Volume: dec(t, "1"), UnitCode: "galón",
		Ingredients: []dto.ConsumableSelectionDTO{{NomenclatureID: "x", Quantity: dec(t, "1"), UnitCode: "g"}},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownUnit)
}
