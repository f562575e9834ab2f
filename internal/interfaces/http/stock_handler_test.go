package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biocultivo/labstock-api/internal/application/culture"
	"github.com/biocultivo/labstock-api/internal/application/media"
	"github.com/biocultivo/labstock-api/internal/application/stock"
	"github.com/biocultivo/labstock-api/internal/domain/allocation"
	"github.com/biocultivo/labstock-api/internal/domain/entity"
	"github.com/biocultivo/labstock-api/internal/domain/unit"
	"github.com/biocultivo/labstock-api/internal/infrastructure/memory"
	apphttp "github.com/biocultivo/labstock-api/internal/interfaces/http"
	"github.com/biocultivo/labstock-api/pkg/logger"
	"github.com/biocultivo/labstock-api/pkg/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

// buildTestApp levanta la API completa sobre el almacén en memoria.
func buildTestApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	met := metrics.New()
	alloc := allocation.NewAllocator(allocation.Config{})
	planner := stock.NewPlanner(store.Batches(), alloc, log, met)
	writeoffs := stock.NewWriteOffService(store.Batches(), store.Ledger(), log, met)
	coord := stock.NewCoordinator(planner, writeoffs, store.Entities(), store.Transactions(), 2, log, met)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Planner:   planner,
		CultureUC: culture.NewCreateCultureUseCase(coord, log),
		MediumUC:  media.NewCreateMediumUseCase(coord, log),
		Metrics:   met,
	})
	return app, store
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func seedAgar(t *testing.T, store *memory.Store, id, cantidad string) {
	t.Helper()
	store.SeedBatch(entity.ConsumableBatch{
		ID:                id,
		NomenclatureID:    "agar-001",
		QuantityRemaining: dec(t, cantidad),
		Unit:              unit.MustParse("g"),
		Status:            entity.BatchStatusAvailable,
	})
}

// doJSON lanza una petición con cuerpo JSON y decodifica la respuesta en out.
func doJSON(t *testing.T, app *fiber.App, method, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out), "cuerpo: %s", raw)
	}
	return resp.StatusCode
}

// ──────────────────────────────────────────────────────────────────────────────
// GET /api/stock/batches
// ──────────────────────────────────────────────────────────────────────────────

func TestListBatches_DevuelveCatalogoFEFO(t *testing.T) {
	app, store := buildTestApp(t)
	seedAgar(t, store, "b1", "100")
	seedAgar(t, store, "b2", "50")

	var out struct {
		Batches []struct {
			ID                string          `json:"id"`
			QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
			Status            string          `json:"status"`
		} `json:"batches"`
	}
	status := doJSON(t, app, http.MethodGet, "/api/stock/batches?nomenclature_id=agar-001", nil, &out)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, out.Batches, 2)
	assert.Equal(t, "AVAILABLE", out.Batches[0].Status)
}

func TestListBatches_FiltroInvalido(t *testing.T) {
	app, _ := buildTestApp(t)
	status := doJSON(t, app, http.MethodGet, "/api/stock/batches", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

// ──────────────────────────────────────────────────────────────────────────────
// POST /api/stock/allocation-plan
// ──────────────────────────────────────────────────────────────────────────────

func TestPlanAllocation_Satisfecho(t *testing.T) {
	app, store := buildTestApp(t)
	seedAgar(t, store, "b1", "100")

	var out struct {
		Satisfied bool `json:"satisfied"`
		Lines     []struct {
			BatchID string          `json:"batch_id"`
			Amount  decimal.Decimal `json:"amount"`
		} `json:"lines"`
	}
	status := doJSON(t, app, http.MethodPost, "/api/stock/allocation-plan", fiber.Map{
		"nomenclature_id": "agar-001",
		"quantity":        "40",
		"unit_code":       "g",
	}, &out)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Satisfied)
	require.Len(t, out.Lines, 1)
	assert.Equal(t, "b1", out.Lines[0].BatchID)

	// Planificar es de solo lectura.
	b, err := store.Batches().GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, b.QuantityRemaining.Equal(dec(t, "100")))
}

// Caso: insatisfacible → 200 con satisfied=false y plan parcial, no un error HTTP.
func TestPlanAllocation_InsatisfechoDevuelvePlanParcial(t *testing.T) {
	app, store := buildTestApp(t)
	seedAgar(t, store, "b1", "100")

	var out struct {
		Satisfied bool            `json:"satisfied"`
		Remaining decimal.Decimal `json:"remaining"`
	}
	status := doJSON(t, app, http.MethodPost, "/api/stock/allocation-plan", fiber.Map{
		"nomenclature_id": "agar-001",
		"quantity":        "150",
		"unit_code":       "g",
	}, &out)

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, out.Satisfied)
	assert.True(t, out.Remaining.Equal(dec(t, "50")))
}

func TestPlanAllocation_UnidadDesconocida(t *testing.T) {
	app, _ := buildTestApp(t)
	var out struct {
		Code string `json:"code"`
	}
	status := doJSON(t, app, http.MethodPost, "/api/stock/allocation-plan", fiber.Map{
		"nomenclature_id": "agar-001",
		"quantity":        "10",
		"unit_code":       "oz",
	}, &out)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", out.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// POST /api/media (creación compuesta vía HTTP)
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateMedium_CreacionYConflicto(t *testing.T) {
	app, store := buildTestApp(t)
	seedAgar(t, store, "b1", "100")

	body := fiber.Map{
		"formula_name": "PDA",
		"volume":       "500",
		"unit_code":    "mL",
		"ingredients": []fiber.Map{{
			"nomenclature_id": "agar-001",
			"quantity":        "30",
			"unit_code":       "g",
		}},
	}

	var created struct {
		TransactionID string `json:"transaction_id"`
		MediumID      string `json:"medium_id"`
	}
	status := doJSON(t, app, http.MethodPost, "/api/media", body, &created)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.MediumID)

	// Stock insuficiente para repetirlo tres veces más: la tercera llamada choca
	// contra el faltante y responde 409 sin efectos.
	doJSON(t, app, http.MethodPost, "/api/media", body, nil)
	doJSON(t, app, http.MethodPost, "/api/media", body, nil)

	var conflict struct {
		Code string `json:"code"`
	}
	status = doJSON(t, app, http.MethodPost, "/api/media", body, &conflict)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", conflict.Code)

	b, err := store.Batches().GetBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, b.QuantityRemaining.Equal(dec(t, "10")))
	assert.Equal(t, 3, store.EntityCount())
}

func TestCreateMedium_CuerpoInvalido(t *testing.T) {
	app, _ := buildTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/api/media", bytes.NewBufferString("{no es json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// GET /metrics
// ──────────────────────────────────────────────────────────────────────────────

func TestMetrics_Expuestas(t *testing.T) {
	app, _ := buildTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "labstock_allocation_plans_total")
}
