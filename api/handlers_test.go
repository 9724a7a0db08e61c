package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth/debt-engine/api"
	"github.com/hearth/debt-engine/banksync"
	"github.com/hearth/debt-engine/engine"
	"github.com/hearth/debt-engine/ledger"
	"github.com/hearth/debt-engine/store/memory"
)

// =============================================================================
// FIXTURES
// =============================================================================

func newTestAPI(t *testing.T) (*chi.Mux, *memory.Memory) {
	t.Helper()
	s := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(s, banksync.New(log), log)
	h := api.NewHandler(s, eng, "GBP", log)
	return api.NewRouter(h), s
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func cardRequest() api.InstrumentRequest {
	return api.InstrumentRequest{
		Name:                "Everyday Card",
		Kind:                "revolving",
		PeriodicRate:        "2.00",
		CreditLimit:         "3000",
		StatementDay:        1,
		FixedPayment:        "200",
		SettlementAccountID: "acct-1",
	}
}

func createCard(t *testing.T, router http.Handler) api.InstrumentDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/instruments", cardRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeAs[api.InstrumentDTO](t, rec)
}

func seedDebt(t *testing.T, s ledger.Store, id string, amount string) {
	t.Helper()
	require.NoError(t, s.InsertEntry(context.Background(), &ledger.Entry{
		ID:           ledger.EntryID(ledger.NewID()),
		InstrumentID: ledger.InstrumentID(id),
		Date:         ledger.NewDate(2025, time.December, 15),
		Kind:         ledger.KindPurchase,
		Amount:       ledger.MustDecimal(amount),
		Paid:         true,
		Provenance:   ledger.ProvLocked,
		CreatedAt:    time.Now().UTC(),
	}))
}

// =============================================================================
// INSTRUMENT CRUD
// =============================================================================

func TestAPI_CreateInstrument(t *testing.T) {
	router, _ := newTestAPI(t)

	dto := createCard(t, router)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "Everyday Card", dto.Name)
	assert.Equal(t, "revolving", dto.Kind)
	assert.Equal(t, "2.00", dto.PeriodicRate)
	assert.True(t, dto.Active)
}

func TestAPI_CreateInstrument_InvalidConfigRejected(t *testing.T) {
	router, _ := newTestAPI(t)

	req := cardRequest()
	req.StatementDay = 31
	rec := doJSON(t, router, http.MethodPost, "/api/instruments", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeAs[api.ErrorResponse](t, rec)
	assert.Contains(t, resp.Details, "statement_day")
}

func TestAPI_ListInstruments_ActiveFilter(t *testing.T) {
	router, _ := newTestAPI(t)

	keep := createCard(t, router)
	retire := createCard(t, router)

	rec := doJSON(t, router, http.MethodDelete, "/api/instruments/"+retire.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	retired := decodeAs[api.InstrumentDTO](t, rec)
	assert.False(t, retired.Active)

	rec = doJSON(t, router, http.MethodGet, "/api/instruments?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decodeAs[[]api.InstrumentDTO](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, keep.ID, active[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/instruments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeAs[[]api.InstrumentDTO](t, rec)
	assert.Len(t, all, 2)
}

func TestAPI_GetInstrument_NotFound(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/instruments/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UpdateInstrument(t *testing.T) {
	router, _ := newTestAPI(t)
	dto := createCard(t, router)

	req := cardRequest()
	req.Name = "Renamed Card"
	req.PeriodicRate = "3.00"
	rec := doJSON(t, router, http.MethodPut, "/api/instruments/"+dto.ID, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decodeAs[api.InstrumentDTO](t, rec)
	assert.Equal(t, "Renamed Card", updated.Name)
	assert.Equal(t, "3.00", updated.PeriodicRate)
}

// =============================================================================
// PURCHASES, GENERATION & LEDGER
// =============================================================================

func TestAPI_RecordPurchase(t *testing.T) {
	router, _ := newTestAPI(t)
	dto := createCard(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/instruments/"+dto.ID+"/purchases", api.PurchaseRequest{
		Date:        "2026-01-05",
		Amount:      "-120.50",
		Description: "Groceries",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	entry := decodeAs[api.EntryDTO](t, rec)
	assert.Equal(t, "purchase", entry.Kind)
	assert.Equal(t, "-120.50", entry.Amount)
	assert.Equal(t, "-£120.50", entry.AmountDisplay)
	assert.Equal(t, "user_edited", entry.Provenance)

	// Positive amounts violate the sign convention
	rec = doJSON(t, router, http.MethodPost, "/api/instruments/"+dto.ID+"/purchases", api.PurchaseRequest{
		Date: "2026-01-05", Amount: "120.50",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GenerateAndListEntries(t *testing.T) {
	// GIVEN: A card owing £500
	// WHEN: January is generated through the API
	// THEN: The run summary and the ledger listing both reflect the new
	//       statement chain

	router, s := newTestAPI(t)
	dto := createCard(t, router)
	seedDebt(t, s, dto.ID, "-500")

	rec := doJSON(t, router, http.MethodPost, "/api/instruments/"+dto.ID+"/generate", api.RegenerateRequest{
		Start: "2026-01-01",
		End:   "2026-01-31",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeAs[engine.Result](t, rec)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Statements)

	rec = doJSON(t, router, http.MethodGet, "/api/instruments/"+dto.ID+"/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeAs[[]api.EntryDTO](t, rec)
	require.Len(t, entries, 3)
	assert.Equal(t, "purchase", entries[0].Kind)
	assert.Equal(t, "interest", entries[1].Kind)
	assert.Equal(t, "2.00", entries[1].AppliedRate)
	assert.Equal(t, "payment", entries[2].Kind)
	assert.Equal(t, "-310.00", entries[2].RunningBalance)
}

func TestAPI_Generate_EmptyBodyUsesDefaults(t *testing.T) {
	router, _ := newTestAPI(t)
	dto := createCard(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/instruments/"+dto.ID+"/generate", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAPI_RegenerateAll(t *testing.T) {
	router, s := newTestAPI(t)
	dto := createCard(t, router)
	seedDebt(t, s, dto.ID, "-500")

	rec := doJSON(t, router, http.MethodPost, "/api/regenerate", api.RegenerateRequest{
		Start: "2026-01-01",
		End:   "2026-01-31",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	batch := decodeAs[engine.BatchResult](t, rec)
	assert.Equal(t, 1, batch.Processed)
	assert.Equal(t, 2, batch.Created)
	assert.Empty(t, batch.Failures)
}

func TestAPI_GetStats(t *testing.T) {
	router, s := newTestAPI(t)
	dto := createCard(t, router)
	seedDebt(t, s, dto.ID, "-500")

	rec := doJSON(t, router, http.MethodPost, "/api/instruments/"+dto.ID+"/generate", api.RegenerateRequest{
		Start: "2026-01-01", End: "2026-01-31",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/instruments/"+dto.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decodeAs[api.StatisticsDTO](t, rec)
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, "10.00", stats.InterestScheduled)
	assert.Equal(t, "200.00", stats.PaymentsScheduled)
	assert.Equal(t, "-310.00", stats.ProjectedBalance)
}

// =============================================================================
// ENTRY & EXTERNAL OPERATIONS
// =============================================================================

func generatedPayment(t *testing.T, router http.Handler, s ledger.Store, instrumentID string) api.EntryDTO {
	t.Helper()
	seedDebt(t, s, instrumentID, "-500")
	rec := doJSON(t, router, http.MethodPost, "/api/instruments/"+instrumentID+"/generate", api.RegenerateRequest{
		Start: "2026-01-01", End: "2026-01-31",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/instruments/"+instrumentID+"/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, e := range decodeAs[[]api.EntryDTO](t, rec) {
		if e.Kind == "payment" {
			return e
		}
	}
	t.Fatal("no generated payment found")
	return api.EntryDTO{}
}

func TestAPI_UpdateEntry_LockAndEdit(t *testing.T) {
	router, s := newTestAPI(t)
	dto := createCard(t, router)
	payment := generatedPayment(t, router, s, dto.ID)

	amount := "250"
	rec := doJSON(t, router, http.MethodPut, "/api/entries/"+payment.ID, api.EntryUpdateRequest{
		Amount: &amount,
		Lock:   true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decodeAs[api.EntryDTO](t, rec)
	assert.Equal(t, "250.00", updated.Amount)
	assert.Equal(t, "locked", updated.Provenance)

	// The paired bank entry follows the edit
	require.NotEmpty(t, payment.ExternalID)
	rec = doJSON(t, router, http.MethodGet, "/api/external/"+payment.ExternalID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mirror := decodeAs[api.ExternalEntryDTO](t, rec)
	assert.Equal(t, "-250.00", mirror.Amount)
}

func TestAPI_UpdateEntry_WrongSignRejected(t *testing.T) {
	router, s := newTestAPI(t)
	dto := createCard(t, router)
	payment := generatedPayment(t, router, s, dto.ID)

	bad := "-250"
	rec := doJSON(t, router, http.MethodPut, "/api/entries/"+payment.ID, api.EntryUpdateRequest{Amount: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UpdateEntry_NotFound(t *testing.T) {
	router, _ := newTestAPI(t)

	paid := true
	rec := doJSON(t, router, http.MethodPut, "/api/entries/missing", api.EntryUpdateRequest{Paid: &paid})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeleteEntry_RemovesMirror(t *testing.T) {
	router, s := newTestAPI(t)
	dto := createCard(t, router)
	payment := generatedPayment(t, router, s, dto.ID)
	require.NotEmpty(t, payment.ExternalID)

	rec := doJSON(t, router, http.MethodDelete, "/api/entries/"+payment.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/entries/"+payment.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/external/"+payment.ExternalID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UpdateExternal_PropagatesToPayment(t *testing.T) {
	router, s := newTestAPI(t)
	dto := createCard(t, router)
	payment := generatedPayment(t, router, s, dto.ID)
	require.NotEmpty(t, payment.ExternalID)

	paid := true
	rec := doJSON(t, router, http.MethodPut, "/api/external/"+payment.ExternalID, api.ExternalUpdateRequest{Paid: &paid})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/entries/"+payment.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decodeAs[api.EntryDTO](t, rec)
	assert.True(t, after.Paid)
	assert.Equal(t, "locked", after.Provenance)
}

func TestAPI_Healthz(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
