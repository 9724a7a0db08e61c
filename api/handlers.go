/*
handlers.go - HTTP API handlers for the debt projection engine

PURPOSE:
  Exposes the projection and regeneration engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Instruments:
    GET    /api/instruments                 List instruments (?active=true)
    POST   /api/instruments                 Create instrument
    GET    /api/instruments/{id}            Get instrument
    PUT    /api/instruments/{id}            Update configuration
    DELETE /api/instruments/{id}            Deactivate
    GET    /api/instruments/{id}/entries    Ledger history
    GET    /api/instruments/{id}/stats      Summary statistics
    POST   /api/instruments/{id}/purchases  Capture a manual charge
    POST   /api/instruments/{id}/generate   Generate forward (fill gaps)
    POST   /api/instruments/{id}/regenerate Regenerate (rebuild unlocked)

  Entries:
    GET    /api/entries/{id}                Get one entry
    PUT    /api/entries/{id}                Edit (propagates to bank mirror)
    DELETE /api/entries/{id}                Delete (payments take mirror too)

  External (bank-account) entries:
    GET    /api/external/{id}               Get one bank entry
    PUT    /api/external/{id}               Edit (propagates back to payment)

  Batch:
    POST   /api/regenerate                  Regenerate every active instrument

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Locked entry conflicts
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hearth/debt-engine/engine"
	"github.com/hearth/debt-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.TxStore
	Engine   *engine.Engine
	Currency string
	Log      *slog.Logger
}

// NewHandler creates a handler around the store and engine. Currency is the
// ISO code used for display formatting.
func NewHandler(store ledger.TxStore, eng *engine.Engine, currency string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Store: store, Engine: eng, Currency: currency, Log: log}
}

// =============================================================================
// INSTRUMENT HANDLERS
// =============================================================================

// ListInstruments returns all instruments, optionally active only.
func (h *Handler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	instruments, err := h.Store.ListInstruments(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list instruments", err)
		return
	}

	dtos := make([]InstrumentDTO, len(instruments))
	for i := range instruments {
		dtos[i] = h.instrumentDTO(&instruments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInstrument returns one instrument.
func (h *Handler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstrumentID(chi.URLParam(r, "id"))

	in, err := h.Store.GetInstrument(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get instrument", err)
		return
	}
	writeJSON(w, http.StatusOK, h.instrumentDTO(in))
}

// CreateInstrument creates a new instrument from configuration.
func (h *Handler) CreateInstrument(w http.ResponseWriter, r *http.Request) {
	var req InstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := &ledger.Instrument{
		ID:     ledger.InstrumentID(ledger.NewID()),
		Active: true,
	}
	if err := applyInstrumentRequest(in, req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid instrument configuration", err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid instrument configuration", err)
		return
	}

	if err := h.Store.SaveInstrument(r.Context(), in); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create instrument", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.instrumentDTO(in))
}

// UpdateInstrument replaces an instrument's configuration. Cached balances
// and ledger history are untouched; run regeneration afterwards to reproject.
func (h *Handler) UpdateInstrument(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstrumentID(chi.URLParam(r, "id"))

	var req InstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := h.Store.GetInstrument(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get instrument", err)
		return
	}
	if err := applyInstrumentRequest(in, req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid instrument configuration", err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid instrument configuration", err)
		return
	}

	if err := h.Store.SaveInstrument(r.Context(), in); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update instrument", err)
		return
	}
	writeJSON(w, http.StatusOK, h.instrumentDTO(in))
}

// DeactivateInstrument retires an instrument. History is preserved; the
// batch regenerator will no longer pick it up.
func (h *Handler) DeactivateInstrument(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstrumentID(chi.URLParam(r, "id"))

	in, err := h.Store.GetInstrument(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get instrument", err)
		return
	}

	in.Active = false
	if err := h.Store.SaveInstrument(r.Context(), in); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to deactivate instrument", err)
		return
	}
	writeJSON(w, http.StatusOK, h.instrumentDTO(in))
}

// ListEntries returns the full ledger for an instrument in replay order.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstrumentID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetInstrument(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get instrument", err)
		return
	}
	entries, err := h.Store.EntriesFor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i := range entries {
		dtos[i] = h.entryDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStats returns summary statistics for an instrument.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstrumentID(chi.URLParam(r, "id"))

	st, err := ledger.Stats(r.Context(), h.Store, id)
	if err != nil {
		h.writeDomainError(w, "Failed to compute statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsDTO(st))
}

// RecordPurchase captures a manual charge against an instrument.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.InstrumentID(chi.URLParam(r, "id"))

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	entry, err := h.Engine.RecordPurchase(r.Context(), id, date, amount, req.Description)
	if err != nil {
		h.writeDomainError(w, "Failed to record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.entryDTO(entry))
}

// =============================================================================
// GENERATION HANDLERS
// =============================================================================

// Generate fills gaps forward without disturbing existing chains.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	h.runEngine(w, r, false)
}

// Regenerate rebuilds unlocked generated chains inside the window.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.runEngine(w, r, true)
}

func (h *Handler) runEngine(w http.ResponseWriter, r *http.Request, replace bool) {
	id := ledger.InstrumentID(chi.URLParam(r, "id"))

	opts, err := parseRunOptions(r, replace)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run options", err)
		return
	}

	result, err := h.Engine.Run(r.Context(), id, opts)
	if err != nil {
		h.writeDomainError(w, "Regeneration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RegenerateAll regenerates every active instrument sequentially. Failures
// are reported per instrument; the batch itself always completes.
func (h *Handler) RegenerateAll(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRunOptions(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run options", err)
		return
	}

	batch, err := h.Engine.RunAll(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Batch regeneration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func parseRunOptions(r *http.Request, replace bool) (engine.Options, error) {
	opts := engine.Options{Replace: replace}

	if r.Body == nil || r.ContentLength == 0 {
		return opts, nil
	}
	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return opts, err
	}

	var err error
	if req.Start != "" {
		if opts.Start, err = ledger.ParseDate(req.Start); err != nil {
			return opts, err
		}
	}
	if req.End != "" {
		if opts.End, err = ledger.ParseDate(req.End); err != nil {
			return opts, err
		}
	}
	opts.PaymentOffsetDays = req.PaymentOffsetDays
	return opts, nil
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// GetEntry returns one ledger entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	entry, err := h.Store.GetEntry(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, h.entryDTO(entry))
}

// UpdateEntry edits a ledger entry. Payment edits propagate to the paired
// bank entry while it is unpaid.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	var req EntryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	upd := ledger.EntryUpdate{Paid: req.Paid, Description: req.Description, Lock: req.Lock}
	if req.Date != nil {
		date, err := ledger.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		upd.Date = &date
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		upd.Amount = &amount
	}

	entry, err := h.Engine.EditEntry(r.Context(), id, upd)
	if entry == nil && err != nil {
		h.writeDomainError(w, "Failed to update entry", err)
		return
	}
	if err != nil {
		// Sync propagation failed; the primary edit stands and was logged.
		h.Log.Warn("entry updated but sync propagation failed", "entry", id, "err", err)
	}
	writeJSON(w, http.StatusOK, h.entryDTO(entry))
}

// DeleteEntry removes an entry. Payments take their bank mirror with them.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	if err := h.Engine.RemoveEntry(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EXTERNAL ENTRY HANDLERS
// =============================================================================

// GetExternal returns one bank-account entry.
func (h *Handler) GetExternal(w http.ResponseWriter, r *http.Request) {
	id := ledger.ExternalEntryID(chi.URLParam(r, "id"))

	x, err := h.Store.GetExternal(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get bank entry", err)
		return
	}
	writeJSON(w, http.StatusOK, h.externalDTO(x))
}

// UpdateExternal edits a bank-account entry and propagates the change back
// to the paired payment while that payment is unpaid.
func (h *Handler) UpdateExternal(w http.ResponseWriter, r *http.Request) {
	id := ledger.ExternalEntryID(chi.URLParam(r, "id"))

	var req ExternalUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	upd := ledger.ExternalUpdate{Paid: req.Paid, Description: req.Description}
	if req.Date != nil {
		date, err := ledger.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		upd.Date = &date
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		upd.Amount = &amount
	}

	x, err := h.Engine.EditExternal(r.Context(), id, upd)
	if x == nil && err != nil {
		h.writeDomainError(w, "Failed to update bank entry", err)
		return
	}
	if err != nil {
		h.Log.Warn("bank entry updated but sync propagation failed", "external", id, "err", err)
	}
	writeJSON(w, http.StatusOK, h.externalDTO(x))
}

// =============================================================================
// HELPERS
// =============================================================================

func applyInstrumentRequest(in *ledger.Instrument, req InstrumentRequest) error {
	in.Name = req.Name
	in.Kind = ledger.InstrumentKind(req.Kind)
	in.StatementDay = req.StatementDay
	in.TermMonths = req.TermMonths
	in.SettlementAccountID = ledger.AccountID(req.SettlementAccountID)
	if req.Active != nil {
		in.Active = *req.Active
	}

	fields := []struct {
		value string
		dst   *decimal.Decimal
	}{
		{req.AnnualRate, &in.AnnualRate},
		{req.PeriodicRate, &in.PeriodicRate},
		{req.CreditLimit, &in.CreditLimit},
		{req.Principal, &in.Principal},
		{req.FixedPayment, &in.FixedPayment},
		{req.MinPaymentPercent, &in.MinPaymentPercent},
	}
	for _, f := range fields {
		if f.value == "" {
			*f.dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return err
		}
		*f.dst = d
	}

	dates := []struct {
		value string
		dst   *ledger.Date
	}{
		{req.StartDate, &in.StartDate},
		{req.EndDate, &in.EndDate},
		{req.PurchasePromoStart, &in.PurchasePromo.Start},
		{req.PurchasePromoEnd, &in.PurchasePromo.End},
		{req.TransferPromoStart, &in.TransferPromo.Start},
		{req.TransferPromoEnd, &in.TransferPromo.End},
	}
	for _, f := range dates {
		if f.value == "" {
			*f.dst = ledger.Date{}
			continue
		}
		d, err := ledger.ParseDate(f.value)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var cfg *ledger.ConfigError
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &cfg):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, ledger.ErrEntryLocked):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
