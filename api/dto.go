/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as decimal strings ("-510.00") to avoid float rounding in
  transit. Responses additionally carry a display-formatted string in the
  configured currency.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/hearth/debt-engine/ledger"
)

// =============================================================================
// RESPONSE DTOs
// =============================================================================

// InstrumentDTO is the API representation of a debt instrument.
type InstrumentDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`

	AnnualRate   string `json:"annual_rate"`
	PeriodicRate string `json:"periodic_rate"`

	CreditLimit string `json:"credit_limit,omitempty"`
	Principal   string `json:"principal,omitempty"`

	CurrentBalance    string `json:"current_balance"`
	ProjectedBalance  string `json:"projected_balance"`
	AvailableCredit   string `json:"available_credit,omitempty"`
	CurrentDisplay    string `json:"current_balance_display"`
	ProjectedDisplay  string `json:"projected_balance_display"`

	StatementDay int    `json:"statement_day,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	TermMonths   int    `json:"term_months,omitempty"`

	FixedPayment      string `json:"fixed_payment,omitempty"`
	MinPaymentPercent string `json:"min_payment_percent,omitempty"`

	PurchasePromoStart string `json:"purchase_promo_start,omitempty"`
	PurchasePromoEnd   string `json:"purchase_promo_end,omitempty"`
	TransferPromoStart string `json:"transfer_promo_start,omitempty"`
	TransferPromoEnd   string `json:"transfer_promo_end,omitempty"`

	SettlementAccountID string `json:"settlement_account_id,omitempty"`
	Active              bool   `json:"active"`
}

// EntryDTO is the API representation of a ledger entry.
type EntryDTO struct {
	ID           string `json:"id"`
	InstrumentID string `json:"instrument_id"`
	Date         string `json:"date"`
	Period       int    `json:"period"`
	Kind         string `json:"kind"`

	Amount         string `json:"amount"`
	AmountDisplay  string `json:"amount_display"`
	RunningBalance string `json:"running_balance"`

	AppliedRate string `json:"applied_rate,omitempty"`
	Promotional bool   `json:"promotional,omitempty"`

	Paid       bool   `json:"paid"`
	Provenance string `json:"provenance"`

	StatementID string `json:"statement_id,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// ExternalEntryDTO is the API representation of a bank-account entry.
type ExternalEntryDTO struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	InstrumentID string `json:"instrument_id"`
	EntryID      string `json:"entry_id,omitempty"`
	Date         string `json:"date"`

	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`

	Description string `json:"description,omitempty"`
	Paid        bool   `json:"paid"`
	Provenance  string `json:"provenance"`
}

// StatisticsDTO summarizes an instrument's ledger for reporting views.
type StatisticsDTO struct {
	InstrumentID string `json:"instrument_id"`
	TotalEntries int    `json:"total_entries"`
	PaidCount    int    `json:"paid_count"`
	UnpaidCount  int    `json:"unpaid_count"`

	InterestScheduled string `json:"interest_scheduled"`
	InterestPaid      string `json:"interest_paid"`
	InterestRemaining string `json:"interest_remaining"`

	PaymentsScheduled string `json:"payments_scheduled"`
	PaymentsPaid      string `json:"payments_paid"`
	PaymentsRemaining string `json:"payments_remaining"`

	PrincipalScheduled string `json:"principal_scheduled"`
	PrincipalPaid      string `json:"principal_paid"`
	PrincipalRemaining string `json:"principal_remaining"`

	CurrentBalance   string `json:"current_balance"`
	ProjectedBalance string `json:"projected_balance"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// InstrumentRequest creates or replaces instrument configuration. Cached
// balances are never accepted from clients.
type InstrumentRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`

	AnnualRate   string `json:"annual_rate"`
	PeriodicRate string `json:"periodic_rate"`

	CreditLimit string `json:"credit_limit"`
	Principal   string `json:"principal"`

	StatementDay int    `json:"statement_day"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	TermMonths   int    `json:"term_months"`

	FixedPayment      string `json:"fixed_payment"`
	MinPaymentPercent string `json:"min_payment_percent"`

	PurchasePromoStart string `json:"purchase_promo_start"`
	PurchasePromoEnd   string `json:"purchase_promo_end"`
	TransferPromoStart string `json:"transfer_promo_start"`
	TransferPromoEnd   string `json:"transfer_promo_end"`

	SettlementAccountID string `json:"settlement_account_id"`
	Active              *bool  `json:"active"`
}

// PurchaseRequest captures a manual charge against an instrument.
type PurchaseRequest struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// EntryUpdateRequest edits a ledger entry. Omitted fields are untouched.
type EntryUpdateRequest struct {
	Date        *string `json:"date"`
	Amount      *string `json:"amount"`
	Paid        *bool   `json:"paid"`
	Description *string `json:"description"`
	Lock        bool    `json:"lock"`
}

// ExternalUpdateRequest edits a bank-account entry.
type ExternalUpdateRequest struct {
	Date        *string `json:"date"`
	Amount      *string `json:"amount"`
	Paid        *bool   `json:"paid"`
	Description *string `json:"description"`
}

// RegenerateRequest configures a generation or regeneration run.
type RegenerateRequest struct {
	Start             string `json:"start"`
	End               string `json:"end"`
	PaymentOffsetDays int    `json:"payment_offset_days"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (h *Handler) instrumentDTO(in *ledger.Instrument) InstrumentDTO {
	return InstrumentDTO{
		ID:                  string(in.ID),
		Name:                in.Name,
		Kind:                string(in.Kind),
		AnnualRate:          in.AnnualRate.String(),
		PeriodicRate:        in.PeriodicRate.String(),
		CreditLimit:         zeroBlank(in.CreditLimit),
		Principal:           zeroBlank(in.Principal),
		CurrentBalance:      in.CurrentBalance.String(),
		ProjectedBalance:    in.ProjectedBalance.String(),
		AvailableCredit:     zeroBlank(in.AvailableCredit),
		CurrentDisplay:      ledger.Format(in.CurrentBalance, h.Currency),
		ProjectedDisplay:    ledger.Format(in.ProjectedBalance, h.Currency),
		StatementDay:        in.StatementDay,
		StartDate:           dateString(in.StartDate),
		EndDate:             dateString(in.EndDate),
		TermMonths:          in.TermMonths,
		FixedPayment:        zeroBlank(in.FixedPayment),
		MinPaymentPercent:   zeroBlank(in.MinPaymentPercent),
		PurchasePromoStart:  dateString(in.PurchasePromo.Start),
		PurchasePromoEnd:    dateString(in.PurchasePromo.End),
		TransferPromoStart:  dateString(in.TransferPromo.Start),
		TransferPromoEnd:    dateString(in.TransferPromo.End),
		SettlementAccountID: string(in.SettlementAccountID),
		Active:              in.Active,
	}
}

func (h *Handler) entryDTO(e *ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:             string(e.ID),
		InstrumentID:   string(e.InstrumentID),
		Date:           e.Date.String(),
		Period:         e.Period,
		Kind:           string(e.Kind),
		Amount:         e.Amount.String(),
		AmountDisplay:  ledger.Format(e.Amount, h.Currency),
		RunningBalance: e.RunningBalance.String(),
		Promotional:    e.Promotional,
		Paid:           e.Paid,
		Provenance:     string(e.Provenance),
		StatementID:    string(e.StatementID),
		ExternalID:     string(e.ExternalID),
		Description:    e.Description,
	}
	if e.Kind == ledger.KindInterest {
		dto.AppliedRate = e.AppliedRate.String()
	}
	return dto
}

func (h *Handler) externalDTO(x *ledger.ExternalEntry) ExternalEntryDTO {
	return ExternalEntryDTO{
		ID:            string(x.ID),
		AccountID:     string(x.AccountID),
		InstrumentID:  string(x.InstrumentID),
		EntryID:       string(x.EntryID),
		Date:          x.Date.String(),
		Amount:        x.Amount.String(),
		AmountDisplay: ledger.Format(x.Amount, h.Currency),
		Description:   x.Description,
		Paid:          x.Paid,
		Provenance:    string(x.Provenance),
	}
}

func statisticsDTO(st *ledger.Statistics) StatisticsDTO {
	return StatisticsDTO{
		InstrumentID:       string(st.InstrumentID),
		TotalEntries:       st.TotalEntries,
		PaidCount:          st.PaidCount,
		UnpaidCount:        st.UnpaidCount,
		InterestScheduled:  st.InterestScheduled.String(),
		InterestPaid:       st.InterestPaid.String(),
		InterestRemaining:  st.InterestRemaining.String(),
		PaymentsScheduled:  st.PaymentsScheduled.String(),
		PaymentsPaid:       st.PaymentsPaid.String(),
		PaymentsRemaining:  st.PaymentsRemaining.String(),
		PrincipalScheduled: st.PrincipalScheduled.String(),
		PrincipalPaid:      st.PrincipalPaid.String(),
		PrincipalRemaining: st.PrincipalRemaining.String(),
		CurrentBalance:     st.CurrentBalance.String(),
		ProjectedBalance:   st.ProjectedBalance.String(),
	}
}

func dateString(d ledger.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func zeroBlank(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
