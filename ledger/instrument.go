/*
instrument.go - Static configuration for a revolving or installment instrument

PURPOSE:
  An Instrument is the configuration the projection engine consumes: rates,
  promotional windows, payment policy, and the statement anchor. Cached
  balance fields live here too, but they are derived values - Recalculate
  rebuilds them from the entry history.

TWO KINDS:
  Revolving:   credit card. Anchored to a statement day-of-month; interest is
               charged on the opening balance each statement; the payment is
               either a fixed amount or a minimum-payment percentage.
  Installment: fixed-term loan. Anchored to StartDate; each period pays
               FixedPayment, split between interest and principal, until the
               balance amortizes to zero.

CONFIGURATION ERRORS:
  A half-configured instrument is not an error condition. CanProject() is the
  single gate: when it returns false the engine produces a zero-entry result
  and callers are expected to check for that, not for an exception.
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INSTRUMENT
// =============================================================================

type InstrumentKind string

const (
	KindRevolving   InstrumentKind = "revolving"
	KindInstallment InstrumentKind = "installment"
)

type Instrument struct {
	ID   InstrumentID
	Name string
	Kind InstrumentKind

	// Rates, stored as percentages (2.00 = 2% per period).
	AnnualRate   decimal.Decimal
	PeriodicRate decimal.Decimal

	// Revolving: credit limit. Installment: original principal.
	CreditLimit decimal.Decimal
	Principal   decimal.Decimal

	// Cached balances, rebuilt by Recalculate.
	// CurrentBalance reflects paid entries only; ProjectedBalance replays
	// everything, including scheduled future entries.
	CurrentBalance   decimal.Decimal
	ProjectedBalance decimal.Decimal
	AvailableCredit  decimal.Decimal

	// Statement anchor. Revolving: day of month (1-28). Installment: the
	// drawdown date; periods fall monthly from it.
	StatementDay int
	StartDate    Date
	EndDate      Date
	TermMonths   int

	// Payment policy: a fixed amount takes precedence; otherwise the minimum
	// payment percentage applies.
	FixedPayment      decimal.Decimal
	MinPaymentPercent decimal.Decimal

	// Zero-rate promotional windows, inclusive of both endpoints.
	PurchasePromo Window
	TransferPromo Window

	// Optional default settlement account. When set, generated payments are
	// mirrored into the external bank ledger by the sync adapter.
	SettlementAccountID AccountID

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RateFor returns the periodic rate applicable on a date and whether a
// promotional window forced it to zero.
//
// Only the purchase window is consulted. When both the purchase and
// balance-transfer windows are active the correct split is ambiguous for a
// mixed balance; the transfer window is stored and surfaced but deliberately
// not applied here, pending product clarification.
func (in *Instrument) RateFor(date Date) (rate decimal.Decimal, promotional bool) {
	if in.PurchasePromo.Contains(date) {
		return decimal.Zero, true
	}
	return in.PeriodicRate, false
}

// PaymentFor computes the scheduled payment for a statement balance.
// Returns zero when nothing is owed. The payment never exceeds the absolute
// statement balance.
func (in *Instrument) PaymentFor(statementBalance decimal.Decimal) decimal.Decimal {
	if !statementBalance.IsNegative() {
		return decimal.Zero
	}
	owed := statementBalance.Abs()
	if in.FixedPayment.IsPositive() {
		if in.FixedPayment.GreaterThan(owed) {
			return Round2(owed)
		}
		return Round2(in.FixedPayment)
	}
	return Round2(owed.Mul(Percent(in.MinPaymentPercent)))
}

// CanProject reports whether the instrument is configured well enough for
// projection to run. A false result makes projection a silent no-op.
func (in *Instrument) CanProject() bool {
	if !in.Active {
		return false
	}
	switch in.Kind {
	case KindRevolving:
		if in.StatementDay < 1 {
			return false
		}
		return in.FixedPayment.IsPositive() || in.MinPaymentPercent.IsPositive()
	case KindInstallment:
		if in.StartDate.IsZero() || !in.FixedPayment.IsPositive() {
			return false
		}
		return !in.FinalDate().IsZero()
	default:
		return false
	}
}

// FinalDate returns the scheduled last period of an installment instrument.
func (in *Instrument) FinalDate() Date {
	if !in.EndDate.IsZero() {
		return in.EndDate
	}
	if in.TermMonths > 0 {
		return in.StartDate.AddMonths(in.TermMonths)
	}
	return Date{}
}

// Validate checks configuration supplied through the CRUD surface.
func (in *Instrument) Validate() error {
	if in.Name == "" {
		return &ConfigError{Field: "name", Reason: "required"}
	}
	switch in.Kind {
	case KindRevolving:
		if in.StatementDay < 1 || in.StatementDay > 28 {
			return &ConfigError{Field: "statement_day", Reason: "must be 1-28"}
		}
		if in.CreditLimit.IsNegative() {
			return &ConfigError{Field: "credit_limit", Reason: "must not be negative"}
		}
	case KindInstallment:
		if in.StartDate.IsZero() {
			return &ConfigError{Field: "start_date", Reason: "required"}
		}
		if in.Principal.IsNegative() || in.Principal.IsZero() {
			return &ConfigError{Field: "principal", Reason: "must be positive"}
		}
		if in.EndDate.IsZero() && in.TermMonths <= 0 {
			return &ConfigError{Field: "term_months", Reason: "end date or term required"}
		}
	default:
		return &ConfigError{Field: "kind", Reason: "unknown instrument kind"}
	}
	if in.PeriodicRate.IsNegative() {
		return &ConfigError{Field: "periodic_rate", Reason: "must not be negative"}
	}
	if !in.PurchasePromo.Valid() {
		return &ConfigError{Field: "purchase_promo", Reason: "end before start"}
	}
	if !in.TransferPromo.Valid() {
		return &ConfigError{Field: "transfer_promo", Reason: "end before start"}
	}
	return nil
}
