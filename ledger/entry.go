/*
Package ledger provides the core data model for debt instruments.

PURPOSE:
  This package contains the types and invariants shared by every part of
  the engine: instruments (credit cards and loans), their ledger entries,
  the paired external bank-account entries, and the balance replay that
  derives every cached balance from the entry history.

KEY CONCEPTS IN THIS FILE (entry.go):
  - Entry: one dated record against an instrument (interest, payment, purchase)
  - EntryKind: what the entry represents
  - Provenance: who owns the entry (Generated, UserEdited, Locked)

SIGN CONVENTION (applies everywhere):
  - Negative amount -> money owed to the issuer (debt increases)
  - Positive amount -> payment or credit (debt decreases)
  Interest entries are stored negative. Payment entries are stored positive.
  The mirrored bank entry is stored negative (money leaving the account).

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all monetary values, 2dp currency rounding
  2. Replayability: running balances are always derivable from the entry set
  3. Explicit provenance: regeneration touches Generated entries only

SEE ALSO:
  - instrument.go: instrument configuration consumed by the engine
  - balance.go: running-balance replay
  - store.go: persistence interfaces
*/
package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type InstrumentID string
type ExternalEntryID string
type AccountID string

// NewID returns a fresh random identifier for any ledger record.
func NewID() string { return uuid.NewString() }

// =============================================================================
// ENTRY KIND
// =============================================================================

type EntryKind string

const (
	// KindInterest is a statement record: interest charged on the opening
	// balance. Written even when the charge is zero (promotional rate) so the
	// statement date and rate provenance are recorded.
	KindInterest EntryKind = "interest"

	// KindPayment reduces the owed balance. May be paired with an external
	// bank entry via ExternalID.
	KindPayment EntryKind = "payment"

	// KindPurchase increases the owed balance (spending, fees, the original
	// drawdown of an installment loan).
	KindPurchase EntryKind = "purchase"
)

// =============================================================================
// PROVENANCE
// =============================================================================

// Provenance records who owns an entry. It replaces the ambiguous
// locked-flag/statement-link boolean combinations of earlier designs with a
// single tagged state.
type Provenance string

const (
	// ProvGenerated entries were produced by the projection engine and may be
	// deleted and rebuilt by any regeneration run.
	ProvGenerated Provenance = "generated"

	// ProvUserEdited entries were modified by hand. Regeneration preserves
	// them; sync propagation still applies while unpaid.
	ProvUserEdited Provenance = "user_edited"

	// ProvLocked entries are immutable to regeneration under all
	// circumstances: confirmed payments, reconciled history, loan drawdowns.
	ProvLocked Provenance = "locked"
)

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one periodic record against an instrument.
//
// INVARIANT: RunningBalance(n) = RunningBalance(n-1) + Amount(n), replayed in
// (Date, ID) order. Recalculate enforces this after every batch of writes.
type Entry struct {
	ID           EntryID
	InstrumentID InstrumentID
	Date         Date
	Period       int // statement/amortization sequence number
	Kind         EntryKind

	// Signed amount. Negative increases the owed balance.
	Amount decimal.Decimal

	// Balance snapshot after this entry, maintained by Recalculate.
	RunningBalance decimal.Decimal

	// Interest provenance (Interest entries only).
	AppliedRate decimal.Decimal
	Promotional bool

	Paid       bool
	Provenance Provenance

	// StatementID links a Payment back to the Interest entry that scheduled it.
	StatementID EntryID

	// ExternalID links a Payment to its mirrored bank-account entry.
	ExternalID ExternalEntryID

	Description string
	CreatedAt   time.Time
}

// Regenerable reports whether the regeneration controller may delete or
// replace this entry. Locked and user-edited entries are preserved.
func (e Entry) Regenerable() bool { return e.Provenance == ProvGenerated }

// IncreasesDebt reports whether the entry makes the owed balance larger.
func (e Entry) IncreasesDebt() bool { return e.Amount.IsNegative() }

// SortEntries orders entries in replay order: (Date, CreatedAt, ID).
// CreatedAt stands in for insertion order within a day.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entryLess(entries[i], entries[j]) })
}

func entryLess(a, b Entry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
