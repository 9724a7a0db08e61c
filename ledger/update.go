package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// UPDATE VALUE OBJECTS - Explicit, validated edits per entry kind
// =============================================================================

// EntryUpdate describes an edit to a ledger entry. Nil fields are left
// untouched. Edits that change substance promote the entry's provenance to
// UserEdited so regeneration will no longer replace it; Locked entries keep
// their provenance.
type EntryUpdate struct {
	Date        *Date
	Amount      *decimal.Decimal
	Paid        *bool
	Description *string

	// Lock promotes the entry to Locked provenance (manual confirmation).
	Lock bool
}

// Validate checks the update against the target entry's kind. The sign
// convention is enforced here: payments reduce debt, interest and purchases
// increase it.
func (u EntryUpdate) Validate(kind EntryKind) error {
	if u.Amount == nil {
		return nil
	}
	switch kind {
	case KindPayment:
		if u.Amount.IsNegative() {
			return &ConfigError{Field: "amount", Reason: "payment amounts must be positive"}
		}
	case KindInterest, KindPurchase:
		if u.Amount.IsPositive() {
			return &ConfigError{Field: "amount", Reason: "debit amounts must not be positive"}
		}
	default:
		return &ConfigError{Field: "kind", Reason: "unknown entry kind"}
	}
	return nil
}

// Apply mutates the entry in place and reports whether anything changed.
func (u EntryUpdate) Apply(e *Entry) bool {
	changed := false
	if u.Date != nil && !u.Date.Equal(e.Date) {
		e.Date = *u.Date
		changed = true
	}
	if u.Amount != nil && !u.Amount.Equal(e.Amount) {
		e.Amount = Round2(*u.Amount)
		changed = true
	}
	if u.Paid != nil && *u.Paid != e.Paid {
		e.Paid = *u.Paid
		changed = true
	}
	if u.Description != nil && *u.Description != e.Description {
		e.Description = *u.Description
		changed = true
	}
	if changed && e.Provenance == ProvGenerated {
		e.Provenance = ProvUserEdited
	}
	if u.Lock {
		e.Provenance = ProvLocked
		changed = true
	}
	return changed
}

// ExternalUpdate describes an edit to an external bank-account entry.
type ExternalUpdate struct {
	Date        *Date
	Amount      *decimal.Decimal
	Paid        *bool
	Description *string
}

// Apply mutates the external entry in place and reports whether anything
// changed.
func (u ExternalUpdate) Apply(x *ExternalEntry) bool {
	changed := false
	if u.Date != nil && !u.Date.Equal(x.Date) {
		x.Date = *u.Date
		changed = true
	}
	if u.Amount != nil && !u.Amount.Equal(x.Amount) {
		x.Amount = Round2(*u.Amount)
		changed = true
	}
	if u.Paid != nil && *u.Paid != x.Paid {
		x.Paid = *u.Paid
		changed = true
	}
	if u.Description != nil && *u.Description != x.Description {
		x.Description = *u.Description
		changed = true
	}
	if changed && x.Provenance == ProvGenerated {
		x.Provenance = ProvUserEdited
	}
	return changed
}
