package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EXTERNAL ENTRY - Mirrored bank-account transaction
// =============================================================================

// ExternalEntry mirrors a Payment entry into the bank-account ledger when the
// instrument has a default settlement account. The pair is linked 1:1 via
// mutual foreign keys, and the amount sign is inverted relative to the entry
// it mirrors: the payment reduces debt (positive), the external entry is
// money leaving the account (negative).
//
// External entries are created and destroyed only through the sync adapter,
// never by the projection directly.
type ExternalEntry struct {
	ID           ExternalEntryID
	AccountID    AccountID
	InstrumentID InstrumentID

	// EntryID is the back-link to the Payment entry this record mirrors.
	// Cleared by Unlink before either side is deleted.
	EntryID EntryID

	Date        Date
	Amount      decimal.Decimal
	Description string
	Paid        bool
	Provenance  Provenance
	CreatedAt   time.Time
}
