/*
Package banksync keeps a Payment ledger entry and its paired external
bank-account entry consistent.

PAIRING RULES:
  - A pair exists only when the instrument has a default settlement account.
  - The external entry carries the inverted amount sign: the payment reduces
    debt (positive), the bank entry is money leaving the account (negative).
  - Edits to either unpaid side propagate to the other. Once a side is marked
    paid, propagation FROM the other side is suppressed - historical records
    are not silently rewritten.
  - Both sides are unlinked before either record is deleted, so the survivor
    never points at a deleted row.

FAILURE MODE:
  The two ledgers are a best-effort convenience link, not a single source of
  truth. Propagation failures are logged as warnings and reported to the
  caller wrapped in ledger.ErrSyncFailed; the primary ledger mutation that
  triggered them is never rolled back.
*/
package banksync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hearth/debt-engine/ledger"
)

// Adapter synchronizes Payment entries with external bank entries. All
// methods operate on the caller's unit-of-work Store.
type Adapter struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{log: log}
}

// =============================================================================
// CREATION
// =============================================================================

// CreateForPayment mirrors a Payment entry into the external ledger and
// stores the mutual link. No-op when the instrument has no settlement
// account. The returned error is always non-fatal (ErrSyncFailed-wrapped).
func (a *Adapter) CreateForPayment(ctx context.Context, s ledger.Store, in *ledger.Instrument, payment *ledger.Entry) (*ledger.ExternalEntry, error) {
	if in.SettlementAccountID == "" {
		return nil, nil
	}

	x := &ledger.ExternalEntry{
		ID:           ledger.ExternalEntryID(ledger.NewID()),
		AccountID:    in.SettlementAccountID,
		InstrumentID: in.ID,
		EntryID:      payment.ID,
		Date:         payment.Date,
		Amount:       payment.Amount.Neg(),
		Description:  "Payment to " + in.Name,
		Paid:         payment.Paid,
		Provenance:   ledger.ProvGenerated,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.InsertExternal(ctx, x); err != nil {
		return nil, a.report("create", payment.ID, x.ID, err)
	}

	payment.ExternalID = x.ID
	if err := s.UpdateEntry(ctx, payment); err != nil {
		// Orphaned mirror; remove it rather than leave a dangling half-link.
		_ = s.DeleteExternal(ctx, x.ID)
		payment.ExternalID = ""
		return nil, a.report("create", payment.ID, x.ID, err)
	}
	return x, nil
}

// =============================================================================
// EDIT PROPAGATION
// =============================================================================

// PropagateFromPayment pushes date, amount, and paid status from a Payment
// entry onto its paired external entry. Suppressed when the external side is
// already paid.
func (a *Adapter) PropagateFromPayment(ctx context.Context, s ledger.Store, payment *ledger.Entry) (*ledger.ExternalEntry, error) {
	if payment.ExternalID == "" {
		return nil, nil
	}
	x, err := s.GetExternal(ctx, payment.ExternalID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, nil
		}
		return nil, a.report("propagate", payment.ID, payment.ExternalID, err)
	}
	if x.Paid {
		return nil, nil
	}

	x.Date = payment.Date
	x.Amount = payment.Amount.Neg()
	x.Paid = payment.Paid
	if err := s.UpdateExternal(ctx, x); err != nil {
		return nil, a.report("propagate", payment.ID, x.ID, err)
	}
	return x, nil
}

// PropagateFromExternal pushes date, amount, and paid status from an external
// bank entry onto its paired Payment entry. Suppressed when the payment side
// is already paid. A successful propagation locks the payment: a real bank
// transaction is now attached and regeneration must leave it alone.
func (a *Adapter) PropagateFromExternal(ctx context.Context, s ledger.Store, x *ledger.ExternalEntry) (*ledger.Entry, error) {
	if x.EntryID == "" {
		return nil, nil
	}
	payment, err := s.GetEntry(ctx, x.EntryID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, nil
		}
		return nil, a.report("propagate", x.EntryID, x.ID, err)
	}
	if payment.Paid {
		return nil, nil
	}

	payment.Date = x.Date
	payment.Amount = x.Amount.Abs()
	payment.Paid = x.Paid
	payment.Provenance = ledger.ProvLocked
	if err := s.UpdateEntry(ctx, payment); err != nil {
		return nil, a.report("propagate", payment.ID, x.ID, err)
	}
	return payment, nil
}

// =============================================================================
// DELETION
// =============================================================================

// Unlink clears the mutual foreign keys between a Payment entry and its
// external entry without deleting either record.
func (a *Adapter) Unlink(ctx context.Context, s ledger.Store, payment *ledger.Entry) error {
	if payment.ExternalID == "" {
		return nil
	}
	x, err := s.GetExternal(ctx, payment.ExternalID)
	if err == nil {
		x.EntryID = ""
		if uerr := s.UpdateExternal(ctx, x); uerr != nil {
			return a.report("unlink", payment.ID, x.ID, uerr)
		}
	} else if !ledger.IsNotFound(err) {
		return a.report("unlink", payment.ID, payment.ExternalID, err)
	}

	externalID := payment.ExternalID
	payment.ExternalID = ""
	if err := s.UpdateEntry(ctx, payment); err != nil {
		return a.report("unlink", payment.ID, externalID, err)
	}
	return nil
}

// RemovePayment deletes a Payment entry and its paired external entry in the
// same operation. Both sides are unlinked first. Failure to remove the mirror
// is non-fatal and reported; failure to remove the payment itself is fatal.
func (a *Adapter) RemovePayment(ctx context.Context, s ledger.Store, payment *ledger.Entry) error {
	externalID := payment.ExternalID
	if err := a.Unlink(ctx, s, payment); err != nil {
		// Keep going: the primary deletion must still happen.
		a.log.Warn("unlink before delete failed",
			"entry", payment.ID, "external", externalID, "err", err)
	}
	if externalID != "" {
		if err := s.DeleteExternal(ctx, externalID); err != nil && !ledger.IsNotFound(err) {
			a.report("delete", payment.ID, externalID, err)
		}
	}
	return s.DeleteEntry(ctx, payment.ID)
}

// report logs a propagation failure and wraps it as non-fatal.
func (a *Adapter) report(op string, entryID ledger.EntryID, externalID ledger.ExternalEntryID, err error) error {
	serr := &ledger.SyncError{EntryID: entryID, ExternalID: externalID, Op: op, Err: err}
	a.log.Warn("ledger sync failure", "op", op, "entry", entryID, "external", externalID, "err", err)
	return serr
}
