/*
Package engine projects debt instruments forward in time and keeps their
ledgers regenerable.

PURPOSE:
  This is the projection and regeneration core. Given an instrument and a
  date range, the engine walks statement periods forward, generating interest
  and payment entries, pairing payments with the external bank ledger, and
  re-running the whole simulation idempotently without disturbing entries a
  user has confirmed.

TWO ALGORITHMS:
  Revolving:   per period, interest on the opening balance (respecting
               promotional zero-rate windows), then a payment scheduled a
               configurable offset after the statement date.
  Installment: fixed monthly payment split into interest and principal until
               the balance amortizes to exactly zero.

IDEMPOTENCE:
  Running the controller twice with no intervening mutation produces an
  identical entry set. Every branch either reconstructs deterministically
  from inputs or explicitly preserves what already exists; locked entries
  are never touched.

UNIT OF WORK:
  One regeneration run for one instrument executes inside a single
  TxStore.WithTx. Failure anywhere rolls back everything for that
  instrument. Batch runs process instruments sequentially and independently.

SEE ALSO:
  - regenerate.go: revolving statement walk and the per-period state machine
  - amortize.go: installment schedule math
*/
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hearth/debt-engine/banksync"
	"github.com/hearth/debt-engine/ledger"
)

// DefaultPaymentOffsetDays is how long after the statement date a generated
// payment is scheduled.
const DefaultPaymentOffsetDays = 14

// DefaultHorizonYears bounds an open-ended run. Generation stops earlier the
// moment the balance clears.
const DefaultHorizonYears = 10

// Engine drives projection and regeneration for all instruments.
type Engine struct {
	store ledger.TxStore
	sync  *banksync.Adapter
	log   *slog.Logger

	// now is injectable for tests.
	now func() ledger.Date

	// last disambiguates same-nanosecond CreatedAt stamps so same-day
	// entries replay in insertion order.
	last time.Time
}

func New(store ledger.TxStore, sync *banksync.Adapter, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if sync == nil {
		sync = banksync.New(log)
	}
	return &Engine{store: store, sync: sync, log: log, now: ledger.Today}
}

// =============================================================================
// OPTIONS & RESULTS
// =============================================================================

// Options configures one regeneration run.
type Options struct {
	// Start of the run window. Zero value means today. Periods before Start
	// are never touched.
	Start ledger.Date

	// End of the run window. Zero value means Start plus the default horizon.
	End ledger.Date

	// PaymentOffsetDays is days between statement and scheduled payment for
	// revolving instruments. Zero means the default (14).
	PaymentOffsetDays int

	// Replace selects the mode. False = generate forward: existing periods
	// are kept, gaps are filled. True = regenerate: unlocked generated
	// chains inside the window are rebuilt from scratch.
	Replace bool
}

func (o Options) withDefaults(now ledger.Date) Options {
	if o.Start.IsZero() {
		o.Start = now
	}
	if o.End.IsZero() {
		o.End = o.Start.AddYears(DefaultHorizonYears)
	}
	if o.PaymentOffsetDays <= 0 {
		o.PaymentOffsetDays = DefaultPaymentOffsetDays
	}
	return o
}

// Result reports what one run did, so callers can surface a summary.
// "Nothing to do" (zero counts) is a normal outcome, never an error.
type Result struct {
	InstrumentID ledger.InstrumentID `json:"instrument_id"`
	Created      int                 `json:"created"`
	Deleted      int                 `json:"deleted"`
	Skipped      int                 `json:"skipped"`

	Statements  int `json:"statements"`
	Payments    int `json:"payments"`
	ZeroBalance int `json:"zero_balance_statements"`
}

// BatchResult aggregates a run across all active instruments.
type BatchResult struct {
	Processed int            `json:"processed"`
	Created   int            `json:"created"`
	Deleted   int            `json:"deleted"`
	Skipped   int            `json:"skipped"`
	Results   []Result       `json:"results"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

// BatchFailure records one instrument whose unit of work rolled back.
// It does not abort the rest of the batch.
type BatchFailure struct {
	InstrumentID ledger.InstrumentID `json:"instrument_id"`
	Error        string              `json:"error"`
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Run executes one projection/regeneration pass for a single instrument
// inside a single unit of work. An instrument that cannot be projected
// (missing rate, anchor, or payment policy) yields a zero-count Result and
// no error; callers check for zero-entry results.
func (e *Engine) Run(ctx context.Context, id ledger.InstrumentID, opts Options) (Result, error) {
	opts = opts.withDefaults(e.now())
	res := Result{InstrumentID: id}

	err := e.store.WithTx(ctx, func(s ledger.Store) error {
		in, err := s.GetInstrument(ctx, id)
		if err != nil {
			return err
		}
		if !in.CanProject() {
			return nil
		}

		switch in.Kind {
		case ledger.KindRevolving:
			err = e.runRevolving(ctx, s, in, opts, &res)
		case ledger.KindInstallment:
			err = e.runInstallment(ctx, s, in, opts, &res)
		default:
			return &ledger.ConfigError{Field: "kind", Reason: "unknown instrument kind"}
		}
		if err != nil {
			return err
		}

		_, err = ledger.Recalculate(ctx, s, id)
		return err
	})
	return res, err
}

// RunAll runs every active instrument sequentially, each in its own unit of
// work. A failure rolls back and is reported for that instrument only.
func (e *Engine) RunAll(ctx context.Context, opts Options) (BatchResult, error) {
	instruments, err := e.store.ListInstruments(ctx, true)
	if err != nil {
		return BatchResult{}, err
	}

	var batch BatchResult
	for _, in := range instruments {
		res, err := e.Run(ctx, in.ID, opts)
		batch.Processed++
		if err != nil {
			e.log.Warn("regeneration failed", "instrument", in.ID, "err", err)
			batch.Failures = append(batch.Failures, BatchFailure{InstrumentID: in.ID, Error: err.Error()})
			continue
		}
		batch.Created += res.Created
		batch.Deleted += res.Deleted
		batch.Skipped += res.Skipped
		batch.Results = append(batch.Results, res)
	}
	return batch, nil
}

// =============================================================================
// SINGLE-ENTRY OPERATIONS (outside the regeneration path)
// =============================================================================

// RecordPurchase captures a manual purchase/charge against an instrument and
// recalculates balances immediately.
func (e *Engine) RecordPurchase(ctx context.Context, id ledger.InstrumentID, date ledger.Date, amount decimal.Decimal, description string) (*ledger.Entry, error) {
	if !amount.IsNegative() {
		return nil, &ledger.ConfigError{Field: "amount", Reason: "purchases must be negative (they increase debt)"}
	}
	var entry *ledger.Entry
	err := e.store.WithTx(ctx, func(s ledger.Store) error {
		if _, err := s.GetInstrument(ctx, id); err != nil {
			return err
		}
		entry = &ledger.Entry{
			ID:           ledger.EntryID(ledger.NewID()),
			InstrumentID: id,
			Date:         date,
			Kind:         ledger.KindPurchase,
			Amount:       ledger.Round2(amount),
			Provenance:   ledger.ProvUserEdited,
			Description:  description,
			CreatedAt:    e.stamp(),
		}
		if err := s.InsertEntry(ctx, entry); err != nil {
			return err
		}
		_, err := ledger.Recalculate(ctx, s, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// EditEntry applies a validated update to a ledger entry, propagates payment
// edits to the paired external entry, and recalculates balances. Sync
// propagation failures are reported on the entry but do not roll anything
// back.
func (e *Engine) EditEntry(ctx context.Context, id ledger.EntryID, upd ledger.EntryUpdate) (*ledger.Entry, error) {
	var entry *ledger.Entry
	var syncErr error
	err := e.store.WithTx(ctx, func(s ledger.Store) error {
		var err error
		entry, err = s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if err := upd.Validate(entry.Kind); err != nil {
			return err
		}
		if !upd.Apply(entry) {
			return nil
		}
		if err := s.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		if entry.Kind == ledger.KindPayment {
			if _, perr := e.sync.PropagateFromPayment(ctx, s, entry); perr != nil {
				if !errors.Is(perr, ledger.ErrSyncFailed) {
					return perr
				}
				syncErr = perr
			}
		}
		_, err = ledger.Recalculate(ctx, s, entry.InstrumentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, syncErr
}

// EditExternal applies an update to a bank-account entry and propagates it
// back to the paired payment while that payment is unpaid.
func (e *Engine) EditExternal(ctx context.Context, id ledger.ExternalEntryID, upd ledger.ExternalUpdate) (*ledger.ExternalEntry, error) {
	var x *ledger.ExternalEntry
	var syncErr error
	err := e.store.WithTx(ctx, func(s ledger.Store) error {
		var err error
		x, err = s.GetExternal(ctx, id)
		if err != nil {
			return err
		}
		if !upd.Apply(x) {
			return nil
		}
		if err := s.UpdateExternal(ctx, x); err != nil {
			return err
		}
		payment, perr := e.sync.PropagateFromExternal(ctx, s, x)
		if perr != nil {
			if !errors.Is(perr, ledger.ErrSyncFailed) {
				return perr
			}
			syncErr = perr
		}
		if payment != nil {
			_, err = ledger.Recalculate(ctx, s, payment.InstrumentID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return x, syncErr
}

// RemoveEntry deletes a single entry outside the regeneration path. Payments
// take their paired external entry with them. Balances are recalculated.
func (e *Engine) RemoveEntry(ctx context.Context, id ledger.EntryID) error {
	return e.store.WithTx(ctx, func(s ledger.Store) error {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry.Kind == ledger.KindPayment {
			if err := e.sync.RemovePayment(ctx, s, entry); err != nil {
				return err
			}
		} else if err := s.DeleteEntry(ctx, entry.ID); err != nil {
			return err
		}
		_, err = ledger.Recalculate(ctx, s, entry.InstrumentID)
		return err
	})
}

// isSyncFailure reports whether an error is a non-fatal bank-ledger sync
// failure that should not roll back the primary mutation.
func isSyncFailure(err error) bool { return errors.Is(err, ledger.ErrSyncFailed) }

// stamp returns a strictly increasing creation timestamp so that entries
// written on the same day replay in insertion order.
func (e *Engine) stamp() time.Time {
	now := time.Now().UTC()
	if !now.After(e.last) {
		now = e.last.Add(time.Microsecond)
	}
	e.last = now
	return now
}
