/*
regenerate.go - Per-period state machine for revolving instruments

Each statement period is classified by what already exists in the ledger and
handled by exactly one branch:

  nothing exists                 -> project the full period
  payment locked or user-edited  -> skip the whole period
  statement exists, no payment   -> patch the payment from the recorded balance
  generated chain, extend mode   -> keep it
  generated chain, replace mode  -> delete and rebuild; a locked statement
                                    keeps its place and only its payment is
                                    regenerated

Once the balance clears, remaining periods are swept: stale generated chains
from earlier runs are removed, anything the user touched survives.
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hearth/debt-engine/ledger"
)

func (e *Engine) runRevolving(ctx context.Context, s ledger.Store, in *ledger.Instrument, opts Options, res *Result) error {
	date := firstStatementDate(opts.Start, in.StatementDay)
	period, err := nextPeriod(ctx, s, in.ID, date)
	if err != nil {
		return err
	}

	cleared := false
	for date.BeforeOrEqual(opts.End) {
		interest, err := s.FindEntryOn(ctx, in.ID, date, ledger.KindInterest)
		if err != nil {
			return err
		}
		var payment *ledger.Entry
		if interest != nil {
			payment, err = s.FindPaymentForStatement(ctx, in.ID, interest.ID)
			if err != nil {
				return err
			}
		}

		if cleared {
			if err := e.sweepPeriod(ctx, s, interest, payment, res); err != nil {
				return err
			}
			date = date.AddMonths(1).WithDay(in.StatementDay)
			continue
		}

		switch {
		case interest == nil:
			projected, err := e.projectStatement(ctx, s, in, date, period, opts.PaymentOffsetDays, res)
			if err != nil {
				return err
			}
			if !projected {
				cleared = true
				continue // re-enter this period through the sweep branch
			}
			period++

		case payment != nil && !payment.Regenerable():
			// A confirmed or hand-edited payment anchors the whole period.
			res.Skipped++
			period = interest.Period + 1

		case payment == nil:
			// Statement exists but its payment is gone. When both the mode and
			// the statement allow it, rebuild the period; otherwise patch the
			// payment back in from the recorded statement balance.
			if opts.Replace && interest.Regenerable() {
				if err := e.rebuildPeriod(ctx, s, in, interest, nil, opts.PaymentOffsetDays, res); err != nil {
					return err
				}
			} else if err := e.patchPayment(ctx, s, in, interest, opts.PaymentOffsetDays, res); err != nil {
				return err
			}
			period = interest.Period + 1

		default:
			// A statement with a generated payment under it.
			switch {
			case !opts.Replace:
				res.Skipped++
			case interest.Regenerable():
				if err := e.rebuildPeriod(ctx, s, in, interest, payment, opts.PaymentOffsetDays, res); err != nil {
					return err
				}
			default:
				// The statement itself was locked or hand-edited and stays.
				// Only the payment is regenerated, relinked to it.
				if err := e.sync.RemovePayment(ctx, s, payment); err != nil {
					return err
				}
				res.Deleted++
				if err := e.patchPayment(ctx, s, in, interest, opts.PaymentOffsetDays, res); err != nil {
					return err
				}
			}
			period = interest.Period + 1
		}

		date = date.AddMonths(1).WithDay(in.StatementDay)
	}
	return nil
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// projectStatement generates one statement period from scratch: the interest
// entry, then the scheduled payment. Reports false when the opening balance
// shows nothing owed, which ends generation.
func (e *Engine) projectStatement(ctx context.Context, s ledger.Store, in *ledger.Instrument, date ledger.Date, period, offsetDays int, res *Result) (bool, error) {
	opening, err := ledger.OpeningBalance(ctx, s, in.ID, date)
	if err != nil {
		return false, err
	}
	if !opening.IsNegative() {
		res.ZeroBalance++
		return false, nil
	}

	rate, promo := in.RateFor(date)
	charge := ledger.Round2(opening.Abs().Mul(ledger.Percent(rate))).Neg()

	interest := &ledger.Entry{
		ID:           ledger.EntryID(ledger.NewID()),
		InstrumentID: in.ID,
		Date:         date,
		Period:       period,
		Kind:         ledger.KindInterest,
		Amount:       charge,
		AppliedRate:  rate,
		Promotional:  promo,
		Provenance:   ledger.ProvGenerated,
		Description:  "Interest",
		CreatedAt:    e.stamp(),
	}
	if err := s.InsertEntry(ctx, interest); err != nil {
		return false, err
	}
	res.Created++
	res.Statements++

	statementBalance := ledger.Round2(opening.Add(charge))
	return true, e.schedulePayment(ctx, s, in, interest, statementBalance, date.AddDays(offsetDays), res)
}

// rebuildPeriod deletes a generated chain and projects the period again.
// Reaching here with a locked statement or payment is a programming error in
// the caller's classification, so the entries' own provenance is re-checked.
func (e *Engine) rebuildPeriod(ctx context.Context, s ledger.Store, in *ledger.Instrument, interest, payment *ledger.Entry, offsetDays int, res *Result) error {
	if payment != nil {
		if !payment.Regenerable() {
			return ledger.ErrEntryLocked
		}
		if err := e.sync.RemovePayment(ctx, s, payment); err != nil {
			return err
		}
		res.Deleted++
	}
	if !interest.Regenerable() {
		return ledger.ErrEntryLocked
	}
	if err := s.DeleteEntry(ctx, interest.ID); err != nil {
		return err
	}
	res.Deleted++

	_, err := e.projectStatement(ctx, s, in, interest.Date, interest.Period, offsetDays, res)
	return err
}

// patchPayment restores a missing payment under an existing statement, using
// the recorded balance through the statement date. The statement itself is
// left untouched, so this works for locked statements too.
func (e *Engine) patchPayment(ctx context.Context, s ledger.Store, in *ledger.Instrument, interest *ledger.Entry, offsetDays int, res *Result) error {
	statementBalance, err := ledger.BalanceThrough(ctx, s, in.ID, interest.Date)
	if err != nil {
		return err
	}
	return e.schedulePayment(ctx, s, in, interest, statementBalance, interest.Date.AddDays(offsetDays), res)
}

// schedulePayment writes the payment for a statement balance and mirrors it
// into the bank ledger. No entry is written when nothing is owed. Sync
// failures are non-fatal; the payment stands on its own.
func (e *Engine) schedulePayment(ctx context.Context, s ledger.Store, in *ledger.Instrument, interest *ledger.Entry, statementBalance decimal.Decimal, due ledger.Date, res *Result) error {
	amount := in.PaymentFor(statementBalance)
	if !amount.IsPositive() {
		return nil
	}

	payment := &ledger.Entry{
		ID:           ledger.EntryID(ledger.NewID()),
		InstrumentID: in.ID,
		Date:         due,
		Period:       interest.Period,
		Kind:         ledger.KindPayment,
		Amount:       amount,
		Provenance:   ledger.ProvGenerated,
		StatementID:  interest.ID,
		Description:  "Payment",
		CreatedAt:    e.stamp(),
	}
	if err := s.InsertEntry(ctx, payment); err != nil {
		return err
	}
	res.Created++
	res.Payments++

	if _, err := e.sync.CreateForPayment(ctx, s, in, payment); err != nil && !isSyncFailure(err) {
		return err
	}
	return nil
}

// sweepPeriod removes a stale generated chain left over from an earlier run
// after the balance has cleared. Periods the user touched are preserved.
func (e *Engine) sweepPeriod(ctx context.Context, s ledger.Store, interest, payment *ledger.Entry, res *Result) error {
	if payment != nil {
		if !payment.Regenerable() {
			res.Skipped++
			return nil
		}
		if err := e.sync.RemovePayment(ctx, s, payment); err != nil {
			return err
		}
		res.Deleted++
	}
	if interest != nil {
		if !interest.Regenerable() {
			res.Skipped++
			return nil
		}
		if err := s.DeleteEntry(ctx, interest.ID); err != nil {
			return err
		}
		res.Deleted++
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// firstStatementDate returns the first statement date on or after start for
// the given day-of-month anchor.
func firstStatementDate(start ledger.Date, day int) ledger.Date {
	d := start.WithDay(day)
	if d.Before(start) {
		d = d.AddMonths(1).WithDay(day)
	}
	return d
}

// nextPeriod returns the sequence number for the first period generated at or
// after the cutoff, continuing from whatever history precedes it.
func nextPeriod(ctx context.Context, s ledger.Store, id ledger.InstrumentID, cutoff ledger.Date) (int, error) {
	entries, err := s.EntriesBefore(ctx, id, cutoff)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, e := range entries {
		if e.Period > highest {
			highest = e.Period
		}
	}
	return highest + 1, nil
}
