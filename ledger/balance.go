/*
balance.go - Running-balance replay

PURPOSE:
  The entry history is the source of truth; every balance is derived from it.
  Recalculate replays all entries for an instrument in (Date, ID) order,
  rewrites each entry's RunningBalance snapshot, and rebuilds the cached
  balance fields on the instrument itself.

  Two cached balances are maintained:
    CurrentBalance   - replay of PAID entries only: what the instrument
                       actually owes today, untouched by scheduled future
                       statements.
    ProjectedBalance - replay of everything, including generated future
                       entries: where the instrument is heading.

INVOCATION:
  Once after any regeneration run, and after every single-entry mutation
  outside the regeneration path (manual purchase capture, entry edits,
  deletions).
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// OpeningBalance sums the signed amounts of all entries dated strictly before
// the given date. Negative means debt is owed going into the period.
func OpeningBalance(ctx context.Context, s Store, id InstrumentID, date Date) (decimal.Decimal, error) {
	entries, err := s.EntriesBefore(ctx, id, date)
	if err != nil {
		return decimal.Zero, err
	}
	return sumAmounts(entries), nil
}

// BalanceThrough sums the signed amounts of all entries dated on or before
// the given date. Used for statement balances (interest posts on the
// statement date and is included).
func BalanceThrough(ctx context.Context, s Store, id InstrumentID, date Date) (decimal.Decimal, error) {
	entries, err := s.EntriesThrough(ctx, id, date)
	if err != nil {
		return decimal.Zero, err
	}
	return sumAmounts(entries), nil
}

func sumAmounts(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return Round2(total)
}

// Recalculate replays all entries for an instrument, rewriting running
// balances and the instrument's cached balance fields. Returns the updated
// instrument.
func Recalculate(ctx context.Context, s Store, id InstrumentID) (*Instrument, error) {
	in, err := s.GetInstrument(ctx, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.EntriesFor(ctx, id)
	if err != nil {
		return nil, err
	}

	running := decimal.Zero
	paid := decimal.Zero
	for i := range entries {
		e := &entries[i]
		running = Round2(running.Add(e.Amount))
		if e.Paid {
			paid = Round2(paid.Add(e.Amount))
		}
		if !e.RunningBalance.Equal(running) {
			e.RunningBalance = running
			if err := s.UpdateEntry(ctx, e); err != nil {
				return nil, err
			}
		}
	}

	in.CurrentBalance = paid
	in.ProjectedBalance = running
	if in.Kind == KindRevolving {
		in.AvailableCredit = Round2(in.CreditLimit.Sub(paid.Abs()))
	}
	if err := s.SaveInstrument(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}
