/*
amortize.go - Installment (fixed-term loan) schedule generation

An installment instrument amortizes from a period-0 drawdown entry. Each
monthly period charges interest on the opening balance, then pays the fixed
payment, split implicitly into interest and principal by the running balance.
The schedule ends when the balance reaches exactly zero; the final payment is
clamped so it never overshoots, and any period landing on or after the
scheduled final date is forced to settle.

Periods fall monthly from StartDate, so the period number doubles as the
month offset. The same skip/patch/rebuild rules as revolving apply per
period; the drawdown itself is locked and survives every regeneration.
*/
package engine

import (
	"context"

	"github.com/hearth/debt-engine/ledger"
)

func (e *Engine) runInstallment(ctx context.Context, s ledger.Store, in *ledger.Instrument, opts Options, res *Result) error {
	if err := e.ensureDrawdown(ctx, s, in, res); err != nil {
		return err
	}

	final := in.FinalDate()
	cleared := false
	for k := 1; ; k++ {
		date := in.StartDate.AddMonths(k)
		if date.After(opts.End) {
			return nil
		}
		if date.Before(opts.Start) {
			continue
		}

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
			continue
		}

		settle := date.AfterOrEqual(final)
		switch {
		case interest == nil:
			projected, err := e.projectInstallmentPeriod(ctx, s, in, date, k, settle, res)
			if err != nil {
				return err
			}
			if !projected {
				cleared = true
			}

		case payment != nil && !payment.Regenerable():
			res.Skipped++

		case payment == nil:
			if opts.Replace && interest.Regenerable() {
				if err := e.rebuildInstallmentPeriod(ctx, s, in, interest, nil, settle, res); err != nil {
					return err
				}
			} else if err := e.patchInstallmentPayment(ctx, s, in, interest, res); err != nil {
				return err
			}

		default:
			switch {
			case !opts.Replace:
				res.Skipped++
			case interest.Regenerable():
				if err := e.rebuildInstallmentPeriod(ctx, s, in, interest, payment, settle, res); err != nil {
					return err
				}
			default:
				// Locked period record, generated payment: regenerate the
				// payment alone against the record that stays.
				if err := e.sync.RemovePayment(ctx, s, payment); err != nil {
					return err
				}
				res.Deleted++
				if err := e.patchInstallmentPayment(ctx, s, in, interest, res); err != nil {
					return err
				}
			}
		}
	}
}

// ensureDrawdown writes the period-0 drawdown entry the first time the loan
// is projected. It is locked and marked paid: the principal has actually been
// advanced, and regeneration must never rebuild it.
func (e *Engine) ensureDrawdown(ctx context.Context, s ledger.Store, in *ledger.Instrument, res *Result) error {
	existing, err := s.FindEntryOn(ctx, in.ID, in.StartDate, ledger.KindPurchase)
	if err != nil || existing != nil {
		return err
	}

	drawdown := &ledger.Entry{
		ID:           ledger.EntryID(ledger.NewID()),
		InstrumentID: in.ID,
		Date:         in.StartDate,
		Period:       0,
		Kind:         ledger.KindPurchase,
		Amount:       ledger.Round2(in.Principal.Neg()),
		Paid:         true,
		Provenance:   ledger.ProvLocked,
		Description:  "Loan drawdown",
		CreatedAt:    e.stamp(),
	}
	if err := s.InsertEntry(ctx, drawdown); err != nil {
		return err
	}
	res.Created++
	return nil
}

// projectInstallmentPeriod generates one amortization period. Reports false
// when the opening balance shows the loan already settled.
func (e *Engine) projectInstallmentPeriod(ctx context.Context, s ledger.Store, in *ledger.Instrument, date ledger.Date, period int, settle bool, res *Result) (bool, error) {
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
	amount := ledger.Round2(in.FixedPayment)

	owed := opening.Add(charge).Abs()
	if settle || amount.GreaterThan(owed) {
		amount = ledger.Round2(owed)
	}
	if amount.LessThan(charge.Abs()) {
		e.log.Warn("payment does not cover interest, balance will grow",
			"instrument", in.ID, "period", period, "date", date.String(),
			"payment", amount.String(), "interest", charge.Abs().String())
	}

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

	payment := &ledger.Entry{
		ID:           ledger.EntryID(ledger.NewID()),
		InstrumentID: in.ID,
		Date:         date,
		Period:       period,
		Kind:         ledger.KindPayment,
		Amount:       amount,
		Provenance:   ledger.ProvGenerated,
		StatementID:  interest.ID,
		Description:  "Loan payment",
		CreatedAt:    e.stamp(),
	}
	if err := s.InsertEntry(ctx, payment); err != nil {
		return false, err
	}
	res.Created++
	res.Payments++

	if _, err := e.sync.CreateForPayment(ctx, s, in, payment); err != nil && !isSyncFailure(err) {
		return false, err
	}
	return true, nil
}

// rebuildInstallmentPeriod deletes a generated chain and amortizes the period
// again.
func (e *Engine) rebuildInstallmentPeriod(ctx context.Context, s ledger.Store, in *ledger.Instrument, interest, payment *ledger.Entry, settle bool, res *Result) error {
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

	_, err := e.projectInstallmentPeriod(ctx, s, in, interest.Date, interest.Period, settle, res)
	return err
}

// patchInstallmentPayment restores a missing payment under an existing
// period without touching the interest entry.
func (e *Engine) patchInstallmentPayment(ctx context.Context, s ledger.Store, in *ledger.Instrument, interest *ledger.Entry, res *Result) error {
	balance, err := ledger.BalanceThrough(ctx, s, in.ID, interest.Date)
	if err != nil {
		return err
	}
	amount := in.PaymentFor(balance)
	if !amount.IsPositive() {
		return nil
	}

	payment := &ledger.Entry{
		ID:           ledger.EntryID(ledger.NewID()),
		InstrumentID: in.ID,
		Date:         interest.Date,
		Period:       interest.Period,
		Kind:         ledger.KindPayment,
		Amount:       amount,
		Provenance:   ledger.ProvGenerated,
		StatementID:  interest.ID,
		Description:  "Loan payment",
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
