package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATISTICS - Per-instrument summary for reporting views
// =============================================================================

// Statistics summarizes an instrument's ledger for reporting: entry counts by
// paid status and the interest/principal split, scheduled vs settled. All
// monetary figures are positive magnitudes.
type Statistics struct {
	InstrumentID InstrumentID
	TotalEntries int
	PaidCount    int
	UnpaidCount  int

	InterestScheduled decimal.Decimal
	InterestPaid      decimal.Decimal
	InterestRemaining decimal.Decimal

	PaymentsScheduled decimal.Decimal
	PaymentsPaid      decimal.Decimal
	PaymentsRemaining decimal.Decimal

	// Principal is what payments achieve net of interest.
	PrincipalScheduled decimal.Decimal
	PrincipalPaid      decimal.Decimal
	PrincipalRemaining decimal.Decimal

	CurrentBalance   decimal.Decimal
	ProjectedBalance decimal.Decimal
}

// Stats computes summary statistics from the instrument's full entry history.
func Stats(ctx context.Context, s Store, id InstrumentID) (*Statistics, error) {
	in, err := s.GetInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.EntriesFor(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &Statistics{
		InstrumentID:     id,
		CurrentBalance:   in.CurrentBalance,
		ProjectedBalance: in.ProjectedBalance,
	}

	for _, e := range entries {
		st.TotalEntries++
		if e.Paid {
			st.PaidCount++
		} else {
			st.UnpaidCount++
		}
		switch e.Kind {
		case KindInterest:
			amt := e.Amount.Abs()
			st.InterestScheduled = st.InterestScheduled.Add(amt)
			if e.Paid {
				st.InterestPaid = st.InterestPaid.Add(amt)
			} else {
				st.InterestRemaining = st.InterestRemaining.Add(amt)
			}
		case KindPayment:
			amt := e.Amount.Abs()
			st.PaymentsScheduled = st.PaymentsScheduled.Add(amt)
			if e.Paid {
				st.PaymentsPaid = st.PaymentsPaid.Add(amt)
			} else {
				st.PaymentsRemaining = st.PaymentsRemaining.Add(amt)
			}
		}
	}

	st.PrincipalScheduled = Round2(st.PaymentsScheduled.Sub(st.InterestScheduled))
	st.PrincipalPaid = Round2(st.PaymentsPaid.Sub(st.InterestPaid))
	st.PrincipalRemaining = Round2(st.PaymentsRemaining.Sub(st.InterestRemaining))
	return st, nil
}
