package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearth/debt-engine/ledger"
	"github.com/hearth/debt-engine/store/memory"
)

// =============================================================================
// DATE & WINDOW TESTS
// =============================================================================

func TestDate_WithDay_ClampsToMonthEnd(t *testing.T) {
	feb := ledger.NewDate(2026, time.February, 10)
	assert.Equal(t, "2026-02-28", feb.WithDay(31).String())

	leapFeb := ledger.NewDate(2024, time.February, 10)
	assert.Equal(t, "2024-02-29", leapFeb.WithDay(31).String())

	jan := ledger.NewDate(2026, time.January, 5)
	assert.Equal(t, "2026-01-15", jan.WithDay(15).String())
}

func TestDate_AddMonths_EndOfMonth(t *testing.T) {
	// time.AddDate normalizes Jan 31 + 1 month to Mar 3; callers re-anchor
	// with WithDay, which is what the engine does between periods.
	d := ledger.NewDate(2026, time.January, 31)
	next := d.AddMonths(1).WithDay(31)
	assert.Equal(t, "2026-03-31", next.String())
}

func TestWindow_Contains_InclusiveBothEnds(t *testing.T) {
	w := ledger.Window{
		Start: ledger.NewDate(2026, time.January, 1),
		End:   ledger.NewDate(2026, time.June, 30),
	}

	assert.True(t, w.Contains(ledger.NewDate(2026, time.January, 1)), "start day is inside")
	assert.True(t, w.Contains(ledger.NewDate(2026, time.June, 30)), "end day is inside")
	assert.True(t, w.Contains(ledger.NewDate(2026, time.March, 15)))
	assert.False(t, w.Contains(ledger.NewDate(2025, time.December, 31)))
	assert.False(t, w.Contains(ledger.NewDate(2026, time.July, 1)))
}

func TestWindow_OpenLeft_And_ZeroWindow(t *testing.T) {
	openLeft := ledger.Window{End: ledger.NewDate(2026, time.June, 30)}
	assert.True(t, openLeft.Contains(ledger.NewDate(2020, time.January, 1)), "zero start is open on the left")

	var zero ledger.Window
	assert.False(t, zero.Contains(ledger.NewDate(2026, time.January, 1)), "zero window contains nothing")
	assert.True(t, zero.Valid())
}

// =============================================================================
// INSTRUMENT POLICY TESTS
// =============================================================================

func TestRateFor_PromotionalWindowForcesZero(t *testing.T) {
	in := &ledger.Instrument{
		PeriodicRate: ledger.MustDecimal("2.00"),
		PurchasePromo: ledger.Window{
			Start: ledger.NewDate(2026, time.January, 1),
			End:   ledger.NewDate(2026, time.June, 30),
		},
	}

	rate, promo := in.RateFor(ledger.NewDate(2026, time.March, 1))
	assert.True(t, rate.IsZero())
	assert.True(t, promo)

	// Last promo day still counts
	rate, promo = in.RateFor(ledger.NewDate(2026, time.June, 30))
	assert.True(t, rate.IsZero())
	assert.True(t, promo)

	// Day after the window, full rate
	rate, promo = in.RateFor(ledger.NewDate(2026, time.July, 1))
	assert.True(t, rate.Equal(ledger.MustDecimal("2.00")))
	assert.False(t, promo)
}

func TestPaymentFor_FixedAmountCappedAtOwed(t *testing.T) {
	in := &ledger.Instrument{FixedPayment: ledger.MustDecimal("200")}

	// Owes more than the fixed payment
	p := in.PaymentFor(ledger.MustDecimal("-510"))
	assert.True(t, p.Equal(ledger.MustDecimal("200")), "got %s", p)

	// Owes less: payment never exceeds the balance
	p = in.PaymentFor(ledger.MustDecimal("-50"))
	assert.True(t, p.Equal(ledger.MustDecimal("50")), "got %s", p)

	// Nothing owed
	assert.True(t, in.PaymentFor(decimal.Zero).IsZero())
	assert.True(t, in.PaymentFor(ledger.MustDecimal("100")).IsZero())
}

func TestPaymentFor_MinimumPercent(t *testing.T) {
	in := &ledger.Instrument{MinPaymentPercent: ledger.MustDecimal("2.5")}

	p := in.PaymentFor(ledger.MustDecimal("-510"))
	assert.True(t, p.Equal(ledger.MustDecimal("12.75")), "got %s", p)
}

func TestCanProject_HalfConfiguredIsSilentNoOp(t *testing.T) {
	// Revolving without a payment policy
	in := &ledger.Instrument{
		Kind:         ledger.KindRevolving,
		Active:       true,
		StatementDay: 1,
	}
	assert.False(t, in.CanProject())

	in.FixedPayment = ledger.MustDecimal("100")
	assert.True(t, in.CanProject())

	in.Active = false
	assert.False(t, in.CanProject(), "inactive instruments never project")

	// Installment without a term
	loan := &ledger.Instrument{
		Kind:         ledger.KindInstallment,
		Active:       true,
		StartDate:    ledger.NewDate(2026, time.January, 10),
		FixedPayment: ledger.MustDecimal("100"),
	}
	assert.False(t, loan.CanProject())

	loan.TermMonths = 12
	assert.True(t, loan.CanProject())
}

func TestInstrumentValidate(t *testing.T) {
	in := &ledger.Instrument{
		Name:         "Rewards Card",
		Kind:         ledger.KindRevolving,
		StatementDay: 31,
	}
	err := in.Validate()
	require.Error(t, err)
	var cfg *ledger.ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "statement_day", cfg.Field)

	in.StatementDay = 15
	assert.NoError(t, in.Validate())
}

// =============================================================================
// UPDATE VALUE OBJECT TESTS
// =============================================================================

func TestEntryUpdate_SignConventionEnforced(t *testing.T) {
	neg := ledger.MustDecimal("-10")
	pos := ledger.MustDecimal("10")

	err := ledger.EntryUpdate{Amount: &neg}.Validate(ledger.KindPayment)
	assert.Error(t, err, "payments must be positive")

	err = ledger.EntryUpdate{Amount: &pos}.Validate(ledger.KindInterest)
	assert.Error(t, err, "interest must not be positive")

	assert.NoError(t, ledger.EntryUpdate{Amount: &pos}.Validate(ledger.KindPayment))
	assert.NoError(t, ledger.EntryUpdate{Amount: &neg}.Validate(ledger.KindPurchase))
}

func TestEntryUpdate_PromotesProvenance(t *testing.T) {
	// GIVEN: A generated payment
	// WHEN: The user edits its amount
	// THEN: Provenance becomes user_edited so regeneration preserves it

	e := &ledger.Entry{
		Kind:       ledger.KindPayment,
		Amount:     ledger.MustDecimal("200"),
		Provenance: ledger.ProvGenerated,
	}

	amount := ledger.MustDecimal("250")
	changed := ledger.EntryUpdate{Amount: &amount}.Apply(e)

	assert.True(t, changed)
	assert.Equal(t, ledger.ProvUserEdited, e.Provenance)
	assert.True(t, e.Amount.Equal(ledger.MustDecimal("250")))
}

func TestEntryUpdate_NoChangeKeepsProvenance(t *testing.T) {
	e := &ledger.Entry{
		Kind:       ledger.KindPayment,
		Amount:     ledger.MustDecimal("200"),
		Provenance: ledger.ProvGenerated,
	}

	same := ledger.MustDecimal("200.00")
	changed := ledger.EntryUpdate{Amount: &same}.Apply(e)

	assert.False(t, changed)
	assert.Equal(t, ledger.ProvGenerated, e.Provenance)
}

func TestEntryUpdate_LockIsSticky(t *testing.T) {
	e := &ledger.Entry{Kind: ledger.KindPayment, Provenance: ledger.ProvGenerated}

	changed := ledger.EntryUpdate{Lock: true}.Apply(e)
	assert.True(t, changed)
	assert.Equal(t, ledger.ProvLocked, e.Provenance)
	assert.False(t, e.Regenerable())
}

// =============================================================================
// BALANCE REPLAY TESTS
// =============================================================================

func seedEntries(t *testing.T, s ledger.Store, id ledger.InstrumentID, entries ...ledger.Entry) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range entries {
		e := entries[i]
		e.InstrumentID = id
		if e.ID == "" {
			e.ID = ledger.EntryID(ledger.NewID())
		}
		e.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.InsertEntry(ctx, &e))
	}
}

func newCardFixture(t *testing.T, s ledger.Store) *ledger.Instrument {
	t.Helper()
	in := &ledger.Instrument{
		ID:           ledger.InstrumentID(ledger.NewID()),
		Name:         "Everyday Card",
		Kind:         ledger.KindRevolving,
		PeriodicRate: ledger.MustDecimal("2.00"),
		CreditLimit:  ledger.MustDecimal("3000"),
		StatementDay: 1,
		FixedPayment: ledger.MustDecimal("200"),
		Active:       true,
	}
	require.NoError(t, s.SaveInstrument(context.Background(), in))
	return in
}

func TestRecalculate_ReplaysRunningBalances(t *testing.T) {
	// GIVEN: A card with a paid purchase, an unpaid interest charge and a
	//        scheduled payment
	// WHEN:  Recalculate replays the ledger
	// THEN:  Running balances accumulate in date order, CurrentBalance covers
	//        paid entries only and ProjectedBalance covers everything

	ctx := context.Background()
	s := memory.New()
	in := newCardFixture(t, s)

	seedEntries(t, s, in.ID,
		ledger.Entry{
			Date: ledger.NewDate(2026, time.January, 10), Kind: ledger.KindPurchase,
			Amount: ledger.MustDecimal("-500"), Paid: true, Provenance: ledger.ProvLocked,
		},
		ledger.Entry{
			Date: ledger.NewDate(2026, time.February, 1), Kind: ledger.KindInterest,
			Amount: ledger.MustDecimal("-10"), Provenance: ledger.ProvGenerated,
		},
		ledger.Entry{
			Date: ledger.NewDate(2026, time.February, 15), Kind: ledger.KindPayment,
			Amount: ledger.MustDecimal("200"), Provenance: ledger.ProvGenerated,
		},
	)

	updated, err := ledger.Recalculate(ctx, s, in.ID)
	require.NoError(t, err)

	assert.True(t, updated.CurrentBalance.Equal(ledger.MustDecimal("-500")), "got %s", updated.CurrentBalance)
	assert.True(t, updated.ProjectedBalance.Equal(ledger.MustDecimal("-310")), "got %s", updated.ProjectedBalance)
	assert.True(t, updated.AvailableCredit.Equal(ledger.MustDecimal("2500")), "got %s", updated.AvailableCredit)

	entries, err := s.EntriesFor(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].RunningBalance.Equal(ledger.MustDecimal("-500")))
	assert.True(t, entries[1].RunningBalance.Equal(ledger.MustDecimal("-510")))
	assert.True(t, entries[2].RunningBalance.Equal(ledger.MustDecimal("-310")))
}

func TestOpeningBalance_StrictlyBeforeDate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	in := newCardFixture(t, s)

	statement := ledger.NewDate(2026, time.February, 1)
	seedEntries(t, s, in.ID,
		ledger.Entry{
			Date: ledger.NewDate(2026, time.January, 10), Kind: ledger.KindPurchase,
			Amount: ledger.MustDecimal("-500"), Paid: true, Provenance: ledger.ProvLocked,
		},
		ledger.Entry{
			Date: statement, Kind: ledger.KindInterest,
			Amount: ledger.MustDecimal("-10"), Provenance: ledger.ProvGenerated,
		},
	)

	opening, err := ledger.OpeningBalance(ctx, s, in.ID, statement)
	require.NoError(t, err)
	assert.True(t, opening.Equal(ledger.MustDecimal("-500")), "same-day interest excluded, got %s", opening)

	through, err := ledger.BalanceThrough(ctx, s, in.ID, statement)
	require.NoError(t, err)
	assert.True(t, through.Equal(ledger.MustDecimal("-510")), "same-day interest included, got %s", through)
}

func TestStats_SplitsInterestAndPrincipal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	in := newCardFixture(t, s)

	seedEntries(t, s, in.ID,
		ledger.Entry{
			Date: ledger.NewDate(2026, time.January, 10), Kind: ledger.KindPurchase,
			Amount: ledger.MustDecimal("-500"), Paid: true, Provenance: ledger.ProvLocked,
		},
		ledger.Entry{
			Date: ledger.NewDate(2026, time.February, 1), Kind: ledger.KindInterest,
			Amount: ledger.MustDecimal("-10"), Provenance: ledger.ProvGenerated,
		},
		ledger.Entry{
			Date: ledger.NewDate(2026, time.February, 15), Kind: ledger.KindPayment,
			Amount: ledger.MustDecimal("200"), Paid: true, Provenance: ledger.ProvLocked,
		},
	)
	_, err := ledger.Recalculate(ctx, s, in.ID)
	require.NoError(t, err)

	st, err := ledger.Stats(ctx, s, in.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, st.TotalEntries)
	assert.Equal(t, 2, st.PaidCount)
	assert.Equal(t, 1, st.UnpaidCount)
	assert.True(t, st.InterestScheduled.Equal(ledger.MustDecimal("10")))
	assert.True(t, st.InterestRemaining.Equal(ledger.MustDecimal("10")))
	assert.True(t, st.PaymentsPaid.Equal(ledger.MustDecimal("200")))
	assert.True(t, st.PrincipalPaid.Equal(ledger.MustDecimal("200")), "paid interest is zero, got %s", st.PrincipalPaid)
}

// =============================================================================
// MONEY HELPER TESTS
// =============================================================================

func TestFormat_DisplaysCurrency(t *testing.T) {
	assert.Equal(t, "£1,234.56", ledger.Format(ledger.MustDecimal("1234.56"), "GBP"))
	assert.Equal(t, "-£10.00", ledger.Format(ledger.MustDecimal("-10"), "GBP"))
	assert.Equal(t, "£0.00", ledger.Format(ledger.MustDecimal("0"), "ZZZ"), "unknown code falls back to GBP")
}

func TestPercent(t *testing.T) {
	assert.True(t, ledger.Percent(ledger.MustDecimal("2")).Equal(ledger.MustDecimal("0.02")))
}
