/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  instruments:      Instrument configuration plus cached balances
  entries:          The instrument ledger (interest, payments, purchases)
  external_entries: Mirrored bank-account records paired with payments

MUTABILITY:
  Unlike an append-only audit ledger, entries support UPDATE and DELETE: the
  regeneration controller replaces generated chains wholesale and the sync
  adapter edits paired records in place. Provenance, carried in the row, is
  what protects user history.

ORDERING:
  Replay order is (date, created_at, id). created_at is stored at nanosecond
  precision; scanned result sets are re-sorted in Go so ordering never
  depends on string collation of timestamps.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WAL mode is enabled so readers do not
  block the single writer.

USAGE:
  store, err := sqlite.New("./data/debt.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hearth/debt-engine/ledger"
)

const timeLayout = time.RFC3339Nano

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive across calls and
	// serializes writes at the driver level.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Instruments (configuration + cached balances)
	CREATE TABLE IF NOT EXISTS instruments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		periodic_rate TEXT NOT NULL,
		credit_limit TEXT NOT NULL,
		principal TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		projected_balance TEXT NOT NULL,
		available_credit TEXT NOT NULL,
		statement_day INTEGER NOT NULL DEFAULT 0,
		start_date TEXT,
		end_date TEXT,
		term_months INTEGER NOT NULL DEFAULT 0,
		fixed_payment TEXT NOT NULL,
		min_payment_percent TEXT NOT NULL,
		purchase_promo_start TEXT,
		purchase_promo_end TEXT,
		transfer_promo_start TEXT,
		transfer_promo_end TEXT,
		settlement_account_id TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_instruments_active
		ON instruments(active);

	-- Ledger entries
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		instrument_id TEXT NOT NULL,
		date TEXT NOT NULL,
		period INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		running_balance TEXT NOT NULL,
		applied_rate TEXT NOT NULL,
		promotional BOOLEAN NOT NULL DEFAULT FALSE,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		provenance TEXT NOT NULL,
		statement_id TEXT,
		external_id TEXT,
		description TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance replay and period lookups (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_instrument_date
		ON entries(instrument_id, date);
	CREATE INDEX IF NOT EXISTS idx_entries_statement
		ON entries(statement_id) WHERE statement_id IS NOT NULL;

	-- External (bank-account) entries
	CREATE TABLE IF NOT EXISTS external_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		entry_id TEXT,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		provenance TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_external_entry
		ON external_entries(entry_id) WHERE entry_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_external_account_date
		ON external_entries(account_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so every operation can run
// directly or inside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// INSTRUMENTS
// =============================================================================

const instrumentColumns = `id, name, kind, annual_rate, periodic_rate, credit_limit, principal,
	current_balance, projected_balance, available_credit,
	statement_day, start_date, end_date, term_months,
	fixed_payment, min_payment_percent,
	purchase_promo_start, purchase_promo_end, transfer_promo_start, transfer_promo_end,
	settlement_account_id, active, created_at, updated_at`

func (s *Store) GetInstrument(ctx context.Context, id ledger.InstrumentID) (*ledger.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getInstrument(ctx, s.db, id)
}

func (s *Store) ListInstruments(ctx context.Context, activeOnly bool) ([]ledger.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listInstruments(ctx, s.db, activeOnly)
}

func (s *Store) SaveInstrument(ctx context.Context, in *ledger.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveInstrument(ctx, s.db, in)
}

func getInstrument(ctx context.Context, q querier, id ledger.InstrumentID) (*ledger.Instrument, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+instrumentColumns+" FROM instruments WHERE id = ?", id)
	in, err := scanInstrument(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrInstrumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func listInstruments(ctx context.Context, q querier, activeOnly bool) ([]ledger.Instrument, error) {
	query := "SELECT " + instrumentColumns + " FROM instruments ORDER BY name"
	if activeOnly {
		query = "SELECT " + instrumentColumns + " FROM instruments WHERE active = TRUE ORDER BY name"
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []ledger.Instrument
	for rows.Next() {
		in, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, *in)
	}
	return instruments, rows.Err()
}

func saveInstrument(ctx context.Context, q querier, in *ledger.Instrument) error {
	query := `
		INSERT INTO instruments (` + instrumentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			annual_rate = excluded.annual_rate,
			periodic_rate = excluded.periodic_rate,
			credit_limit = excluded.credit_limit,
			principal = excluded.principal,
			current_balance = excluded.current_balance,
			projected_balance = excluded.projected_balance,
			available_credit = excluded.available_credit,
			statement_day = excluded.statement_day,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			term_months = excluded.term_months,
			fixed_payment = excluded.fixed_payment,
			min_payment_percent = excluded.min_payment_percent,
			purchase_promo_start = excluded.purchase_promo_start,
			purchase_promo_end = excluded.purchase_promo_end,
			transfer_promo_start = excluded.transfer_promo_start,
			transfer_promo_end = excluded.transfer_promo_end,
			settlement_account_id = excluded.settlement_account_id,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now

	_, err := q.ExecContext(ctx, query,
		in.ID, in.Name, in.Kind,
		in.AnnualRate.String(), in.PeriodicRate.String(),
		in.CreditLimit.String(), in.Principal.String(),
		in.CurrentBalance.String(), in.ProjectedBalance.String(), in.AvailableCredit.String(),
		in.StatementDay,
		nullDate(in.StartDate), nullDate(in.EndDate), in.TermMonths,
		in.FixedPayment.String(), in.MinPaymentPercent.String(),
		nullDate(in.PurchasePromo.Start), nullDate(in.PurchasePromo.End),
		nullDate(in.TransferPromo.Start), nullDate(in.TransferPromo.End),
		nullString(string(in.SettlementAccountID)),
		in.Active,
		in.CreatedAt.Format(timeLayout), in.UpdatedAt.Format(timeLayout),
	)
	return err
}

func scanInstrument(row interface{ Scan(...any) error }) (*ledger.Instrument, error) {
	var (
		in                             ledger.Instrument
		annualRate, periodicRate       string
		creditLimit, principal         string
		current, projected, available  string
		fixedPayment, minPercent       string
		startDate, endDate             sql.NullString
		ppStart, ppEnd, tpStart, tpEnd sql.NullString
		settlementAccount              sql.NullString
		createdAt, updatedAt           string
	)

	err := row.Scan(
		&in.ID, &in.Name, &in.Kind, &annualRate, &periodicRate, &creditLimit, &principal,
		&current, &projected, &available,
		&in.StatementDay, &startDate, &endDate, &in.TermMonths,
		&fixedPayment, &minPercent,
		&ppStart, &ppEnd, &tpStart, &tpEnd,
		&settlementAccount, &in.Active, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	in.AnnualRate = ledger.MustDecimal(annualRate)
	in.PeriodicRate = ledger.MustDecimal(periodicRate)
	in.CreditLimit = ledger.MustDecimal(creditLimit)
	in.Principal = ledger.MustDecimal(principal)
	in.CurrentBalance = ledger.MustDecimal(current)
	in.ProjectedBalance = ledger.MustDecimal(projected)
	in.AvailableCredit = ledger.MustDecimal(available)
	in.FixedPayment = ledger.MustDecimal(fixedPayment)
	in.MinPaymentPercent = ledger.MustDecimal(minPercent)
	in.StartDate = parseDate(startDate)
	in.EndDate = parseDate(endDate)
	in.PurchasePromo = ledger.Window{Start: parseDate(ppStart), End: parseDate(ppEnd)}
	in.TransferPromo = ledger.Window{Start: parseDate(tpStart), End: parseDate(tpEnd)}
	in.SettlementAccountID = ledger.AccountID(settlementAccount.String)
	in.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	in.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &in, nil
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

const entryColumns = `id, instrument_id, date, period, kind, amount, running_balance,
	applied_rate, promotional, paid, provenance, statement_id, external_id, description, created_at`

func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, id)
}

func (s *Store) EntriesFor(ctx context.Context, id ledger.InstrumentID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db,
		"SELECT "+entryColumns+" FROM entries WHERE instrument_id = ? ORDER BY date ASC", id)
}

func (s *Store) EntriesBefore(ctx context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesBefore(ctx, s.db, id, cutoff)
}

func (s *Store) EntriesThrough(ctx context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesThrough(ctx, s.db, id, cutoff)
}

func (s *Store) FindEntryOn(ctx context.Context, id ledger.InstrumentID, date ledger.Date, kind ledger.EntryKind) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findEntryOn(ctx, s.db, id, date, kind)
}

func (s *Store) FindPaymentForStatement(ctx context.Context, id ledger.InstrumentID, statementID ledger.EntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findPaymentForStatement(ctx, s.db, id, statementID)
}

func (s *Store) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEntry(ctx, s.db, e)
}

func (s *Store) UpdateEntry(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEntry(ctx, s.db, e)
}

func (s *Store) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, q querier, id ledger.EntryID) (*ledger.Entry, error) {
	entries, err := queryEntries(ctx, q,
		"SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ledger.ErrEntryNotFound
	}
	return &entries[0], nil
}

func entriesBefore(ctx context.Context, q querier, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	return queryEntries(ctx, q,
		"SELECT "+entryColumns+" FROM entries WHERE instrument_id = ? AND date < ? ORDER BY date ASC",
		id, cutoff.String())
}

func entriesThrough(ctx context.Context, q querier, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	return queryEntries(ctx, q,
		"SELECT "+entryColumns+" FROM entries WHERE instrument_id = ? AND date <= ? ORDER BY date ASC",
		id, cutoff.String())
}

func findEntryOn(ctx context.Context, q querier, id ledger.InstrumentID, date ledger.Date, kind ledger.EntryKind) (*ledger.Entry, error) {
	entries, err := queryEntries(ctx, q,
		"SELECT "+entryColumns+" FROM entries WHERE instrument_id = ? AND date = ? AND kind = ? LIMIT 1",
		id, date.String(), kind)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func findPaymentForStatement(ctx context.Context, q querier, id ledger.InstrumentID, statementID ledger.EntryID) (*ledger.Entry, error) {
	entries, err := queryEntries(ctx, q,
		"SELECT "+entryColumns+" FROM entries WHERE instrument_id = ? AND statement_id = ? AND kind = ? LIMIT 1",
		id, statementID, ledger.KindPayment)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func insertEntry(ctx context.Context, q querier, e *ledger.Entry) error {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, query,
		e.ID, e.InstrumentID, e.Date.String(), e.Period, e.Kind,
		e.Amount.String(), e.RunningBalance.String(),
		e.AppliedRate.String(), e.Promotional, e.Paid, e.Provenance,
		nullString(string(e.StatementID)), nullString(string(e.ExternalID)),
		e.Description, e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func updateEntry(ctx context.Context, q querier, e *ledger.Entry) error {
	query := `
		UPDATE entries SET
			date = ?, period = ?, kind = ?, amount = ?, running_balance = ?,
			applied_rate = ?, promotional = ?, paid = ?, provenance = ?,
			statement_id = ?, external_id = ?, description = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		e.Date.String(), e.Period, e.Kind, e.Amount.String(), e.RunningBalance.String(),
		e.AppliedRate.String(), e.Promotional, e.Paid, e.Provenance,
		nullString(string(e.StatementID)), nullString(string(e.ExternalID)),
		e.Description, e.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result, ledger.ErrEntryNotFound)
}

func deleteEntry(ctx context.Context, q querier, id ledger.EntryID) error {
	result, err := q.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(result, ledger.ErrEntryNotFound)
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Replay order is decided in Go: timestamp strings do not collate
	// reliably at sub-second precision.
	ledger.SortEntries(entries)
	return entries, nil
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e                                    ledger.Entry
		date                                 string
		amount, running, rate                string
		statementID, externalID, description sql.NullString
		createdAt                            string
	)

	err := rows.Scan(
		&e.ID, &e.InstrumentID, &date, &e.Period, &e.Kind,
		&amount, &running, &rate, &e.Promotional, &e.Paid, &e.Provenance,
		&statementID, &externalID, &description, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.Date, _ = ledger.ParseDate(date)
	e.Amount = ledger.MustDecimal(amount)
	e.RunningBalance = ledger.MustDecimal(running)
	e.AppliedRate = ledger.MustDecimal(rate)
	e.StatementID = ledger.EntryID(statementID.String)
	e.ExternalID = ledger.ExternalEntryID(externalID.String)
	e.Description = description.String
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return e, nil
}

// =============================================================================
// EXTERNAL ENTRIES
// =============================================================================

const externalColumns = `id, account_id, instrument_id, entry_id, date, amount,
	description, paid, provenance, created_at`

func (s *Store) GetExternal(ctx context.Context, id ledger.ExternalEntryID) (*ledger.ExternalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getExternal(ctx, s.db, id)
}

func (s *Store) FindExternalForEntry(ctx context.Context, id ledger.EntryID) (*ledger.ExternalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findExternalForEntry(ctx, s.db, id)
}

func (s *Store) InsertExternal(ctx context.Context, x *ledger.ExternalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertExternal(ctx, s.db, x)
}

func (s *Store) UpdateExternal(ctx context.Context, x *ledger.ExternalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateExternal(ctx, s.db, x)
}

func (s *Store) DeleteExternal(ctx context.Context, id ledger.ExternalEntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteExternal(ctx, s.db, id)
}

func getExternal(ctx context.Context, q querier, id ledger.ExternalEntryID) (*ledger.ExternalEntry, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+externalColumns+" FROM external_entries WHERE id = ?", id)
	x, err := scanExternal(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrExternalNotFound
	}
	if err != nil {
		return nil, err
	}
	return x, nil
}

func findExternalForEntry(ctx context.Context, q querier, id ledger.EntryID) (*ledger.ExternalEntry, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+externalColumns+" FROM external_entries WHERE entry_id = ? LIMIT 1", id)
	x, err := scanExternal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return x, nil
}

func insertExternal(ctx context.Context, q querier, x *ledger.ExternalEntry) error {
	query := `
		INSERT INTO external_entries (` + externalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if x.CreatedAt.IsZero() {
		x.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, query,
		x.ID, x.AccountID, x.InstrumentID, nullString(string(x.EntryID)),
		x.Date.String(), x.Amount.String(), x.Description, x.Paid, x.Provenance,
		x.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert external entry: %w", err)
	}
	return nil
}

func updateExternal(ctx context.Context, q querier, x *ledger.ExternalEntry) error {
	query := `
		UPDATE external_entries SET
			account_id = ?, entry_id = ?, date = ?, amount = ?,
			description = ?, paid = ?, provenance = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		x.AccountID, nullString(string(x.EntryID)), x.Date.String(), x.Amount.String(),
		x.Description, x.Paid, x.Provenance, x.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result, ledger.ErrExternalNotFound)
}

func deleteExternal(ctx context.Context, q querier, id ledger.ExternalEntryID) error {
	result, err := q.ExecContext(ctx, "DELETE FROM external_entries WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(result, ledger.ErrExternalNotFound)
}

func scanExternal(row interface{ Scan(...any) error }) (*ledger.ExternalEntry, error) {
	var (
		x                       ledger.ExternalEntry
		entryID, description    sql.NullString
		date, amount, createdAt string
	)

	err := row.Scan(
		&x.ID, &x.AccountID, &x.InstrumentID, &entryID,
		&date, &amount, &description, &x.Paid, &x.Provenance, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	x.EntryID = ledger.EntryID(entryID.String)
	x.Date, _ = ledger.ParseDate(date)
	x.Amount = ledger.MustDecimal(amount)
	x.Description = description.String
	x.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &x, nil
}

// =============================================================================
// UNIT OF WORK (ledger.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. Reads inside the
// transaction observe its own uncommitted writes, which the regeneration
// controller depends on.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	return nil
}

// txStore routes every Store operation through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetInstrument(ctx context.Context, id ledger.InstrumentID) (*ledger.Instrument, error) {
	return getInstrument(ctx, ts.tx, id)
}

func (ts *txStore) ListInstruments(ctx context.Context, activeOnly bool) ([]ledger.Instrument, error) {
	return listInstruments(ctx, ts.tx, activeOnly)
}

func (ts *txStore) SaveInstrument(ctx context.Context, in *ledger.Instrument) error {
	return saveInstrument(ctx, ts.tx, in)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) EntriesFor(ctx context.Context, id ledger.InstrumentID) ([]ledger.Entry, error) {
	return queryEntries(ctx, ts.tx,
		"SELECT "+entryColumns+" FROM entries WHERE instrument_id = ? ORDER BY date ASC", id)
}

func (ts *txStore) EntriesBefore(ctx context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	return entriesBefore(ctx, ts.tx, id, cutoff)
}

func (ts *txStore) EntriesThrough(ctx context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	return entriesThrough(ctx, ts.tx, id, cutoff)
}

func (ts *txStore) FindEntryOn(ctx context.Context, id ledger.InstrumentID, date ledger.Date, kind ledger.EntryKind) (*ledger.Entry, error) {
	return findEntryOn(ctx, ts.tx, id, date, kind)
}

func (ts *txStore) FindPaymentForStatement(ctx context.Context, id ledger.InstrumentID, statementID ledger.EntryID) (*ledger.Entry, error) {
	return findPaymentForStatement(ctx, ts.tx, id, statementID)
}

func (ts *txStore) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	return insertEntry(ctx, ts.tx, e)
}

func (ts *txStore) UpdateEntry(ctx context.Context, e *ledger.Entry) error {
	return updateEntry(ctx, ts.tx, e)
}

func (ts *txStore) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	return deleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) GetExternal(ctx context.Context, id ledger.ExternalEntryID) (*ledger.ExternalEntry, error) {
	return getExternal(ctx, ts.tx, id)
}

func (ts *txStore) FindExternalForEntry(ctx context.Context, id ledger.EntryID) (*ledger.ExternalEntry, error) {
	return findExternalForEntry(ctx, ts.tx, id)
}

func (ts *txStore) InsertExternal(ctx context.Context, x *ledger.ExternalEntry) error {
	return insertExternal(ctx, ts.tx, x)
}

func (ts *txStore) UpdateExternal(ctx context.Context, x *ledger.ExternalEntry) error {
	return updateExternal(ctx, ts.tx, x)
}

func (ts *txStore) DeleteExternal(ctx context.Context, id ledger.ExternalEntryID) error {
	return deleteExternal(ctx, ts.tx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d ledger.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDate(ns sql.NullString) ledger.Date {
	if !ns.Valid || ns.String == "" {
		return ledger.Date{}
	}
	d, _ := ledger.ParseDate(ns.String)
	return d
}

func requireRow(result sql.Result, sentinel error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
