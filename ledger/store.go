/*
store.go - Persistence interfaces for instruments and both ledgers

PURPOSE:
  Defines the boundary between the engine and the database. Unlike an
  append-only audit ledger, this store supports update and delete: the
  regeneration controller replaces Generated entries wholesale, and the sync
  adapter edits paired records in place. Provenance, not the store, is what
  protects history - locked entries are never handed to a delete.

UNIT OF WORK:
  TxStore.WithTx runs a function against a transactional view of the store.
  A full regeneration run for one instrument executes inside a single WithTx:
  any failure mid-run rolls back every change for that instrument. The
  Store value passed to the function is the explicit unit-of-work handle
  threaded through the controller and the sync adapter.

LOOKUP CONVENTIONS:
  Get*  - returns a not-found sentinel error when the record is missing.
  Find* - returns (nil, nil) when no record matches; absence is a normal
          outcome for the controller's state machine.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - store/memory: in-memory for tests and dev
*/
package ledger

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Instruments
	GetInstrument(ctx context.Context, id InstrumentID) (*Instrument, error)
	ListInstruments(ctx context.Context, activeOnly bool) ([]Instrument, error)
	SaveInstrument(ctx context.Context, in *Instrument) error

	// Ledger entries. All multi-entry results are in replay order
	// (Date, CreatedAt, ID); see SortEntries.
	GetEntry(ctx context.Context, id EntryID) (*Entry, error)
	EntriesFor(ctx context.Context, id InstrumentID) ([]Entry, error)
	EntriesBefore(ctx context.Context, id InstrumentID, cutoff Date) ([]Entry, error)
	EntriesThrough(ctx context.Context, id InstrumentID, cutoff Date) ([]Entry, error)
	FindEntryOn(ctx context.Context, id InstrumentID, date Date, kind EntryKind) (*Entry, error)
	FindPaymentForStatement(ctx context.Context, id InstrumentID, statementID EntryID) (*Entry, error)
	InsertEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id EntryID) error

	// External (bank-account) entries
	GetExternal(ctx context.Context, id ExternalEntryID) (*ExternalEntry, error)
	FindExternalForEntry(ctx context.Context, id EntryID) (*ExternalEntry, error)
	InsertExternal(ctx context.Context, x *ExternalEntry) error
	UpdateExternal(ctx context.Context, x *ExternalEntry) error
	DeleteExternal(ctx context.Context, id ExternalEntryID) error
}

// TxStore wraps Store with an atomic unit of work.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and the error is returned unchanged.
	WithTx(ctx context.Context, fn func(Store) error) error
}
