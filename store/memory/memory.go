// Package memory provides an in-memory TxStore implementation (tests/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hearth/debt-engine/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	instruments map[ledger.InstrumentID]ledger.Instrument
	entries     map[ledger.EntryID]ledger.Entry
	external    map[ledger.ExternalEntryID]ledger.ExternalEntry
}

func New() *Memory {
	return &Memory{
		instruments: make(map[ledger.InstrumentID]ledger.Instrument),
		entries:     make(map[ledger.EntryID]ledger.Entry),
		external:    make(map[ledger.ExternalEntryID]ledger.ExternalEntry),
	}
}

// =============================================================================
// INSTRUMENTS
// =============================================================================

func (m *Memory) GetInstrument(_ context.Context, id ledger.InstrumentID) (*ledger.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getInstrumentLocked(id)
}

func (m *Memory) getInstrumentLocked(id ledger.InstrumentID) (*ledger.Instrument, error) {
	in, ok := m.instruments[id]
	if !ok {
		return nil, ledger.ErrInstrumentNotFound
	}
	cp := in
	return &cp, nil
}

func (m *Memory) ListInstruments(_ context.Context, activeOnly bool) ([]ledger.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInstrumentsLocked(activeOnly)
}

func (m *Memory) listInstrumentsLocked(activeOnly bool) ([]ledger.Instrument, error) {
	var out []ledger.Instrument
	for _, in := range m.instruments {
		if activeOnly && !in.Active {
			continue
		}
		out = append(out, in)
	}
	// Stable order for callers that iterate.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveInstrument(_ context.Context, in *ledger.Instrument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInstrumentLocked(in)
}

func (m *Memory) saveInstrumentLocked(in *ledger.Instrument) error {
	m.instruments[in.ID] = *in
	return nil
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntryLocked(id)
}

func (m *Memory) getEntryLocked(id ledger.EntryID) (*ledger.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, ledger.ErrEntryNotFound
	}
	cp := e
	return &cp, nil
}

func (m *Memory) EntriesFor(_ context.Context, id ledger.InstrumentID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(id, func(ledger.Entry) bool { return true }), nil
}

func (m *Memory) EntriesBefore(_ context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(id, func(e ledger.Entry) bool { return e.Date.Before(cutoff) }), nil
}

func (m *Memory) EntriesThrough(_ context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(id, func(e ledger.Entry) bool { return e.Date.BeforeOrEqual(cutoff) }), nil
}

func (m *Memory) entriesLocked(id ledger.InstrumentID, keep func(ledger.Entry) bool) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range m.entries {
		if e.InstrumentID == id && keep(e) {
			out = append(out, e)
		}
	}
	ledger.SortEntries(out)
	return out
}

func (m *Memory) FindEntryOn(_ context.Context, id ledger.InstrumentID, date ledger.Date, kind ledger.EntryKind) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findEntryOnLocked(id, date, kind)
}

func (m *Memory) findEntryOnLocked(id ledger.InstrumentID, date ledger.Date, kind ledger.EntryKind) (*ledger.Entry, error) {
	matches := m.entriesLocked(id, func(e ledger.Entry) bool {
		return e.Kind == kind && e.Date.Equal(date)
	})
	if len(matches) == 0 {
		return nil, nil
	}
	cp := matches[0]
	return &cp, nil
}

func (m *Memory) FindPaymentForStatement(_ context.Context, id ledger.InstrumentID, statementID ledger.EntryID) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findPaymentForStatementLocked(id, statementID)
}

func (m *Memory) findPaymentForStatementLocked(id ledger.InstrumentID, statementID ledger.EntryID) (*ledger.Entry, error) {
	matches := m.entriesLocked(id, func(e ledger.Entry) bool {
		return e.Kind == ledger.KindPayment && e.StatementID == statementID
	})
	if len(matches) == 0 {
		return nil, nil
	}
	cp := matches[0]
	return &cp, nil
}

func (m *Memory) InsertEntry(_ context.Context, e *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertEntryLocked(e)
}

func (m *Memory) insertEntryLocked(e *ledger.Entry) error {
	m.entries[e.ID] = *e
	return nil
}

func (m *Memory) UpdateEntry(_ context.Context, e *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateEntryLocked(e)
}

func (m *Memory) updateEntryLocked(e *ledger.Entry) error {
	if _, ok := m.entries[e.ID]; !ok {
		return ledger.ErrEntryNotFound
	}
	m.entries[e.ID] = *e
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEntryLocked(id)
}

func (m *Memory) deleteEntryLocked(id ledger.EntryID) error {
	if _, ok := m.entries[id]; !ok {
		return ledger.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

// =============================================================================
// EXTERNAL ENTRIES
// =============================================================================

func (m *Memory) GetExternal(_ context.Context, id ledger.ExternalEntryID) (*ledger.ExternalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getExternalLocked(id)
}

func (m *Memory) getExternalLocked(id ledger.ExternalEntryID) (*ledger.ExternalEntry, error) {
	x, ok := m.external[id]
	if !ok {
		return nil, ledger.ErrExternalNotFound
	}
	cp := x
	return &cp, nil
}

func (m *Memory) FindExternalForEntry(_ context.Context, id ledger.EntryID) (*ledger.ExternalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findExternalForEntryLocked(id)
}

func (m *Memory) findExternalForEntryLocked(id ledger.EntryID) (*ledger.ExternalEntry, error) {
	for _, x := range m.external {
		if x.EntryID == id {
			cp := x
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertExternal(_ context.Context, x *ledger.ExternalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.external[x.ID] = *x
	return nil
}

func (m *Memory) UpdateExternal(_ context.Context, x *ledger.ExternalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateExternalLocked(x)
}

func (m *Memory) updateExternalLocked(x *ledger.ExternalEntry) error {
	if _, ok := m.external[x.ID]; !ok {
		return ledger.ErrExternalNotFound
	}
	m.external[x.ID] = *x
	return nil
}

func (m *Memory) DeleteExternal(_ context.Context, id ledger.ExternalEntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteExternalLocked(id)
}

func (m *Memory) deleteExternalLocked(id ledger.ExternalEntryID) error {
	if _, ok := m.external[id]; !ok {
		return ledger.ErrExternalNotFound
	}
	delete(m.external, id)
	return nil
}

// =============================================================================
// UNIT OF WORK - Simulated with snapshot + rollback on error
// =============================================================================

func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}
	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	instruments map[ledger.InstrumentID]ledger.Instrument
	entries     map[ledger.EntryID]ledger.Entry
	external    map[ledger.ExternalEntryID]ledger.ExternalEntry
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		instruments: make(map[ledger.InstrumentID]ledger.Instrument, len(m.instruments)),
		entries:     make(map[ledger.EntryID]ledger.Entry, len(m.entries)),
		external:    make(map[ledger.ExternalEntryID]ledger.ExternalEntry, len(m.external)),
	}
	for k, v := range m.instruments {
		s.instruments[k] = v
	}
	for k, v := range m.entries {
		s.entries[k] = v
	}
	for k, v := range m.external {
		s.external[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.instruments = s.instruments
	m.entries = s.entries
	m.external = s.external
}

// txView exposes the parent's unlocked methods while WithTx holds the lock.
type txView struct {
	parent *Memory
}

func (v *txView) GetInstrument(_ context.Context, id ledger.InstrumentID) (*ledger.Instrument, error) {
	return v.parent.getInstrumentLocked(id)
}

func (v *txView) ListInstruments(_ context.Context, activeOnly bool) ([]ledger.Instrument, error) {
	return v.parent.listInstrumentsLocked(activeOnly)
}

func (v *txView) SaveInstrument(_ context.Context, in *ledger.Instrument) error {
	return v.parent.saveInstrumentLocked(in)
}

func (v *txView) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return v.parent.getEntryLocked(id)
}

func (v *txView) EntriesFor(_ context.Context, id ledger.InstrumentID) ([]ledger.Entry, error) {
	return v.parent.entriesLocked(id, func(ledger.Entry) bool { return true }), nil
}

func (v *txView) EntriesBefore(_ context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	return v.parent.entriesLocked(id, func(e ledger.Entry) bool { return e.Date.Before(cutoff) }), nil
}

func (v *txView) EntriesThrough(_ context.Context, id ledger.InstrumentID, cutoff ledger.Date) ([]ledger.Entry, error) {
	return v.parent.entriesLocked(id, func(e ledger.Entry) bool { return e.Date.BeforeOrEqual(cutoff) }), nil
}

func (v *txView) FindEntryOn(_ context.Context, id ledger.InstrumentID, date ledger.Date, kind ledger.EntryKind) (*ledger.Entry, error) {
	return v.parent.findEntryOnLocked(id, date, kind)
}

func (v *txView) FindPaymentForStatement(_ context.Context, id ledger.InstrumentID, statementID ledger.EntryID) (*ledger.Entry, error) {
	return v.parent.findPaymentForStatementLocked(id, statementID)
}

func (v *txView) InsertEntry(_ context.Context, e *ledger.Entry) error {
	return v.parent.insertEntryLocked(e)
}

func (v *txView) UpdateEntry(_ context.Context, e *ledger.Entry) error {
	return v.parent.updateEntryLocked(e)
}

func (v *txView) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	return v.parent.deleteEntryLocked(id)
}

func (v *txView) GetExternal(_ context.Context, id ledger.ExternalEntryID) (*ledger.ExternalEntry, error) {
	return v.parent.getExternalLocked(id)
}

func (v *txView) FindExternalForEntry(_ context.Context, id ledger.EntryID) (*ledger.ExternalEntry, error) {
	return v.parent.findExternalForEntryLocked(id)
}

func (v *txView) InsertExternal(_ context.Context, x *ledger.ExternalEntry) error {
	v.parent.external[x.ID] = *x
	return nil
}

func (v *txView) UpdateExternal(_ context.Context, x *ledger.ExternalEntry) error {
	return v.parent.updateExternalLocked(x)
}

func (v *txView) DeleteExternal(_ context.Context, id ledger.ExternalEntryID) error {
	return v.parent.deleteExternalLocked(id)
}
