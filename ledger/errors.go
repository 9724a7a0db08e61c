/*
errors.go - Centralized error types for the engine

ERROR CATEGORIES:
  1. Not-found errors    - missing instruments/entries
  2. Configuration errors - invalid instrument setup (CRUD-time only;
     incomplete configuration at projection time is a no-op, not an error)
  3. Sync errors          - best-effort propagation failures, non-fatal

USAGE:
  if errors.Is(err, ledger.ErrSyncFailed) {
      // primary mutation committed; the mirror is out of step
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInstrumentNotFound is returned when a referenced instrument doesn't exist.
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrEntryNotFound is returned when a referenced ledger entry doesn't exist.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrExternalNotFound is returned when a referenced external entry doesn't exist.
	ErrExternalNotFound = errors.New("external entry not found")

	// ErrEntryLocked is returned when a write targets an entry whose
	// provenance forbids it.
	ErrEntryLocked = errors.New("entry is locked")

	// ErrSyncFailed wraps best-effort propagation failures between the two
	// ledgers. Callers report it; they must not roll back the primary
	// mutation for it.
	ErrSyncFailed = errors.New("ledger sync propagation failed")

	// ErrTransactionFailed is returned when a unit of work cannot be committed.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ConfigError describes an invalid instrument configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// SyncError carries the context of a failed cross-ledger propagation.
type SyncError struct {
	EntryID    EntryID
	ExternalID ExternalEntryID
	Op         string // "create", "propagate", "delete"
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed for entry %s (external %s): %v",
		e.Op, e.EntryID, e.ExternalID, e.Err)
}

func (e *SyncError) Unwrap() error { return ErrSyncFailed }

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInstrumentNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrExternalNotFound)
}
