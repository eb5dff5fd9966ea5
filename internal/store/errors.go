package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrContentNotFound is returned when no content record has the
	// requested id.
	ErrContentNotFound = errors.New("content was not found")

	// ErrBodyNotFound is returned when no body is stored for a content id.
	ErrBodyNotFound = errors.New("content body was not found")

	// ErrOperationNotFound is returned when no queue entry matches the
	// lookup.
	ErrOperationNotFound = errors.New("sync operation was not found")

	// ErrOperationStateConflict is returned when a status transition was
	// requested from a status the entry is no longer in (for example
	// MarkInFlight on an entry that was cancelled in the meantime).
	ErrOperationStateConflict = errors.New("sync operation is not in the expected state")

	// ErrNotCancellable is returned when cancelling an entry that was
	// already dispatched or has finished.
	ErrNotCancellable = errors.New("sync operation cannot be cancelled")

	// ErrLiveOperationExists is returned when a write would create a
	// second pending or in-flight entry for the same content.
	ErrLiveOperationExists = errors.New("content already has a live sync operation")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")
)
