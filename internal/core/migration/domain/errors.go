package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyApplied is returned when a version is already recorded in the ledger.
	ErrAlreadyApplied = errors.New("migration version already applied")
	// ErrOutOfOrder is returned when a version is not newer than the ledger maximum.
	ErrOutOfOrder = errors.New("migration version is older than the latest applied version")
	// ErrMalformedFilename is returned for migration files not named <version>.<slug>.sql.
	ErrMalformedFilename = errors.New("malformed migration filename")
	// ErrDuplicateVersion is returned when two migration files share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrMigrationNotFound is returned when a version has no migration file.
	ErrMigrationNotFound = errors.New("migration not found")
	// ErrDuplicateObject is returned when an object identity appears twice.
	ErrDuplicateObject = errors.New("duplicate object")
	// ErrDiffInFlight is returned when a session already runs a diff.
	ErrDiffInFlight = errors.New("a diff is already running for this session")
	// ErrUnsupportedDialect is returned for unknown database dialects.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrDialectMismatch is returned when source and target use different dialects.
	ErrDialectMismatch = errors.New("source and target use different database dialects")
	// ErrUnsupportedAlteration is returned when a dialect cannot express an alteration.
	ErrUnsupportedAlteration = errors.New("alteration not supported by dialect")
)

// ConnectionError reports a database that cannot be reached or authenticated against.
type ConnectionError struct {
	Dialect SQLDialect
	Target  string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database %s (%s): %v", e.Target, e.Dialect, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IntrospectionError reports a catalog query that failed or returned an unsupported shape.
type IntrospectionError struct {
	Dialect SQLDialect
	Object  string
	Err     error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("failed to introspect %s (%s): %v", e.Object, e.Dialect, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// DiffConflictError reports two objects that share an identity but cannot be compared or altered.
// It never aborts a diff; it becomes a warning on a Modified entry.
type DiffConflictError struct {
	Ref    ObjectRef
	Reason string
	Err    error
}

func (e *DiffConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Ref, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Ref, e.Reason)
}

func (e *DiffConflictError) Unwrap() error { return e.Err }

// Conflict builds a DiffConflictError.
func Conflict(ref ObjectRef, reason string, err error) *DiffConflictError {
	return &DiffConflictError{Ref: ref, Reason: reason, Err: err}
}

// ApplyError reports a migration that failed and was rolled back.
type ApplyError struct {
	Version string
	// Statement is the 1-based index of the failing statement, 0 when the failure is not statement specific.
	Statement int
	Err       error
}

func (e *ApplyError) Error() string {
	if e.Statement > 0 {
		return fmt.Sprintf("failed to apply migration %s (statement %d): %v", e.Version, e.Statement, e.Err)
	}
	return fmt.Sprintf("failed to apply migration %s: %v", e.Version, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// CompactionPrecheckError reports a ledger that is not in a state that can be compacted.
type CompactionPrecheckError struct {
	Reason string
	Err    error
}

func (e *CompactionPrecheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compaction refused: %s: %v", e.Reason, e.Err)
	}
	return "compaction refused: " + e.Reason
}

func (e *CompactionPrecheckError) Unwrap() error { return e.Err }
