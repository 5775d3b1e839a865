package rembes

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned by Vault.Get when no object exists at the path.
	ErrObjectNotFound = errors.New("object not found")

	// ErrIndexOutOfRange means a 1-based selection no longer fits the current listing.
	ErrIndexOutOfRange = errors.New("record index out of range")

	// ErrStaleSelection means the record at the selected index is not the one
	// the user was shown; another session changed the listing in between.
	ErrStaleSelection = errors.New("record listing changed since it was shown")

	// ErrNoChange is returned by EditAt when the new key equals the old one.
	ErrNoChange = errors.New("edit produces an identical record")

	// ErrReceiptMismatch means a sealed receipt was opened under a record
	// other than the one it was sealed for.
	ErrReceiptMismatch = errors.New("receipt belongs to another record")
)

// ValidationError reports bad user input. Callers re-prompt rather than fail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DecodeError reports an object key that does not follow the record encoding.
// Listings skip such keys instead of failing.
type DecodeError struct {
	Key    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode key %q: %s", e.Key, e.Reason)
}

// StoreError wraps a failure reported by the object store.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LostRecordError means an edit deleted the old object but could not upload
// the replacement. Recovery points at the retained local copy, if any.
type LostRecordError struct {
	OldPath  string
	NewPath  string
	Recovery string
	Err      error
}

func (e *LostRecordError) Error() string {
	msg := fmt.Sprintf("record %s deleted but re-upload to %s failed: %v", e.OldPath, e.NewPath, e.Err)
	if e.Recovery != "" {
		msg += fmt.Sprintf(" (local copy kept at %s)", e.Recovery)
	}
	return msg
}

func (e *LostRecordError) Unwrap() error { return e.Err }

func storeErr(op, path string, err error) error {
	return &StoreError{Op: op, Path: path, Err: err}
}
