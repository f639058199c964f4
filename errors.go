package fluxstore

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by the part of the system that raised it.
type Kind int

const (
	// KindValidation covers malformed Points, bad tag/field types, invalid
	// select paths, and invalid update arguments.
	KindValidation Kind = iota
	// KindQueryShape covers leaves missing a required path, regex applied
	// to a disallowed facet, and RHS type mismatches at query construction.
	KindQueryShape
	// KindIOCapability covers operations disallowed by the storage's access mode.
	KindIOCapability
	// KindIO covers filesystem errors bubbling up from a storage backend.
	KindIO
	// KindState covers operations after Close and internal invariant violations.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindQueryShape:
		return "query-shape"
	case KindIOCapability:
		return "io-capability"
	case KindIO:
		return "io"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by public database operations.
// Use errors.Is against the sentinel values below to test for a specific
// failure, or inspect Kind for the broad category.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func newErrorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Validation sentinels.
var (
	ErrBadTagValue     = errors.New("tag value must be a string or null")
	ErrBadTagKey       = errors.New("tag key must be a non-empty string")
	ErrBadFieldValue   = errors.New("field value must be numeric or null, never boolean")
	ErrBadFieldKey     = errors.New("field key must be a non-empty string")
	ErrBadMeasurement  = errors.New("measurement must be a non-empty string")
	ErrBadTime         = errors.New("time must be a valid instant")
	ErrBadSelectPath   = errors.New("select path is not one of measurement, time, tags.<k>, fields.<k>")
	ErrBadUpdateArg    = errors.New("update callable produced an invalid value")
	ErrMalformedRecord = errors.New("malformed serialized record")
)

// Query-shape sentinels.
var (
	ErrLeafNoPath      = errors.New("tag/field leaf requires a path")
	ErrRegexOnField    = errors.New("regex operators are not allowed on field or time facets")
	ErrRHSTypeMismatch = errors.New("right-hand side type does not match the facet")
	ErrEmptyCompound   = errors.New("cannot combine with an empty base query")
)

// IO-capability sentinels.
var (
	ErrReadOnly   = errors.New("storage is read-only: write operation not permitted")
	ErrAppendOnly = errors.New("storage is append-only: this operation is not permitted")
	ErrWriteOnly  = errors.New("storage is write-only: read operation not permitted")
)

// State sentinels.
var (
	ErrDatabaseClosed = errors.New("database is closed")
	ErrIndexInvalid   = errors.New("index is not valid and must be rebuilt before use")
)
