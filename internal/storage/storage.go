// Package storage implements the append-only storage abstraction: an
// ordered sequence of serialized Point rows, backed by either an
// in-memory vector or a delimited text file. Both backends share one
// Backend contract and both track whether the sequence is still sorted
// by time online, as rows are appended.
//
// The package is deliberately decoupled from fluxstore.Point: it stores
// and returns Row, the canonical flat-token form produced by
// fluxstore.EncodeRow, so the root package decides what a Point means
// and this package only decides how bytes are kept. This keeps the
// dependency one-directional, the same way internal/index is decoupled
// from fluxstore.Query.
package storage

import (
	"errors"
	"time"
)

// AccessMode restricts which operations a Backend permits, mirroring the
// open-mode strings from spec.md §6 (r, w/w+, a/a+, r+).
type AccessMode int

const (
	ReadWrite AccessMode = iota
	ReadOnly
	AppendOnly
	WriteOnly
)

func (m AccessMode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case AppendOnly:
		return "a"
	case WriteOnly:
		return "w"
	case ReadWrite:
		return "r+"
	default:
		return "?"
	}
}

// ParseAccessMode maps an open-mode string to an AccessMode.
func ParseAccessMode(s string) (AccessMode, error) {
	switch s {
	case "r":
		return ReadOnly, nil
	case "w", "w+":
		return WriteOnly, nil
	case "a", "a+":
		return AppendOnly, nil
	case "r+":
		return ReadWrite, nil
	default:
		return 0, ErrBadAccessMode
	}
}

// capability errors: a storage-local sentinel set, translated by the
// root package into *fluxstore.Error (KindIOCapability) via errors.Is.
var (
	ErrReadOnly      = errors.New("storage is read-only: write operation not permitted")
	ErrAppendOnly    = errors.New("storage is append-only: this operation is not permitted")
	ErrWriteOnly     = errors.New("storage is write-only: read operation not permitted")
	ErrBadAccessMode = errors.New("unrecognized access mode string")
	ErrClosed        = errors.New("storage is closed")
)

// Row is the canonical flat-token form of a single Point, as produced by
// fluxstore.EncodeRow / consumed by fluxstore.DecodeRow.
type Row = []string

// timeLayout mirrors fluxstore's codec.go layout: ISO-8601 without an
// offset, since storage assumes UTC. Duplicated here (rather than
// imported) to keep this package independent of the root package.
const timeLayout = "2006-01-02T15:04:05.999999999"

func rowTime(row Row) (time.Time, error) {
	if len(row) == 0 {
		return time.Time{}, errors.New("empty row has no timestamp")
	}
	return time.Parse(timeLayout, row[0])
}

// Iterator yields rows in storage order.
type Iterator interface {
	// Next returns the next row, or ok=false when exhausted.
	Next() (row Row, ok bool, err error)
	Close() error
}

// Backend is the storage contract shared by the memory and file
// implementations (spec.md §4.4).
type Backend interface {
	// Append appends rows, preserving existing order. Updates the
	// online sort tracker by comparing each incoming timestamp against
	// LatestTime. Returns ErrReadOnly if the access mode forbids writes.
	Append(rows []Row) error

	// Iter returns an iterator over rows in storage order.
	Iter() (Iterator, error)

	// Read materializes the entire sequence.
	Read() ([]Row, error)

	// Write overwrites the entire sequence. When isSorted is true, marks
	// the sequence index-intact with LatestTime set to the last row's
	// time. Returns ErrReadOnly/ErrAppendOnly if the access mode forbids it.
	Write(rows []Row, isSorted bool) error

	// Reset empties storage and resets sort-tracking state.
	Reset() error

	// Close releases any held resources. No-op for the memory backend.
	Close() error

	// Len returns the number of rows currently stored.
	Len() int

	// IndexIntact reports whether the sequence is currently known to be
	// sorted by time, non-decreasing.
	IndexIntact() bool

	// LatestTime returns the maximum timestamp seen while IndexIntact
	// has held continuously, and whether one exists.
	LatestTime() (time.Time, bool)

	// Sort rechecks the entire sequence once, updating IndexIntact and
	// LatestTime (spec.md §4.4 "Sort check").
	Sort() error

	// Mode reports the backend's access mode.
	Mode() AccessMode
}

// sortTracker is the online index_intact/latest_time bookkeeping shared
// by both backends.
type sortTracker struct {
	intact     bool
	latestTime time.Time
	hasLatest  bool
}

func newSortTracker() sortTracker {
	return sortTracker{intact: true}
}

// observeAppend folds in a newly appended row's timestamp.
func (s *sortTracker) observeAppend(t time.Time) {
	if s.hasLatest && t.Before(s.latestTime) {
		s.intact = false
		return
	}
	if s.intact {
		s.latestTime = t
		s.hasLatest = true
	}
}

func (s *sortTracker) reset() {
	s.intact = true
	s.hasLatest = false
	s.latestTime = time.Time{}
}

func (s *sortTracker) markSorted(last time.Time) {
	s.intact = true
	s.latestTime = last
	s.hasLatest = true
}
