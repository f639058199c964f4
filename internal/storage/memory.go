package storage

import (
	"log/slog"
	"sync"
	"time"

	"fluxstore/internal/logging"
)

// MemoryConfig configures an in-memory Backend.
type MemoryConfig struct {
	Mode AccessMode

	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

// memoryBackend is an in-memory vector of rows. Logging is intentionally
// sparse: only Reset and Close are logged, matching the teacher's
// "no logging in hot paths (Append, cursor iteration)" convention.
type memoryBackend struct {
	mu     sync.Mutex
	mode   AccessMode
	rows   []Row
	track  sortTracker
	closed bool
	logger *slog.Logger
}

// NewMemory returns a fresh in-memory Backend.
func NewMemory(cfg MemoryConfig) Backend {
	logger := logging.Default(cfg.Logger).With("component", "storage", "type", "memory")
	return &memoryBackend{
		mode:   cfg.Mode,
		track:  newSortTracker(),
		logger: logger,
	}
}

func (m *memoryBackend) Mode() AccessMode { return m.mode }

func (m *memoryBackend) Append(rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.mode == ReadOnly {
		return ErrReadOnly
	}
	for _, r := range rows {
		t, err := rowTime(r)
		if err != nil {
			return err
		}
		m.rows = append(m.rows, r)
		m.track.observeAppend(t)
	}
	return nil
}

func (m *memoryBackend) Iter() (Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.mode == WriteOnly || m.mode == AppendOnly {
		return nil, ErrWriteOnly
	}
	snapshot := make([]Row, len(m.rows))
	copy(snapshot, m.rows)
	return &sliceIterator{rows: snapshot}, nil
}

func (m *memoryBackend) Read() ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.mode == WriteOnly || m.mode == AppendOnly {
		return nil, ErrWriteOnly
	}
	out := make([]Row, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memoryBackend) Write(rows []Row, isSorted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.mode == ReadOnly {
		return ErrReadOnly
	}
	if m.mode == AppendOnly {
		return ErrAppendOnly
	}
	m.rows = make([]Row, len(rows))
	copy(m.rows, rows)
	if isSorted && len(rows) > 0 {
		last, err := rowTime(rows[len(rows)-1])
		if err != nil {
			return err
		}
		m.track.markSorted(last)
	} else {
		m.track.reset()
		if !isSorted {
			m.track.intact = len(rows) == 0
		}
	}
	return nil
}

func (m *memoryBackend) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.mode == ReadOnly {
		return ErrReadOnly
	}
	m.logger.Info("resetting storage")
	m.rows = nil
	m.track.reset()
	return nil
}

func (m *memoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Debug("closing storage")
	m.closed = true
	return nil
}

func (m *memoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memoryBackend) IndexIntact() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.track.intact
}

func (m *memoryBackend) LatestTime() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.track.latestTime, m.track.hasLatest
}

func (m *memoryBackend) Sort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortCheck(m.rows, &m.track)
}

type sliceIterator struct {
	rows []Row
	pos  int
}

func (it *sliceIterator) Next() (Row, bool, error) {
	if it.pos >= len(it.rows) {
		return nil, false, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, true, nil
}

func (it *sliceIterator) Close() error { return nil }

// sortCheck iterates rows once, recomputing index_intact/latest_time
// (spec.md §4.4 "Sort check").
func sortCheck(rows []Row, track *sortTracker) error {
	track.reset()
	for _, r := range rows {
		t, err := rowTime(r)
		if err != nil {
			return err
		}
		track.observeAppend(t)
	}
	return nil
}
