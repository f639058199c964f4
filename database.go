package fluxstore

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"fluxstore/internal/index"
	"fluxstore/internal/logging"
	"fluxstore/internal/storage"
)

// StorageKind selects which storage backend Open constructs.
type StorageKind int

const (
	StorageMemory StorageKind = iota
	StorageFile
)

// Options configures Open (spec.md §6 "Database open options").
type Options struct {
	// AutoIndex enables on-line index maintenance and index-assisted
	// reads. Open does not default it: the zero value leaves it off.
	AutoIndex bool

	Storage StorageKind

	// Path is the filesystem location for StorageFile.
	Path string

	// CreateDirs creates missing parent directories when opening for write.
	CreateDirs bool

	// AccessMode is one of "r", "w"/"w+", "a"/"a+", "r+". Defaults to "r+".
	AccessMode string

	// FlushOnInsert forces fsync after each append (file backend only).
	// Open does not default it: the zero value leaves it off.
	FlushOnInsert bool

	// Delimiter is the field delimiter for the file backend. Defaults to ','.
	Delimiter rune

	// Compress stores the file backend zstd-compressed.
	Compress bool

	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.AccessMode == "" {
		o.AccessMode = "r+"
	}
	return o
}

// Database is the coordinator: it owns a storage backend and an index,
// decides whether reads are index-assisted or full scans, and applies
// bulk mutations (remove/update) safely. A Database embeds a mutex as a
// defense-in-depth guard — the engine's documented concurrency model is
// single-threaded, synchronous access, but serializing here costs
// nothing and protects callers who get that wrong.
type Database struct {
	mu sync.Mutex

	backend   storage.Backend
	idx       *index.Index
	autoIndex bool
	closed    bool

	logger *slog.Logger
}

// Open constructs a Database per opts, building the initial index from
// whatever the backend already contains.
func Open(opts Options) (*Database, error) {
	opts = opts.withDefaults()
	mode, err := storage.ParseAccessMode(opts.AccessMode)
	if err != nil {
		return nil, newError(KindValidation, err)
	}

	logger := logging.Default(opts.Logger).With("component", "database")

	var backend storage.Backend
	switch opts.Storage {
	case StorageFile:
		backend, err = storage.OpenFile(storage.FileConfig{
			Path:          opts.Path,
			Mode:          mode,
			Delimiter:     opts.Delimiter,
			CreateDirs:    opts.CreateDirs,
			FlushOnInsert: opts.FlushOnInsert,
			Compress:      opts.Compress,
			Logger:        opts.Logger,
		})
		if err != nil {
			return nil, newError(KindIO, err)
		}
	default:
		backend = storage.NewMemory(storage.MemoryConfig{Mode: mode, Logger: opts.Logger})
	}

	db := &Database{
		backend:   backend,
		idx:       index.New(),
		autoIndex: opts.AutoIndex,
		logger:    logger,
	}

	if opts.AutoIndex {
		if err := db.rebuildIndexFromBackendLocked(); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Close releases the storage handle. Subsequent operations return a
// KindState error. Close is idempotent.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.logger.Info("closing database")
	return db.backend.Close()
}

func (db *Database) checkOpenLocked() error {
	if db.closed {
		return newError(KindState, ErrDatabaseClosed)
	}
	return nil
}

func translateStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrReadOnly):
		return newError(KindIOCapability, ErrReadOnly)
	case errors.Is(err, storage.ErrAppendOnly):
		return newError(KindIOCapability, ErrAppendOnly)
	case errors.Is(err, storage.ErrWriteOnly):
		return newError(KindIOCapability, ErrWriteOnly)
	case errors.Is(err, storage.ErrClosed):
		return newError(KindState, ErrDatabaseClosed)
	default:
		return newError(KindIO, err)
	}
}

// --- insert --------------------------------------------------------------

// Insert appends a single Point.
func (db *Database) Insert(p Point) error {
	return db.InsertMultiple([]Point{p})
}

// InsertMultiple appends points in a single batch. A failure mid-batch
// leaves already-appended points in place and invalidates the index,
// per spec.md §7.
func (db *Database) InsertMultiple(points []Point) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return err
	}

	rows := make([]storage.Row, len(points))
	for i, p := range points {
		rows[i] = EncodeRow(p)
	}
	if err := db.backend.Append(rows); err != nil {
		db.idx.Invalidate()
		return translateStorageErr(err)
	}

	if db.autoIndex && db.idx.Valid() {
		if !db.backend.IndexIntact() {
			db.idx.Invalidate()
		} else {
			for _, p := range points {
				db.idx.InsertIncremental(toPointView(p))
			}
		}
	}
	return nil
}

func toPointView(p Point) index.PointView {
	fields := make(map[string]index.FieldVal, len(p.Fields()))
	for k, v := range p.Fields() {
		n, ok := v.Float64()
		fields[k] = index.FieldVal{Null: !ok, Num: n}
	}
	return index.PointView{
		Time:        p.Time(),
		Measurement: p.Measurement(),
		Tags:        p.Tags(),
		Fields:      fields,
	}
}

// --- planning --------------------------------------------------------------

func toIndexOp(op Op) index.CompareOp {
	switch op {
	case OpEq:
		return index.Eq
	case OpNe:
		return index.Ne
	case OpLt:
		return index.Lt
	case OpLe:
		return index.Le
	case OpGt:
		return index.Gt
	case OpGe:
		return index.Ge
	default:
		return index.Eq
	}
}

func universeIncomplete(idx *index.Index) index.Result {
	return index.Result{Items: index.Universe(idx.Len()), Complete: false}
}

func planLeaf(idx *index.Index, l *leafQuery) index.Result {
	switch l.facet {
	case FacetMeasurement:
		switch l.op {
		case OpEq:
			return idx.EqMeasurement(l.rhsStr)
		case OpNe:
			r := idx.EqMeasurement(l.rhsStr)
			return index.Result{Items: r.Items.Complement(idx.Len()), Complete: true}
		default:
			return universeIncomplete(idx)
		}
	case FacetTime:
		switch l.op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			return idx.TimeCompare(toIndexOp(l.op), l.rhsTime)
		case OpTest:
			return idx.TimeTest(l.testTime)
		default:
			return universeIncomplete(idx)
		}
	case FacetTags:
		if len(l.tagTransforms) > 0 {
			return universeIncomplete(idx)
		}
		switch l.op {
		case OpEq:
			if l.rhsIsNull {
				return universeIncomplete(idx)
			}
			return idx.TagEq(l.key, l.rhsStr)
		case OpNe:
			if l.rhsIsNull {
				return universeIncomplete(idx)
			}
			// The complement also holds points without the key, which Eval
			// rejects, so the candidates are re-checked.
			r := idx.TagEq(l.key, l.rhsStr)
			return index.Result{Items: r.Items.Complement(idx.Len()), Complete: false}
		case OpExists:
			// Null-valued tags are not indexed, so TagExists can miss
			// positions Eval accepts; fall back to a full scan.
			return universeIncomplete(idx)
		default:
			return universeIncomplete(idx)
		}
	case FacetFields:
		if len(l.fieldTransforms) > 0 {
			return universeIncomplete(idx)
		}
		switch l.op {
		case OpExists:
			return idx.FieldExists(l.key)
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			rhs := index.FieldVal{Null: l.rhsIsNull, Num: l.rhsNum}
			return idx.FieldCompare(l.key, toIndexOp(l.op), rhs)
		default:
			return universeIncomplete(idx)
		}
	default:
		return universeIncomplete(idx)
	}
}

func planQuery(idx *index.Index, q Query) index.Result {
	switch n := q.(type) {
	case *leafQuery:
		return planLeaf(idx, n)
	case *compoundQuery:
		switch n.op {
		case opNot:
			child := planQuery(idx, n.children[0])
			if !child.Complete {
				return universeIncomplete(idx)
			}
			return index.Result{Items: child.Items.Complement(idx.Len()), Complete: true}
		case opAnd:
			items := index.Universe(idx.Len())
			complete := true
			for _, c := range n.children {
				r := planQuery(idx, c)
				items = items.Intersect(r.Items)
				complete = complete && r.Complete
			}
			return index.Result{Items: items, Complete: complete}
		case opOr:
			var items index.PositionSet
			complete := true
			for _, c := range n.children {
				r := planQuery(idx, c)
				items = items.Union(r.Items)
				complete = complete && r.Complete
			}
			return index.Result{Items: items, Complete: complete}
		}
	}
	return universeIncomplete(idx)
}

type planOutcome struct {
	shortCircuitEmpty bool
	useIndex          bool
	items             index.PositionSet
	complete          bool
}

func (db *Database) plan(q Query) planOutcome {
	if !(db.autoIndex && db.idx.Valid()) {
		return planOutcome{}
	}
	res := planQuery(db.idx, q)
	if len(res.Items) == 0 {
		return planOutcome{shortCircuitEmpty: true}
	}
	if len(res.Items) == db.idx.Len() {
		return planOutcome{}
	}
	return planOutcome{useIndex: true, items: res.Items, complete: res.Complete}
}

// scan returns matched points and their storage positions, in ascending
// position order. limit <= 0 means unlimited.
//
// When the index resolves a complete candidate set, rows outside it are
// skipped without decoding; once every candidate position has been seen,
// the remaining storage is never read. When the candidate set is only
// partial (a leaf the planner couldn't decide, e.g. Test/Map/regex on a
// tag), each candidate row is still re-checked against q directly.
func (db *Database) scan(q Query, limit int) ([]Point, []int, error) {
	outcome := db.plan(q)
	if outcome.shortCircuitEmpty {
		return nil, nil, nil
	}

	iter, err := db.backend.Iter()
	if err != nil {
		return nil, nil, translateStorageErr(err)
	}
	defer iter.Close()

	var results []Point
	var positions []int
	pos := 0
	ci := 0
	for {
		if limit > 0 && len(results) >= limit {
			break
		}
		if outcome.useIndex && ci >= len(outcome.items) {
			break
		}
		row, ok, err := iter.Next()
		if err != nil {
			return nil, nil, translateStorageErr(err)
		}
		if !ok {
			break
		}

		if outcome.useIndex {
			if ci >= len(outcome.items) || outcome.items[ci] != pos {
				pos++
				continue
			}
			ci++
		}

		p, err := DecodeRow(row)
		if err != nil {
			return nil, nil, err
		}
		if outcome.useIndex && outcome.complete || q.Eval(p) {
			results = append(results, p)
			positions = append(positions, pos)
		}
		pos++
	}
	return results, positions, nil
}

// --- read-side operations --------------------------------------------------

// Contains reports whether any Point matches q.
func (db *Database) Contains(q Query) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return false, err
	}
	results, _, err := db.scan(q, 1)
	return len(results) > 0, err
}

// Count returns the number of Points matching q.
func (db *Database) Count(q Query) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return 0, err
	}
	results, _, err := db.scan(q, 0)
	return len(results), err
}

// Get returns the first Point matching q.
func (db *Database) Get(q Query) (Point, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return Point{}, false, err
	}
	results, _, err := db.scan(q, 1)
	if err != nil || len(results) == 0 {
		return Point{}, false, err
	}
	return results[0], true, nil
}

// Search returns every Point matching q.
func (db *Database) Search(q Query) ([]Point, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return nil, err
	}
	results, _, err := db.scan(q, 0)
	return results, err
}

// Select projects matched Points onto a tuple of dotted paths drawn from
// {measurement, time, tags.<k>, fields.<k>}. Missing values are encoded
// as nil. Invalid paths return a KindValidation error.
func (db *Database) Select(paths []string, q Query) ([][]any, error) {
	for _, p := range paths {
		if !validSelectPath(p) {
			return nil, newErrorf(KindValidation, "%w: %q", ErrBadSelectPath, p)
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return nil, err
	}
	points, _, err := db.scan(q, 0)
	if err != nil {
		return nil, err
	}

	out := make([][]any, len(points))
	for i, p := range points {
		row := make([]any, len(paths))
		for j, path := range paths {
			row[j] = projectPath(p, path)
		}
		out[i] = row
	}
	return out, nil
}

func validSelectPath(path string) bool {
	if path == "measurement" || path == "time" {
		return true
	}
	if rest, ok := cutPrefix(path, "tags."); ok {
		return rest != ""
	}
	if rest, ok := cutPrefix(path, "fields."); ok {
		return rest != ""
	}
	return false
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

func projectPath(p Point, path string) any {
	switch {
	case path == "measurement":
		return p.Measurement()
	case path == "time":
		return p.Time()
	default:
		if key, ok := cutPrefix(path, "tags."); ok {
			v, found := p.Tags()[key]
			if !found || v == nil {
				return nil
			}
			return *v
		}
		if key, ok := cutPrefix(path, "fields."); ok {
			v, found := p.Fields()[key]
			if !found || v.IsNull() {
				return nil
			}
			return v
		}
		return nil
	}
}

// --- remove / update ---------------------------------------------------

// Remove deletes every Point matching q and returns the count removed.
func (db *Database) Remove(q Query) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return 0, err
	}

	_, doomed, err := db.scan(q, 0)
	if err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	allRows, err := db.backend.Read()
	if err != nil {
		return 0, translateStorageErr(err)
	}

	if len(doomed) == len(allRows) {
		if err := db.backend.Reset(); err != nil {
			return 0, translateStorageErr(err)
		}
		db.idx.Reset()
		return len(doomed), nil
	}

	retained := make([]storage.Row, 0, len(allRows)-len(doomed))
	di := 0
	for i, r := range allRows {
		if di < len(doomed) && doomed[di] == i {
			di++
			continue
		}
		retained = append(retained, r)
	}

	if !db.idx.Valid() {
		sortRowsByTime(retained)
		if err := db.backend.Write(retained, true); err != nil {
			return 0, translateStorageErr(err)
		}
		if err := db.rebuildIndexFromBackendLocked(); err != nil {
			return 0, err
		}
		return len(doomed), nil
	}

	if err := db.backend.Write(retained, true); err != nil {
		return 0, translateStorageErr(err)
	}
	db.idx.Remove(index.PositionSet(doomed))
	return len(doomed), nil
}

// DropMeasurement removes every Point in the named measurement.
func (db *Database) DropMeasurement(name string) (int, error) {
	return db.Remove(Measurement().Eq(name))
}

// Update applies fn to every Point matching q and writes back the
// result. fn's return value is validated the same as any other Point
// (it can only have been produced by NewPoint, which already rejects
// malformed tags/fields); an error from fn is itself treated as an
// invalid update argument. Returns the number of Points touched.
//
// If no touched Point's timestamp changed, and the index was valid
// beforehand, each touched position is patched in place (PatchPoint)
// rather than triggering a full rebuild — an update that only changes
// tags/fields keeps the index usable for the next read. A timestamp
// change instead sorts the retained buffer and forces a full rebuild,
// since a position's sort order may have moved.
func (db *Database) Update(q Query, fn func(Point) (Point, error)) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return 0, err
	}

	_, positions, err := db.scan(q, 0)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, nil
	}

	allRows, err := db.backend.Read()
	if err != nil {
		return 0, translateStorageErr(err)
	}

	canPatch := db.autoIndex && db.idx.Valid()
	timeChanged := false
	type patch struct {
		pos      int
		old, new index.PointView
	}
	patches := make([]patch, 0, len(positions))

	mi := 0
	for i := range allRows {
		if mi >= len(positions) || positions[mi] != i {
			continue
		}
		mi++
		old, err := DecodeRow(allRows[i])
		if err != nil {
			return 0, err
		}
		updated, err := fn(old)
		if err != nil {
			return 0, newErrorf(KindValidation, "%w: %v", ErrBadUpdateArg, err)
		}
		if !updated.Time().Equal(old.Time()) {
			timeChanged = true
		}
		if canPatch {
			patches = append(patches, patch{pos: i, old: toPointView(old), new: toPointView(updated)})
		}
		allRows[i] = EncodeRow(updated)
	}

	if timeChanged {
		sortRowsByTime(allRows)
		if err := db.backend.Write(allRows, true); err != nil {
			return 0, translateStorageErr(err)
		}
		db.idx.Invalidate()
		if db.autoIndex {
			if err := db.rebuildIndexFromBackendLocked(); err != nil {
				return 0, err
			}
		}
		return len(positions), nil
	}

	wasIntact := db.backend.IndexIntact()
	if err := db.backend.Write(allRows, wasIntact); err != nil {
		return 0, translateStorageErr(err)
	}

	if canPatch {
		for _, p := range patches {
			if !db.idx.PatchPoint(p.pos, p.old, p.new) {
				break
			}
		}
		if !db.idx.Valid() && db.autoIndex {
			if err := db.rebuildIndexFromBackendLocked(); err != nil {
				return 0, err
			}
		}
	} else if db.autoIndex {
		db.idx.Invalidate()
		if err := db.rebuildIndexFromBackendLocked(); err != nil {
			return 0, err
		}
	}
	return len(positions), nil
}

// Reindex rebuilds the index if invalid; a no-op if already valid.
func (db *Database) Reindex() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return err
	}
	if db.idx.Valid() {
		return nil
	}
	if !db.backend.IndexIntact() {
		rows, err := db.backend.Read()
		if err != nil {
			return translateStorageErr(err)
		}
		sortRowsByTime(rows)
		if err := db.backend.Write(rows, true); err != nil {
			return translateStorageErr(err)
		}
	}
	return db.rebuildIndexFromBackendLocked()
}

// Stats summarizes a Database's current state, chiefly for diagnostics
// (the `fluxstore stats` CLI subcommand).
type Stats struct {
	PointCount   int
	IndexValid   bool
	Measurements []string
}

// Stats reports point count, index validity, and the distinct measurement
// names currently present.
func (db *Database) Stats() (Stats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpenLocked(); err != nil {
		return Stats{}, err
	}

	rows, err := db.backend.Read()
	if err != nil {
		return Stats{}, translateStorageErr(err)
	}

	seen := map[string]bool{}
	var measurements []string
	for _, r := range rows {
		p, err := DecodeRow(r)
		if err != nil {
			return Stats{}, err
		}
		if !seen[p.Measurement()] {
			seen[p.Measurement()] = true
			measurements = append(measurements, p.Measurement())
		}
	}
	sort.Strings(measurements)

	return Stats{
		PointCount:   len(rows),
		IndexValid:   db.idx.Valid(),
		Measurements: measurements,
	}, nil
}

func (db *Database) rebuildIndexFromBackendLocked() error {
	rows, err := db.backend.Read()
	if err != nil {
		return translateStorageErr(err)
	}
	views := make([]index.PointView, len(rows))
	for i, r := range rows {
		p, err := DecodeRow(r)
		if err != nil {
			return err
		}
		views[i] = toPointView(p)
	}
	db.idx.Build(views)
	if !db.backend.IndexIntact() {
		db.idx.Invalidate()
	}
	return nil
}

func sortRowsByTime(rows []storage.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, erri := time.Parse(timeLayout, rows[i][0])
		tj, errj := time.Parse(timeLayout, rows[j][0])
		if erri != nil || errj != nil {
			return false
		}
		return ti.Before(tj)
	})
}
