// Package index implements the in-memory secondary index: inverted maps
// from measurement/tag/field facets to sorted position sets, a sorted
// timestamp list, and the planner rules that turn a decomposed query
// into a candidate position set.
//
// The package knows nothing about fluxstore.Point or fluxstore.Query —
// it operates on PointView, a minimal projection of a Point's four
// facets, and CompareOp, a local mirror of the root package's Op. This
// keeps the dependency one-directional (fluxstore imports index, never
// the reverse) while letting the root package's Database walk its own
// Query tree and call straight into these primitives.
package index

import (
	"sort"
	"time"
)

// CompareOp mirrors fluxstore.Op for the subset the planner understands.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// FieldVal is a minimal numeric field value: a float64 plus a null flag.
// The root package collapses its int/float distinction to a float64
// before calling into the index, since ordering and equality are all the
// planner needs.
type FieldVal struct {
	Null bool
	Num  float64
}

// PointView is the projection of a Point the index builds itself from.
type PointView struct {
	Time        time.Time
	Measurement string
	Tags        map[string]*string
	Fields      map[string]FieldVal
}

// PositionSet is a sorted, duplicate-free set of storage positions.
type PositionSet []int

// Universe returns the position set {0, 1, ..., n-1}.
func Universe(n int) PositionSet {
	s := make(PositionSet, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// Union returns the sorted union of s and other.
func (s PositionSet) Union(other PositionSet) PositionSet {
	out := make(PositionSet, 0, len(s)+len(other))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] < other[j]:
			out = append(out, s[i])
			i++
		case s[i] > other[j]:
			out = append(out, other[j])
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	out = append(out, s[i:]...)
	out = append(out, other[j:]...)
	return out
}

// Intersect returns the sorted intersection of s and other.
func (s PositionSet) Intersect(other PositionSet) PositionSet {
	out := make(PositionSet, 0, minInt(len(s), len(other)))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] < other[j]:
			i++
		case s[i] > other[j]:
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	return out
}

// Complement returns Universe(n) minus s.
func (s PositionSet) Complement(n int) PositionSet {
	out := make(PositionSet, 0, n-len(s))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(s) && s[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Result is the outcome of a planned search: a candidate position set and
// whether the index alone decides membership (Complete) or candidates
// still require per-Point evaluation.
type Result struct {
	Items    PositionSet
	Complete bool
}

type fieldEntry struct {
	pos int
	val FieldVal
}

// Index is the in-memory secondary index. It is synchronized to the
// storage sequence by integer position; callers (the Database
// coordinator) are responsible for serializing access and for deciding
// when Valid is false and a rebuild is required.
type Index struct {
	timestamps   []time.Time
	measurements map[string]PositionSet
	tags         map[string]map[string]PositionSet
	fields       map[string][]fieldEntry

	valid      bool
	latestTime time.Time
	hasLatest  bool
}

// New returns an empty, valid index.
func New() *Index {
	return &Index{
		measurements: make(map[string]PositionSet),
		tags:         make(map[string]map[string]PositionSet),
		fields:       make(map[string][]fieldEntry),
		valid:        true,
	}
}

// Valid reports whether the index may currently be consulted.
func (idx *Index) Valid() bool { return idx.valid }

// Invalidate marks the index unusable until the next Build.
func (idx *Index) Invalidate() {
	idx.valid = false
	idx.hasLatest = false
}

// Len returns the number of positions the index currently covers.
func (idx *Index) Len() int { return len(idx.timestamps) }

// LatestTime returns the maximum timestamp seen while the index has been
// continuously valid, and whether one exists.
func (idx *Index) LatestTime() (time.Time, bool) { return idx.latestTime, idx.hasLatest }

// Reset empties the index and marks it valid (matching a freshly reset,
// empty storage sequence).
func (idx *Index) Reset() {
	idx.timestamps = nil
	idx.measurements = make(map[string]PositionSet)
	idx.tags = make(map[string]map[string]PositionSet)
	idx.fields = make(map[string][]fieldEntry)
	idx.valid = true
	idx.hasLatest = false
}

// Build replaces the index contents with a fresh build over points, in
// order. points is assumed already sorted by time; Build does not check.
func (idx *Index) Build(points []PointView) {
	idx.Reset()
	for _, p := range points {
		idx.appendLocked(p)
	}
}

// InsertIncremental appends a single point to an already-valid index.
// Returns false (and invalidates the index) if p's time precedes the
// current LatestTime, matching the "well-ordered inserts only" rule;
// callers must not call this on an invalid index.
func (idx *Index) InsertIncremental(p PointView) bool {
	if !idx.valid {
		return false
	}
	if idx.hasLatest && p.Time.Before(idx.latestTime) {
		idx.Invalidate()
		return false
	}
	idx.appendLocked(p)
	return true
}

func (idx *Index) appendLocked(p PointView) {
	pos := len(idx.timestamps)
	idx.timestamps = append(idx.timestamps, p.Time)
	idx.measurements[p.Measurement] = append(idx.measurements[p.Measurement], pos)

	for k, v := range p.Tags {
		if v == nil {
			continue
		}
		byVal, ok := idx.tags[k]
		if !ok {
			byVal = make(map[string]PositionSet)
			idx.tags[k] = byVal
		}
		byVal[*v] = append(byVal[*v], pos)
	}

	for k, v := range p.Fields {
		idx.fields[k] = append(idx.fields[k], fieldEntry{pos: pos, val: v})
	}

	idx.latestTime = p.Time
	idx.hasLatest = true
}

// PatchPoint updates a single already-indexed position in place, given
// its old and new projections. Used by an in-place Update (time
// unchanged, order unchanged) to keep the index valid without a full
// Build pass. Returns false — and invalidates the index — if old.Time
// and new.Time differ, since a time change can move the position out
// of sorted order and only a full rebuild (after re-sorting storage)
// can restore that.
func (idx *Index) PatchPoint(pos int, oldView, newView PointView) bool {
	if !idx.valid {
		return false
	}
	if !oldView.Time.Equal(newView.Time) {
		idx.Invalidate()
		return false
	}

	if oldView.Measurement != newView.Measurement {
		idx.measurements[oldView.Measurement] = removeFromSet(idx.measurements[oldView.Measurement], pos)
		idx.measurements[newView.Measurement] = insertSorted(idx.measurements[newView.Measurement], pos)
	}

	keys := make(map[string]struct{})
	for k := range oldView.Tags {
		keys[k] = struct{}{}
	}
	for k := range newView.Tags {
		keys[k] = struct{}{}
	}
	for k := range keys {
		ov, oldHad := oldView.Tags[k]
		nv, newHad := newView.Tags[k]
		if oldHad && ov == nil {
			oldHad = false
		}
		if newHad && nv == nil {
			newHad = false
		}
		if oldHad && newHad && *ov == *nv {
			continue
		}
		byVal, ok := idx.tags[k]
		if !ok {
			byVal = make(map[string]PositionSet)
			idx.tags[k] = byVal
		}
		if oldHad {
			byVal[*ov] = removeFromSet(byVal[*ov], pos)
		}
		if newHad {
			byVal[*nv] = insertSorted(byVal[*nv], pos)
		}
	}

	fieldKeys := make(map[string]struct{})
	for k := range oldView.Fields {
		fieldKeys[k] = struct{}{}
	}
	for k := range newView.Fields {
		fieldKeys[k] = struct{}{}
	}
	for k := range fieldKeys {
		nv, newHad := newView.Fields[k]
		entries := idx.fields[k]
		replaced := false
		for i, e := range entries {
			if e.pos == pos {
				if newHad {
					entries[i].val = nv
				} else {
					entries = append(entries[:i], entries[i+1:]...)
				}
				replaced = true
				break
			}
		}
		if !replaced && newHad {
			entries = append(entries, fieldEntry{pos: pos, val: nv})
		}
		idx.fields[k] = entries
	}

	return true
}

func insertSorted(set PositionSet, pos int) PositionSet {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= pos })
	if i < len(set) && set[i] == pos {
		return set
	}
	set = append(set, 0)
	copy(set[i+1:], set[i:])
	set[i] = pos
	return set
}

func removeFromSet(set PositionSet, pos int) PositionSet {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= pos })
	if i >= len(set) || set[i] != pos {
		return set
	}
	return append(set[:i], set[i+1:]...)
}

// Remove deletes doomed positions from every inverted map and renumbers
// the survivors so positions remain contiguous from 0. doomed must be
// sorted and within [0, Len()).
func (idx *Index) Remove(doomed PositionSet) {
	n := len(idx.timestamps)
	oldToNew := make([]int, n)
	next := 0
	di := 0
	for i := 0; i < n; i++ {
		if di < len(doomed) && doomed[di] == i {
			oldToNew[i] = -1
			di++
			continue
		}
		oldToNew[i] = next
		next++
	}

	newTimestamps := make([]time.Time, 0, next)
	for i, t := range idx.timestamps {
		if oldToNew[i] >= 0 {
			newTimestamps = append(newTimestamps, t)
		}
	}
	idx.timestamps = newTimestamps

	idx.measurements = renumberFlat(idx.measurements, oldToNew)

	newTags := make(map[string]map[string]PositionSet, len(idx.tags))
	for k, byVal := range idx.tags {
		newTags[k] = renumberFlat(byVal, oldToNew)
	}
	idx.tags = newTags

	newFields := make(map[string][]fieldEntry, len(idx.fields))
	for k, entries := range idx.fields {
		kept := make([]fieldEntry, 0, len(entries))
		for _, e := range entries {
			if np := oldToNew[e.pos]; np >= 0 {
				kept = append(kept, fieldEntry{pos: np, val: e.val})
			}
		}
		newFields[k] = kept
	}
	idx.fields = newFields

	if len(idx.timestamps) == 0 {
		idx.hasLatest = false
	} else {
		idx.latestTime = idx.timestamps[len(idx.timestamps)-1]
		idx.hasLatest = true
	}
}

func renumberFlat(m map[string]PositionSet, oldToNew []int) map[string]PositionSet {
	out := make(map[string]PositionSet, len(m))
	for k, set := range m {
		kept := make(PositionSet, 0, len(set))
		for _, p := range set {
			if np := oldToNew[p]; np >= 0 {
				kept = append(kept, np)
			}
		}
		out[k] = kept
	}
	return out
}

// --- planner primitives ------------------------------------------------

// EqMeasurement returns the positions for measurements[name].
func (idx *Index) EqMeasurement(name string) Result {
	return Result{Items: idx.measurements[name], Complete: true}
}

// TimeCompare returns positions satisfying `time op rhs` via binary
// search over the sorted timestamp list.
func (idx *Index) TimeCompare(op CompareOp, rhs time.Time) Result {
	lo := sort.Search(len(idx.timestamps), func(i int) bool { return !idx.timestamps[i].Before(rhs) })
	hi := sort.Search(len(idx.timestamps), func(i int) bool { return idx.timestamps[i].After(rhs) })

	var items PositionSet
	switch op {
	case Eq:
		items = contiguous(lo, hi)
	case Ne:
		items = contiguous(0, lo).Union(contiguous(hi, len(idx.timestamps)))
	case Lt:
		items = contiguous(0, lo)
	case Le:
		items = contiguous(0, hi)
	case Gt:
		items = contiguous(hi, len(idx.timestamps))
	case Ge:
		items = contiguous(lo, len(idx.timestamps))
	}
	return Result{Items: items, Complete: true}
}

// TimeTest scans the sorted timestamp list applying fn directly; this is
// exact (Complete=true) because the index already holds every timestamp.
func (idx *Index) TimeTest(fn func(time.Time) bool) Result {
	var items PositionSet
	for i, t := range idx.timestamps {
		if fn(t) {
			items = append(items, i)
		}
	}
	return Result{Items: items, Complete: true}
}

func contiguous(lo, hi int) PositionSet {
	if hi <= lo {
		return nil
	}
	out := make(PositionSet, hi-lo)
	for i := range out {
		out[i] = lo + i
	}
	return out
}

// TagEq returns positions where tags[key] == value.
func (idx *Index) TagEq(key, value string) Result {
	return Result{Items: idx.tags[key][value], Complete: true}
}

// TagExists returns the union of tags[key][*] over all values.
func (idx *Index) TagExists(key string) Result {
	var items PositionSet
	for _, set := range idx.tags[key] {
		items = items.Union(set)
	}
	return Result{Items: items, Complete: true}
}

// FieldExists returns the positions holding any value (including null)
// for the given field key.
func (idx *Index) FieldExists(key string) Result {
	entries := idx.fields[key]
	items := make(PositionSet, len(entries))
	for i, e := range entries {
		items[i] = e.pos
	}
	return Result{Items: items, Complete: true}
}

// FieldCompare returns positions where fields[key] satisfies op against
// rhs. A null field value never satisfies an ordering or equality
// comparison against a non-null rhs, but it does satisfy Ne (mirroring
// Eval's treatment of a present-but-null value: "null != <non-null>" is
// true, not incomparable).
func (idx *Index) FieldCompare(key string, op CompareOp, rhs FieldVal) Result {
	var items PositionSet
	for _, e := range idx.fields[key] {
		if !fieldMatches(e.val, op, rhs) {
			continue
		}
		items = append(items, e.pos)
	}
	return Result{Items: items, Complete: true}
}

func fieldMatches(v FieldVal, op CompareOp, rhs FieldVal) bool {
	if rhs.Null {
		switch op {
		case Eq:
			return v.Null
		case Ne:
			return !v.Null
		default:
			return false
		}
	}
	if v.Null {
		return op == Ne
	}
	cmp := 0
	switch {
	case v.Num < rhs.Num:
		cmp = -1
	case v.Num > rhs.Num:
		cmp = 1
	}
	switch op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	default:
		return false
	}
}
