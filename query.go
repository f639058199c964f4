package fluxstore

import (
	"regexp"
	"strings"
	"time"
)

// Facet identifies which of the four Point attributes a leaf query
// inspects. Modeling this as a closed enum (rather than dispatching on a
// string attribute name) lets the planner and evaluator switch
// exhaustively instead of falling back to reflection.
type Facet int

const (
	FacetTime Facet = iota
	FacetMeasurement
	FacetTags
	FacetFields
)

func (f Facet) String() string {
	switch f {
	case FacetTime:
		return "time"
	case FacetMeasurement:
		return "measurement"
	case FacetTags:
		return "tags"
	case FacetFields:
		return "fields"
	default:
		return "unknown"
	}
}

// Op identifies a leaf predicate's comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpExists
	OpMatches
	OpTest
	OpNoop
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpExists:
		return "exists"
	case OpMatches:
		return "matches"
	case OpTest:
		return "test"
	case OpNoop:
		return "noop"
	default:
		return "?"
	}
}

// boolOp identifies a compound node's combinator.
type boolOp int

const (
	opAnd boolOp = iota
	opOr
	opNot
)

// Query is a boolean predicate over a Point: a Leaf (single facet
// predicate) or a Compound (AND/OR/NOT of subqueries). The interface is
// sealed — query() is unexported — so only this package's constructors
// can produce a Query, letting the planner safely type-switch on the two
// concrete shapes.
type Query interface {
	// Eval reports whether p satisfies the query. Eval never panics: a
	// missing path, a type mismatch resolved at construction time, or a
	// failed regex all resolve to false rather than propagating an error.
	Eval(p Point) bool

	// Hash returns a structural hash and whether the subtree is
	// hashable. A subtree containing Test or Map is never hashable.
	Hash() (uint64, bool)

	String() string

	query()
}

// leafQuery is a single predicate over one facet.
type leafQuery struct {
	facet Facet
	op    Op

	// key is set only for FacetTags/FacetFields and is the dictionary
	// key; tagTransforms/fieldTransforms are opaque transforms applied in
	// order after the lookup.
	key             string
	tagTransforms   []func(*string) *string
	fieldTransforms []func(FieldValue) FieldValue

	// exactly one of these is meaningful, selected by facet+op.
	rhsStr    string
	rhsTime   time.Time
	rhsNum    float64
	rhsIsNull bool

	pattern *regexp.Regexp

	testTag   func(*string) bool
	testField func(FieldValue) bool
	testTime  func(time.Time) bool

	hashable bool
}

func (*leafQuery) query() {}

// compoundQuery is an AND/OR/NOT of subqueries.
type compoundQuery struct {
	op       boolOp
	children []Query
	hashable bool
}

func (*compoundQuery) query() {}

// --- construction: Measurement -------------------------------------------------

// MeasurementBuilder constructs leaf queries over the measurement facet.
type MeasurementBuilder struct{}

// Measurement begins a query over the Point's measurement name.
func Measurement() MeasurementBuilder { return MeasurementBuilder{} }

func (MeasurementBuilder) leaf(op Op, rhs string) *leafQuery {
	return &leafQuery{facet: FacetMeasurement, op: op, rhsStr: rhs, hashable: true}
}

func (b MeasurementBuilder) Eq(v string) Query { return b.leaf(OpEq, v) }
func (b MeasurementBuilder) Ne(v string) Query { return b.leaf(OpNe, v) }
func (b MeasurementBuilder) Lt(v string) Query { return b.leaf(OpLt, v) }
func (b MeasurementBuilder) Le(v string) Query { return b.leaf(OpLe, v) }
func (b MeasurementBuilder) Gt(v string) Query { return b.leaf(OpGt, v) }
func (b MeasurementBuilder) Ge(v string) Query { return b.leaf(OpGe, v) }

// Matches applies a regex against the measurement name. Returns a
// *Error of KindQueryShape if pattern fails to compile.
func (b MeasurementBuilder) Matches(pattern string) (Query, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, newErrorf(KindQueryShape, "%w: %v", ErrRHSTypeMismatch, err)
	}
	return &leafQuery{facet: FacetMeasurement, op: OpMatches, pattern: re, hashable: true}, nil
}

// Noop always evaluates to true.
func Noop() Query { return &leafQuery{facet: FacetMeasurement, op: OpNoop, hashable: true} }

// --- construction: Time ---------------------------------------------------

// TimeBuilder constructs leaf queries over the time facet.
type TimeBuilder struct{}

// TimeQuery begins a query over the Point's timestamp.
func TimeQuery() TimeBuilder { return TimeBuilder{} }

func (TimeBuilder) leaf(op Op, rhs time.Time) *leafQuery {
	return &leafQuery{facet: FacetTime, op: op, rhsTime: rhs.UTC(), hashable: true}
}

func (b TimeBuilder) Eq(v time.Time) Query { return b.leaf(OpEq, v) }
func (b TimeBuilder) Ne(v time.Time) Query { return b.leaf(OpNe, v) }
func (b TimeBuilder) Lt(v time.Time) Query { return b.leaf(OpLt, v) }
func (b TimeBuilder) Le(v time.Time) Query { return b.leaf(OpLe, v) }
func (b TimeBuilder) Gt(v time.Time) Query { return b.leaf(OpGt, v) }
func (b TimeBuilder) Ge(v time.Time) Query { return b.leaf(OpGe, v) }

// Test applies a user predicate to the timestamp. Disables hashability.
func (b TimeBuilder) Test(fn func(time.Time) bool) Query {
	return &leafQuery{facet: FacetTime, op: OpTest, testTime: fn, hashable: false}
}

// --- construction: Tag -----------------------------------------------------

// TagBuilder constructs leaf queries over a single tag key, with an
// optional chain of transforms applied after the dictionary lookup.
type TagBuilder struct {
	key        string
	transforms []func(*string) *string
}

// Tag begins a query over the tag named key.
func Tag(key string) TagBuilder { return TagBuilder{key: key} }

// Map appends an opaque transform to the path, applied to the resolved
// value before comparison. Any subtree built from a mapped builder is not
// hashable.
func (b TagBuilder) Map(fn func(*string) *string) TagBuilder {
	next := make([]func(*string) *string, len(b.transforms)+1)
	copy(next, b.transforms)
	next[len(b.transforms)] = fn
	return TagBuilder{key: b.key, transforms: next}
}

func (b TagBuilder) leaf(op Op, rhs *string) *leafQuery {
	rhsStr := ""
	isNull := rhs == nil
	if rhs != nil {
		rhsStr = *rhs
	}
	return &leafQuery{
		facet: FacetTags, op: op, key: b.key, tagTransforms: b.transforms,
		rhsStr: rhsStr, rhsIsNull: isNull, hashable: len(b.transforms) == 0,
	}
}

func (b TagBuilder) Eq(v string) Query     { return b.leaf(OpEq, &v) }
func (b TagBuilder) Ne(v string) Query     { return b.leaf(OpNe, &v) }
func (b TagBuilder) Lt(v string) Query     { return b.leaf(OpLt, &v) }
func (b TagBuilder) Le(v string) Query     { return b.leaf(OpLe, &v) }
func (b TagBuilder) Gt(v string) Query     { return b.leaf(OpGt, &v) }
func (b TagBuilder) Ge(v string) Query     { return b.leaf(OpGe, &v) }
func (b TagBuilder) EqNull() Query         { return b.leaf(OpEq, nil) }
func (b TagBuilder) NeNull() Query         { return b.leaf(OpNe, nil) }
func (b TagBuilder) Exists() Query {
	return &leafQuery{facet: FacetTags, op: OpExists, key: b.key, tagTransforms: b.transforms, hashable: len(b.transforms) == 0}
}

// Matches applies a regex against the tag's string value (null never
// matches). Returns a *Error of KindQueryShape if pattern fails to compile.
func (b TagBuilder) Matches(pattern string) (Query, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, newErrorf(KindQueryShape, "%w: %v", ErrRHSTypeMismatch, err)
	}
	return &leafQuery{facet: FacetTags, op: OpMatches, key: b.key, tagTransforms: b.transforms, pattern: re, hashable: len(b.transforms) == 0}, nil
}

// Test applies a user predicate to the resolved tag value (nil if the tag
// is null). A missing key never reaches fn: the leaf evaluates to false
// first. Disables hashability.
func (b TagBuilder) Test(fn func(*string) bool) Query {
	return &leafQuery{facet: FacetTags, op: OpTest, key: b.key, tagTransforms: b.transforms, testTag: fn, hashable: false}
}

// --- construction: Field ---------------------------------------------------

// FieldBuilder constructs leaf queries over a single field key, with an
// optional chain of transforms applied after the dictionary lookup.
type FieldBuilder struct {
	key        string
	transforms []func(FieldValue) FieldValue
}

// Field begins a query over the field named key.
func Field(key string) FieldBuilder { return FieldBuilder{key: key} }

// Map appends an opaque transform to the path. Disables hashability.
func (b FieldBuilder) Map(fn func(FieldValue) FieldValue) FieldBuilder {
	next := make([]func(FieldValue) FieldValue, len(b.transforms)+1)
	copy(next, b.transforms)
	next[len(b.transforms)] = fn
	return FieldBuilder{key: b.key, transforms: next}
}

func (b FieldBuilder) leaf(op Op, rhs float64) *leafQuery {
	return &leafQuery{
		facet: FacetFields, op: op, key: b.key, fieldTransforms: b.transforms,
		rhsNum: rhs, hashable: len(b.transforms) == 0,
	}
}

func (b FieldBuilder) Eq(v float64) Query { return b.leaf(OpEq, v) }
func (b FieldBuilder) Ne(v float64) Query { return b.leaf(OpNe, v) }
func (b FieldBuilder) Lt(v float64) Query { return b.leaf(OpLt, v) }
func (b FieldBuilder) Le(v float64) Query { return b.leaf(OpLe, v) }
func (b FieldBuilder) Gt(v float64) Query { return b.leaf(OpGt, v) }
func (b FieldBuilder) Ge(v float64) Query { return b.leaf(OpGe, v) }

func (b FieldBuilder) EqNull() Query {
	return &leafQuery{facet: FacetFields, op: OpEq, key: b.key, fieldTransforms: b.transforms, rhsIsNull: true, hashable: len(b.transforms) == 0}
}

func (b FieldBuilder) NeNull() Query {
	return &leafQuery{facet: FacetFields, op: OpNe, key: b.key, fieldTransforms: b.transforms, rhsIsNull: true, hashable: len(b.transforms) == 0}
}

func (b FieldBuilder) Exists() Query {
	return &leafQuery{facet: FacetFields, op: OpExists, key: b.key, fieldTransforms: b.transforms, hashable: len(b.transforms) == 0}
}

// Test applies a user predicate to the resolved field value. Disables
// hashability. fields do not support Matches/regex (spec §4.2: "forbidden
// on fields and time").
func (b FieldBuilder) Test(fn func(FieldValue) bool) Query {
	return &leafQuery{facet: FacetFields, op: OpTest, key: b.key, fieldTransforms: b.transforms, testField: fn, hashable: false}
}

// --- compound construction --------------------------------------------------

// And combines queries with logical AND. Panics if given fewer than one
// query; spec.md §7 treats "combining with an empty base" as a
// query-shape error raised at construction, which in Go idiom is a
// programmer error (empty variadic call), not a runtime error value.
func And(qs ...Query) Query {
	if len(qs) == 0 {
		panic("fluxstore: And requires at least one query")
	}
	return flatten(opAnd, qs)
}

// Or combines queries with logical OR.
func Or(qs ...Query) Query { return flatten(opOr, qs) }

// Not negates a single query.
func Not(q Query) Query {
	_, hashable := q.Hash()
	return &compoundQuery{op: opNot, children: []Query{q}, hashable: hashable}
}

// flatten builds a compound node, absorbing nested nodes of the same
// combinator so hashing sees a flat, commutative set of children.
func flatten(op boolOp, qs []Query) Query {
	if len(qs) == 0 {
		return Noop()
	}
	if len(qs) == 1 {
		return qs[0]
	}
	var terms []Query
	hashable := true
	for _, q := range qs {
		if c, ok := q.(*compoundQuery); ok && c.op == op {
			terms = append(terms, c.children...)
			hashable = hashable && c.hashable
			continue
		}
		terms = append(terms, q)
		if _, h := q.Hash(); !h {
			hashable = false
		}
	}
	return &compoundQuery{op: op, children: terms, hashable: hashable}
}

// --- evaluation --------------------------------------------------------------

func (l *leafQuery) Eval(p Point) bool {
	switch l.facet {
	case FacetMeasurement:
		return l.evalMeasurement(p)
	case FacetTime:
		return l.evalTime(p)
	case FacetTags:
		return l.evalTag(p)
	case FacetFields:
		return l.evalField(p)
	default:
		return false
	}
}

func (l *leafQuery) evalMeasurement(p Point) bool {
	if l.op == OpNoop {
		return true
	}
	m := p.Measurement()
	if l.op == OpMatches {
		return l.pattern.MatchString(m)
	}
	return applyCompare(l.op, strings.Compare(m, l.rhsStr))
}

func (l *leafQuery) evalTime(p Point) bool {
	if l.op == OpTest {
		return l.testTime(p.Time())
	}
	return applyCompare(l.op, compareTime(p.Time(), l.rhsTime))
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func (l *leafQuery) resolveTag(p Point) (*string, bool) {
	v, ok := p.Tags()[l.key]
	if !ok {
		return nil, false
	}
	for _, fn := range l.tagTransforms {
		v = fn(v)
	}
	return v, true
}

func (l *leafQuery) evalTag(p Point) bool {
	v, ok := l.resolveTag(p)
	if !ok {
		return false
	}
	switch l.op {
	case OpExists:
		return true
	case OpTest:
		return l.testTag(v)
	case OpMatches:
		return v != nil && l.pattern.MatchString(*v)
	default:
		if l.rhsIsNull {
			switch l.op {
			case OpEq:
				return v == nil
			case OpNe:
				return v != nil
			default:
				return false
			}
		}
		if v == nil {
			return l.op == OpNe
		}
		return applyCompare(l.op, strings.Compare(*v, l.rhsStr))
	}
}

func (l *leafQuery) resolveField(p Point) (FieldValue, bool) {
	v, ok := p.Fields()[l.key]
	if !ok {
		return FieldValue{}, false
	}
	for _, fn := range l.fieldTransforms {
		v = fn(v)
	}
	return v, true
}

func (l *leafQuery) evalField(p Point) bool {
	v, ok := l.resolveField(p)
	if !ok {
		return false
	}
	switch l.op {
	case OpExists:
		return true
	case OpTest:
		return l.testField(v)
	default:
		if l.rhsIsNull {
			switch l.op {
			case OpEq:
				return v.IsNull()
			case OpNe:
				return !v.IsNull()
			default:
				return false
			}
		}
		if v.IsNull() {
			return l.op == OpNe
		}
		n, _ := v.Float64()
		return applyCompare(l.op, compareFloat(n, l.rhsNum))
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func applyCompare(op Op, cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	default:
		return false
	}
}

func (c *compoundQuery) Eval(p Point) bool {
	switch c.op {
	case opNot:
		return !c.children[0].Eval(p)
	case opAnd:
		for _, child := range c.children {
			if !child.Eval(p) {
				return false
			}
		}
		return true
	case opOr:
		for _, child := range c.children {
			if child.Eval(p) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// --- string representation --------------------------------------------------

func (l *leafQuery) String() string {
	switch l.facet {
	case FacetTags, FacetFields:
		return l.facet.String() + "." + l.key + " " + l.op.String()
	default:
		return l.facet.String() + " " + l.op.String()
	}
}

func (c *compoundQuery) String() string {
	switch c.op {
	case opNot:
		return "NOT(" + c.children[0].String() + ")"
	case opAnd:
		return joinQueries(c.children, " AND ")
	case opOr:
		return joinQueries(c.children, " OR ")
	default:
		return "?"
	}
}

func joinQueries(qs []Query, sep string) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
