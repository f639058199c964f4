package fluxstore

import "time"

// NewLeaf constructs a leaf query with a runtime-checked right-hand side.
// Unlike the typed builders (Tag, Field, Measurement, TimeQuery), which
// catch a facet/type mismatch at compile time, NewLeaf exists for callers
// that only learn the facet and operator at runtime — chiefly the query
// mini-language parsed by cmd/fluxstore. A mismatch between facet and rhs
// type returns a *Error of KindQueryShape wrapping ErrRHSTypeMismatch
// rather than panicking.
func NewLeaf(facet Facet, key string, op Op, rhs any) (Query, error) {
	switch facet {
	case FacetMeasurement:
		return newMeasurementLeaf(op, rhs)
	case FacetTime:
		return newTimeLeaf(op, rhs)
	case FacetTags:
		return newTagLeaf(key, op, rhs)
	case FacetFields:
		return newFieldLeaf(key, op, rhs)
	default:
		return nil, newError(KindQueryShape, ErrLeafNoPath)
	}
}

func newMeasurementLeaf(op Op, rhs any) (Query, error) {
	if op == OpNoop {
		return Noop(), nil
	}
	s, ok := rhs.(string)
	if !ok {
		return nil, newErrorf(KindQueryShape, "%w: measurement expects string, got %T", ErrRHSTypeMismatch, rhs)
	}
	if op == OpMatches {
		return Measurement().Matches(s)
	}
	b := Measurement()
	return compareLeaf(op, func(o Op) Query { return measurementCompare(b, o, s) })
}

func measurementCompare(b MeasurementBuilder, op Op, s string) Query {
	switch op {
	case OpEq:
		return b.Eq(s)
	case OpNe:
		return b.Ne(s)
	case OpLt:
		return b.Lt(s)
	case OpLe:
		return b.Le(s)
	case OpGt:
		return b.Gt(s)
	case OpGe:
		return b.Ge(s)
	default:
		return nil
	}
}

func newTimeLeaf(op Op, rhs any) (Query, error) {
	if op == OpExists || op == OpMatches {
		return nil, newErrorf(KindQueryShape, "%w: time facet does not support %s", ErrRegexOnField, op)
	}
	tm, ok := rhs.(time.Time)
	if !ok {
		return nil, newErrorf(KindQueryShape, "%w: time expects time.Time, got %T", ErrRHSTypeMismatch, rhs)
	}
	b := TimeQuery()
	switch op {
	case OpEq:
		return b.Eq(tm), nil
	case OpNe:
		return b.Ne(tm), nil
	case OpLt:
		return b.Lt(tm), nil
	case OpLe:
		return b.Le(tm), nil
	case OpGt:
		return b.Gt(tm), nil
	case OpGe:
		return b.Ge(tm), nil
	default:
		return nil, newErrorf(KindQueryShape, "%w: unsupported time operator %s", ErrRHSTypeMismatch, op)
	}
}

func newTagLeaf(key string, op Op, rhs any) (Query, error) {
	b := Tag(key)
	if op == OpExists {
		return b.Exists(), nil
	}
	if rhs == nil {
		switch op {
		case OpEq:
			return b.EqNull(), nil
		case OpNe:
			return b.NeNull(), nil
		default:
			return nil, newErrorf(KindQueryShape, "%w: null rhs only supports == and !=", ErrRHSTypeMismatch)
		}
	}
	s, ok := rhs.(string)
	if !ok {
		return nil, newErrorf(KindQueryShape, "%w: tag expects string, got %T", ErrRHSTypeMismatch, rhs)
	}
	if op == OpMatches {
		return b.Matches(s)
	}
	switch op {
	case OpEq:
		return b.Eq(s), nil
	case OpNe:
		return b.Ne(s), nil
	case OpLt:
		return b.Lt(s), nil
	case OpLe:
		return b.Le(s), nil
	case OpGt:
		return b.Gt(s), nil
	case OpGe:
		return b.Ge(s), nil
	default:
		return nil, newErrorf(KindQueryShape, "%w: unsupported tag operator %s", ErrRHSTypeMismatch, op)
	}
}

func newFieldLeaf(key string, op Op, rhs any) (Query, error) {
	b := Field(key)
	if op == OpExists {
		return b.Exists(), nil
	}
	if op == OpMatches {
		return nil, newErrorf(KindQueryShape, "%w: fields do not support matches", ErrRegexOnField)
	}
	if rhs == nil {
		switch op {
		case OpEq:
			return b.EqNull(), nil
		case OpNe:
			return b.NeNull(), nil
		default:
			return nil, newErrorf(KindQueryShape, "%w: null rhs only supports == and !=", ErrRHSTypeMismatch)
		}
	}
	n, ok := toFloat(rhs)
	if !ok {
		return nil, newErrorf(KindQueryShape, "%w: field expects a number, got %T", ErrRHSTypeMismatch, rhs)
	}
	switch op {
	case OpEq:
		return b.Eq(n), nil
	case OpNe:
		return b.Ne(n), nil
	case OpLt:
		return b.Lt(n), nil
	case OpLe:
		return b.Le(n), nil
	case OpGt:
		return b.Gt(n), nil
	case OpGe:
		return b.Ge(n), nil
	default:
		return nil, newErrorf(KindQueryShape, "%w: unsupported field operator %s", ErrRHSTypeMismatch, op)
	}
}

func toFloat(rhs any) (float64, bool) {
	switch v := rhs.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func compareLeaf(op Op, build func(Op) Query) (Query, error) {
	q := build(op)
	if q == nil {
		return nil, newErrorf(KindQueryShape, "%w: unsupported operator %s", ErrRHSTypeMismatch, op)
	}
	return q, nil
}
