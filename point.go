package fluxstore

import (
	"time"
)

// DefaultMeasurement is the measurement name assigned to a Point that does
// not specify one.
const DefaultMeasurement = "_default"

// noneToken is the serialized placeholder for a null tag or field value.
const noneToken = "_none"

// FieldKind discriminates the three possible states of a field value:
// integer, floating-point, or null. Modeling this as a closed enum (rather
// than interface{}) means every caller switches over a fixed set of cases
// instead of type-asserting against an open type.
type FieldKind int

const (
	FieldInt FieldKind = iota
	FieldFloat
	FieldNull
)

// FieldValue is a field's value: an integer, a float, or null. Exactly one
// of the Int/Float accessors is meaningful, gated by Kind.
type FieldValue struct {
	Kind  FieldKind
	Int   int64
	Float float64
}

// NewIntField builds an integer field value.
func NewIntField(v int64) FieldValue { return FieldValue{Kind: FieldInt, Int: v} }

// NewFloatField builds a floating-point field value.
func NewFloatField(v float64) FieldValue { return FieldValue{Kind: FieldFloat, Float: v} }

// NullField is the null field value.
var NullField = FieldValue{Kind: FieldNull}

// IsNull reports whether the value is the null marker.
func (v FieldValue) IsNull() bool { return v.Kind == FieldNull }

// Float64 returns the value as a float64 regardless of whether it was
// stored as an int or a float. Returns (0, false) for null.
func (v FieldValue) Float64() (float64, bool) {
	switch v.Kind {
	case FieldInt:
		return float64(v.Int), true
	case FieldFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// Equal reports structural equality between two field values.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case FieldInt:
		return v.Int == other.Int
	case FieldFloat:
		return v.Float == other.Float
	default:
		return true
	}
}

// Compare orders two field values numerically. Null values are not
// comparable; callers must check IsNull first.
func (v FieldValue) Compare(other FieldValue) int {
	a, _ := v.Float64()
	b, _ := other.Float64()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// TagSet maps tag keys to values. A nil value pointer represents the null
// marker; all other values are strings.
type TagSet map[string]*string

// FieldSet maps field keys to FieldValues.
type FieldSet map[string]FieldValue

// Copy returns a deep copy of the tag set.
func (t TagSet) Copy() TagSet {
	if t == nil {
		return nil
	}
	out := make(TagSet, len(t))
	for k, v := range t {
		if v == nil {
			out[k] = nil
			continue
		}
		cp := *v
		out[k] = &cp
	}
	return out
}

// Copy returns a deep copy of the field set.
func (f FieldSet) Copy() FieldSet {
	if f == nil {
		return nil
	}
	out := make(FieldSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// StrTag builds a non-null tag value pointer.
func StrTag(s string) *string { return &s }

// Point is an immutable-by-convention record: a timestamp, a measurement
// name, a tag set, and a field set. The engine never mutates a Point after
// insert; updates replace it with a new value.
type Point struct {
	time        time.Time
	measurement string
	tags        TagSet
	fields      FieldSet
}

// NewPoint builds a validated Point. A zero time.Time is replaced with the
// current instant; an empty measurement is replaced with DefaultMeasurement.
// Returns a *Error of KindValidation if tags or fields fail validation.
func NewPoint(t time.Time, measurement string, tags TagSet, fields FieldSet) (Point, error) {
	if t.IsZero() {
		t = time.Now()
	}
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	if err := validateTags(tags); err != nil {
		return Point{}, err
	}
	if err := validateFields(fields); err != nil {
		return Point{}, err
	}
	return Point{
		// Mixed-timezone instants are normalized to UTC at construction,
		// per the "storage assumes UTC" rule; we never reject them.
		time:        t.UTC(),
		measurement: measurement,
		tags:        tags.Copy(),
		fields:      fields.Copy(),
	}, nil
}

func validateTags(tags TagSet) error {
	for k := range tags {
		if k == "" {
			return newError(KindValidation, ErrBadTagKey)
		}
	}
	return nil
}

func validateFields(fields FieldSet) error {
	for k, v := range fields {
		if k == "" {
			return newError(KindValidation, ErrBadFieldKey)
		}
		switch v.Kind {
		case FieldInt, FieldFloat, FieldNull:
		default:
			return newError(KindValidation, ErrBadFieldValue)
		}
	}
	return nil
}

// Time returns the Point's timestamp.
func (p Point) Time() time.Time { return p.time }

// Measurement returns the Point's measurement name.
func (p Point) Measurement() string { return p.measurement }

// Tags returns the Point's tag set. Callers must not mutate the returned map.
func (p Point) Tags() TagSet { return p.tags }

// Fields returns the Point's field set. Callers must not mutate the returned map.
func (p Point) Fields() FieldSet { return p.fields }

// Equal reports structural equality across all four facets.
func (p Point) Equal(other Point) bool {
	if !p.time.Equal(other.time) || p.measurement != other.measurement {
		return false
	}
	if len(p.tags) != len(other.tags) {
		return false
	}
	for k, v := range p.tags {
		ov, ok := other.tags[k]
		if !ok {
			return false
		}
		if (v == nil) != (ov == nil) {
			return false
		}
		if v != nil && *v != *ov {
			return false
		}
	}
	if len(p.fields) != len(other.fields) {
		return false
	}
	for k, v := range p.fields {
		ov, ok := other.fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Before reports whether p sorts before other for storage purposes
// (ascending by time).
func (p Point) Before(other Point) bool { return p.time.Before(other.time) }

// withFields returns a copy of p with its field set replaced.
func (p Point) withFields(fields FieldSet) Point {
	p.fields = fields
	return p
}

// withTags returns a copy of p with its tag set replaced.
func (p Point) withTags(tags TagSet) Point {
	p.tags = tags
	return p
}

// withTime returns a copy of p with its timestamp replaced.
func (p Point) withTime(t time.Time) Point {
	p.time = t.UTC()
	return p
}

// withMeasurement returns a copy of p with its measurement replaced.
func (p Point) withMeasurement(m string) Point {
	p.measurement = m
	return p
}
