package fluxstore

import (
	"strconv"
	"strings"
	"time"
)

// tagPrefix and fieldPrefix mark the serialized-key form of tag and field
// entries in the flattened token row, per the canonical row layout:
//
//	[timestamp_iso, measurement_or_"_none", ("_tag_"+k, v)..., ("_field_"+k, v_or_"_none")...]
const (
	tagPrefix   = "_tag_"
	fieldPrefix = "_field_"
)

// timeLayout is ISO-8601 without an offset; the storage layer assumes UTC.
const timeLayout = "2006-01-02T15:04:05.999999999"

// EncodeRow serializes a Point to its canonical flat token row.
func EncodeRow(p Point) []string {
	row := make([]string, 0, 2+2*len(p.tags)+2*len(p.fields))
	row = append(row, p.time.Format(timeLayout))
	if p.measurement == "" {
		row = append(row, noneToken)
	} else {
		row = append(row, p.measurement)
	}

	for k, v := range p.tags {
		row = append(row, tagPrefix+k)
		if v == nil {
			row = append(row, noneToken)
		} else {
			row = append(row, *v)
		}
	}

	for k, v := range p.fields {
		row = append(row, fieldPrefix+k)
		row = append(row, encodeFieldToken(v))
	}

	return row
}

func encodeFieldToken(v FieldValue) string {
	switch v.Kind {
	case FieldInt:
		return strconv.FormatInt(v.Int, 10)
	case FieldFloat:
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if isIntegerToken(s) {
			// Keep a whole-number float from decoding back as an int.
			s += ".0"
		}
		return s
	default:
		return noneToken
	}
}

// DecodeRow deserializes a canonical flat token row back into a Point.
// Returns a *Error of KindValidation if the row is malformed.
func DecodeRow(row []string) (Point, error) {
	if len(row) < 2 {
		return Point{}, newError(KindValidation, ErrMalformedRecord)
	}

	t, err := time.Parse(timeLayout, row[0])
	if err != nil {
		return Point{}, newErrorf(KindValidation, "%w: bad timestamp %q: %v", ErrMalformedRecord, row[0], err)
	}
	t = t.UTC()

	measurement := row[1]
	if measurement == noneToken {
		measurement = DefaultMeasurement
	}

	tags := TagSet{}
	fields := FieldSet{}

	i := 2
	for i < len(row) && strings.HasPrefix(row[i], tagPrefix) {
		if i+1 >= len(row) {
			return Point{}, newError(KindValidation, ErrMalformedRecord)
		}
		key := strings.TrimPrefix(row[i], tagPrefix)
		val := row[i+1]
		if val == noneToken {
			tags[key] = nil
		} else {
			tags[key] = StrTag(val)
		}
		i += 2
	}

	for i < len(row) && strings.HasPrefix(row[i], fieldPrefix) {
		if i+1 >= len(row) {
			return Point{}, newError(KindValidation, ErrMalformedRecord)
		}
		key := strings.TrimPrefix(row[i], fieldPrefix)
		fields[key] = decodeFieldToken(row[i+1])
		i += 2
	}

	return Point{
		time:        t,
		measurement: measurement,
		tags:        tags,
		fields:      fields,
	}, nil
}

// decodeFieldToken parses a field token: a negative or unsigned integer
// round-trips losslessly as int64; otherwise a float; otherwise null.
func decodeFieldToken(tok string) FieldValue {
	if tok == noneToken {
		return NullField
	}
	if isIntegerToken(tok) {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return NewIntField(n)
		}
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return NewFloatField(f)
	}
	return NullField
}

// isIntegerToken reports whether tok looks like an optionally-signed run of
// digits: a leading '-' followed by digits, or digits alone.
func isIntegerToken(tok string) bool {
	if tok == "" {
		return false
	}
	digits := tok
	if tok[0] == '-' {
		digits = tok[1:]
	}
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
