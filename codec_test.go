package fluxstore

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	cases := []Point{
		mustPoint(t, now, "cities", TagSet{"city": StrTag("LA")}, FieldSet{"temp": NewFloatField(70.5)}),
		mustPoint(t, now, "m", TagSet{"city": nil}, FieldSet{"n": NewIntField(-42)}),
		mustPoint(t, now, "m", nil, FieldSet{"n": NullField}),
		mustPoint(t, now, "_default", nil, nil),
	}

	for i, p := range cases {
		row := EncodeRow(p)
		got, err := DecodeRow(row)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if !got.Equal(p) {
			t.Fatalf("case %d: round trip mismatch: got %+v, want %+v", i, got, p)
		}
	}
}

func TestDecodeRowRejectsTooShort(t *testing.T) {
	if _, err := DecodeRow([]string{"only-one"}); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestDecodeRowBadTimestamp(t *testing.T) {
	if _, err := DecodeRow([]string{"not-a-time", "m"}); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestDecodeFieldTokenNegativeInteger(t *testing.T) {
	v := decodeFieldToken("-123")
	if v.Kind != FieldInt || v.Int != -123 {
		t.Fatalf("expected int -123, got %+v", v)
	}
}

func TestDecodeFieldTokenFloat(t *testing.T) {
	v := decodeFieldToken("3.14")
	if v.Kind != FieldFloat || v.Float != 3.14 {
		t.Fatalf("expected float 3.14, got %+v", v)
	}
}

func TestDecodeFieldTokenUnparseableIsNull(t *testing.T) {
	v := decodeFieldToken("not-a-number")
	if v.Kind != FieldNull {
		t.Fatalf("expected null for unparseable token, got %+v", v)
	}
}

func TestEncodeRowNoneMeasurement(t *testing.T) {
	p := Point{time: time.Now().UTC(), measurement: "", tags: nil, fields: nil}
	row := EncodeRow(p)
	if row[1] != noneToken {
		t.Fatalf("expected _none token for empty measurement, got %q", row[1])
	}
}

func mustPoint(t *testing.T, tm time.Time, m string, tags TagSet, fields FieldSet) Point {
	t.Helper()
	p, err := NewPoint(tm, m, tags, fields)
	if err != nil {
		t.Fatalf("NewPoint: %v", err)
	}
	return p
}
