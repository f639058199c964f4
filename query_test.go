package fluxstore

import (
	"testing"
	"time"
)

func TestLeafEqOnTag(t *testing.T) {
	p := mustPoint(t, time.Now(), "cities", TagSet{"city": StrTag("LA")}, FieldSet{"temp": NewFloatField(70)})
	if !Tag("city").Eq("LA").Eval(p) {
		t.Fatal("expected city == LA to match")
	}
	if Tag("city").Eq("SF").Eval(p) {
		t.Fatal("expected city == SF not to match")
	}
}

func TestLeafMissingPathIsFalse(t *testing.T) {
	p := mustPoint(t, time.Now(), "cities", nil, nil)
	if Tag("city").Eq("LA").Eval(p) {
		t.Fatal("expected missing tag to evaluate false")
	}
	if Tag("city").Exists().Eval(p) {
		t.Fatal("expected missing tag Exists to evaluate false")
	}
	if Field("temp").Gt(0).Eval(p) {
		t.Fatal("expected missing field to evaluate false")
	}
}

func TestLeafNullComparisons(t *testing.T) {
	p := mustPoint(t, time.Now(), "m", TagSet{"city": nil}, FieldSet{"n": NullField})
	if !Tag("city").EqNull().Eval(p) {
		t.Fatal("expected city == null to match")
	}
	if Tag("city").NeNull().Eval(p) {
		t.Fatal("expected city != null not to match")
	}
	if !Tag("city").Exists().Eval(p) {
		t.Fatal("expected city Exists to match even though value is null")
	}
	if !Field("n").EqNull().Eval(p) {
		t.Fatal("expected n == null to match")
	}
	if Field("n").Gt(0).Eval(p) {
		t.Fatal("expected ordering against a null field to be false")
	}
}

func TestLeafNeAgainstNullValue(t *testing.T) {
	// A present-but-null value is never equal to a non-null rhs, so Ne
	// against a non-null rhs must match it — mirroring how the index's
	// FieldCompare/TagEq-complement treat an unindexed null the same way.
	p := mustPoint(t, time.Now(), "m", TagSet{"city": nil}, FieldSet{"n": NullField})
	if !Tag("city").Ne("LA").Eval(p) {
		t.Fatal("expected null tag != \"LA\" to match")
	}
	if !Field("n").Ne(5).Eval(p) {
		t.Fatal("expected null field != 5 to match")
	}
	if Tag("city").Eq("LA").Eval(p) {
		t.Fatal("expected null tag == \"LA\" not to match")
	}
	if Field("n").Eq(5).Eval(p) {
		t.Fatal("expected null field == 5 not to match")
	}
}

func TestFieldOrdering(t *testing.T) {
	p := mustPoint(t, time.Now(), "m", nil, FieldSet{"temp": NewFloatField(72.5)})
	if !Field("temp").Gt(70).Eval(p) {
		t.Fatal("expected temp > 70 to match")
	}
	if Field("temp").Lt(70).Eval(p) {
		t.Fatal("expected temp < 70 not to match")
	}
	if !Field("temp").Ge(72.5).Eval(p) {
		t.Fatal("expected temp >= 72.5 to match")
	}
}

func TestAndOrNot(t *testing.T) {
	p := mustPoint(t, time.Now(), "cities", TagSet{"city": StrTag("LA")}, FieldSet{"temp": NewFloatField(80)})

	q := And(Tag("city").Eq("LA"), Field("temp").Gt(70))
	if !q.Eval(p) {
		t.Fatal("expected AND of true leaves to match")
	}

	q2 := Or(Tag("city").Eq("SF"), Field("temp").Gt(70))
	if !q2.Eval(p) {
		t.Fatal("expected OR with one true leaf to match")
	}

	q3 := Not(Tag("city").Eq("LA"))
	if q3.Eval(p) {
		t.Fatal("expected NOT of a true leaf to be false")
	}
}

func TestAndFlattensNestedAnd(t *testing.T) {
	a := Field("a").Eq(1)
	b := Field("b").Eq(2)
	c := Field("c").Eq(3)
	nested := And(And(a, b), c)
	flat := And(a, b, c)

	h1, ok1 := nested.Hash()
	h2, ok2 := flat.Hash()
	if !ok1 || !ok2 {
		t.Fatal("expected both to be hashable")
	}
	if h1 != h2 {
		t.Fatal("expected nested AND to flatten to the same hash as the flat form")
	}
}

func TestHashCommutative(t *testing.T) {
	a := Tag("city").Eq("LA")
	b := Field("temp").Gt(70)

	h1, ok1 := And(a, b).Hash()
	h2, ok2 := And(b, a).Hash()
	if !ok1 || !ok2 {
		t.Fatal("expected hashable")
	}
	if h1 != h2 {
		t.Fatal("expected AND hash to be order-independent")
	}
}

func TestTestDisablesHashability(t *testing.T) {
	q := Field("temp").Test(func(v FieldValue) bool {
		n, _ := v.Float64()
		return n > 70
	})
	if _, ok := q.Hash(); ok {
		t.Fatal("expected Test leaf to be unhashable")
	}
	combined := And(Tag("city").Eq("LA"), q)
	if _, ok := combined.Hash(); ok {
		t.Fatal("expected compound containing a Test leaf to be unhashable")
	}
}

func TestMapDisablesHashability(t *testing.T) {
	q := Tag("city").Map(func(s *string) *string {
		if s == nil {
			return nil
		}
		up := *s
		return &up
	}).Eq("LA")
	if _, ok := q.Hash(); ok {
		t.Fatal("expected mapped leaf to be unhashable")
	}
}

func TestMapAppliesTransform(t *testing.T) {
	p := mustPoint(t, time.Now(), "m", TagSet{"city": StrTag("la")}, nil)
	q := Tag("city").Map(func(s *string) *string {
		if s == nil {
			return nil
		}
		up := *s
		return StrTag(upper(up))
	}).Eq("LA")
	if !q.Eval(p) {
		t.Fatal("expected mapped tag comparison to match after uppercasing")
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}

func TestMatchesRegex(t *testing.T) {
	p := mustPoint(t, time.Now(), "cities", TagSet{"city": StrTag("LA")}, nil)
	q, err := Tag("city").Matches("^L")
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !q.Eval(p) {
		t.Fatal("expected regex match")
	}

	_, err = Tag("city").Matches("(")
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestNewLeafDynamicConstruction(t *testing.T) {
	p := mustPoint(t, time.Now(), "cities", TagSet{"city": StrTag("LA")}, FieldSet{"temp": NewFloatField(70)})

	q, err := NewLeaf(FacetTags, "city", OpEq, "LA")
	if err != nil {
		t.Fatalf("NewLeaf: %v", err)
	}
	if !q.Eval(p) {
		t.Fatal("expected dynamically constructed leaf to match")
	}

	_, err = NewLeaf(FacetFields, "temp", OpEq, "not-a-number")
	if err == nil {
		t.Fatal("expected type mismatch error for field rhs")
	}
}

func TestNoopAlwaysTrue(t *testing.T) {
	p := mustPoint(t, time.Now(), "m", nil, nil)
	if !Noop().Eval(p) {
		t.Fatal("expected Noop to always evaluate true")
	}
}
