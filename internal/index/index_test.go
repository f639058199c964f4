package index

import (
	"testing"
	"time"
)

func mustStr(s string) *string { return &s }

func tv(sec int64, measurement string, tags map[string]*string, fields map[string]FieldVal) PointView {
	return PointView{
		Time:        time.Unix(sec, 0).UTC(),
		Measurement: measurement,
		Tags:        tags,
		Fields:      fields,
	}
}

func TestBuildAndEqMeasurement(t *testing.T) {
	idx := New()
	idx.Build([]PointView{
		tv(1, "cpu", nil, nil),
		tv(2, "mem", nil, nil),
		tv(3, "cpu", nil, nil),
	})

	res := idx.EqMeasurement("cpu")
	if !res.Complete {
		t.Fatalf("expected Complete result")
	}
	if got := []int(res.Items); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("expected [0 2], got %v", got)
	}
}

func TestTimeCompare(t *testing.T) {
	idx := New()
	idx.Build([]PointView{
		tv(10, "cpu", nil, nil),
		tv(20, "cpu", nil, nil),
		tv(30, "cpu", nil, nil),
	})

	cases := []struct {
		op   CompareOp
		rhs  int64
		want []int
	}{
		{Eq, 20, []int{1}},
		{Ne, 20, []int{0, 2}},
		{Lt, 20, []int{0}},
		{Le, 20, []int{0, 1}},
		{Gt, 20, []int{2}},
		{Ge, 20, []int{1, 2}},
	}
	for _, c := range cases {
		res := idx.TimeCompare(c.op, time.Unix(c.rhs, 0).UTC())
		if !equalPositions(res.Items, c.want) {
			t.Fatalf("op %v: expected %v, got %v", c.op, c.want, res.Items)
		}
	}
}

func TestTagEqAndExists(t *testing.T) {
	idx := New()
	idx.Build([]PointView{
		tv(1, "cpu", map[string]*string{"host": mustStr("a")}, nil),
		tv(2, "cpu", map[string]*string{"host": mustStr("b")}, nil),
		tv(3, "cpu", nil, nil),
	})

	if got := idx.TagEq("host", "a").Items; !equalPositions(got, []int{0}) {
		t.Fatalf("expected [0], got %v", got)
	}
	if got := idx.TagExists("host").Items; !equalPositions(got, []int{0, 1}) {
		t.Fatalf("expected [0 1], got %v", got)
	}
}

func TestFieldCompareAndExistsWithNulls(t *testing.T) {
	idx := New()
	idx.Build([]PointView{
		tv(1, "cpu", nil, map[string]FieldVal{"usage": {Num: 10}}),
		tv(2, "cpu", nil, map[string]FieldVal{"usage": {Null: true}}),
		tv(3, "cpu", nil, map[string]FieldVal{"usage": {Num: 20}}),
	})

	if got := idx.FieldExists("usage").Items; !equalPositions(got, []int{0, 1, 2}) {
		t.Fatalf("expected [0 1 2], got %v", got)
	}
	if got := idx.FieldCompare("usage", Gt, FieldVal{Num: 10}).Items; !equalPositions(got, []int{2}) {
		t.Fatalf("expected [2], got %v", got)
	}
	if got := idx.FieldCompare("usage", Ne, FieldVal{Null: true}).Items; !equalPositions(got, []int{0, 2}) {
		t.Fatalf("expected [0 2], got %v", got)
	}
}

func TestInsertIncrementalOutOfOrderInvalidates(t *testing.T) {
	idx := New()
	idx.Build([]PointView{tv(10, "cpu", nil, nil)})

	if ok := idx.InsertIncremental(tv(20, "cpu", nil, nil)); !ok {
		t.Fatalf("expected well-ordered insert to succeed")
	}
	if ok := idx.InsertIncremental(tv(5, "cpu", nil, nil)); ok {
		t.Fatalf("expected out-of-order insert to fail")
	}
	if idx.Valid() {
		t.Fatalf("expected index invalidated after out-of-order insert")
	}
}

func TestPatchPointSameTimeKeepsIndexValid(t *testing.T) {
	idx := New()
	idx.Build([]PointView{tv(10, "cpu", map[string]*string{"host": mustStr("a")}, map[string]FieldVal{"usage": {Num: 1}})})

	old := tv(10, "cpu", map[string]*string{"host": mustStr("a")}, map[string]FieldVal{"usage": {Num: 1}})
	updated := tv(10, "mem", map[string]*string{"host": mustStr("b")}, map[string]FieldVal{"usage": {Num: 2}})

	if ok := idx.PatchPoint(0, old, updated); !ok {
		t.Fatalf("expected in-place patch to succeed")
	}
	if !idx.Valid() {
		t.Fatalf("expected index to remain valid after same-time patch")
	}
	if got := idx.EqMeasurement("mem").Items; !equalPositions(got, []int{0}) {
		t.Fatalf("expected patched position under new measurement, got %v", got)
	}
	if got := idx.EqMeasurement("cpu").Items; len(got) != 0 {
		t.Fatalf("expected no positions left under old measurement, got %v", got)
	}
	if got := idx.TagEq("host", "b").Items; !equalPositions(got, []int{0}) {
		t.Fatalf("expected tag updated, got %v", got)
	}
	if got := idx.FieldCompare("usage", Eq, FieldVal{Num: 2}).Items; !equalPositions(got, []int{0}) {
		t.Fatalf("expected field updated, got %v", got)
	}
}

func TestPatchPointTimeChangeInvalidates(t *testing.T) {
	idx := New()
	idx.Build([]PointView{tv(10, "cpu", nil, nil)})

	old := tv(10, "cpu", nil, nil)
	updated := tv(99, "cpu", nil, nil)
	if ok := idx.PatchPoint(0, old, updated); ok {
		t.Fatalf("expected time-changing patch to fail")
	}
	if idx.Valid() {
		t.Fatalf("expected index invalidated after time change")
	}
}

func TestRemoveRenumbersPositions(t *testing.T) {
	idx := New()
	idx.Build([]PointView{
		tv(1, "cpu", nil, map[string]FieldVal{"usage": {Num: 1}}),
		tv(2, "mem", nil, map[string]FieldVal{"usage": {Num: 2}}),
		tv(3, "cpu", nil, map[string]FieldVal{"usage": {Num: 3}}),
	})

	idx.Remove(PositionSet{0})

	if got := idx.Len(); got != 2 {
		t.Fatalf("expected 2 remaining, got %d", got)
	}
	if got := idx.EqMeasurement("mem").Items; !equalPositions(got, []int{0}) {
		t.Fatalf("expected mem renumbered to 0, got %v", got)
	}
	if got := idx.EqMeasurement("cpu").Items; !equalPositions(got, []int{1}) {
		t.Fatalf("expected surviving cpu renumbered to 1, got %v", got)
	}
	if got := idx.FieldCompare("usage", Eq, FieldVal{Num: 3}).Items; !equalPositions(got, []int{1}) {
		t.Fatalf("expected field entry renumbered to 1, got %v", got)
	}
}

func TestPositionSetOps(t *testing.T) {
	a := PositionSet{0, 2, 4}
	b := PositionSet{1, 2, 3}

	if got := a.Union(b); !equalPositions(got, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("union: got %v", got)
	}
	if got := a.Intersect(b); !equalPositions(got, []int{2}) {
		t.Fatalf("intersect: got %v", got)
	}
	if got := a.Complement(5); !equalPositions(got, []int{1, 3}) {
		t.Fatalf("complement: got %v", got)
	}
}

func equalPositions(got PositionSet, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
