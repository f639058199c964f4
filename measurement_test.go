package fluxstore

import (
	"testing"
	"time"
)

func TestMeasurementScopesInsertAndSearch(t *testing.T) {
	db := openMemDB(t)
	cities := db.Measurement("cities")
	events := db.Measurement("events")

	if err := cities.Insert(mustTime(t, "2024-01-01T00:00:00Z"), TagSet{"city": StrTag("la")}, nil); err != nil {
		t.Fatalf("insert cities: %v", err)
	}
	if err := events.Insert(mustTime(t, "2024-01-01T00:00:01Z"), nil, nil); err != nil {
		t.Fatalf("insert events: %v", err)
	}

	all, err := cities.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 || all[0].Measurement() != "cities" {
		t.Fatalf("expected 1 cities point, got %+v", all)
	}

	total, err := db.Count(Noop())
	if err != nil || total != 2 {
		t.Fatalf("expected 2 total across measurements, got %d err=%v", total, err)
	}
}

func TestMeasurementRemoveAllOnlyTouchesItsOwnRows(t *testing.T) {
	db := openMemDB(t)
	a := db.Measurement("a")
	b := db.Measurement("b")

	a.Insert(mustTime(t, "2024-01-01T00:00:00Z"), nil, nil)
	b.Insert(mustTime(t, "2024-01-01T00:00:01Z"), nil, nil)

	n, err := a.RemoveAll()
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removed, got %d err=%v", n, err)
	}
	remaining, err := db.Search(Noop())
	if err != nil || len(remaining) != 1 || remaining[0].Measurement() != "b" {
		t.Fatalf("unexpected remaining rows: %+v err=%v", remaining, err)
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return parsed
}
