package storage

import "testing"

func TestMemoryAppendAndRead(t *testing.T) {
	b := NewMemory(MemoryConfig{})
	rows := []Row{
		row("2024-01-01T00:00:00", "cities"),
		row("2024-01-01T00:00:01", "cities"),
	}
	if err := b.Append(rows); err != nil {
		t.Fatalf("append: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("expected len 2, got %d", b.Len())
	}
	if !b.IndexIntact() {
		t.Fatal("expected index intact after in-order append")
	}

	got, err := b.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
}

func TestMemoryOutOfOrderAppendInvalidates(t *testing.T) {
	b := NewMemory(MemoryConfig{})
	rows := []Row{
		row("2024-01-01T00:00:05", "m"),
		row("2024-01-01T00:00:00", "m"),
	}
	if err := b.Append(rows); err != nil {
		t.Fatalf("append: %v", err)
	}
	if b.IndexIntact() {
		t.Fatal("expected index to be invalidated by out-of-order append")
	}
}

func TestMemoryReadOnlyRejectsWrite(t *testing.T) {
	b := NewMemory(MemoryConfig{Mode: ReadOnly})
	if err := b.Append([]Row{row("2024-01-01T00:00:00", "m")}); err == nil {
		t.Fatal("expected error appending to read-only storage")
	}
}

func TestMemoryWriteSortedSetsLatestTime(t *testing.T) {
	b := NewMemory(MemoryConfig{})
	rows := []Row{
		row("2024-01-01T00:00:00", "m"),
		row("2024-01-01T00:00:10", "m"),
	}
	if err := b.Write(rows, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !b.IndexIntact() {
		t.Fatal("expected index intact after sorted write")
	}
	latest, ok := b.LatestTime()
	if !ok {
		t.Fatal("expected latest time to be set")
	}
	if latest.Format(timeLayout) != "2024-01-01T00:00:10" {
		t.Fatalf("unexpected latest time: %v", latest)
	}
}

func TestMemoryReset(t *testing.T) {
	b := NewMemory(MemoryConfig{})
	b.Append([]Row{row("2024-01-01T00:00:00", "m")})
	if err := b.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty storage after reset, got %d", b.Len())
	}
	if !b.IndexIntact() {
		t.Fatal("expected index intact (vacuously) after reset")
	}
}

func TestMemoryIterYieldsInOrder(t *testing.T) {
	b := NewMemory(MemoryConfig{})
	b.Append([]Row{
		row("2024-01-01T00:00:00", "a"),
		row("2024-01-01T00:00:01", "b"),
	})
	it, err := b.Iter()
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	defer it.Close()

	var got []string
	for {
		r, ok, err := it.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, r[1])
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected iteration order: %v", got)
	}
}
