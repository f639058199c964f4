package storage

import (
	"path/filepath"
	"testing"
)

func TestFileAppendAndReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")

	b, err := OpenFile(FileConfig{Path: path, FlushOnInsert: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rows := []Row{
		row("2024-01-01T00:00:00", "cities"),
		row("2024-01-01T00:00:01", "cities"),
	}
	if err := b.Append(rows); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenFile(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after reopen, got %d", len(got))
	}
	if !reopened.IndexIntact() {
		t.Fatal("expected index intact after reopening an in-order file")
	}
}

func TestFileCompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv.zst")

	b, err := OpenFile(FileConfig{Path: path, Compress: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.Append([]Row{row("2024-01-01T00:00:00", "cities")}); err != nil {
		t.Fatalf("append: %v", err)
	}

	reopened, err := OpenFile(FileConfig{Path: path, Compress: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0][1] != "cities" {
		t.Fatalf("unexpected rows after compressed round trip: %v", got)
	}
}

func TestFileAccessModeCapability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")

	b, err := OpenFile(FileConfig{Path: path, Mode: ReadOnly, CreateDirs: false})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.Append([]Row{row("2024-01-01T00:00:00", "m")}); err == nil {
		t.Fatal("expected error appending to a read-only file backend")
	}
}

func TestFileReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")

	b, err := OpenFile(FileConfig{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b.Append([]Row{row("2024-01-01T00:00:00", "m")})
	if err := b.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected 0 rows after reset, got %d", b.Len())
	}
}
