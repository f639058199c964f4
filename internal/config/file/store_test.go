package file

import (
	"context"
	"path/filepath"
	"testing"

	"fluxstore/internal/config"
)

func TestLoadMissingFileReturnsNil(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	got, err := s.Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for a missing file; got %+v, %v", got, err)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewStore(path)
	ctx := context.Background()
	opts := config.Options{Storage: "file", Path: "/data/db.fluxstore", AutoIndex: true, Compress: true}

	if err := s.Save(ctx, opts); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil || got == nil {
		t.Fatalf("load: got %+v, err %v", got, err)
	}
	if *got != opts {
		t.Fatalf("expected %+v, got %+v", opts, *got)
	}
}

func TestSaveOverwritesPreviousValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewStore(path)
	ctx := context.Background()

	s.Save(ctx, config.Options{Path: "first"})
	s.Save(ctx, config.Options{Path: "second"})

	got, err := s.Load(ctx)
	if err != nil || got.Path != "second" {
		t.Fatalf("expected overwritten value, got %+v, err %v", got, err)
	}
}

func TestSaveCreatesMissingParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")
	s := NewStore(path)
	if err := s.Save(context.Background(), config.Options{Path: "x"}); err != nil {
		t.Fatalf("save into nested dir: %v", err)
	}
}
