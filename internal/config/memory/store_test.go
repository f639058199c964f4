package memory

import (
	"context"
	"testing"

	"fluxstore/internal/config"
)

func TestLoadBeforeSaveReturnsNil(t *testing.T) {
	s := NewStore()
	got, err := s.Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil before any Save; got %+v, %v", got, err)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	opts := config.Options{Storage: "file", Path: "/data/db.fluxstore", AutoIndex: true}

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

func TestLoadReturnsACopyNotSharedState(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.Save(ctx, config.Options{Path: "a"})

	got, _ := s.Load(ctx)
	got.Path = "mutated"

	got2, _ := s.Load(ctx)
	if got2.Path != "a" {
		t.Fatalf("expected stored value unaffected by caller mutation, got %q", got2.Path)
	}
}
