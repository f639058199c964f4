package config

import (
	"testing"

	"fluxstore"
)

func TestOptionsRoundTripThroughFluxstoreOptions(t *testing.T) {
	orig := Options{
		AutoIndex:     true,
		Storage:       "file",
		Path:          "/tmp/example.fluxstore",
		CreateDirs:    true,
		AccessMode:    "r+",
		FlushOnInsert: true,
		Delimiter:     ";",
		Compress:      true,
	}

	fsOpts := orig.ToFluxstoreOptions()
	if fsOpts.Storage != fluxstore.StorageFile {
		t.Fatalf("expected StorageFile, got %v", fsOpts.Storage)
	}
	if fsOpts.Delimiter != ';' {
		t.Fatalf("expected delimiter ';', got %q", fsOpts.Delimiter)
	}

	back := FromFluxstoreOptions(fsOpts)
	if back != orig {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, orig)
	}
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	orig := Options{Storage: "memory", AutoIndex: true}
	fsOpts := orig.ToFluxstoreOptions()
	if fsOpts.Storage != fluxstore.StorageMemory {
		t.Fatalf("expected StorageMemory, got %v", fsOpts.Storage)
	}
	if fsOpts.Delimiter != 0 {
		t.Fatalf("expected zero delimiter when unset, got %q", fsOpts.Delimiter)
	}
}
