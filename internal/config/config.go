// Package config persists the Database open-options a caller wants to
// reuse across process restarts (spec.md §6 "persisted state"): which
// storage backend, at what path, with which access mode and encoding
// settings. It is control-plane state, not data-plane state — it never
// touches Points or the index, and it is not on the insert/query hot
// path.
package config

import (
	"context"

	"fluxstore"
)

// Options is the serializable counterpart of the root package's
// Options — every field here round-trips to a value the root package's
// Options struct accepts directly.
type Options struct {
	AutoIndex     bool
	Storage       string // "memory" or "file"
	Path          string
	CreateDirs    bool
	AccessMode    string
	FlushOnInsert bool
	Delimiter     string // single rune, empty means the storage default
	Compress      bool
}

// Store persists and loads a Database's open-options.
type Store interface {
	// Load reads the persisted options. Returns nil if none have been
	// saved yet.
	Load(ctx context.Context) (*Options, error)

	// Save persists opts, replacing whatever was previously saved.
	Save(ctx context.Context, opts Options) error
}

// ToFluxstoreOptions converts persisted Options into fluxstore.Options,
// ready to pass to fluxstore.Open.
func (o Options) ToFluxstoreOptions() fluxstore.Options {
	kind := fluxstore.StorageMemory
	if o.Storage == "file" {
		kind = fluxstore.StorageFile
	}
	var delim rune
	for _, r := range o.Delimiter {
		delim = r
		break
	}
	return fluxstore.Options{
		AutoIndex:     o.AutoIndex,
		Storage:       kind,
		Path:          o.Path,
		CreateDirs:    o.CreateDirs,
		AccessMode:    o.AccessMode,
		FlushOnInsert: o.FlushOnInsert,
		Delimiter:     delim,
		Compress:      o.Compress,
	}
}

// FromFluxstoreOptions converts fluxstore.Options into its persisted form.
func FromFluxstoreOptions(o fluxstore.Options) Options {
	storage := "memory"
	if o.Storage == fluxstore.StorageFile {
		storage = "file"
	}
	delim := ""
	if o.Delimiter != 0 {
		delim = string(o.Delimiter)
	}
	return Options{
		AutoIndex:     o.AutoIndex,
		Storage:       storage,
		Path:          o.Path,
		CreateDirs:    o.CreateDirs,
		AccessMode:    o.AccessMode,
		FlushOnInsert: o.FlushOnInsert,
		Delimiter:     delim,
		Compress:      o.Compress,
	}
}
