// Package file provides a JSON-on-disk config.Store, so a CLI invocation
// can save the open-options it was given and a later invocation can load
// them without repeating every flag.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"fluxstore/internal/config"
)

// Store persists config.Options as a single JSON file, written via a
// temp-file-then-rename sequence so a crash mid-write never leaves a
// truncated file behind — the same atomic-rewrite pattern the file
// storage backend uses for data.
type Store struct {
	path string
}

var _ config.Store = (*Store)(nil)

// NewStore returns a Store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted options. Returns nil, nil if path does not exist.
func (s *Store) Load(ctx context.Context) (*config.Options, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var opts config.Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Save atomically rewrites the persisted options.
func (s *Store) Save(ctx context.Context, opts config.Options) error {
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".fluxstore-config-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
