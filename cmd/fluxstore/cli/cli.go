// Package cli implements the fluxstore command's subcommands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fluxstore"
	"fluxstore/internal/config"
	"fluxstore/internal/config/file"
	"fluxstore/internal/logging"
)

// Logger is set by the root command's PersistentPreRunE once flags are
// parsed. Subcommands read it lazily (at RunE time, not package init),
// since cobra parses persistent flags before RunE fires.
var Logger *slog.Logger

// ConfigPath is set by the root command's --config persistent flag. When
// non-empty, db-opening subcommands load unset open-options from it and
// save the options they resolved back to it, so a later invocation of the
// CLI against the same --config file can omit --db/--memory/--compress.
var ConfigPath string

func logger() *slog.Logger {
	return logging.Default(Logger).With("component", "cli")
}

// dbOpenFlags holds the flag values every subcommand that opens a Database
// shares; addDBFlags binds them to a command's flag set and returns the
// struct the RunE closure reads from.
type dbOpenFlags struct {
	path       string
	memory     bool
	compress   bool
	accessMode string
}

func addDBFlags(cmd *cobra.Command, defaultAccessMode string) *dbOpenFlags {
	f := &dbOpenFlags{}
	cmd.Flags().StringVar(&f.path, "db", "", "path to the database file (required unless --memory or --config supplies one)")
	cmd.Flags().BoolVar(&f.memory, "memory", false, "use an in-memory database instead of a file")
	cmd.Flags().BoolVar(&f.compress, "compress", false, "zstd-compress the database file")
	cmd.Flags().StringVar(&f.accessMode, "access-mode", defaultAccessMode, "storage access mode: r, w, a, r+")
	return f
}

// open resolves the Database to use: flags take precedence, falling back
// to whatever was last saved under ConfigPath, then saves the resolved
// options back so the next invocation can reuse them.
func (f *dbOpenFlags) open() (*fluxstore.Database, error) {
	opts := config.Options{
		AutoIndex:     true,
		AccessMode:    f.accessMode,
		FlushOnInsert: true,
	}
	if f.memory {
		opts.Storage = "memory"
	} else {
		if f.path != "" {
			opts.Storage = "file"
		}
		opts.Path = f.path
		opts.CreateDirs = true
		opts.Compress = f.compress
	}

	var store *file.Store
	if ConfigPath != "" {
		store = file.NewStore(ConfigPath)
		saved, err := store.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", ConfigPath, err)
		}
		if saved != nil {
			opts = mergeOptions(*saved, opts)
		}
	}
	if opts.Storage == "" {
		opts.Storage = "file"
	}

	fsOpts := opts.ToFluxstoreOptions()
	fsOpts.Logger = Logger
	db, err := fluxstore.Open(fsOpts)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Save(context.Background(), opts); err != nil {
			return nil, fmt.Errorf("save config %s: %w", ConfigPath, err)
		}
	}
	return db, nil
}

// mergeOptions lets explicit flag-sourced values win over saved defaults,
// using the zero value as "not explicitly set" for fields where the zero
// value would never be a deliberate choice (a path, an access mode).
func mergeOptions(saved, flags config.Options) config.Options {
	merged := saved
	if flags.Storage != "" {
		merged.Storage = flags.Storage
	}
	if flags.Path != "" {
		merged.Path = flags.Path
	}
	if flags.AccessMode != "" {
		merged.AccessMode = flags.AccessMode
	}
	merged.AutoIndex = flags.AutoIndex
	merged.FlushOnInsert = flags.FlushOnInsert
	merged.CreateDirs = merged.CreateDirs || flags.CreateDirs
	merged.Compress = merged.Compress || flags.Compress
	return merged
}
