package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewStatsCmd builds `fluxstore stats --db PATH`.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print point count, index validity, and measurement names",
	}
	dbFlags := addDBFlags(cmd, "r")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		db, err := dbFlags.open()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		stats, err := db.Stats()
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "points: %d\n", stats.PointCount)
		fmt.Fprintf(out, "index valid: %t\n", stats.IndexValid)
		fmt.Fprintf(out, "measurements: %s\n", strings.Join(stats.Measurements, ", "))
		return nil
	}

	return cmd
}
