package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReindexCmd builds `fluxstore reindex --db PATH`. When the index is
// invalid it sorts the stored points by time and rebuilds the index; when
// the index is already valid it changes nothing.
func NewReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the in-memory index from storage",
	}
	dbFlags := addDBFlags(cmd, "r+")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		db, err := dbFlags.open()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := db.Reindex(); err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		logger().Info("reindex complete")
		fmt.Fprintln(cmd.OutOrStdout(), "reindex complete")
		return nil
	}

	return cmd
}
