package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fluxstore/internal/querytext"
)

// NewCountCmd builds `fluxstore count --db PATH 'EXPR'`.
func NewCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count EXPR",
		Short: "Count points matching a query",
		Args:  cobra.ExactArgs(1),
	}
	dbFlags := addDBFlags(cmd, "r")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		q, err := querytext.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse query: %w", err)
		}
		db, err := dbFlags.open()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		n, err := db.Count(q)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	return cmd
}
