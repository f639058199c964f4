package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fluxstore"
	"fluxstore/internal/querytext"
)

// NewQueryCmd builds `fluxstore query --db PATH 'EXPR'`, printing every
// matching point one per line.
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query EXPR",
		Short: "Run a query and print matching points",
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

		results, err := db.Search(q)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, p := range results {
			fmt.Fprintln(out, formatPoint(p))
		}
		logger().Info("query complete", "matches", len(results))
		return nil
	}

	return cmd
}

func formatPoint(p fluxstore.Point) string {
	s := fmt.Sprintf("%s %s", p.Time().Format("2006-01-02T15:04:05.999999999Z07:00"), p.Measurement())
	for k, v := range p.Tags() {
		if v == nil {
			s += fmt.Sprintf(" %s=null", k)
		} else {
			s += fmt.Sprintf(" %s=%s", k, *v)
		}
	}
	for k, v := range p.Fields() {
		if v.IsNull() {
			s += fmt.Sprintf(" %s=null", k)
		} else {
			f, _ := v.Float64()
			s += fmt.Sprintf(" %s=%g", k, f)
		}
	}
	return s
}
