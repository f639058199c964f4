package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fluxstore"
)

// NewInsertCmd builds `fluxstore insert`, reading canonical flat-token CSV
// rows from stdin (the same row shape the file backend persists) and
// inserting each as a Point, optionally overriding the measurement.
func NewInsertCmd() *cobra.Command {
	var measurement string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert points read as CSV rows from stdin",
	}
	dbFlags := addDBFlags(cmd, "r+")
	cmd.Flags().StringVar(&measurement, "measurement", "", "override the measurement on every inserted point")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		db, err := dbFlags.open()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		n, err := insertFromReader(db, os.Stdin, measurement)
		if err != nil {
			return err
		}
		logger().Info("inserted points", "count", n)
		fmt.Fprintf(cmd.OutOrStdout(), "inserted %d points\n", n)
		return nil
	}

	return cmd
}

func insertFromReader(db *fluxstore.Database, r io.Reader, measurementOverride string) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var points []fluxstore.Point
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv: %w", err)
		}
		p, err := fluxstore.DecodeRow(row)
		if err != nil {
			return 0, fmt.Errorf("decode row: %w", err)
		}
		if measurementOverride != "" {
			rebuilt, err := fluxstore.NewPoint(p.Time(), measurementOverride, p.Tags(), p.Fields())
			if err != nil {
				return 0, err
			}
			p = rebuilt
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return 0, nil
	}
	if err := db.InsertMultiple(points); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	return len(points), nil
}
