package tally

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes the accumulated results of the given tallies to a CSV
// file, one row per tally/cell pair.
func WriteCSV(path string, tallies ...*Tally) error {
	var rows []Result
	for _, t := range tallies {
		rows = append(rows, t.Results()...)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tally: %v", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("tally: writing %s: %v", path, err)
	}
	return nil
}
