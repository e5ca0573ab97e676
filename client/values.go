package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// parseValues converts command line arguments to integers
func parseValues(args []string) ([]int64, error) {
	values := make([]int64, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", arg, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// readValuesFile reads every integer of a CSV file, row by row, skipping blank cells
func readValuesFile(path string) ([]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open values file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var values []int64
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		for _, cell := range record {
			if cell = strings.TrimSpace(cell); cell == "" {
				continue
			}
			v, err := strconv.ParseInt(cell, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q", line, cell)
			}
			values = append(values, v)
		}
	}
}

// splitBatches cuts values into runs of at most size, keeping each run's starting
// sequence index. size <= 0 sends everything at once.
func splitBatches(seq int, values []int64, size int) []batch {
	if size <= 0 || size >= len(values) {
		return []batch{{seq: seq, values: values}}
	}
	batches := make([]batch, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		batches = append(batches, batch{seq: seq + start, values: values[start:end]})
	}
	return batches
}

type batch struct {
	seq    int
	values []int64
}
