package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PieterjanRobbe/ftxctl/internal/utils"
)

// Table is a numeric text table, one row per line.
type Table [][]float64

// ReadTable parses whitespace separated numbers. Blank lines and lines
// starting with '#' are skipped.
func ReadTable(path string) (Table, error) {
	lines, err := utils.ReadLines(path)
	if err != nil {
		return nil, err
	}

	var table Table
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, len(fields))
		for j, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid number %q", path, i+1, field)
			}
			row[j] = v
		}
		table = append(table, row)
	}
	return table, nil
}

// Pairs reflows the table into rows of two values, for files that store
// (time, value) pairs across a single line.
func (t Table) Pairs() (Table, error) {
	var flat []float64
	for _, row := range t {
		flat = append(flat, row...)
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("expected (time, value) pairs, got %d numbers", len(flat))
	}
	pairs := make(Table, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		pairs = append(pairs, []float64{flat[i], flat[i+1]})
	}
	return pairs, nil
}

// Unique returns the distinct rows sorted lexicographically, which orders them
// by time for tables whose first column is time.
func Unique(tables ...Table) Table {
	var rows Table
	for _, t := range tables {
		rows = append(rows, t...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return compareRows(rows[i], rows[j]) < 0
	})

	var unique Table
	for _, row := range rows {
		if len(unique) > 0 && compareRows(unique[len(unique)-1], row) == 0 {
			continue
		}
		unique = append(unique, row)
	}
	return unique
}

func compareRows(a, b []float64) int {
	for k := 0; k < len(a) && k < len(b); k++ {
		switch {
		case a[k] < b[k]:
			return -1
		case a[k] > b[k]:
			return 1
		}
	}
	return len(a) - len(b)
}
