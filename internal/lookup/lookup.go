// Package lookup reads classification lookup tables (XLSX or CSV) into
// typed datasets.
package lookup

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sdg-cli/internal/table"
)

// Options configures table loading.
type Options struct {
	SheetName  string // XLSX only; overrides SheetIndex
	SheetIndex int    // XLSX only; default 0
	HeaderRow  int    // zero-based row holding column names; rows above it are ignored
}

// Open reads the lookup table at path, choosing the parser by extension.
func Open(path string, opts Options) (*table.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, opts)
	case ".csv":
		return ReadCSVFile(path, opts)
	default:
		return nil, eris.Wrapf(table.ErrConfiguration, "lookup: unsupported file type %q", filepath.Ext(path))
	}
}

// FromRows builds a dataset from raw string rows. rows[header] names the
// columns; later rows are data. Short rows are padded, trailing blank rows
// dropped, and each column is typed as Int, Float or String by inference.
func FromRows(rows [][]string, header int) (*table.Dataset, error) {
	if header < 0 || header >= len(rows) {
		return nil, eris.Errorf("lookup: header row %d out of range (%d rows)", header, len(rows))
	}
	names := columnNames(rows[header])
	data := rows[header+1:]
	for len(data) > 0 && blank(data[len(data)-1]) {
		data = data[:len(data)-1]
	}

	raw := make([][]string, len(names))
	var overflow int
	for _, row := range data {
		if len(row) > len(names) {
			overflow++
		}
		for c := range names {
			v := ""
			if c < len(row) {
				v = strings.TrimSpace(row[c])
			}
			raw[c] = append(raw[c], v)
		}
	}
	if overflow > 0 {
		zap.L().Debug("lookup: cells beyond header ignored", zap.Int("rows", overflow))
	}

	cols := make([]table.Column, len(names))
	for c, name := range names {
		cols[c] = inferColumn(name, raw[c])
	}
	ds, err := table.New(cols...)
	if err != nil {
		return nil, eris.Wrap(err, "lookup: build dataset")
	}
	return ds, nil
}

// columnNames trims header cells, names blank ones "Unnamed: i" and
// disambiguates repeats with a ".n" suffix.
func columnNames(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// inferColumn picks the narrowest kind every non-empty value parses as.
// Empty cells become nil.
func inferColumn(name string, raw []string) table.Column {
	isInt, isFloat, nonEmpty := true, true, false
	for _, v := range raw {
		if v == "" {
			continue
		}
		nonEmpty = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
	}

	kind := table.KindString
	switch {
	case !nonEmpty:
	case isInt:
		kind = table.KindInt
	case isFloat:
		kind = table.KindFloat
	}

	vals := make([]any, len(raw))
	for i, v := range raw {
		if v == "" {
			continue
		}
		switch kind {
		case table.KindInt:
			vals[i], _ = strconv.ParseInt(v, 10, 64)
		case table.KindFloat:
			vals[i], _ = strconv.ParseFloat(v, 64)
		default:
			vals[i] = v
		}
	}
	return table.Column{Name: name, Kind: kind, Values: vals}
}
