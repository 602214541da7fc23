package indicator

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
)

// OutputFileName returns the CSV name for year.
func OutputFileName(year int) string {
	return fmt.Sprintf("sdg_9_1_1_%d.csv", year)
}

// WriteCSV writes r to dir as a one-row Year,SDG_9_1_1 table and returns the
// file path. dir is created if missing.
func WriteCSV(dir string, r *Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "indicator: create output dir %s", dir)
	}
	path := filepath.Join(dir, OutputFileName(r.Year))

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "indicator: create %s", path)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	records := [][]string{
		{"Year", "SDG_9_1_1"},
		{strconv.Itoa(r.Year), strconv.FormatFloat(r.Value, 'f', -1, 64)},
	}
	if err := w.WriteAll(records); err != nil {
		return "", eris.Wrapf(err, "indicator: write %s", path)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "indicator: close %s", path)
	}
	return path, nil
}
