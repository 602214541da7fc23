package lookup

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sdg-cli/internal/table"
)

// ReadCSVFile reads a CSV lookup table from disk.
func ReadCSVFile(path string, opts Options) (*table.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lookup: open csv %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f, opts)
}

// ReadCSV reads a comma-separated table. Rows may vary in length.
func ReadCSV(r io.Reader, opts Options) (*table.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "lookup: read csv")
	}
	return FromRows(rows, opts.HeaderRow)
}
