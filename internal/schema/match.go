package schema

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/sdg-cli/internal/table"
)

// ErrSchemaMismatch is returned when two datasets share no column pair of the
// same kind outside of geometry columns.
var ErrSchemaMismatch = eris.New("no compatible column pair")

// Match is the best-scoring column pair between two datasets.
type Match struct {
	ColumnA string  `json:"column_a"`
	ColumnB string  `json:"column_b"`
	Score   float64 `json:"score"`
}

// Result is either a found Match or NotFound.
type Result struct {
	Match Match
	Found bool
}

// Candidates scores every comparable column pair, iterating a's columns
// outer and b's inner in declared order. Both value sequences are cut to
// the shorter dataset's row count before scoring.
func Candidates(a, b *table.Dataset) []Match {
	var out []Match
	for _, ca := range a.Columns() {
		for _, cb := range b.Columns() {
			if !compatible(ca, cb) {
				continue
			}
			n := len(MinLenSplit(ca.Values, cb.Values).Min)
			out = append(out, Match{
				ColumnA: ca.Name,
				ColumnB: cb.Name,
				Score:   Similarity(ca.Values[:n], cb.Values[:n]),
			})
		}
	}
	return out
}

// FindBestMatch returns the highest-scoring comparable pair. Ties keep the
// first pair found.
func FindBestMatch(a, b *table.Dataset) Result {
	var res Result
	for _, m := range Candidates(a, b) {
		if !res.Found || m.Score > res.Match.Score {
			res = Result{Match: m, Found: true}
		}
	}
	return res
}

// BestMatch is FindBestMatch reporting NotFound as ErrSchemaMismatch.
func BestMatch(a, b *table.Dataset) (Match, error) {
	res := FindBestMatch(a, b)
	if !res.Found {
		return Match{}, eris.Wrapf(ErrSchemaMismatch, "schema: match %v against %v", a.ColumnNames(), b.ColumnNames())
	}
	return res.Match, nil
}

func compatible(a, b table.Column) bool {
	if a.Kind != b.Kind {
		return false
	}
	return a.Kind != table.KindGeometry
}
