package schema

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sdg-cli/internal/table"
)

// DefaultThreshold accepts only near-perfect coincidental matches.
const DefaultThreshold = 1.0

// ErrBelowThreshold is returned when the best match scores under the merge
// threshold. No merge is performed.
var ErrBelowThreshold = eris.New("no match above threshold")

// Suffixes applied to clashing non-key column names, left then right.
const (
	SuffixLeft  = "_x"
	SuffixRight = "_y"
)

// Merge inner-joins a and b on their best-matching column pair when its
// score reaches threshold. All columns of both sides are kept; when both key
// columns share a name the key appears once. The returned Match is set
// whenever one was found, including below-threshold outcomes.
func Merge(a, b *table.Dataset, threshold float64) (*table.Dataset, Match, error) {
	m, err := BestMatch(a, b)
	if err != nil {
		return nil, Match{}, err
	}
	if m.Score < threshold {
		zap.L().Info("schema: no match above threshold",
			zap.String("column_a", m.ColumnA),
			zap.String("column_b", m.ColumnB),
			zap.Float64("score", m.Score),
			zap.Float64("threshold", threshold),
		)
		return nil, m, eris.Wrapf(ErrBelowThreshold, "schema: best pair %s/%s scored %.2f < %.2f", m.ColumnA, m.ColumnB, m.Score, threshold)
	}

	out, err := Join(a, b, m.ColumnA, m.ColumnB)
	if err != nil {
		return nil, m, err
	}
	return out, m, nil
}

// Join performs a relational inner equi-join of a.keyA = b.keyB. Output rows
// follow a's row order, then b's row order within each key. Missing (nil)
// keys never join.
func Join(a, b *table.Dataset, keyA, keyB string) (*table.Dataset, error) {
	colA, err := a.MustColumn(keyA)
	if err != nil {
		return nil, err
	}
	colB, err := b.MustColumn(keyB)
	if err != nil {
		return nil, err
	}

	byKey := make(map[any][]int, colB.Len())
	for r, v := range colB.Values {
		if v == nil {
			continue
		}
		byKey[v] = append(byKey[v], r)
	}

	var left, right []int
	for r, v := range colA.Values {
		if v == nil {
			continue
		}
		for _, rb := range byKey[v] {
			left = append(left, r)
			right = append(right, rb)
		}
	}

	la, rb := a.Take(left), b.Take(right)
	sharedKey := keyA == keyB

	namesB := make(map[string]bool, b.NumColumns())
	for _, n := range b.ColumnNames() {
		namesB[n] = true
	}
	namesA := make(map[string]bool, a.NumColumns())
	for _, n := range a.ColumnNames() {
		namesA[n] = true
	}

	cols := make([]table.Column, 0, a.NumColumns()+b.NumColumns())
	for _, c := range la.Columns() {
		if namesB[c.Name] && !(sharedKey && c.Name == keyA) {
			c.Name += SuffixLeft
		}
		cols = append(cols, c)
	}
	for _, c := range rb.Columns() {
		if sharedKey && c.Name == keyB {
			continue
		}
		if namesA[c.Name] {
			c.Name += SuffixRight
		}
		cols = append(cols, c)
	}

	out, err := table.New(cols...)
	if err != nil {
		return nil, eris.Wrap(err, "schema: build joined dataset")
	}
	return out, nil
}
