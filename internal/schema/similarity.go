// Package schema joins datasets whose join columns are not known in advance by
// scoring value overlap between candidate column pairs.
package schema

// Similarity returns the share of a's distinct values that also occur in b,
// as a percentage. Missing (nil) values are not part of either set, matching
// Join, which never pairs nil keys. An a with no present values scores 0.
func Similarity(a, b []any) float64 {
	setA := valueSet(a)
	if len(setA) == 0 {
		return 0
	}
	setB := valueSet(b)
	var common int
	for v := range setA {
		if _, ok := setB[v]; ok {
			common++
		}
	}
	return float64(common) / float64(len(setA)) * 100
}

func valueSet(vs []any) map[any]struct{} {
	set := make(map[any]struct{}, len(vs))
	for _, v := range vs {
		if v != nil {
			set[v] = struct{}{}
		}
	}
	return set
}

// Split holds two sequences ordered by length.
type Split[T any] struct {
	Min []T
	Max []T
}

// MinLenSplit orders a and b by length. When the lengths are equal, b is
// reported as Min.
func MinLenSplit[T any](a, b []T) Split[T] {
	if len(a) < len(b) {
		return Split[T]{Min: a, Max: b}
	}
	return Split[T]{Min: b, Max: a}
}
