package table

import (
	"reflect"

	"github.com/twpayne/go-geom"
)

// Dedupe drops every column whose kind and full value sequence equal an
// earlier column. The earliest column of each group survives and column
// order is otherwise preserved. Columns named in keep are never dropped.
func Dedupe(d *Dataset, keep ...string) *Dataset {
	kept := make(map[string]bool, len(keep))
	for _, name := range keep {
		kept[name] = true
	}

	var drop []string
	dropped := make([]bool, len(d.cols))
	for i := range d.cols {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(d.cols); j++ {
			if dropped[j] || kept[d.cols[j].Name] {
				continue
			}
			if columnsEqual(d.cols[i], d.cols[j]) {
				dropped[j] = true
				drop = append(drop, d.cols[j].Name)
			}
		}
	}
	if len(drop) == 0 {
		return d
	}
	return d.Drop(drop...)
}

func columnsEqual(a, b Column) bool {
	if a.Kind != b.Kind || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !valuesEqual(a.Values[i], b.Values[i]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	ga, aGeom := a.(geom.T)
	gb, bGeom := b.(geom.T)
	if aGeom || bGeom {
		if !aGeom || !bGeom {
			return false
		}
		return geometriesEqual(ga, gb)
	}
	return a == b
}

func geometriesEqual(a, b geom.T) bool {
	if a == b {
		return true
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) || a.Layout() != b.Layout() {
		return false
	}
	fa, fb := a.FlatCoords(), b.FlatCoords()
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return intsEqual(a.Ends(), b.Ends()) && reflect.DeepEqual(a.Endss(), b.Endss())
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
