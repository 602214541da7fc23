// Package table provides immutable, column-oriented datasets. Every operation
// returns a new Dataset; column value slices are shared read-only.
package table

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrConfiguration marks a missing or invalid column, path or parameter.
var ErrConfiguration = eris.New("configuration error")

// Kind is the scalar type shared by every value in a column.
type Kind int

// Column kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindGeometry
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindGeometry:
		return "geometry"
	}
	return "unknown"
}

// Column is a named, uniformly typed value sequence. Values hold string,
// int64, float64, bool or geom.T according to Kind; nil is a missing value.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Len returns the number of values in the column.
func (c Column) Len() int { return len(c.Values) }

// StringAt returns the string form of the i-th value.
func (c Column) StringAt(i int) string {
	return FormatValue(c.Values[i])
}

// FormatValue renders a column value the way classification criteria
// compare against it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case geom.T:
		return fmt.Sprintf("%T", x)
	default:
		return fmt.Sprint(x)
	}
}

// Strings builds a string column.
func Strings(name string, vals ...string) Column {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return Column{Name: name, Kind: KindString, Values: out}
}

// Ints builds an int column.
func Ints(name string, vals ...int64) Column {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return Column{Name: name, Kind: KindInt, Values: out}
}

// Floats builds a float column.
func Floats(name string, vals ...float64) Column {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return Column{Name: name, Kind: KindFloat, Values: out}
}

// Geometries builds a geometry column.
func Geometries(name string, vals ...geom.T) Column {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return Column{Name: name, Kind: KindGeometry, Values: out}
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a Dataset. Columns must have unique names and equal lengths.
func New(cols ...Column) (*Dataset, error) {
	d := &Dataset{
		cols:  make([]Column, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.Name == "" {
			return nil, eris.Wrapf(ErrConfiguration, "table: column %d has no name", i)
		}
		if _, dup := d.index[c.Name]; dup {
			return nil, eris.Wrapf(ErrConfiguration, "table: duplicate column %q", c.Name)
		}
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, eris.Errorf("table: column %q has %d values, want %d", c.Name, c.Len(), d.rows)
		}
		d.index[c.Name] = i
		d.cols[i] = c
	}
	return d, nil
}

// Empty returns a dataset with no columns and no rows.
func Empty() *Dataset {
	return &Dataset{index: map[string]int{}}
}

// Len returns the row count.
func (d *Dataset) Len() int { return d.rows }

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int { return len(d.cols) }

// Columns returns the columns in declared order.
func (d *Dataset) Columns() []Column {
	out := make([]Column, len(d.cols))
	copy(out, d.cols)
	return out
}

// ColumnNames returns the column names in declared order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.cols[i], true
}

// MustColumn looks up a column, returning ErrConfiguration when it is absent.
func (d *Dataset) MustColumn(name string) (Column, error) {
	c, ok := d.Column(name)
	if !ok {
		return Column{}, eris.Wrapf(ErrConfiguration, "table: unknown column %q", name)
	}
	return c, nil
}

// ColumnAt returns the i-th column.
func (d *Dataset) ColumnAt(i int) Column { return d.cols[i] }

// Value returns the value at row for the named column, or nil.
func (d *Dataset) Value(row int, name string) any {
	c, ok := d.Column(name)
	if !ok {
		return nil
	}
	return c.Values[row]
}

// Take returns a dataset holding the given rows, in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	cols := make([]Column, len(d.cols))
	for i, c := range d.cols {
		vals := make([]any, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		cols[i] = Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return &Dataset{cols: cols, index: d.index, rows: len(rows)}
}

// Filter returns the rows for which keep reports true.
func (d *Dataset) Filter(keep func(row int) bool) *Dataset {
	rows := make([]int, 0, d.rows)
	for r := 0; r < d.rows; r++ {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	if len(rows) == d.rows {
		return d
	}
	return d.Take(rows)
}

// Drop returns the dataset without the named columns. Unknown names are
// ignored.
func (d *Dataset) Drop(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	cols := make([]Column, 0, len(d.cols))
	for _, c := range d.cols {
		if !drop[c.Name] {
			cols = append(cols, c)
		}
	}
	out := &Dataset{cols: cols, index: make(map[string]int, len(cols)), rows: d.rows}
	for i, c := range cols {
		out.index[c.Name] = i
	}
	return out
}
