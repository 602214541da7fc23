package table

// Criterion names a column and the values whose rows are removed.
type Criterion struct {
	Column   string
	Excluded []string
}

// Apply removes every row whose Column value is in Excluded.
func (c Criterion) Apply(d *Dataset) (*Dataset, error) {
	return RemoveByClasses(d, c.Column, c.Excluded)
}

// RemoveByClass returns the rows whose column value differs from value.
func RemoveByClass(d *Dataset, column, value string) (*Dataset, error) {
	return RemoveWhere(d, column, func(v string) bool { return v == value })
}

// RemoveByClasses applies RemoveByClass once per value. The result does not
// depend on the order of values.
func RemoveByClasses(d *Dataset, column string, values []string) (*Dataset, error) {
	if _, err := d.MustColumn(column); err != nil {
		return nil, err
	}
	out := d
	for _, v := range values {
		var err error
		out, err = RemoveByClass(out, column, v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RemoveWhere drops the rows whose column value satisfies drop.
func RemoveWhere(d *Dataset, column string, drop func(string) bool) (*Dataset, error) {
	col, err := d.MustColumn(column)
	if err != nil {
		return nil, err
	}
	return d.Filter(func(row int) bool {
		return !drop(col.StringAt(row))
	}), nil
}

// Distinct returns the distinct string forms of a column in first-seen order.
func Distinct(d *Dataset, column string) ([]string, error) {
	col, err := d.MustColumn(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for i := range col.Values {
		s := col.StringAt(i)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}
