package table

import "slices"

// Row is an ordered sequence of named string fields. Rows produced by one
// parse call share the same columns.
type Row struct {
	columns []string
	values  []string
}

// NewRow builds a row. values is padded with empty strings or truncated to
// the number of columns.
func NewRow(columns []string, values ...string) Row {
	v := make([]string, len(columns))
	copy(v, values)
	return Row{columns: columns, values: v}
}

// Get returns the value of column name, or "" when the column is unknown.
func (r Row) Get(name string) string {
	if i := slices.Index(r.columns, name); i >= 0 {
		return r.values[i]
	}
	return ""
}

// Columns returns the column names in order.
func (r Row) Columns() []string { return slices.Clone(r.columns) }

// Values returns the field values in column order.
func (r Row) Values() []string { return slices.Clone(r.values) }

// Len returns the number of fields.
func (r Row) Len() int { return len(r.values) }

// Map returns the row as a column-to-value map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// Column extracts one column from every row.
func Column(rows []Row, name string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Get(name)
	}
	return out
}
