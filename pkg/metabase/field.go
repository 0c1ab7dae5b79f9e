package metabase

import (
	"strings"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// Field names one column of the metabase table.
type Field string

const (
	FieldDataset   Field = "dataset"
	FieldDimension Field = "dimension"
	FieldLabel     Field = "label"
)

// Fields lists the columns in file order.
var Fields = []Field{FieldDataset, FieldDimension, FieldLabel}

// Columns returns the field names as strings, for table parsing.
func Columns() []string {
	out := make([]string, len(Fields))
	for i, f := range Fields {
		out[i] = string(f)
	}
	return out
}

// ParseField validates s. The legacy aliases "data" and "dic" are accepted.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dataset", "data":
		return FieldDataset, nil
	case "dimension", "dic":
		return FieldDimension, nil
	case "label":
		return FieldLabel, nil
	}
	return "", bulkerr.New(bulkerr.ErrCodeSchema, "unknown metabase field %q (want dataset, dimension or label)", s)
}

// Record is one row of the metabase table.
type Record struct {
	Dataset   string `json:"dataset"`
	Dimension string `json:"dimension"`
	Label     string `json:"label"`
}

// Get returns the value of field f.
func (r Record) Get(f Field) string {
	switch f {
	case FieldDataset:
		return r.Dataset
	case FieldDimension:
		return r.Dimension
	case FieldLabel:
		return r.Label
	}
	return ""
}

// Filter constrains a query. Empty fields are unconstrained.
type Filter struct {
	Dataset   string
	Dimension string
	Label     string
}

// FilterFrom builds a Filter from field names, validating each one.
func FilterFrom(m map[string]string) (Filter, error) {
	var f Filter
	for k, v := range m {
		field, err := ParseField(k)
		if err != nil {
			return Filter{}, err
		}
		switch field {
		case FieldDataset:
			f.Dataset = v
		case FieldDimension:
			f.Dimension = v
		case FieldLabel:
			f.Label = v
		}
	}
	return f, nil
}

func (f Filter) match(r Record) bool {
	return (f.Dataset == "" || r.Dataset == f.Dataset) &&
		(f.Dimension == "" || r.Dimension == f.Dimension) &&
		(f.Label == "" || r.Label == f.Label)
}
