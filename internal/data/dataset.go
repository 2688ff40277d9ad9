// Package data holds the in-memory dataset model and the readers that
// produce it.
//
// A Dataset is an ordered list of rows over a fixed attribute schema. Every
// value is a float64: numeric attributes store the number itself, nominal
// attributes store the index of the category, and a missing value of either
// kind is NaN. Datasets are immutable; every transformation returns a new
// Dataset and leaves its receiver untouched.
package data

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"hwr-classifier/internal/common"
)

// ErrSchema is returned when a dataset or a transformation would violate
// the schema invariants.
var ErrSchema = errors.New("schema violation")

// AttributeKind distinguishes numeric from nominal attributes.
type AttributeKind int

const (
	Numeric AttributeKind = iota
	Nominal
)

func (k AttributeKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Nominal:
		return "nominal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Attribute describes one column of a dataset.
type Attribute struct {
	Name       string
	Kind       AttributeKind
	Categories []string // ordered permitted values of a nominal attribute
}

// NumericAttribute returns a numeric attribute called name.
func NumericAttribute(name string) Attribute {
	return Attribute{Name: name, Kind: Numeric}
}

// NominalAttribute returns a nominal attribute called name over categories.
func NominalAttribute(name string, categories []string) Attribute {
	return Attribute{Name: name, Kind: Nominal, Categories: append([]string(nil), categories...)}
}

// CategoryIndex returns the index of category, or -1 when it is not permitted.
func (a Attribute) CategoryIndex(category string) int {
	for i, c := range a.Categories {
		if c == category {
			return i
		}
	}
	return -1
}

// Format renders v the way it is written to output files.
func (a Attribute) Format(v float64) string {
	if IsMissing(v) {
		return common.MissingValue
	}
	if a.Kind == Nominal {
		i := int(v)
		if i >= 0 && i < len(a.Categories) {
			return a.Categories[i]
		}
		return common.MissingValue
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (a Attribute) clone() Attribute {
	a.Categories = append([]string(nil), a.Categories...)
	return a
}

func (a Attribute) valid(v float64) bool {
	if IsMissing(v) || a.Kind == Numeric {
		return true
	}
	return v == math.Trunc(v) && v >= 0 && int(v) < len(a.Categories)
}

// Missing returns the missing-value marker.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Dataset is an immutable table of rows over a fixed schema.
type Dataset struct {
	attrs []Attribute
	rows  [][]float64
	label int
}

// New builds a dataset with no label column. Every row must be as wide as
// attrs and every nominal value must index one of its categories.
func New(attrs []Attribute, rows [][]float64) (*Dataset, error) {
	d := &Dataset{
		attrs: make([]Attribute, len(attrs)),
		rows:  make([][]float64, len(rows)),
		label: -1,
	}
	for i, a := range attrs {
		d.attrs[i] = a.clone()
	}
	for r, row := range rows {
		if len(row) != len(attrs) {
			return nil, fmt.Errorf("%w: row %d has %d values, schema has %d attributes", ErrSchema, r, len(row), len(attrs))
		}
		for c, v := range row {
			if !d.attrs[c].valid(v) {
				return nil, fmt.Errorf("%w: row %d value %v is not a category of %s", ErrSchema, r, v, d.attrs[c].Name)
			}
		}
		d.rows[r] = append([]float64(nil), row...)
	}
	return d, nil
}

func (d *Dataset) NumAttributes() int {
	return len(d.attrs)
}

func (d *Dataset) NumRows() int {
	return len(d.rows)
}

// Attribute returns a copy of the attribute at index i.
func (d *Dataset) Attribute(i int) Attribute {
	return d.attrs[i].clone()
}

// Attributes returns a copy of the schema.
func (d *Dataset) Attributes() []Attribute {
	attrs := make([]Attribute, len(d.attrs))
	for i, a := range d.attrs {
		attrs[i] = a.clone()
	}
	return attrs
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []float64 {
	return append([]float64(nil), d.rows[i]...)
}

func (d *Dataset) Value(row, col int) float64 {
	return d.rows[row][col]
}

// LabelIndex returns the index of the label attribute, or -1 when none is set.
func (d *Dataset) LabelIndex() int {
	return d.label
}

func (d *Dataset) HasLabel() bool {
	return d.label >= 0
}

// WithLabel returns a copy of d whose label attribute is index i.
func (d *Dataset) WithLabel(i int) (*Dataset, error) {
	if i < 0 || i >= len(d.attrs) {
		return nil, fmt.Errorf("%w: label index %d out of range [0,%d)", ErrSchema, i, len(d.attrs))
	}
	out := d.copy()
	out.label = i
	return out, nil
}

// ToNominal returns a copy of d in which numeric column col becomes a
// nominal attribute over categories. Each numeric value is mapped to the
// category spelled the same way; a value with no such category is an error.
func (d *Dataset) ToNominal(col int, categories []string) (*Dataset, error) {
	if col < 0 || col >= len(d.attrs) {
		return nil, fmt.Errorf("%w: column %d out of range [0,%d)", ErrSchema, col, len(d.attrs))
	}
	if d.attrs[col].Kind != Numeric {
		return nil, fmt.Errorf("%w: column %s is %s, not numeric", ErrSchema, d.attrs[col].Name, d.attrs[col].Kind)
	}

	out := d.copy()
	out.attrs[col] = NominalAttribute(d.attrs[col].Name, categories)
	for r, row := range out.rows {
		v := row[col]
		if IsMissing(v) {
			continue
		}
		name := strconv.FormatFloat(v, 'f', -1, 64)
		idx := out.attrs[col].CategoryIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: row %d value %s of %s is not in the category set", ErrSchema, r, name, d.attrs[col].Name)
		}
		row[col] = float64(idx)
	}
	return out, nil
}

// InsertNominal returns a copy of d with a new nominal attribute inserted at
// pos. Every row holds a missing value in the new column. A label index at
// or after pos shifts right with its column.
func (d *Dataset) InsertNominal(pos int, name string, categories []string) (*Dataset, error) {
	if pos < 0 || pos > len(d.attrs) {
		return nil, fmt.Errorf("%w: insert position %d out of range [0,%d]", ErrSchema, pos, len(d.attrs))
	}
	for _, a := range d.attrs {
		if a.Name == name {
			return nil, fmt.Errorf("%w: attribute %s already exists", ErrSchema, name)
		}
	}

	out := &Dataset{
		attrs: make([]Attribute, 0, len(d.attrs)+1),
		rows:  make([][]float64, len(d.rows)),
		label: d.label,
	}
	out.attrs = append(out.attrs, d.Attributes()[:pos]...)
	out.attrs = append(out.attrs, NominalAttribute(name, categories))
	out.attrs = append(out.attrs, d.Attributes()[pos:]...)

	for r, row := range d.rows {
		nr := make([]float64, 0, len(row)+1)
		nr = append(nr, row[:pos]...)
		nr = append(nr, Missing())
		nr = append(nr, row[pos:]...)
		out.rows[r] = nr
	}

	if out.label >= pos {
		out.label++
	}
	return out, nil
}

// Subset returns the rows at indices, in that order, over the same schema.
func (d *Dataset) Subset(indices []int) *Dataset {
	out := &Dataset{
		attrs: d.Attributes(),
		rows:  make([][]float64, len(indices)),
		label: d.label,
	}
	for i, idx := range indices {
		out.rows[i] = d.Row(idx)
	}
	return out
}

func (d *Dataset) copy() *Dataset {
	out := &Dataset{
		attrs: d.Attributes(),
		rows:  make([][]float64, len(d.rows)),
		label: d.label,
	}
	for i := range d.rows {
		out.rows[i] = d.Row(i)
	}
	return out
}
