package ml

import (
	"fmt"

	"hwr-classifier/internal/data"

	"github.com/sjwhitworth/golearn/base"
)

// frame binds a dataset schema to golearn attributes. Every grid built from
// one frame shares the same attribute objects, which is what golearn uses
// to match a prediction grid against the grid a model was fitted on.
type frame struct {
	schema   []data.Attribute
	label    int
	attrs    []base.Attribute
	template *base.DenseInstances
}

func newFrame(ds *data.Dataset) (*frame, error) {
	if !ds.HasLabel() {
		return nil, fmt.Errorf("dataset has no label attribute")
	}
	label := ds.LabelIndex()
	schema := ds.Attributes()
	if schema[label].Kind != data.Nominal || len(schema[label].Categories) == 0 {
		return nil, fmt.Errorf("label attribute %s must be nominal", schema[label].Name)
	}
	if len(schema) < 2 {
		return nil, fmt.Errorf("dataset has no feature attributes")
	}

	f := &frame{
		schema:   schema,
		label:    label,
		attrs:    make([]base.Attribute, len(schema)),
		template: base.NewDenseInstances(),
	}
	for i, a := range schema {
		switch a.Kind {
		case data.Numeric:
			f.attrs[i] = base.NewFloatAttribute(a.Name)
		case data.Nominal:
			cat := base.NewCategoricalAttribute()
			cat.SetName(a.Name)
			// Registering categories in order keeps golearn's system
			// values equal to the dataset's category indices.
			for _, c := range a.Categories {
				cat.GetSysValFromString(c)
			}
			f.attrs[i] = cat
		}
		f.template.AddAttribute(f.attrs[i])
	}
	if err := f.template.AddClassAttribute(f.attrs[label]); err != nil {
		return nil, err
	}
	return f, nil
}

// compatible reports whether rows of ds can be laid out on this frame.
func (f *frame) compatible(ds *data.Dataset) error {
	if ds.NumAttributes() != len(f.schema) {
		return fmt.Errorf("dataset has %d attributes, model expects %d", ds.NumAttributes(), len(f.schema))
	}
	for i, a := range ds.Attributes() {
		if a.Kind != f.schema[i].Kind {
			return fmt.Errorf("attribute %d is %s, model expects %s", i, a.Kind, f.schema[i].Kind)
		}
	}
	return nil
}

// validRow checks that row can be classified: it must be as wide as the
// schema and hold a usable value in every feature column. The label column
// is ignored.
func (f *frame) validRow(row []float64) error {
	if len(row) != len(f.schema) {
		return fmt.Errorf("row has %d values, model expects %d", len(row), len(f.schema))
	}
	for c, v := range row {
		if c == f.label {
			continue
		}
		if data.IsMissing(v) {
			return fmt.Errorf("missing value in feature %s", f.schema[c].Name)
		}
		if f.schema[c].Kind == data.Nominal {
			i := int(v)
			if float64(i) != v || i < 0 || i >= len(f.schema[c].Categories) {
				return fmt.Errorf("value %v is not a category of %s", v, f.schema[c].Name)
			}
		}
	}
	return nil
}

// grid lays rows out on a fresh golearn grid. A missing label is filled with
// the first category: prediction never reads it.
func (f *frame) grid(rows [][]float64) (*base.DenseInstances, error) {
	g := base.NewStructuralCopy(f.template)
	if err := g.Extend(len(rows)); err != nil {
		return nil, err
	}

	specs := make([]base.AttributeSpec, len(f.attrs))
	for i, a := range f.attrs {
		spec, err := g.GetAttribute(a)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
	}

	for r, row := range rows {
		for c, v := range row {
			g.Set(specs[c], r, f.sysVal(c, v))
		}
	}
	return g, nil
}

func (f *frame) sysVal(col int, v float64) []byte {
	switch a := f.attrs[col].(type) {
	case *base.CategoricalAttribute:
		if data.IsMissing(v) {
			v = 0
		}
		return a.GetSysValFromString(f.schema[col].Categories[int(v)])
	default:
		return base.PackFloatToBytes(v)
	}
}

// labelOf maps the class golearn predicted for row r of pred back to a
// category index of the label attribute.
func (f *frame) labelOf(pred base.FixedDataGrid, r int) (int, string, error) {
	value := base.GetClass(pred, r)
	idx := f.schema[f.label].CategoryIndex(value)
	if idx < 0 {
		return -1, "", fmt.Errorf("predicted class %q is not a label category", value)
	}
	return idx, value, nil
}
