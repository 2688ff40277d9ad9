// Package preprocess makes raw training and test datasets classifiable.
//
// Training data arrives with a numeric digit label in its first column;
// test data arrives without any label. Both are brought to the same schema:
// a nominal label over the digits 0..9 at position zero.
package preprocess

import (
	"errors"
	"fmt"

	"hwr-classifier/internal/common"
	"hwr-classifier/internal/data"
)

// ErrNormalization is returned when a dataset cannot be brought to the
// classifiable schema.
var ErrNormalization = errors.New("normalization error")

// NormalizeTrain converts the first column to a nominal attribute over the
// digit categories and marks it as the label when no label is set yet.
func NormalizeTrain(ds *data.Dataset) (*data.Dataset, error) {
	if ds.NumAttributes() == 0 {
		return nil, fmt.Errorf("%w: training data has no attributes", ErrNormalization)
	}

	out, err := ds.ToNominal(0, common.DigitCategories)
	if err != nil {
		return nil, fmt.Errorf("%w: training label: %v", ErrNormalization, err)
	}

	if !out.HasLabel() {
		if out, err = out.WithLabel(0); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNormalization, err)
		}
	}
	return out, nil
}

// NormalizeTest inserts a placeholder nominal label column at position zero
// and marks it as the label when no label is set yet. Every row holds a
// missing value in the new column.
func NormalizeTest(ds *data.Dataset) (*data.Dataset, error) {
	out, err := ds.InsertNominal(0, common.LabelAttribute, common.DigitCategories)
	if err != nil {
		return nil, fmt.Errorf("%w: test label: %v", ErrNormalization, err)
	}

	if !out.HasLabel() {
		if out, err = out.WithLabel(0); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNormalization, err)
		}
	}
	return out, nil
}

// Compatible checks that test can be classified by a model trained on
// train: same width, same attribute kinds position by position, same label
// index, and the same label categories.
func Compatible(train, test *data.Dataset) error {
	if train.NumAttributes() != test.NumAttributes() {
		return fmt.Errorf("%w: training data has %d attributes, test data has %d",
			ErrNormalization, train.NumAttributes(), test.NumAttributes())
	}
	if train.LabelIndex() != test.LabelIndex() {
		return fmt.Errorf("%w: training label is column %d, test label is column %d",
			ErrNormalization, train.LabelIndex(), test.LabelIndex())
	}

	for i := 0; i < train.NumAttributes(); i++ {
		a, b := train.Attribute(i), test.Attribute(i)
		if a.Kind != b.Kind {
			return fmt.Errorf("%w: attribute %d is %s in training data and %s in test data",
				ErrNormalization, i, a.Kind, b.Kind)
		}
	}

	if train.HasLabel() {
		a, b := train.Attribute(train.LabelIndex()), test.Attribute(test.LabelIndex())
		if len(a.Categories) != len(b.Categories) {
			return fmt.Errorf("%w: label categories differ", ErrNormalization)
		}
		for i := range a.Categories {
			if a.Categories[i] != b.Categories[i] {
				return fmt.Errorf("%w: label categories differ at %d: %q vs %q",
					ErrNormalization, i, a.Categories[i], b.Categories[i])
			}
		}
	}
	return nil
}
