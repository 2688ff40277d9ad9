package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hwr-classifier/internal/common"
	"hwr-classifier/internal/data"
	"hwr-classifier/internal/ml"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset(t *testing.T) *data.Dataset {
	t.Helper()
	ds, err := data.New(
		[]data.Attribute{
			data.NominalAttribute(common.LabelAttribute, common.DigitCategories),
			data.NumericAttribute("pixel0"),
			data.NumericAttribute("pixel1"),
		},
		[][]float64{
			{data.Missing(), 0, 255},
			{data.Missing(), 12.5, data.Missing()},
			{data.Missing(), 3, 4},
		},
	)
	require.NoError(t, err)
	ds, err = ds.WithLabel(0)
	require.NoError(t, err)
	return ds
}

func testPredictions() ml.Predictions {
	return ml.Predictions{
		{Row: 0, Label: 7, Value: "7"},
		{Row: 1, Label: -1, Err: fmt.Errorf("%w: row 1: missing value in feature pixel1", ml.ErrPrediction)},
		{Row: 2, Label: 0, Value: "0"},
	}
}

func testEvaluation() *ml.Evaluation {
	return &ml.Evaluation{
		Classifier:   "knn",
		Algorithm:    "KNN",
		Folds:        3,
		Seed:         1,
		Instances:    6,
		Correct:      5,
		Incorrect:    1,
		Accuracy:     5.0 / 6.0,
		ErrorRate:    1.0 / 6.0,
		FoldAccuracy: []float64{1, 1, 0.5},
	}
}

func TestWriteClassifiedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knn_classified_data.csv")
	r := NewReporter(zerolog.Nop())

	require.NoError(t, r.WriteClassifiedData(path, testDataset(t), testPredictions()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, []string{
		"label,pixel0,pixel1",
		"7,0,255",
		"?,12.5,?",
		"0,3,4",
	}, lines)
}

func TestWriteClassifiedData_LengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	r := NewReporter(zerolog.Nop())

	err := r.WriteClassifiedData(path, testDataset(t), testPredictions()[:2])
	assert.ErrorIs(t, err, ErrOutput)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLabels_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knn_labels")
	r := NewReporter(zerolog.Nop())
	preds := testPredictions()

	require.NoError(t, r.WriteLabels(path, preds))

	labels, err := ReadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, preds.Values(), labels)
	assert.Equal(t, []string{"7", common.MissingValue, "0"}, labels)
}

func TestLabels_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels")
	r := NewReporter(zerolog.Nop())

	require.NoError(t, r.WriteLabels(path, nil))
	labels, err := ReadLabels(path)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestReadLabels_Missing(t *testing.T) {
	_, err := ReadLabels(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, data.ErrDataAccess)
}

func TestWriteEvaluation(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(zerolog.Nop())

	t.Run("available", func(t *testing.T) {
		path := filepath.Join(dir, "knn_EvalResults")
		require.NoError(t, r.WriteEvaluation(path, testEvaluation(), nil))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "Correctly Classified Instances")
		assert.Contains(t, string(content), "0.8333")
	})

	t.Run("unavailable", func(t *testing.T) {
		path := filepath.Join(dir, "tree_EvalResults")
		evalErr := fmt.Errorf("%w: 10 folds exceed 3 rows", ml.ErrEvaluation)
		require.NoError(t, r.WriteEvaluation(path, nil, evalErr))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "UNAVAILABLE")
		assert.Contains(t, string(content), "10 folds exceed 3 rows")
	})
}

func TestWriteEvaluationJSON(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(zerolog.Nop())

	path := filepath.Join(dir, "knn_EvalResults.json")
	require.NoError(t, r.WriteEvaluationJSON(path, testEvaluation(), nil))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc EvaluationDocument
	require.NoError(t, json.Unmarshal(content, &doc))
	assert.True(t, doc.Available)
	require.NotNil(t, doc.Evaluation)
	assert.Equal(t, 5, doc.Evaluation.Correct)
	assert.Empty(t, doc.Error)

	failed := filepath.Join(dir, "failed.json")
	require.NoError(t, r.WriteEvaluationJSON(failed, nil, errors.New("boom")))
	content, err = os.ReadFile(failed)
	require.NoError(t, err)
	doc = EvaluationDocument{}
	require.NoError(t, json.Unmarshal(content, &doc))
	assert.False(t, doc.Available)
	assert.Nil(t, doc.Evaluation)
	assert.Equal(t, "boom", doc.Error)
}

func TestWriters_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	r := NewReporter(zerolog.Nop())

	tests := []struct {
		name  string
		write func(path string) error
	}{
		{"classified data", func(p string) error { return r.WriteClassifiedData(p, testDataset(t), testPredictions()) }},
		{"labels", func(p string) error { return r.WriteLabels(p, testPredictions()) }},
		{"evaluation", func(p string) error { return r.WriteEvaluation(p, testEvaluation(), nil) }},
		{"evaluation json", func(p string) error { return r.WriteEvaluationJSON(p, testEvaluation(), nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.write(filepath.Join(dir, "out"))
			assert.ErrorIs(t, err, ErrOutput)
		})
	}

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "writers must not create directories")
}

func TestPrintSummary(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	PrintSummary(&buf, Summary{
		Classifier: "knn",
		Algorithm:  "KNN",
		TestRows:   3,
		Predicted:  2,
		Failed:     1,
		Evaluation: testEvaluation(),
		Outputs:    map[string]string{"labels": "/out/knn_labels"},
		OutputErrors: map[string]error{
			"evaluation": fmt.Errorf("%w: disk full", ErrOutput),
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Classifier:   knn (KNN)")
	assert.Contains(t, out, "Failed:       1")
	assert.Contains(t, out, "Accuracy:     0.8333 over 3 folds")
	assert.Contains(t, out, "/out/knn_labels")
	assert.Contains(t, out, "FAILED")
}

func TestPrintSummary_EvaluationUnavailable(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	PrintSummary(&buf, Summary{Classifier: "tree", EvalErr: errors.New("too few rows")})
	assert.Contains(t, buf.String(), "Unavailable: too few rows")
}
