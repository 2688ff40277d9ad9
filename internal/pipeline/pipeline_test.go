package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hwr-classifier/internal/cfg"
	"hwr-classifier/internal/common"
	"hwr-classifier/internal/data"
	"hwr-classifier/internal/metrics"
	"hwr-classifier/internal/ml"
	"hwr-classifier/internal/preprocess"
	"hwr-classifier/internal/report"
	"hwr-classifier/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	trainCSV = "label,pixel0,pixel1\n0,0,0\n1,255,255\n0,1,1\n"
	testCSV  = "pixel0,pixel1\n2,2\n250,250\n"
)

type workspace struct {
	base   string
	input  string
	output string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	for _, key := range []string{
		common.KeyResourcesDir, common.KeyDocInputDir, common.KeyOutputDir,
		common.KeySampleTrainFile, common.KeyTrainFile, common.KeySampleTestFile, common.KeyTestFile,
		common.KeyClassifiedLabels, common.KeyClassifiedDataFile, common.KeyClassifier,
		common.KeyClassifierOptions, common.KeyFolds, common.KeySeed, common.KeyTrainURL,
		common.KeyTestURL, common.KeyHistoryPath, common.KeyLogLevel,
	} {
		t.Setenv(common.EnvPrefix+key, "")
	}

	base := t.TempDir()
	w := workspace{
		base:   base,
		input:  filepath.Join(base, "resources", "input"),
		output: filepath.Join(base, "resources", "output"),
	}
	require.NoError(t, os.MkdirAll(w.input, 0o755))
	require.NoError(t, os.MkdirAll(w.output, 0o755))
	return w
}

func (w workspace) writeInput(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(w.input, name), []byte(content), 0o644))
}

func (w workspace) settings(t *testing.T, extra ...string) cfg.Settings {
	t.Helper()
	lines := []string{
		"RESOURCES_DIR=resources",
		"DOC_INPUT_DIR=input",
		"OUTPUT_DIR=output",
		"TRAIN_FILE=train.csv",
		"TEST_FILE=test.csv",
	}
	lines = append(lines, extra...)

	path := filepath.Join(w.base, "recognizer.properties")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	settings, err := cfg.LoadWithBase(path, w.base)
	require.NoError(t, err)
	return settings
}

func (w workspace) outputs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(w.output)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// countingReader wraps data.Read and counts calls.
func countingReader(calls *int) func(string) (*data.Dataset, error) {
	return func(path string) (*data.Dataset, error) {
		*calls++
		return data.Read(path)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", testCSV)

	m := metrics.New()
	runner := New(w.settings(t, "CLASSIFIER=knn"), zerolog.Nop(), WithMetrics(m))

	out, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "knn", out.Classifier)
	assert.Equal(t, 3, out.TrainRows)
	assert.Equal(t, 2, out.TestRows)
	require.Len(t, out.Predictions, 2)
	assert.Equal(t, 2, out.Predictions.Succeeded())
	assert.Equal(t, []string{"0", "1"}, out.Predictions.Values())

	require.NoError(t, out.EvalErr)
	require.NotNil(t, out.Evaluation)
	assert.Equal(t, 3, out.Evaluation.Folds, "folds are clamped to the training rows")
	assert.GreaterOrEqual(t, out.Evaluation.Accuracy, 0.0)
	assert.LessOrEqual(t, out.Evaluation.Accuracy, 1.0)
	assert.Empty(t, out.OutputErrors)

	labels, err := report.ReadLabels(filepath.Join(w.output, "knn_labels"))
	require.NoError(t, err)
	assert.Equal(t, out.Predictions.Values(), labels)

	evalReport, err := os.ReadFile(filepath.Join(w.output, "knn_EvalResults"))
	require.NoError(t, err)
	assert.Contains(t, string(evalReport), "Accuracy")

	assert.ElementsMatch(t, []string{
		"knn_classified_data.csv",
		"knn_labels",
		"knn_EvalResults",
		"knn_EvalResults.json",
		"knn_metrics.prom",
	}, w.outputs(t))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PredictionFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsRead.WithLabelValues("train")))

	summary := out.Summary()
	assert.Equal(t, 2, summary.Predicted)
	assert.Equal(t, "KNN", summary.Algorithm)
}

func TestRun_EveryAlgorithm(t *testing.T) {
	for _, id := range []string{"naivebayes", "decisiontree", "knn", "randomforest"} {
		t.Run(id, func(t *testing.T) {
			w := newWorkspace(t)
			w.writeInput(t, "train.csv", trainCSV)
			w.writeInput(t, "test.csv", testCSV)

			out, err := New(w.settings(t, "CLASSIFIER="+id), zerolog.Nop()).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 2, out.Predictions.Succeeded())
			for _, v := range out.Predictions.Values() {
				assert.Contains(t, []string{"0", "1"}, v)
			}
			require.NoError(t, out.EvalErr)
			require.NotNil(t, out.Evaluation)
			assert.Equal(t, 3, out.Evaluation.Instances)
			assert.Empty(t, out.OutputErrors)
		})
	}
}

func TestRun_MissingClassifierReadsNothing(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", testCSV)

	for _, extra := range [][]string{nil, {"CLASSIFIER=weka.classifiers.functions.SMO"}} {
		reads := 0
		runner := New(w.settings(t, extra...), zerolog.Nop(), WithReader(countingReader(&reads)))

		out, err := runner.Run(context.Background())
		assert.ErrorIs(t, err, ml.ErrInstantiation)
		assert.Nil(t, out)
		assert.Zero(t, reads, "no dataset may be read before the classifier exists")
		assert.Empty(t, w.outputs(t))
	}
}

func TestRun_MissingTestFile(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)

	out, err := New(w.settings(t, "CLASSIFIER=knn"), zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, data.ErrDataAccess)
	assert.Nil(t, out)
	assert.Empty(t, w.outputs(t), "a fatal failure must not leave output files")
}

func TestRun_BadTrainingLabel(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", "label,pixel0,pixel1\n12,0,0\n1,255,255\n")
	w.writeInput(t, "test.csv", testCSV)

	_, err := New(w.settings(t, "CLASSIFIER=knn"), zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, preprocess.ErrNormalization)
	assert.Empty(t, w.outputs(t))
}

func TestRun_MismatchedWidths(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", "pixel0\n2\n")

	_, err := New(w.settings(t, "CLASSIFIER=knn"), zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, preprocess.ErrNormalization)
}

func TestRun_CorruptedRowIsIsolated(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", "pixel0,pixel1\n2,2\n?,7\n250,250\n")

	m := metrics.New()
	var logs bytes.Buffer
	out, err := New(w.settings(t, "CLASSIFIER=knn"), zerolog.New(&logs), WithMetrics(m)).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, out.Predictions, 3)
	assert.Equal(t, 2, out.Predictions.Succeeded())
	assert.ErrorIs(t, out.Predictions[1].Err, ml.ErrPrediction)
	assert.Equal(t, []string{"0", common.MissingValue, "1"}, out.Predictions.Values())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionFailures))

	labels, err := report.ReadLabels(filepath.Join(w.output, "knn_labels"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "?", "1"}, labels)

	classified, err := os.ReadFile(filepath.Join(w.output, "knn_classified_data.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(classified), "?,?,7")

	assert.InDelta(t, 1.0/3, m.FailureRate(), 1e-9)
	assert.Contains(t, logs.String(), `"failure_rate":0.333`)
}

func TestRun_EvaluationFailureIsNotFatal(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", "label,pixel0,pixel1\n3,0,0\n")
	w.writeInput(t, "test.csv", testCSV)

	out, err := New(w.settings(t, "CLASSIFIER=knn"), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, out.Evaluation)
	assert.ErrorIs(t, out.EvalErr, ml.ErrEvaluation)
	assert.Equal(t, []string{"3", "3"}, out.Predictions.Values())

	evalReport, err := os.ReadFile(filepath.Join(w.output, "knn_EvalResults"))
	require.NoError(t, err)
	assert.Contains(t, string(evalReport), "UNAVAILABLE")
}

func TestRun_OutputFailuresAreNotFatal(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", testCSV)

	settings := w.settings(t, "CLASSIFIER=knn", "CLASSIFIED_DATA_FILE=missing/classified.csv")

	m := metrics.New()
	out, err := New(settings, zerolog.Nop(), WithMetrics(m)).Run(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, out.OutputErrors[OutputClassifiedData], report.ErrOutput)
	assert.NotContains(t, out.Outputs, OutputClassifiedData)
	assert.Contains(t, out.Outputs, OutputLabels)
	assert.Contains(t, out.Outputs, OutputEvaluation)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutputFailures.WithLabelValues(OutputClassifiedData)))
}

func TestRun_RecordsHistory(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", testCSV)
	historyDir := filepath.Join(w.base, "history")
	require.NoError(t, os.MkdirAll(historyDir, 0o755))

	settings := w.settings(t, "CLASSIFIER=knn", "CLASSIFIER_OPTIONS=k=1", "HISTORY_PATH=history")
	out, err := New(settings, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, out.HistoryErr)

	store, err := storage.New(historyDir)
	require.NoError(t, err)
	defer store.Close()

	run, err := store.Latest("knn")
	require.NoError(t, err)
	assert.Equal(t, "KNN", run.Algorithm)
	assert.Equal(t, []string{"k=1"}, run.Options)
	assert.Equal(t, 2, run.Predicted)
	assert.Equal(t, 3, run.Folds)
	assert.Equal(t, out.Evaluation.Accuracy, run.Accuracy)
}

func TestRun_HistoryFailureIsNotFatal(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", testCSV)

	settings := w.settings(t, "CLASSIFIER=knn", "HISTORY_PATH=no/such/dir")
	out, err := New(settings, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Error(t, out.HistoryErr)
}

func TestRun_DownloadsDatasets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/train.csv":
			rw.Write([]byte(trainCSV))
		case "/test.csv":
			rw.Write([]byte(testCSV))
		default:
			http.NotFound(rw, r)
		}
	}))
	defer server.Close()

	w := newWorkspace(t)
	settings := w.settings(t,
		"CLASSIFIER=knn",
		"TRAIN_URL="+server.URL+"/train.csv",
		"TEST_URL="+server.URL+"/test.csv",
	)

	out, err := New(settings, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Predictions, 2)
	assert.FileExists(t, filepath.Join(w.input, "train.csv"))
}

func TestRun_DownloadFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	w := newWorkspace(t)
	settings := w.settings(t, "CLASSIFIER=knn", "TRAIN_URL="+server.URL+"/train.csv")

	_, err := New(settings, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, data.ErrDataAccess)
	assert.Empty(t, w.outputs(t))
}

func TestRun_Cancelled(t *testing.T) {
	w := newWorkspace(t)
	w.writeInput(t, "train.csv", trainCSV)
	w.writeInput(t, "test.csv", testCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(w.settings(t, "CLASSIFIER=knn"), zerolog.Nop()).Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, w.outputs(t))
}
