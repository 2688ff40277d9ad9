// Package pipeline runs one classification experiment end to end: it
// builds the classifier, loads and normalises the datasets, classifies the
// test rows, cross-validates on the training rows and writes every output.
//
// Configuration, data access, normalisation, instantiation and training
// failures abort the run. Per-row prediction failures, evaluation failures
// and output failures are recorded in the Outcome and the run carries on.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"hwr-classifier/internal/cfg"
	"hwr-classifier/internal/data"
	"hwr-classifier/internal/metrics"
	"hwr-classifier/internal/ml"
	"hwr-classifier/internal/preprocess"
	"hwr-classifier/internal/report"
	"hwr-classifier/internal/storage"

	"github.com/rs/zerolog"
)

// Pipeline stages, used as the stage label on duration metrics.
const (
	StageInstantiate = "instantiate"
	StageDownload    = "download"
	StageRead        = "read"
	StageNormalize   = "normalize"
	StageTrain       = "train"
	StagePredict     = "predict"
	StageWrite       = "write"
	StageEvaluate    = "evaluate"
	StageReport      = "report"
)

// Output names, as used in Outcome.Outputs and Outcome.OutputErrors.
const (
	OutputClassifiedData = "classified_data"
	OutputLabels         = "labels"
	OutputEvaluation     = "evaluation"
	OutputEvaluationJSON = "evaluation_json"
	OutputMetrics        = "metrics"
)

const downloadTimeout = 5 * time.Minute

// Outcome describes a completed run.
type Outcome struct {
	Classifier   string
	Algorithm    string
	TrainRows    int
	TestRows     int
	Predictions  ml.Predictions
	Evaluation   *ml.Evaluation
	EvalErr      error
	Outputs      map[string]string
	OutputErrors map[string]error
	HistoryErr   error
	Duration     time.Duration
}

// Summary converts the outcome for the console summary printer.
func (o *Outcome) Summary() report.Summary {
	return report.Summary{
		Classifier:   o.Classifier,
		Algorithm:    o.Algorithm,
		TestRows:     o.TestRows,
		Predicted:    o.Predictions.Succeeded(),
		Failed:       o.Predictions.Failed(),
		Evaluation:   o.Evaluation,
		EvalErr:      o.EvalErr,
		Outputs:      o.Outputs,
		OutputErrors: o.OutputErrors,
	}
}

// Runner executes the pipeline for one set of settings.
type Runner struct {
	settings   cfg.Settings
	logger     zerolog.Logger
	metrics    *metrics.MetricsWrapper
	reporter   *report.Reporter
	downloader *data.Downloader
	read       func(path string) (*data.Dataset, error)
	now        func() time.Time
}

// Option customises a Runner.
type Option func(*Runner)

// WithReader replaces the dataset reader.
func WithReader(read func(path string) (*data.Dataset, error)) Option {
	return func(r *Runner) { r.read = read }
}

// WithDownloader replaces the downloader used for TRAIN_URL and TEST_URL.
func WithDownloader(d *data.Downloader) Option {
	return func(r *Runner) { r.downloader = d }
}

// WithMetrics records metrics on m instead of a fresh registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = metrics.NewWrapper(m) }
}

// New creates a runner for settings.
func New(settings cfg.Settings, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		settings: settings,
		logger:   logger,
		metrics:  metrics.NewWrapper(metrics.New()),
		reporter: report.NewReporter(logger),
		read:     data.Read,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.downloader == nil {
		r.downloader = data.NewDownloader(downloadTimeout, logger)
	}
	return r
}

// Run executes every stage in order. A fatal failure returns a nil Outcome
// and an error wrapping the failing stage's sentinel.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	started := r.now()
	s := r.settings

	// Instantiate before touching any data so that a bad classifier fails
	// without reading a byte.
	t := time.Now()
	classifier, err := ml.New(s.Classifier(), s.ClassifierOptions(), r.logger, r.metrics)
	if err != nil {
		r.logger.Error().Err(err).Str("classifier", s.Classifier()).Msg("Failed to instantiate classifier")
		return nil, err
	}
	r.metrics.ObserveStage(StageInstantiate, t)

	out := &Outcome{
		Classifier:   classifier.ID(),
		Algorithm:    classifier.Algorithm().String(),
		Outputs:      map[string]string{},
		OutputErrors: map[string]error{},
	}

	if err := r.download(ctx); err != nil {
		return nil, err
	}

	train, test, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out.TrainRows, out.TestRows = train.NumRows(), test.NumRows()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t = time.Now()
	if err := classifier.Train(train); err != nil {
		r.logger.Error().Err(err).Msg("Failed to train classifier")
		return nil, err
	}
	r.metrics.ObserveStage(StageTrain, t)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t = time.Now()
	out.Predictions = classifier.PredictAll(test)
	r.metrics.ObserveStage(StagePredict, t)

	t = time.Now()
	r.write(out, OutputClassifiedData, s.ClassifiedDataFile(), func(path string) error {
		return r.reporter.WriteClassifiedData(path, test, out.Predictions)
	})
	r.write(out, OutputLabels, s.ClassifiedLabelsFile(), func(path string) error {
		return r.reporter.WriteLabels(path, out.Predictions)
	})
	r.metrics.ObserveStage(StageWrite, t)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t = time.Now()
	out.Evaluation, out.EvalErr = r.evaluate(classifier, train)
	r.metrics.ObserveStage(StageEvaluate, t)

	t = time.Now()
	r.write(out, OutputEvaluation, s.EvaluationReportFile(), func(path string) error {
		return r.reporter.WriteEvaluation(path, out.Evaluation, out.EvalErr)
	})
	r.write(out, OutputEvaluationJSON, s.EvaluationJSONFile(), func(path string) error {
		return r.reporter.WriteEvaluationJSON(path, out.Evaluation, out.EvalErr)
	})
	r.metrics.ObserveStage(StageReport, t)

	out.Duration = r.now().Sub(started)

	r.write(out, OutputMetrics, s.MetricsFile(), r.metrics.WriteTextfile)
	out.HistoryErr = r.recordHistory(out, started)

	r.logger.Info().
		Str("classifier", out.Classifier).
		Int("predicted", out.Predictions.Succeeded()).
		Int("failed", out.Predictions.Failed()).
		Float64("failure_rate", r.metrics.FailureRate()).
		Int("output_errors", len(out.OutputErrors)).
		Dur("duration", out.Duration).
		Msg("Run complete")
	return out, nil
}

// download fetches the configured remote datasets into the input directory.
func (r *Runner) download(ctx context.Context) error {
	s := r.settings
	sources := []struct{ url, dest string }{
		{s.TrainURL(), s.TrainFile()},
		{s.TestURL(), s.TestFile()},
	}

	t := time.Now()
	fetched := false
	for _, src := range sources {
		if src.url == "" {
			continue
		}
		if err := r.downloader.Fetch(ctx, src.url, src.dest); err != nil {
			r.logger.Error().Err(err).Str("url", src.url).Msg("Failed to download dataset")
			return err
		}
		fetched = true
	}
	if fetched {
		r.metrics.ObserveStage(StageDownload, t)
	}
	return nil
}

// load reads both datasets and brings them to a common schema.
func (r *Runner) load(ctx context.Context) (train, test *data.Dataset, err error) {
	s := r.settings

	t := time.Now()
	rawTrain, err := r.readDataset(s.TrainFile(), "train")
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	rawTest, err := r.readDataset(s.TestFile(), "test")
	if err != nil {
		return nil, nil, err
	}
	r.metrics.ObserveStage(StageRead, t)

	t = time.Now()
	if train, err = preprocess.NormalizeTrain(rawTrain); err != nil {
		r.logger.Error().Err(err).Str("path", s.TrainFile()).Msg("Failed to normalize training data")
		return nil, nil, err
	}
	if test, err = preprocess.NormalizeTest(rawTest); err != nil {
		r.logger.Error().Err(err).Str("path", s.TestFile()).Msg("Failed to normalize test data")
		return nil, nil, err
	}
	if err := preprocess.Compatible(train, test); err != nil {
		r.logger.Error().Err(err).Msg("Training and test data do not match")
		return nil, nil, err
	}
	r.metrics.ObserveStage(StageNormalize, t)
	return train, test, nil
}

func (r *Runner) readDataset(path, name string) (*data.Dataset, error) {
	ds, err := r.read(path)
	if err != nil {
		r.logger.Error().Err(err).Str("path", path).Msgf("Failed to read %s data", name)
		return nil, err
	}
	r.metrics.RowsReadAdd(name, ds.NumRows())
	r.logger.Info().
		Str("path", path).
		Int("rows", ds.NumRows()).
		Int("attributes", ds.NumAttributes()).
		Msgf("Loaded %s data", name)
	return ds, nil
}

// evaluate cross-validates on train. The fold count is clamped to the
// number of training rows.
func (r *Runner) evaluate(classifier *ml.Classifier, train *data.Dataset) (*ml.Evaluation, error) {
	folds := r.settings.Folds()
	if rows := train.NumRows(); folds > rows {
		r.logger.Warn().
			Int("folds", folds).
			Int("rows", rows).
			Msg("Fewer training rows than folds, reducing fold count")
		folds = rows
	}

	eval, err := classifier.CrossValidate(train, folds, r.settings.Seed())
	if err != nil {
		r.logger.Error().Err(err).Msg("Cross-validation failed, continuing without evaluation")
		return nil, err
	}
	r.metrics.AccuracySet(eval.Accuracy)
	return eval, nil
}

// write runs one independent output write and records its result.
func (r *Runner) write(out *Outcome, name, path string, fn func(path string) error) {
	if path == "" {
		err := fmt.Errorf("%w: no path configured for %s", report.ErrOutput, name)
		out.OutputErrors[name] = err
		r.metrics.OutputFailure(name).Inc()
		r.logger.Error().Err(err).Msg("Output skipped")
		return
	}
	if err := fn(path); err != nil {
		out.OutputErrors[name] = err
		r.metrics.OutputFailure(name).Inc()
		r.logger.Error().Err(err).Str("path", path).Str("output", name).Msg("Failed to write output")
		return
	}
	out.Outputs[name] = path
}

// recordHistory appends the run to the history store when one is configured.
func (r *Runner) recordHistory(out *Outcome, started time.Time) error {
	dir := r.settings.HistoryPath()
	if dir == "" {
		return nil
	}

	store, err := storage.New(dir)
	if err != nil {
		r.logger.Warn().Err(err).Str("path", dir).Msg("Failed to open run history")
		return err
	}
	defer store.Close()

	record := storage.RunRecord{
		Classifier: out.Classifier,
		Algorithm:  out.Algorithm,
		Options:    r.settings.ClassifierOptions(),
		Timestamp:  started,
		TrainFile:  r.settings.TrainFile(),
		TestFile:   r.settings.TestFile(),
		TrainRows:  out.TrainRows,
		TestRows:   out.TestRows,
		Predicted:  out.Predictions.Succeeded(),
		Failed:     out.Predictions.Failed(),
		Seed:       r.settings.Seed(),
		Duration:   out.Duration.Seconds(),
	}
	if e := out.Evaluation; e != nil {
		record.Folds = e.Folds
		record.Accuracy = e.Accuracy
		record.MeanAccuracy = e.MeanAccuracy
		record.StdDevAccuracy = e.StdDevAccuracy
	}
	if out.EvalErr != nil {
		record.EvalError = out.EvalErr.Error()
	}

	if err := store.SaveRun(record); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record run history")
		return err
	}
	r.logger.Debug().Str("path", dir).Msg("Run recorded")
	return nil
}
