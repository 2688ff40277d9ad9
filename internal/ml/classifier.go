package ml

import (
	"fmt"
	"strings"

	"hwr-classifier/internal/common"
	"hwr-classifier/internal/data"

	"github.com/rs/zerolog"
	"github.com/sjwhitworth/golearn/base"
)

// MetricsInterface defines metrics methods needed by the classifier.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	FoldAccuracyObserve(float64)
}

// State is the lifecycle position of a Classifier.
type State int

const (
	Unbuilt State = iota
	Trained
)

func (s State) String() string {
	if s == Trained {
		return "trained"
	}
	return "unbuilt"
}

// Classifier trains one golearn model and classifies rows with it.
type Classifier struct {
	id         string
	algorithm  Algorithm
	newLearner func() learner
	logger     zerolog.Logger
	metrics    MetricsInterface

	state State
	frame *frame
	model learner
}

// New resolves id in the registry and validates options. metrics may be nil.
func New(id string, options []string, logger zerolog.Logger, metrics MetricsInterface) (*Classifier, error) {
	algorithm, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	opts, err := ParseOptions(options)
	if err != nil {
		return nil, err
	}
	build, err := factory(algorithm, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", algorithm, err)
	}

	id = strings.TrimSpace(id)
	return &Classifier{
		id:         id,
		algorithm:  algorithm,
		newLearner: build,
		logger:     logger.With().Str("classifier", id).Logger(),
		metrics:    metrics,
	}, nil
}

func (c *Classifier) ID() string           { return c.id }
func (c *Classifier) Algorithm() Algorithm { return c.algorithm }
func (c *Classifier) State() State         { return c.state }

// Train fits the model on ds. The label attribute must be nominal, and
// every row needs a label and a value for every feature.
func (c *Classifier) Train(ds *data.Dataset) error {
	f, model, err := c.fit(ds)
	if err != nil {
		return err
	}
	c.frame, c.model, c.state = f, model, Trained

	c.logger.Info().
		Int("rows", ds.NumRows()).
		Int("attributes", ds.NumAttributes()).
		Str("algorithm", c.algorithm.String()).
		Msg("Classifier trained")
	return nil
}

// fit builds and fits a fresh learner without touching c's state.
func (c *Classifier) fit(ds *data.Dataset) (f *frame, model learner, err error) {
	if ds.NumRows() == 0 {
		return nil, nil, fmt.Errorf("%w: training data is empty", ErrTraining)
	}
	f, err = newFrame(ds)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}

	rows := make([][]float64, ds.NumRows())
	for r := range rows {
		row := ds.Row(r)
		if data.IsMissing(row[f.label]) {
			return nil, nil, fmt.Errorf("%w: row %d has no label", ErrTraining, r)
		}
		if err := f.validRow(row); err != nil {
			return nil, nil, fmt.Errorf("%w: row %d: %v", ErrTraining, r, err)
		}
		rows[r] = row
	}

	defer func() {
		if p := recover(); p != nil {
			f, model, err = nil, nil, fmt.Errorf("%w: %s: %v", ErrTraining, c.algorithm, p)
		}
	}()

	g, err := f.grid(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}
	model = c.newLearner()
	if err := model.fit(g); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrTraining, c.algorithm, err)
	}
	return f, model, nil
}

// Predict classifies one row laid out on the training schema and returns
// the index of the predicted label category.
func (c *Classifier) Predict(row []float64) (int, error) {
	if c.state != Trained {
		return -1, fmt.Errorf("%w: classifier is not trained", ErrPrediction)
	}
	idx, _, err := predictOne(c.frame, c.model, row)
	return idx, err
}

// Prediction is the outcome for one test row: a label on success, or the
// reason the row could not be classified.
type Prediction struct {
	Row   int
	Label int    // category index, -1 on failure
	Value string // category name, empty on failure
	Err   error
}

func (p Prediction) OK() bool { return p.Err == nil }

// String returns the predicted category, or the missing-value marker when
// the prediction failed.
func (p Prediction) String() string {
	if p.Err != nil {
		return common.MissingValue
	}
	return p.Value
}

// Predictions holds one Prediction per test row, in row order.
type Predictions []Prediction

func (ps Predictions) Succeeded() int {
	n := 0
	for _, p := range ps {
		if p.OK() {
			n++
		}
	}
	return n
}

func (ps Predictions) Failed() int {
	return len(ps) - ps.Succeeded()
}

// Values returns the rendered prediction of every row.
func (ps Predictions) Values() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

// PredictAll classifies every row of ds. A row that cannot be classified is
// recorded as a failed Prediction and the remaining rows are still
// classified; the result always has one entry per row.
func (c *Classifier) PredictAll(ds *data.Dataset) Predictions {
	indices := make([]int, ds.NumRows())
	for i := range indices {
		indices[i] = i
	}

	if c.state != Trained {
		out := make(Predictions, len(indices))
		for i := range out {
			out[i] = Prediction{Row: i, Label: -1, Err: fmt.Errorf("%w: classifier is not trained", ErrPrediction)}
		}
		c.record(out)
		return out
	}
	if err := c.frame.compatible(ds); err != nil {
		out := make(Predictions, len(indices))
		for i := range out {
			out[i] = Prediction{Row: i, Label: -1, Err: fmt.Errorf("%w: %v", ErrPrediction, err)}
		}
		c.record(out)
		return out
	}

	out := classify(c.frame, c.model, ds, indices)
	c.record(out)

	c.logger.Info().
		Int("rows", len(out)).
		Int("failed", out.Failed()).
		Msg("Test data classified")
	return out
}

func (c *Classifier) record(out Predictions) {
	for _, p := range out {
		if p.OK() {
			if c.metrics != nil {
				c.metrics.PredictionsInc()
			}
			continue
		}
		if c.metrics != nil {
			c.metrics.PredictionFailuresInc()
		}
		c.logger.Warn().Err(p.Err).Int("row", p.Row).Msg("Row could not be classified")
	}
}

// classify predicts the rows of ds at indices. Valid rows are sent to the
// model as one grid; if that batch fails, each row is retried alone so a
// single bad row only fails itself.
func classify(f *frame, model learner, ds *data.Dataset, indices []int) Predictions {
	out := make(Predictions, len(indices))
	var batch [][]float64
	var slots []int

	for i, idx := range indices {
		row := ds.Row(idx)
		out[i] = Prediction{Row: idx, Label: -1}
		if err := f.validRow(row); err != nil {
			out[i].Err = fmt.Errorf("%w: row %d: %v", ErrPrediction, idx, err)
			continue
		}
		batch = append(batch, row)
		slots = append(slots, i)
	}
	if len(batch) == 0 {
		return out
	}

	if labels, values, err := predictBatch(f, model, batch); err == nil {
		for j, i := range slots {
			out[i].Label, out[i].Value = labels[j], values[j]
		}
		return out
	}

	for j, i := range slots {
		label, value, err := predictOne(f, model, batch[j])
		if err != nil {
			out[i].Err = fmt.Errorf("row %d: %w", out[i].Row, err)
			continue
		}
		out[i].Label, out[i].Value = label, value
	}
	return out
}

func predictOne(f *frame, model learner, row []float64) (int, string, error) {
	if err := f.validRow(row); err != nil {
		return -1, "", fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	labels, values, err := predictBatch(f, model, [][]float64{row})
	if err != nil {
		return -1, "", err
	}
	return labels[0], values[0], nil
}

func predictBatch(f *frame, model learner, rows [][]float64) (labels []int, values []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			labels, values, err = nil, nil, fmt.Errorf("%w: %v", ErrPrediction, p)
		}
	}()

	g, err := f.grid(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	var pred base.FixedDataGrid
	pred, err = model.predict(g)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	if _, n := pred.Size(); n != len(rows) {
		return nil, nil, fmt.Errorf("%w: model returned %d predictions for %d rows", ErrPrediction, n, len(rows))
	}

	labels = make([]int, len(rows))
	values = make([]string, len(rows))
	for r := range rows {
		idx, value, err := f.labelOf(pred, r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPrediction, err)
		}
		labels[r], values[r] = idx, value
	}
	return labels, values, nil
}
