// Package report writes the results of a run: the classified test data, the
// bare predicted labels and the cross-validation report.
//
// Writers never create directories. Each one opens its own file, closes it
// on every path, and fails with ErrOutput without affecting other outputs.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"hwr-classifier/internal/data"
	"hwr-classifier/internal/ml"

	"github.com/rs/zerolog"
)

// ErrOutput is returned when an output file cannot be written.
var ErrOutput = errors.New("output error")

// Reporter writes run outputs
type Reporter struct {
	logger zerolog.Logger
}

// NewReporter creates a new reporter
func NewReporter(logger zerolog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// create opens path for writing and hands it to write. The file is closed
// on every path; a failed close is reported like a failed write.
func create(path string, write func(f *os.File) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", ErrOutput, path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close %s: %v", ErrOutput, path, cerr)
		}
	}()

	if err := write(file); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrOutput, path, err)
	}
	return nil
}

// WriteClassifiedData writes test as CSV with a header row, replacing the
// label column with the predicted category, or "?" for a failed row.
func (r *Reporter) WriteClassifiedData(path string, test *data.Dataset, preds ml.Predictions) error {
	if len(preds) != test.NumRows() {
		return fmt.Errorf("%w: %d predictions for %d rows", ErrOutput, len(preds), test.NumRows())
	}

	attrs := test.Attributes()
	label := test.LabelIndex()

	err := create(path, func(f *os.File) error {
		writer := csv.NewWriter(f)

		header := make([]string, len(attrs))
		for i, a := range attrs {
			header[i] = a.Name
		}
		if err := writer.Write(header); err != nil {
			return err
		}

		record := make([]string, len(attrs))
		for row := 0; row < test.NumRows(); row++ {
			for c, a := range attrs {
				if c == label {
					record[c] = preds[row].String()
					continue
				}
				record[c] = a.Format(test.Value(row, c))
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}

		writer.Flush()
		return writer.Error()
	})
	if err != nil {
		return err
	}

	r.logger.Info().Str("path", path).Int("rows", test.NumRows()).Msg("Classified data written")
	return nil
}

// WriteLabels writes one predicted label per line in row order. A failed
// prediction is written as "?".
func (r *Reporter) WriteLabels(path string, preds ml.Predictions) error {
	err := create(path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		for _, p := range preds {
			if _, err := fmt.Fprintln(w, p.String()); err != nil {
				return err
			}
		}
		return w.Flush()
	})
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("path", path).
		Int("rows", len(preds)).
		Int("failed", preds.Failed()).
		Msg("Labels written")
	return nil
}

// ReadLabels reads a labels file written by WriteLabels. Failed predictions
// come back as "?".
func ReadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", data.ErrDataAccess, path, err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", data.ErrDataAccess, path, err)
	}
	return labels, nil
}

// WriteEvaluation writes the plain-text cross-validation report. When the
// evaluation failed, the report says so and why.
func (r *Reporter) WriteEvaluation(path string, eval *ml.Evaluation, evalErr error) error {
	err := create(path, func(f *os.File) error {
		if eval == nil {
			reason := "no evaluation was run"
			if evalErr != nil {
				reason = evalErr.Error()
			}
			_, err := fmt.Fprintf(f, "EVALUATION UNAVAILABLE\n======================\n\nReason: %s\n", reason)
			return err
		}
		_, err := f.WriteString(eval.Summary())
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info().Str("path", path).Bool("available", eval != nil).Msg("Evaluation report written")
	return nil
}

// EvaluationDocument is the JSON form of the evaluation report.
type EvaluationDocument struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Available   bool           `json:"available"`
	Error       string         `json:"error,omitempty"`
	Evaluation  *ml.Evaluation `json:"evaluation,omitempty"`
}

// WriteEvaluationJSON writes a machine-readable copy of the evaluation.
func (r *Reporter) WriteEvaluationJSON(path string, eval *ml.Evaluation, evalErr error) error {
	doc := EvaluationDocument{
		GeneratedAt: time.Now().UTC(),
		Available:   eval != nil,
		Evaluation:  eval,
	}
	if evalErr != nil {
		doc.Error = evalErr.Error()
	}

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal evaluation: %v", ErrOutput, err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrOutput, path, err)
	}

	r.logger.Info().Str("path", path).Msg("JSON evaluation written")
	return nil
}
