package ml

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/gonum/stat"
)

// Evaluation summarises one cross-validation run. Unclassified rows are
// those whose prediction failed; they count towards Instances but are
// neither correct nor incorrect.
type Evaluation struct {
	Classifier     string                     `json:"classifier"`
	Algorithm      string                     `json:"algorithm"`
	Folds          int                        `json:"folds"`
	Seed           int64                      `json:"seed"`
	Instances      int                        `json:"instances"`
	Correct        int                        `json:"correct"`
	Incorrect      int                        `json:"incorrect"`
	Unclassified   int                        `json:"unclassified"`
	Accuracy       float64                    `json:"accuracy"`
	ErrorRate      float64                    `json:"error_rate"`
	FoldAccuracy   []float64                  `json:"fold_accuracy"`
	MeanAccuracy   float64                    `json:"mean_accuracy"`
	StdDevAccuracy float64                    `json:"stddev_accuracy"`
	Classes        []ClassStats               `json:"classes"`
	Confusion      evaluation.ConfusionMatrix `json:"confusion"`
}

// ClassStats holds the per-class figures derived from the confusion matrix.
type ClassStats struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

func (e *Evaluation) finish() {
	if e.Instances > 0 {
		e.Accuracy = float64(e.Correct) / float64(e.Instances)
		e.ErrorRate = float64(e.Incorrect) / float64(e.Instances)
	}
	if len(e.FoldAccuracy) > 1 {
		e.MeanAccuracy, e.StdDevAccuracy = stat.MeanStdDev(e.FoldAccuracy, nil)
	} else if len(e.FoldAccuracy) == 1 {
		e.MeanAccuracy = e.FoldAccuracy[0]
	}

	classes := make([]string, 0, len(e.Confusion))
	for class := range e.Confusion {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	e.Classes = make([]ClassStats, 0, len(classes))
	for _, class := range classes {
		e.Classes = append(e.Classes, ClassStats{
			Class:     class,
			Precision: finite(evaluation.GetPrecision(class, e.Confusion)),
			Recall:    finite(evaluation.GetRecall(class, e.Confusion)),
			F1:        finite(evaluation.GetF1Score(class, e.Confusion)),
		})
	}
}

// finite maps the NaN golearn yields for an empty denominator to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Summary renders the evaluation as a plain-text report.
func (e *Evaluation) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Cross-validation ===\n")
	fmt.Fprintf(&b, "Classifier:                        %s (%s)\n", e.Classifier, e.Algorithm)
	fmt.Fprintf(&b, "Folds:                             %d (seed %d)\n\n", e.Folds, e.Seed)

	fmt.Fprintf(&b, "=== Summary ===\n")
	fmt.Fprintf(&b, "Correctly Classified Instances     %6d  %8.4f %%\n", e.Correct, 100*e.Accuracy)
	fmt.Fprintf(&b, "Incorrectly Classified Instances   %6d  %8.4f %%\n", e.Incorrect, 100*e.ErrorRate)
	fmt.Fprintf(&b, "Unclassified Instances             %6d\n", e.Unclassified)
	fmt.Fprintf(&b, "Total Number of Instances          %6d\n", e.Instances)
	fmt.Fprintf(&b, "Accuracy                           %.4f\n", e.Accuracy)
	fmt.Fprintf(&b, "Mean Fold Accuracy                 %.4f (std dev %.4f)\n\n", e.MeanAccuracy, e.StdDevAccuracy)

	fmt.Fprintf(&b, "=== Fold Accuracy ===\n")
	for i, acc := range e.FoldAccuracy {
		fmt.Fprintf(&b, "Fold %3d  %.4f\n", i+1, acc)
	}

	if len(e.Classes) > 0 {
		fmt.Fprintf(&b, "\n=== Detailed Accuracy By Class ===\n")
		fmt.Fprintf(&b, "%-8s %10s %10s %10s\n", "Class", "Precision", "Recall", "F1")
		for _, c := range e.Classes {
			fmt.Fprintf(&b, "%-8s %10.4f %10.4f %10.4f\n", c.Class, c.Precision, c.Recall, c.F1)
		}
	}
	return b.String()
}
