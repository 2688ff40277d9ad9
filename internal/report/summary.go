package report

import (
	"fmt"
	"io"
	"sort"

	"hwr-classifier/internal/ml"

	"github.com/fatih/color"
)

// Summary is what the console summary shows about a finished run.
type Summary struct {
	Classifier   string
	Algorithm    string
	TestRows     int
	Predicted    int
	Failed       int
	Evaluation   *ml.Evaluation
	EvalErr      error
	Outputs      map[string]string // output name to path
	OutputErrors map[string]error
}

type palette struct {
	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
}

func newPalette() palette {
	return palette{
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan, color.Bold).SprintFunc(),
	}
}

// PrintSummary writes a coloured run summary to w.
func PrintSummary(w io.Writer, s Summary) {
	c := newPalette()

	fmt.Fprintf(w, "%s\n", c.cyan("=== Classification Summary ==="))
	fmt.Fprintf(w, "Classifier:   %s (%s)\n", s.Classifier, s.Algorithm)
	fmt.Fprintf(w, "Test rows:    %d\n", s.TestRows)
	fmt.Fprintf(w, "Predicted:    %s\n", c.green(s.Predicted))
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed:       %s\n", c.red(s.Failed))
	} else {
		fmt.Fprintf(w, "Failed:       %d\n", s.Failed)
	}

	fmt.Fprintf(w, "\n%s\n", c.cyan("=== Cross-validation ==="))
	switch {
	case s.Evaluation != nil:
		e := s.Evaluation
		fmt.Fprintf(w, "Accuracy:     %s over %d folds\n", c.green(fmt.Sprintf("%.4f", e.Accuracy)), e.Folds)
		fmt.Fprintf(w, "Fold mean:    %.4f (std dev %.4f)\n", e.MeanAccuracy, e.StdDevAccuracy)
	case s.EvalErr != nil:
		fmt.Fprintf(w, "%s %v\n", c.yellow("Unavailable:"), s.EvalErr)
	default:
		fmt.Fprintf(w, "%s\n", c.yellow("Not run"))
	}

	names := make([]string, 0, len(s.Outputs)+len(s.OutputErrors))
	for name := range s.Outputs {
		names = append(names, name)
	}
	for name := range s.OutputErrors {
		if _, ok := s.Outputs[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) > 0 {
		fmt.Fprintf(w, "\n%s\n", c.cyan("=== Outputs ==="))
	}
	for _, name := range names {
		if err, failed := s.OutputErrors[name]; failed {
			fmt.Fprintf(w, "%-16s %s %v\n", name, c.red("FAILED"), err)
			continue
		}
		fmt.Fprintf(w, "%-16s %s\n", name, s.Outputs[name])
	}
}
