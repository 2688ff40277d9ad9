package ml

import (
	"fmt"
	"math/rand"

	"hwr-classifier/internal/data"

	"github.com/sjwhitworth/golearn/evaluation"
)

// Folds shuffles the indices 0..n-1 with a generator seeded by seed and cuts
// them into k contiguous blocks. Block sizes differ by at most one, and the
// first n%k blocks carry the extra row.
func Folds(n, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", ErrEvaluation, k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: %d folds exceed %d rows", ErrEvaluation, k, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	size, extra := n/k, n%k
	start := 0
	for i := range folds {
		end := start + size
		if i < extra {
			end++
		}
		folds[i] = perm[start:end]
		start = end
	}
	return folds, nil
}

// CrossValidate estimates the accuracy of this classifier's algorithm on ds
// with k-fold cross-validation. Each fold trains a fresh model on the other
// folds and classifies its own rows; the model built by Train is never used
// or modified.
func (c *Classifier) CrossValidate(ds *data.Dataset, folds int, seed int64) (*Evaluation, error) {
	parts, err := Folds(ds.NumRows(), folds, seed)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Classifier: c.id,
		Algorithm:  c.algorithm.String(),
		Folds:      folds,
		Seed:       seed,
		Instances:  ds.NumRows(),
		Confusion:  evaluation.ConfusionMatrix{},
	}

	for i, test := range parts {
		train := make([]int, 0, ds.NumRows()-len(test))
		for j, p := range parts {
			if j != i {
				train = append(train, p...)
			}
		}

		f, model, err := c.fit(ds.Subset(train))
		if err != nil {
			return nil, fmt.Errorf("%w: fold %d: %v", ErrEvaluation, i+1, err)
		}

		preds := classify(f, model, ds, test)
		correct := 0
		for _, p := range preds {
			if !p.OK() {
				eval.Unclassified++
				continue
			}
			actual := f.schema[f.label].Format(ds.Value(p.Row, f.label))
			if eval.Confusion[actual] == nil {
				eval.Confusion[actual] = map[string]int{}
			}
			eval.Confusion[actual][p.Value]++
			if p.Value == actual {
				correct++
			}
		}
		eval.Correct += correct
		eval.Incorrect += len(test) - correct

		acc := float64(correct) / float64(len(test))
		eval.FoldAccuracy = append(eval.FoldAccuracy, acc)
		if c.metrics != nil {
			c.metrics.FoldAccuracyObserve(acc)
		}

		c.logger.Debug().
			Int("fold", i+1).
			Int("rows", len(test)).
			Float64("accuracy", acc).
			Msg("Fold evaluated")
	}
	// Unclassified rows were counted as incorrect above.
	eval.Incorrect -= eval.Unclassified

	eval.finish()

	c.logger.Info().
		Int("folds", folds).
		Float64("accuracy", eval.Accuracy).
		Msg("Cross-validation complete")
	return eval, nil
}
