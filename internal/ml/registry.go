// Package ml wraps the golearn classification algorithms behind a closed
// registry and a small train/predict/cross-validate state machine.
//
// Datasets are converted to golearn grids on the way in; predictions are
// mapped back to category indices of the dataset's label attribute. Every
// call into golearn is guarded so that a panic inside the library surfaces
// as one of the package's sentinel errors.
package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"
	"github.com/sjwhitworth/golearn/filters"
	"github.com/sjwhitworth/golearn/knn"
	"github.com/sjwhitworth/golearn/naive"
	"github.com/sjwhitworth/golearn/trees"
)

var (
	ErrInstantiation = errors.New("classifier instantiation error")
	ErrTraining      = errors.New("training error")
	ErrPrediction    = errors.New("prediction error")
	ErrEvaluation    = errors.New("evaluation error")
)

// Algorithm identifies one of the supported classification algorithms.
type Algorithm int

const (
	NaiveBayes Algorithm = iota + 1
	DecisionTree
	KNN
	RandomForest
)

func (a Algorithm) String() string {
	switch a {
	case NaiveBayes:
		return "NaiveBayes"
	case DecisionTree:
		return "DecisionTree"
	case KNN:
		return "KNN"
	case RandomForest:
		return "RandomForest"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

var identifiers = map[string]Algorithm{
	"naivebayes":   NaiveBayes,
	"bayes":        NaiveBayes,
	"nb":           NaiveBayes,
	"decisiontree": DecisionTree,
	"tree":         DecisionTree,
	"id3":          DecisionTree,
	"knn":          KNN,
	"ibk":          KNN,
	"randomforest": RandomForest,
	"forest":       RandomForest,
}

// Identifiers returns every accepted classifier identifier, sorted.
func Identifiers() []string {
	ids := make([]string, 0, len(identifiers))
	for id := range identifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup resolves a classifier identifier, ignoring case and surrounding
// whitespace.
func Lookup(id string) (Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		return 0, fmt.Errorf("%w: no classifier configured", ErrInstantiation)
	}
	a, ok := identifiers[key]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported classifier %q (supported: %s)",
			ErrInstantiation, id, strings.Join(Identifiers(), ", "))
	}
	return a, nil
}

// Options are algorithm parameters given as key=value pairs.
type Options map[string]string

// ParseOptions parses "key=value" pairs. Keys are lower-cased; blank
// entries are skipped.
func ParseOptions(pairs []string) (Options, error) {
	opts := Options{}
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key, value, ok := strings.Cut(p, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: malformed option %q, want key=value", ErrInstantiation, p)
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}

func (o Options) intOption(key string, def, min int) (int, error) {
	raw, ok := o[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return 0, fmt.Errorf("%w: option %s=%q must be an integer >= %d", ErrInstantiation, key, raw, min)
	}
	return v, nil
}

func (o Options) check(allowed ...string) error {
	for key := range o {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown option %q", ErrInstantiation, key)
		}
	}
	return nil
}

// learner is a golearn model that can be fitted once and then queried.
type learner interface {
	fit(train base.FixedDataGrid) error
	predict(rows base.FixedDataGrid) (base.FixedDataGrid, error)
}

// factory returns a constructor for fresh, unfitted learners of algorithm a.
// Options are validated here so that a bad option fails at instantiation.
func factory(a Algorithm, opts Options) (func() learner, error) {
	switch a {
	case NaiveBayes:
		if err := opts.check(); err != nil {
			return nil, err
		}
		return func() learner { return &bayesLearner{} }, nil

	case DecisionTree:
		if err := opts.check("prune"); err != nil {
			return nil, err
		}
		prune := 0.0
		if raw, ok := opts["prune"]; ok {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 || v >= 1 || math.IsNaN(v) {
				return nil, fmt.Errorf("%w: option prune=%q must be in [0,1)", ErrInstantiation, raw)
			}
			prune = v
		}
		return func() learner { return &treeLearner{prune: prune} }, nil

	case KNN:
		if err := opts.check("k", "distance"); err != nil {
			return nil, err
		}
		k, err := opts.intOption("k", 1, 1)
		if err != nil {
			return nil, err
		}
		distance := "euclidean"
		if raw, ok := opts["distance"]; ok {
			distance = strings.ToLower(raw)
		}
		switch distance {
		case "euclidean", "manhattan", "cosine":
		default:
			return nil, fmt.Errorf("%w: option distance=%q must be euclidean, manhattan or cosine", ErrInstantiation, distance)
		}
		return func() learner { return &knnLearner{k: k, distance: distance} }, nil

	case RandomForest:
		if err := opts.check("trees", "features"); err != nil {
			return nil, err
		}
		size, err := opts.intOption("trees", 10, 1)
		if err != nil {
			return nil, err
		}
		features, err := opts.intOption("features", 0, 0)
		if err != nil {
			return nil, err
		}
		return func() learner { return &forestLearner{trees: size, features: features} }, nil
	}
	return nil, fmt.Errorf("%w: unsupported algorithm %s", ErrInstantiation, a)
}

// bayesLearner is a Bernoulli naive Bayes model over binarised features.
// golearn only keeps per-class feature counts for classes that have at
// least one present feature, so a class made only of blank images would
// have none. Every grid therefore gets an extra feature that is present on
// every row.
type bayesLearner struct {
	presence *base.FloatAttribute
	filter   *filters.BinaryConvertFilter
	nb       *naive.BernoulliNBClassifier
}

const presenceAttribute = "__present"

func (l *bayesLearner) fit(train base.FixedDataGrid) error {
	l.presence = base.NewFloatAttribute(presenceAttribute)
	g, err := l.withPresence(train)
	if err != nil {
		return err
	}

	l.filter = filters.NewBinaryConvertFilter()
	for _, a := range base.NonClassAttributes(g) {
		l.filter.AddAttribute(a)
	}
	if err := l.filter.Train(); err != nil {
		return err
	}
	l.nb = naive.NewBernoulliNBClassifier()
	return l.nb.Fit(base.NewLazilyFilteredInstances(g, l.filter))
}

func (l *bayesLearner) predict(rows base.FixedDataGrid) (base.FixedDataGrid, error) {
	g, err := l.withPresence(rows)
	if err != nil {
		return nil, err
	}
	return l.nb.Predict(base.NewLazilyFilteredInstances(g, l.filter))
}

// withPresence copies g and appends the presence feature, set to 1.
func (l *bayesLearner) withPresence(g base.FixedDataGrid) (*base.DenseInstances, error) {
	out := base.NewDenseInstances()
	attrs := g.AllAttributes()
	for _, a := range attrs {
		out.AddAttribute(a)
	}
	for _, a := range g.AllClassAttributes() {
		if err := out.AddClassAttribute(a); err != nil {
			return nil, err
		}
	}
	out.AddAttribute(l.presence)

	_, rows := g.Size()
	if err := out.Extend(rows); err != nil {
		return nil, err
	}

	src := base.ResolveAttributes(g, attrs)
	dst := base.ResolveAttributes(out, attrs)
	presence, err := out.GetAttribute(l.presence)
	if err != nil {
		return nil, err
	}
	one := base.PackFloatToBytes(1)
	for r := 0; r < rows; r++ {
		for i := range src {
			out.Set(dst[i], r, g.Get(src[i], r))
		}
		out.Set(presence, r, one)
	}
	return out, nil
}

// treeLearner is an ID3 decision tree. A zero prune ratio grows the full tree.
type treeLearner struct {
	prune float64
	tree  *trees.ID3DecisionTree
}

func (l *treeLearner) fit(train base.FixedDataGrid) error {
	l.tree = trees.NewID3DecisionTree(l.prune)
	return l.tree.Fit(train)
}

func (l *treeLearner) predict(rows base.FixedDataGrid) (base.FixedDataGrid, error) {
	return l.tree.Predict(rows)
}

// knnLearner is a brute-force k-nearest-neighbour classifier.
type knnLearner struct {
	k        int
	distance string
	cls      *knn.KNNClassifier
}

func (l *knnLearner) fit(train base.FixedDataGrid) error {
	l.cls = knn.NewKnnClassifier(l.distance, "linear", l.k)
	return l.cls.Fit(train)
}

func (l *knnLearner) predict(rows base.FixedDataGrid) (base.FixedDataGrid, error) {
	return l.cls.Predict(rows)
}

// forestLearner is a bagged forest of random ID3 trees. A zero feature count
// selects the square root of the number of features at fit time.
type forestLearner struct {
	trees    int
	features int
	forest   *ensemble.RandomForest
}

func (l *forestLearner) fit(train base.FixedDataGrid) error {
	available := len(base.NonClassAttributes(train))
	features := l.features
	if features == 0 {
		features = int(math.Max(1, math.Round(math.Sqrt(float64(available)))))
	}
	if features > available {
		return fmt.Errorf("forest needs %d features per tree, data has %d", features, available)
	}
	l.forest = ensemble.NewRandomForest(l.trees, features)
	return l.forest.Fit(train)
}

func (l *forestLearner) predict(rows base.FixedDataGrid) (base.FixedDataGrid, error) {
	return l.forest.Predict(rows)
}
