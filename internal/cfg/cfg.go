// Package cfg loads the recognizer configuration. A configuration file is
// either a KEY=VALUE properties file or a sectioned YAML file; both are
// flattened into the same set of keys, which may be overridden from the
// environment, and every path is resolved against a base directory.
package cfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hwr-classifier/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration is returned for any failure to load or query configuration.
var ErrConfiguration = errors.New("configuration error")

var knownKeys = []string{
	common.KeyResourcesDir,
	common.KeyDocInputDir,
	common.KeyOutputDir,
	common.KeySampleTrainFile,
	common.KeyTrainFile,
	common.KeySampleTestFile,
	common.KeyTestFile,
	common.KeyClassifiedLabels,
	common.KeyClassifiedDataFile,
	common.KeyClassifier,
	common.KeyClassifierOptions,
	common.KeyFolds,
	common.KeySeed,
	common.KeyTrainURL,
	common.KeyTestURL,
	common.KeyHistoryPath,
	common.KeyLogLevel,
}

// Settings is the resolved configuration. The zero value is an unloaded
// configuration: Lookup fails on it and every accessor returns "".
type Settings struct {
	baseDir string
	values  map[string]string
	folds   int
	seed    int64
}

// ConfigFile mirrors the YAML configuration layout.
type ConfigFile struct {
	Paths struct {
		ResourcesDir       string `yaml:"resourcesDir"`
		InputDir           string `yaml:"inputDir"`
		OutputDir          string `yaml:"outputDir"`
		SampleTrainFile    string `yaml:"sampleTrainFile"`
		TrainFile          string `yaml:"trainFile"`
		SampleTestFile     string `yaml:"sampleTestFile"`
		TestFile           string `yaml:"testFile"`
		ClassifiedLabels   string `yaml:"classifiedLabels"`
		ClassifiedDataFile string `yaml:"classifiedDataFile"`
		TrainURL           string `yaml:"trainURL"`
		TestURL            string `yaml:"testURL"`
	} `yaml:"paths"`

	Classifier struct {
		Name    string   `yaml:"name"`
		Options []string `yaml:"options"`
		Folds   int      `yaml:"folds"`
		Seed    int64    `yaml:"seed"`
	} `yaml:"classifier"`

	System struct {
		HistoryPath string `yaml:"historyPath"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads the configuration file at path and resolves relative paths
// against the current working directory.
func Load(path string) (Settings, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Settings{}, fmt.Errorf("%w: resolve working directory: %v", ErrConfiguration, err)
	}
	return LoadWithBase(path, wd)
}

// LoadWithBase reads the configuration file at path and resolves relative
// paths against baseDir.
func LoadWithBase(path, baseDir string) (Settings, error) {
	var (
		values map[string]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		values, err = loadFromYAML(path)
	default:
		values, err = loadFromProperties(path)
	}
	if err != nil {
		return Settings{}, err
	}

	applyEnvOverrides(values)

	settings := Settings{
		baseDir: baseDir,
		values:  values,
		folds:   common.DefaultFolds,
		seed:    common.DefaultSeed,
	}

	if v := values[common.KeyFolds]; v != "" {
		folds, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: %s must be an integer, got %q", ErrConfiguration, common.KeyFolds, v)
		}
		settings.folds = folds
	}
	if v := values[common.KeySeed]; v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: %s must be an integer, got %q", ErrConfiguration, common.KeySeed, v)
		}
		settings.seed = seed
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return settings, nil
}

func loadFromProperties(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
	}
	return values, nil
}

func loadFromYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %v", ErrConfiguration, err)
	}

	values := map[string]string{
		common.KeyResourcesDir:       config.Paths.ResourcesDir,
		common.KeyDocInputDir:        config.Paths.InputDir,
		common.KeyOutputDir:          config.Paths.OutputDir,
		common.KeySampleTrainFile:    config.Paths.SampleTrainFile,
		common.KeyTrainFile:          config.Paths.TrainFile,
		common.KeySampleTestFile:     config.Paths.SampleTestFile,
		common.KeyTestFile:           config.Paths.TestFile,
		common.KeyClassifiedLabels:   config.Paths.ClassifiedLabels,
		common.KeyClassifiedDataFile: config.Paths.ClassifiedDataFile,
		common.KeyTrainURL:           config.Paths.TrainURL,
		common.KeyTestURL:            config.Paths.TestURL,
		common.KeyClassifier:         config.Classifier.Name,
		common.KeyClassifierOptions:  strings.Join(config.Classifier.Options, ","),
		common.KeyHistoryPath:        config.System.HistoryPath,
		common.KeyLogLevel:           config.System.LogLevel,
	}
	if config.Classifier.Folds != 0 {
		values[common.KeyFolds] = strconv.Itoa(config.Classifier.Folds)
	}
	if config.Classifier.Seed != 0 {
		values[common.KeySeed] = strconv.FormatInt(config.Classifier.Seed, 10)
	}

	for k, v := range values {
		if v == "" {
			delete(values, k)
		}
	}
	return values, nil
}

func applyEnvOverrides(values map[string]string) {
	for _, key := range knownKeys {
		values[key] = getEnvOrDefault(common.EnvPrefix+key, values[key])
		if values[key] == "" {
			delete(values, key)
		}
	}
}

// validateSettings checks the keys every run needs. The classifier
// identifier is deliberately not required here; an unknown or missing
// classifier is reported when the classifier is instantiated.
func validateSettings(s *Settings) error {
	for _, key := range []string{common.KeyResourcesDir, common.KeyDocInputDir, common.KeyOutputDir} {
		if s.values[key] == "" {
			return fmt.Errorf("%s is required", key)
		}
	}

	if s.values[common.KeyTrainFile] == "" && s.values[common.KeySampleTrainFile] == "" {
		return fmt.Errorf("one of %s or %s is required", common.KeyTrainFile, common.KeySampleTrainFile)
	}
	if s.values[common.KeyTestFile] == "" && s.values[common.KeySampleTestFile] == "" {
		return fmt.Errorf("one of %s or %s is required", common.KeyTestFile, common.KeySampleTestFile)
	}

	if s.folds < common.MinFolds || s.folds > common.MaxFolds {
		return fmt.Errorf("folds must be between %d and %d, got %d", common.MinFolds, common.MaxFolds, s.folds)
	}

	return nil
}

// Loaded reports whether s was produced by a successful load.
func (s Settings) Loaded() bool {
	return s.values != nil
}

// Lookup returns the raw value of a configuration key.
func (s Settings) Lookup(key string) (string, error) {
	if !s.Loaded() {
		return "", fmt.Errorf("%w: lookup of %s on an unloaded configuration", ErrConfiguration, key)
	}
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%w: key %s is not set", ErrConfiguration, key)
	}
	return v, nil
}

// BaseDir returns the directory relative paths are resolved against.
func (s Settings) BaseDir() string {
	return s.baseDir
}

// ResourcesDir returns the resolved base resource directory.
func (s Settings) ResourcesDir() string {
	if !s.Loaded() {
		return ""
	}
	return s.resolve(s.values[common.KeyResourcesDir])
}

// InputDir returns the directory holding the input datasets.
func (s Settings) InputDir() string {
	return s.underResources(common.KeyDocInputDir)
}

// OutputDir returns the directory every output file is written to.
func (s Settings) OutputDir() string {
	return s.underResources(common.KeyOutputDir)
}

func (s Settings) SampleTrainFile() string {
	return s.underDir(s.InputDir(), s.values[common.KeySampleTrainFile])
}

func (s Settings) SampleTestFile() string {
	return s.underDir(s.InputDir(), s.values[common.KeySampleTestFile])
}

// TrainFile returns the training dataset path, falling back to the sample
// training file when TRAIN_FILE is not configured.
func (s Settings) TrainFile() string {
	if name := s.values[common.KeyTrainFile]; name != "" {
		return s.underDir(s.InputDir(), name)
	}
	return s.SampleTrainFile()
}

// TestFile returns the test dataset path, falling back to the sample test
// file when TEST_FILE is not configured.
func (s Settings) TestFile() string {
	if name := s.values[common.KeyTestFile]; name != "" {
		return s.underDir(s.InputDir(), name)
	}
	return s.SampleTestFile()
}

func (s Settings) ClassifiedLabelsFile() string {
	return s.outputFile(common.KeyClassifiedLabels, common.SuffixLabels)
}

func (s Settings) ClassifiedDataFile() string {
	return s.outputFile(common.KeyClassifiedDataFile, common.SuffixClassifiedData)
}

func (s Settings) EvaluationReportFile() string {
	return s.underDir(s.OutputDir(), s.Classifier()+common.SuffixEvalResults)
}

func (s Settings) EvaluationJSONFile() string {
	return s.underDir(s.OutputDir(), s.Classifier()+common.SuffixEvalJSON)
}

func (s Settings) MetricsFile() string {
	return s.underDir(s.OutputDir(), s.Classifier()+common.SuffixMetrics)
}

// Classifier returns the configured classifier identifier, or "" when none is set.
func (s Settings) Classifier() string {
	return strings.TrimSpace(s.values[common.KeyClassifier])
}

// ClassifierOptions returns the comma-separated classifier options as a list.
func (s Settings) ClassifierOptions() []string {
	var opts []string
	for _, o := range strings.Split(s.values[common.KeyClassifierOptions], ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	return opts
}

func (s Settings) Folds() int {
	return s.folds
}

func (s Settings) Seed() int64 {
	return s.seed
}

func (s Settings) TrainURL() string {
	return s.values[common.KeyTrainURL]
}

func (s Settings) TestURL() string {
	return s.values[common.KeyTestURL]
}

// HistoryPath returns the run-history directory, or "" when history is disabled.
func (s Settings) HistoryPath() string {
	if p := s.values[common.KeyHistoryPath]; p != "" {
		return s.resolve(p)
	}
	return ""
}

func (s Settings) LogLevel() string {
	return getOrDefault(s.values, common.KeyLogLevel, common.DefaultLogLevel)
}

func (s Settings) underResources(key string) string {
	return s.underDir(s.ResourcesDir(), s.values[key])
}

func (s Settings) outputFile(key, suffix string) string {
	name := s.values[key]
	if name == "" {
		name = s.Classifier() + suffix
	}
	return s.underDir(s.OutputDir(), name)
}

func (s Settings) underDir(dir, name string) string {
	if !s.Loaded() || name == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

func (s Settings) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.baseDir, p)
}
