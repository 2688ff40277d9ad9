package common

// Configuration keys
const (
	KeyResourcesDir       = "RESOURCES_DIR"
	KeyDocInputDir        = "DOC_INPUT_DIR"
	KeyOutputDir          = "OUTPUT_DIR"
	KeySampleTrainFile    = "SAMPLE_TRAIN_FILE"
	KeyTrainFile          = "TRAIN_FILE"
	KeySampleTestFile     = "SAMPLE_TEST_FILE"
	KeyTestFile           = "TEST_FILE"
	KeyClassifiedLabels   = "CLASSIFIED_LABELS"
	KeyClassifiedDataFile = "CLASSIFIED_DATA_FILE"
	KeyClassifier         = "CLASSIFIER"
	KeyClassifierOptions  = "CLASSIFIER_OPTIONS"
	KeyFolds              = "FOLDS"
	KeySeed               = "SEED"
	KeyTrainURL           = "TRAIN_URL"
	KeyTestURL            = "TEST_URL"
	KeyHistoryPath        = "HISTORY_PATH"
	KeyLogLevel           = "LOG_LEVEL"
)

// EnvPrefix is prepended to a configuration key to form its environment override.
const EnvPrefix = "HWR_"

// Configuration defaults
const (
	DefaultConfigPath = "config/recognizer.properties"
	DefaultFolds      = 10
	DefaultSeed       = 1
	DefaultLogLevel   = "info"
)

// Validation constants
const (
	MinFolds = 2
	MaxFolds = 100
)

// Output file suffixes, appended to the classifier identifier.
const (
	SuffixLabels         = "_labels"
	SuffixClassifiedData = "_classified_data.csv"
	SuffixEvalResults    = "_EvalResults"
	SuffixEvalJSON       = "_EvalResults.json"
	SuffixMetrics        = "_metrics.prom"
)

// LabelAttribute is the name of the label column inserted into test data.
const LabelAttribute = "label"

// MissingValue marks a missing attribute value or a failed prediction in
// every file this module reads or writes.
const MissingValue = "?"

// DigitCategories is the fixed category set of the digit label.
var DigitCategories = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
