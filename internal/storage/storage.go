// Package storage keeps a history of classifier runs in a BoltDB file so
// that accuracy can be compared across runs and configurations.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	runsBucket = "runs"
	dbFile     = "hwr-history.db"
)

// ErrNotFound is returned by Latest when no run has been recorded.
var ErrNotFound = errors.New("no runs recorded")

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	Classifier     string    `json:"classifier"`
	Algorithm      string    `json:"algorithm"`
	Options        []string  `json:"options,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	TrainFile      string    `json:"train_file"`
	TestFile       string    `json:"test_file"`
	TrainRows      int       `json:"train_rows"`
	TestRows       int       `json:"test_rows"`
	Predicted      int       `json:"predicted"`
	Failed         int       `json:"failed"`
	Folds          int       `json:"folds"`
	Seed           int64     `json:"seed"`
	Accuracy       float64   `json:"accuracy"`
	MeanAccuracy   float64   `json:"mean_accuracy"`
	StdDevAccuracy float64   `json:"stddev_accuracy"`
	EvalError      string    `json:"eval_error,omitempty"`
	Duration       float64   `json:"duration_seconds"`
}

// Store provides persistent run history backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the history database in dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun stores record under "classifier_timestamp".
func (s *Store) SaveRun(record RunRecord) error {
	if record.Classifier == "" {
		return fmt.Errorf("run record has no classifier")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}

		return b.Put(runKey(record.Classifier, record.Timestamp), data)
	})
}

// Runs returns the runs of classifier recorded between start and end
// inclusive, oldest first.
func (s *Store) Runs(classifier string, start, end time.Time) ([]RunRecord, error) {
	var runs []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		prefix := []byte(classifier + "_")
		endKey := runKey(classifier, end)

		for k, v := c.Seek(runKey(classifier, start)); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, run)
		}
		return nil
	})

	return runs, err
}

// Latest returns the most recent run of classifier.
func (s *Store) Latest(classifier string) (RunRecord, error) {
	var run RunRecord
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		prefix := []byte(classifier + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			run, found = r, true
		}
		return nil
	})
	if err != nil {
		return RunRecord{}, err
	}
	if !found {
		return RunRecord{}, fmt.Errorf("%w for %s", ErrNotFound, classifier)
	}
	return run, nil
}

// runKey zero-pads the timestamp so keys of one classifier sort by time.
func runKey(classifier string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%020d", classifier, ts.UnixNano()))
}
