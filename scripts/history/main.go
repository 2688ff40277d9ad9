package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"hwr-classifier/internal/ml"
	"hwr-classifier/internal/storage"
)

func main() {
	var (
		dataPath   = flag.String("data", "./history", "Run history directory")
		classifier = flag.String("classifier", "", "Classifier identifier (default: every known identifier)")
		days       = flag.Int("days", 30, "How many days back to list")
	)
	flag.Parse()

	fmt.Printf("Inspecting run history in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ids := ml.Identifiers()
	if *classifier != "" {
		ids = []string{*classifier}
	}

	end := time.Now()
	start := end.AddDate(0, 0, -*days)
	for _, id := range ids {
		runs, err := store.Runs(id, start, end)
		if err != nil {
			log.Fatalf("Failed to read runs for %s: %v", id, err)
		}
		if len(runs) == 0 {
			continue
		}

		fmt.Printf("\n%s (%d runs)\n", id, len(runs))
		for _, r := range runs {
			fmt.Printf("  %s  accuracy %.4f  folds %d  predicted %d  failed %d  %.1fs\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.Accuracy, r.Folds, r.Predicted, r.Failed, r.Duration)
			if r.EvalError != "" {
				fmt.Printf("    evaluation unavailable: %s\n", r.EvalError)
			}
		}
	}
}
