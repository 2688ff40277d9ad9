package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

// 5x7 glyphs for the digits 0-9, one string per row.
var glyphs = [10][7]string{
	{".###.", "#...#", "#..##", "#.#.#", "##..#", "#...#", ".###."},
	{"..#..", ".##..", "..#..", "..#..", "..#..", "..#..", ".###."},
	{".###.", "#...#", "....#", "...#.", "..#..", ".#...", "#####"},
	{"#####", "...#.", "..#..", "...#.", "....#", "#...#", ".###."},
	{"...#.", "..##.", ".#.#.", "#..#.", "#####", "...#.", "...#."},
	{"#####", "#....", "####.", "....#", "....#", "#...#", ".###."},
	{"..##.", ".#...", "#....", "####.", "#...#", "#...#", ".###."},
	{"#####", "....#", "...#.", "..#..", ".#...", ".#...", ".#..."},
	{".###.", "#...#", "#...#", ".###.", "#...#", "#...#", ".###."},
	{".###.", "#...#", "#...#", ".####", "....#", "...#.", ".##.."},
}

const pixels = 5 * 7

func main() {
	var (
		outDir    = flag.String("out", "src/main/resources/input", "Directory to write the datasets to")
		trainRows = flag.Int("train", 500, "Number of training rows")
		testRows  = flag.Int("test", 100, "Number of test rows")
		noise     = flag.Float64("noise", 0.05, "Probability of flipping each pixel")
		seed      = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating sample digits...\n")
	fmt.Printf("  Train rows: %d\n", *trainRows)
	fmt.Printf("  Test rows: %d\n", *testRows)
	fmt.Printf("  Noise: %.2f\n", *noise)
	fmt.Printf("  Output: %s\n", *outDir)

	rng := rand.New(rand.NewSource(*seed))

	trainPath := filepath.Join(*outDir, "sample_train.csv")
	if err := writeDigits(trainPath, rng, *trainRows, *noise, true); err != nil {
		log.Fatalf("Failed to write training data: %v", err)
	}
	testPath := filepath.Join(*outDir, "sample_test.csv")
	if err := writeDigits(testPath, rng, *testRows, *noise, false); err != nil {
		log.Fatalf("Failed to write test data: %v", err)
	}

	fmt.Printf("✓ Wrote %s and %s\n", trainPath, testPath)
}

// writeDigits writes n noisy glyphs as CSV. Training rows start with the
// digit label; test rows carry pixels only.
func writeDigits(path string, rng *rand.Rand, n int, noise float64, labeled bool) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := make([]string, 0, pixels+1)
	if labeled {
		header = append(header, "label")
	}
	for i := 0; i < pixels; i++ {
		header = append(header, "pixel"+strconv.Itoa(i))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		digit := rng.Intn(10)
		record := make([]string, 0, pixels+1)
		if labeled {
			record = append(record, strconv.Itoa(digit))
		}
		for _, row := range glyphs[digit] {
			for _, cell := range row {
				on := cell == '#'
				if rng.Float64() < noise {
					on = !on
				}
				v := rng.Intn(30)
				if on {
					v = 255 - rng.Intn(60)
				}
				record = append(record, strconv.Itoa(v))
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
