package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"

	"tunefind/service"
	"tunefind/tune"
)

// Checks that fingerprinting the same file repeatedly yields identical
// vectors, tempo and key.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run ./cmd/check_determinism <path-to-audio-file>")
	}

	testFile := os.Args[1]
	data, err := os.ReadFile(testFile)
	if err != nil {
		log.Fatalf("failed to read %s: %v", testFile, err)
	}
	log.Printf("Testing determinism with: %s\n", testFile)

	analyzer := service.NewAnalyzer(service.OptionsFromEnv(""))
	ctx := context.Background()

	const numRuns = 5
	var runs []tune.Analysis
	for i := 0; i < numRuns; i++ {
		analysis, err := analyzer.Analyze(ctx, data)
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		runs = append(runs, analysis)
		log.Printf("Run %d: first 4 features: %.10f, %.10f, %.10f, %.10f",
			i+1, analysis.Vector[0], analysis.Vector[1], analysis.Vector[2], analysis.Vector[3])
	}

	fmt.Println("\n=== Determinism Check ===")
	allIdentical := true
	maxDiff := 0.0
	first := runs[0]
	for i := 1; i < numRuns; i++ {
		for j := range first.Vector {
			diff := math.Abs(first.Vector[j] - runs[i].Vector[j])
			maxDiff = math.Max(maxDiff, diff)
			if diff > 1e-12 {
				allIdentical = false
				fmt.Printf("feature %d differs between run 1 and run %d: %.15f vs %.15f (diff: %e)\n",
					j, i+1, first.Vector[j], runs[i].Vector[j], diff)
			}
		}
		if format(runs[i].BPM) != format(first.BPM) || formatKey(runs[i].Key) != formatKey(first.Key) {
			allIdentical = false
			fmt.Printf("run %d estimated bpm=%s key=%s, run 1 estimated bpm=%s key=%s\n",
				i+1, format(runs[i].BPM), formatKey(runs[i].Key), format(first.BPM), formatKey(first.Key))
		}
	}

	if allIdentical {
		fmt.Println("all runs produced identical results")
		fmt.Printf("   max difference: %e\n", maxDiff)
	} else {
		fmt.Printf("analysis is NON-DETERMINISTIC (max diff: %e)\n", maxDiff)
	}

	fmt.Println("\n=== Self-Match ===")
	score := tune.CosineSimilarity(runs[0].Vector, runs[1].Vector)
	fmt.Printf("cosine between two extractions of the same file: %.10f\n", score)
	fmt.Printf("duration: %.3fs, native rate: %d Hz, bpm: %s (%s), key: %s (%s)\n",
		first.DurationS, first.SampleRate,
		format(first.BPM), first.TempoSource,
		formatKey(first.Key), first.KeySource)

	if !allIdentical {
		os.Exit(1)
	}
}

func format(bpm *int) string {
	if bpm == nil {
		return "none"
	}
	return fmt.Sprint(*bpm)
}

func formatKey(key *string) string {
	if key == nil {
		return "none"
	}
	return *key
}
