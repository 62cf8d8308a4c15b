package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tunefind/db"
	"tunefind/service"
)

// Searches every stored beat against its owner's catalog using its own
// audio. A healthy index ranks each beat first with a score of ~1.
func main() {
	dataDir := flag.String("data-dir", "", "Data directory for uploads and the index")
	topK := flag.Int("top-k", 3, "Number of matches to inspect per beat")
	flag.Parse()

	opts := service.OptionsFromEnv(*dataDir)
	catalog, err := db.NewDBClient(opts.DataDir)
	if err != nil {
		log.Fatalf("failed to open catalog: %v", err)
	}
	beats, err := catalog.AllBeats()
	if err != nil {
		log.Fatalf("failed to load beats: %v", err)
	}
	svc := service.New(opts.DataDir, catalog, service.NewAnalyzer(opts))
	defer svc.Close()

	fmt.Printf("Loaded %d beats\n\n", len(beats))
	fmt.Println("=== Testing Self-Match ===")

	ctx := context.Background()
	tested, passed := 0, 0
	for _, beat := range beats {
		if beat.StoredPath == "" {
			continue
		}
		data, err := os.ReadFile(beat.StoredPath)
		if err != nil {
			log.Printf("  %s: ERROR: %v\n", beat.Filename, err)
			continue
		}

		result, err := svc.SearchByHum(ctx, beat.OwnerID, data, *topK)
		if err != nil {
			log.Printf("  %s: ERROR: %v\n", beat.Filename, err)
			continue
		}
		tested++
		if result.Count > 0 && result.Matches[0].BeatID == beat.BeatID {
			passed++
			fmt.Printf("  ok    %-30s score %.4f\n", beat.Filename, result.Matches[0].Score)
			continue
		}
		fmt.Printf("  FAIL  %-30s\n", beat.Filename)
		for i, m := range result.Matches {
			fmt.Printf("        %d. %s (%s) score %.4f\n", i+1, m.Filename, m.BeatID, m.Score)
		}
	}

	fmt.Printf("\n%d/%d beats matched themselves first\n", passed, tested)
	if passed != tested {
		os.Exit(1)
	}
}
