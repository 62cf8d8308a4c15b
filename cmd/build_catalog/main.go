package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"tunefind/audio"
	"tunefind/service"
)

// Bulk-loads a folder tree into the catalog. Each subdirectory of -dir is
// one owner; the files inside it become that owner's beats.
func main() {
	rootDir := flag.String("dir", "", "Root directory containing one subdirectory per owner")
	dataDir := flag.String("data-dir", "", "Data directory for uploads and the index")
	skipDuplicates := flag.Bool("skip-duplicates", true, "Skip files the owner already uploaded")
	flag.Parse()

	if *rootDir == "" {
		log.Fatal("Usage: go run ./cmd/build_catalog -dir <directory> [-data-dir data]\n\n" +
			"Example structure:\n" +
			"  beats/\n" +
			"    producer-123/\n" +
			"      loop1.wav\n" +
			"      loop2.mp3\n" +
			"    producer-456/\n" +
			"      beat.flac\n")
	}

	owners, err := discoverSubdirectories(*rootDir)
	if err != nil {
		log.Fatalf("failed to read directory: %v", err)
	}
	if len(owners) == 0 {
		log.Fatalf("no subdirectories found in %s", *rootDir)
	}

	svc, err := service.Open(service.OptionsFromEnv(*dataDir))
	if err != nil {
		log.Fatalf("failed to open catalog: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	stats := make(map[string]int)
	skipped := 0
	for _, ownerDir := range owners {
		ownerID := filepath.Base(ownerDir)
		files, err := collectAudioFiles(ownerDir)
		if err != nil {
			log.Printf("  ERROR reading directory: %v\n", err)
			continue
		}
		if len(files) == 0 {
			log.Printf("  WARNING: no audio files found for %s, skipping\n", ownerID)
			continue
		}
		log.Printf("Processing owner %s (%d files)\n", ownerID, len(files))

		for i, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("  [%d/%d] %s: ERROR: %v\n", i+1, len(files), filepath.Base(path), err)
				continue
			}
			result, err := svc.UploadBeat(ctx, ownerID, filepath.Base(path), data, service.UploadOptions{SkipDuplicates: *skipDuplicates})
			if err != nil {
				log.Printf("  [%d/%d] %s: ERROR: %v\n", i+1, len(files), filepath.Base(path), err)
				continue
			}
			if result.Duplicate {
				skipped++
				log.Printf("  [%d/%d] %s: duplicate of %s\n", i+1, len(files), filepath.Base(path), result.BeatID)
				continue
			}
			stats[ownerID]++
			log.Printf("  [%d/%d] %s: %s\n", i+1, len(files), filepath.Base(path), result.BeatID)
		}
	}

	log.Println("\nOwner distribution:")
	for owner, count := range stats {
		log.Printf("  %-20s: %d beats\n", owner, count)
	}
	log.Printf("skipped %d duplicates\n", skipped)
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("Next steps:")
	log.Println("   go run ./cmd/self_match")
	log.Println("   go run . serve -p 8000")
	log.Println(strings.Repeat("=", 60))
}

func discoverSubdirectories(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, err
	}

	var subdirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			subdirs = append(subdirs, filepath.Join(rootDir, entry.Name()))
		}
	}
	return subdirs, nil
}

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true,
	".ogg": true, ".m4a": true, ".webm": true,
}

// collectAudioFiles keeps files with a known audio extension, or whose
// magic bytes say they are audio.
func collectAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] || sniffAudio(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

func sniffAudio(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 16)
	n, _ := f.Read(head)
	return audio.GuessExtension(head[:n]) != ".audio"
}
