package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"tunefind/audio"
	"tunefind/service"
	"tunefind/utils"

	"github.com/fatih/color"
)

var (
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
)

func openService(dataDir string) (*service.TuneFind, service.Options) {
	opts := service.OptionsFromEnv(dataDir)
	svc, err := service.Open(opts)
	if err != nil {
		yellow.Println("Error opening catalog:", err)
		os.Exit(1)
	}
	return svc, opts
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		yellow.Println("Error encoding result:", err)
		return
	}
	fmt.Println(string(out))
}

func upload(dataDir, ownerID string, paths []string, opts service.UploadOptions) {
	svc, _ := openService(dataDir)
	defer svc.Close()

	files := make([]service.UploadFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			yellow.Println("Error reading file:", err)
			os.Exit(1)
		}
		files = append(files, service.UploadFile{Filename: filepath.Base(path), Data: data})
	}

	result, err := svc.UploadBeats(context.Background(), ownerID, files, opts)
	if err != nil {
		yellow.Println("Error uploading beat:", err)
		os.Exit(1)
	}
	for _, up := range result.Uploaded {
		green.Printf("uploaded %s as %s\n", up.Filename, up.BeatID)
	}
	for _, dup := range result.Skipped {
		yellow.Printf("skipped %s: duplicate of %s\n", dup.Filename, dup.BeatID)
	}
	printJSON(result)
}

func search(dataDir, ownerID, path string, topK int) {
	svc, _ := openService(dataDir)
	defer svc.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		yellow.Println("Error reading file:", err)
		os.Exit(1)
	}

	result, err := svc.SearchByHum(context.Background(), ownerID, data, topK)
	if err != nil {
		yellow.Println("Error searching:", err)
		os.Exit(1)
	}
	if result.Count == 0 {
		fmt.Println("\nno match found.")
		return
	}

	fmt.Println("matches:")
	for i, match := range result.Matches {
		line := fmt.Sprintf("\t%d. %s (%s), score: %.4f", i+1, match.Filename, match.BeatID, match.Score)
		if match.BPM != nil {
			line += fmt.Sprintf(", bpm: %d", *match.BPM)
		}
		if match.Key != nil {
			line += ", key: " + *match.Key
		}
		if i == 0 {
			green.Println(line)
		} else {
			fmt.Println(line)
		}
	}
}

func list(dataDir, ownerID string) {
	svc, _ := openService(dataDir)
	defer svc.Close()

	result, err := svc.ListBeats(ownerID)
	if err != nil {
		yellow.Println("Error listing beats:", err)
		os.Exit(1)
	}
	printJSON(result)
}

func erase(dataDir, ownerID, beatID string) {
	svc, _ := openService(dataDir)
	defer svc.Close()

	var (
		result service.DeleteResult
		err    error
	)
	if beatID != "" {
		result, err = svc.DeleteBeat(ownerID, beatID)
	} else {
		result, err = svc.DeleteBeats(ownerID)
	}
	if err != nil {
		yellow.Println("Error deleting:", err)
		os.Exit(1)
	}
	green.Printf("deleted %d beat(s)\n", result.Deleted)
}

func diagnostics() {
	root, _ := os.Getwd()
	diag := audio.Diagnose(root, utils.GetEnv("TUNEFIND_KEY_METHOD", "auto"))
	printJSON(diag)
	if !diag.DependenciesReady {
		yellow.Println("some optional tools are missing; decoding and key detection fall back to the built-in paths")
	}
}

func serve(protocol, port, dataDir string) {
	protocol = strings.ToLower(protocol)

	svc, opts := openService(dataDir)
	defer svc.Close()

	if err := audio.CheckFFmpegAvailable(); err != nil {
		log.Printf("WARNING: %v\n", err)
		log.Println("WAV, MP3 and FLAC still decode natively; other containers need FFmpeg.")
	} else {
		log.Println("FFmpeg is available")
	}

	server := newSocketServer(newSocketController(svc))
	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	mux := newMux(svc, opts, root, server)

	serveHTTP(protocol == "https", port, mux)
}

func serveHTTP(serveHTTPS bool, port string, handler http.Handler) {
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY")
		certFile := utils.GetEnv("CERT_FILE")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
		return
	}

	log.Printf("TuneFind server running on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
