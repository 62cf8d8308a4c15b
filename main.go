package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"tunefind/service"
	"tunefind/utils"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

func main() {
	_ = godotenv.Load()

	tmpDir := utils.GetEnv("TUNEFIND_TMP_DIR", "tmp")
	if err := utils.CreateFolder(tmpDir); err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		ctx := context.Background()
		logger.ErrorContext(ctx, "Failed create tmp dir.", slog.Any("error", err))
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "protocol to use (http or https)")
		port := serveCmd.String("p", "8000", "port to use")
		dataDir := serveCmd.String("data-dir", "", "data directory for uploads and the index")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port, *dataDir)

	case "upload":
		uploadCmd := flag.NewFlagSet("upload", flag.ExitOnError)
		dataDir := uploadCmd.String("data-dir", "", "data directory for uploads and the index")
		ownerID := uploadCmd.String("owner-id", "", "owner of the uploaded beats")
		file := uploadCmd.String("file", "", "audio file to upload")
		bpm := uploadCmd.Int("bpm", 0, "override the estimated tempo")
		key := uploadCmd.String("key", "", "override the estimated key")
		skip := uploadCmd.Bool("skip-duplicates", false, "skip files already uploaded by this owner")
		uploadCmd.Parse(os.Args[2:])

		paths := uploadCmd.Args()
		if *file != "" {
			paths = append([]string{*file}, paths...)
		}
		if *ownerID == "" || len(paths) == 0 {
			fmt.Println("usage: tunefind upload --owner-id <id> --file <audio> [more files...]")
			os.Exit(1)
		}

		opts := service.UploadOptions{SkipDuplicates: *skip}
		if *bpm > 0 {
			opts.BPM = bpm
		}
		if strings.TrimSpace(*key) != "" {
			opts.Key = key
		}
		upload(*dataDir, *ownerID, paths, opts)

	case "search":
		searchCmd := flag.NewFlagSet("search", flag.ExitOnError)
		dataDir := searchCmd.String("data-dir", "", "data directory for uploads and the index")
		ownerID := searchCmd.String("owner-id", "", "owner whose catalog is searched")
		file := searchCmd.String("file", "", "hummed audio file")
		topK := searchCmd.Int("top-k", 5, "number of matches to return (1-20)")
		searchCmd.Parse(os.Args[2:])
		if *ownerID == "" || *file == "" {
			fmt.Println("usage: tunefind search --owner-id <id> --file <audio> [--top-k 5]")
			os.Exit(1)
		}
		search(*dataDir, *ownerID, *file, *topK)

	case "list":
		listCmd := flag.NewFlagSet("list", flag.ExitOnError)
		dataDir := listCmd.String("data-dir", "", "data directory for uploads and the index")
		ownerID := listCmd.String("owner-id", "", "owner whose catalog is listed")
		listCmd.Parse(os.Args[2:])
		if *ownerID == "" {
			fmt.Println("usage: tunefind list --owner-id <id>")
			os.Exit(1)
		}
		list(*dataDir, *ownerID)

	case "delete":
		deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)
		dataDir := deleteCmd.String("data-dir", "", "data directory for uploads and the index")
		ownerID := deleteCmd.String("owner-id", "", "owner whose beats are deleted")
		beatID := deleteCmd.String("beat-id", "", "delete only this beat")
		deleteCmd.Parse(os.Args[2:])
		if *ownerID == "" {
			fmt.Println("usage: tunefind delete --owner-id <id> [--beat-id <id>]")
			os.Exit(1)
		}
		erase(*dataDir, *ownerID, *beatID)

	case "diagnostics":
		diagnostics()

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: tunefind <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  serve [-proto http] [-p 8000]                    start the HTTP and socket.io server")
	fmt.Println("  upload --owner-id <id> --file <audio> [...]      fingerprint and store beats")
	fmt.Println("  search --owner-id <id> --file <hum> [--top-k 5]  rank the owner's beats against a hum")
	fmt.Println("  list --owner-id <id>                             list the owner's beats")
	fmt.Println("  delete --owner-id <id> [--beat-id <id>]          delete one or all of the owner's beats")
	fmt.Println("  diagnostics                                      report external tool availability")
}
