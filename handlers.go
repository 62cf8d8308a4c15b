package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"tunefind/audio"
	"tunefind/service"
	"tunefind/tune"
	"tunefind/utils"

	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Server-side
// failures are logged with their stack and reported generically.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBeatNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case tune.IsClientError(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		err := xerrors.New(err)
		utils.GetLogger().ErrorContext(ctx, "request failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// allowCORS sets the CORS headers and reports whether the request still
// needs handling: preflights are answered here and wrong methods rejected.
func allowCORS(w http.ResponseWriter, r *http.Request, method string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", method+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Credentials", "true")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func parseMultipart(ctx context.Context, w http.ResponseWriter, r *http.Request, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.GetLogger().ErrorContext(ctx, "failed to parse multipart form", slog.Any("error", err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "expected multipart/form-data")
		return false
	}
	return true
}

func formOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(r.FormValue("owner_id"))
	if ownerID == "" {
		writeJSONError(w, http.StatusBadRequest, "owner_id is required")
		return "", false
	}
	return ownerID, true
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func formFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		return nil
	}
	var files []*multipart.FileHeader
	for _, fh := range r.MultipartForm.File["file"] {
		if fh.Filename != "" {
			files = append(files, fh)
		}
	}
	return files
}

// parseUploadOptions reads bpm, key and skip_duplicates. An empty bpm means
// no override; anything else must be a non-negative integer.
func parseUploadOptions(r *http.Request) (service.UploadOptions, error) {
	var opts service.UploadOptions
	if raw := strings.TrimSpace(r.FormValue("bpm")); raw != "" {
		bpm, err := strconv.Atoi(raw)
		if err != nil || bpm < 0 {
			return opts, fmt.Errorf("%w: bpm must be an integer", tune.ErrInvalidParameter)
		}
		opts.BPM = &bpm
	}
	if key := strings.TrimSpace(r.FormValue("key")); key != "" {
		opts.Key = &key
	}
	opts.SkipDuplicates = r.FormValue("skip_duplicates") == "1"
	return opts, nil
}

func newHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func newDiagnosticsHandler(root, keyMethod string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, audio.Diagnose(root, keyMethod))
	}
}

func newListUploadsHandler(svc *service.TuneFind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowCORS(w, r, http.MethodGet) {
			return
		}
		ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
		if ownerID == "" {
			writeJSONError(w, http.StatusBadRequest, "owner_id is required")
			return
		}
		result, err := svc.ListBeats(ownerID)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func newUploadHandler(svc *service.TuneFind, maxBytes int64) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}
		if !parseMultipart(ctx, w, r, maxBytes) {
			return
		}
		ownerID, ok := formOwner(w, r)
		if !ok {
			return
		}
		opts, err := parseUploadOptions(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		headers := formFiles(r)
		if len(headers) == 0 {
			writeJSONError(w, http.StatusBadRequest, "file is required")
			return
		}
		files := make([]service.UploadFile, 0, len(headers))
		for _, fh := range headers {
			data, err := readFormFile(fh)
			if err != nil {
				err := xerrors.New(err)
				logger.ErrorContext(ctx, "failed to read uploaded file", slog.Any("error", err))
				writeJSONError(w, http.StatusBadRequest, "unable to read "+fh.Filename)
				return
			}
			files = append(files, service.UploadFile{Filename: fh.Filename, Data: data})
		}

		result, err := svc.UploadBeats(ctx, ownerID, files, opts)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func newSearchHandler(svc *service.TuneFind, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}
		if !parseMultipart(ctx, w, r, maxBytes) {
			return
		}
		ownerID, ok := formOwner(w, r)
		if !ok {
			return
		}

		topK := 5
		if raw := strings.TrimSpace(r.FormValue("top_k")); raw != "" {
			k, err := strconv.Atoi(raw)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "top_k must be an integer")
				return
			}
			topK = k
		}

		headers := formFiles(r)
		if len(headers) == 0 {
			writeJSONError(w, http.StatusBadRequest, "file is required")
			return
		}
		data, err := readFormFile(headers[0])
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "unable to read "+headers[0].Filename)
			return
		}

		result, err := svc.SearchByHum(ctx, ownerID, data, topK)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func newDeleteUploadsHandler(svc *service.TuneFind, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}
		if !parseMultipart(ctx, w, r, maxBytes) {
			return
		}
		ownerID, ok := formOwner(w, r)
		if !ok {
			return
		}
		result, err := svc.DeleteBeats(ownerID)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func newDeleteUploadHandler(svc *service.TuneFind, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !allowCORS(w, r, http.MethodPost) {
			return
		}
		if !parseMultipart(ctx, w, r, maxBytes) {
			return
		}
		ownerID, ok := formOwner(w, r)
		if !ok {
			return
		}
		beatID := strings.TrimSpace(r.FormValue("beat_id"))
		if beatID == "" {
			writeJSONError(w, http.StatusBadRequest, "beat_id is required")
			return
		}
		result, err := svc.DeleteBeat(ownerID, beatID)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// newMux registers every HTTP route. The socket.io server is optional so
// tests can exercise the plain endpoints.
func newMux(svc *service.TuneFind, opts service.Options, root string, socketServer http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if socketServer != nil {
		mux.Handle("/socket.io/", socketServer)
	}
	mux.HandleFunc("/health", newHealthHandler())
	mux.HandleFunc("/diagnostics", newDiagnosticsHandler(root, opts.KeyMethod))
	mux.HandleFunc("/uploads", newListUploadsHandler(svc))
	mux.HandleFunc("/upload", newUploadHandler(svc, opts.MaxUploadBytes))
	mux.HandleFunc("/search", newSearchHandler(svc, opts.MaxUploadBytes))
	mux.HandleFunc("/uploads/delete", newDeleteUploadsHandler(svc, opts.MaxUploadBytes))
	mux.HandleFunc("/uploads/delete-one", newDeleteUploadHandler(svc, opts.MaxUploadBytes))
	mux.Handle("/", http.FileServer(http.Dir("static")))
	return mux
}
