package main

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tunefind/audio"
	"tunefind/db"
	"tunefind/service"
	"tunefind/tune"
)

func toneWAV(t *testing.T, freq float64) []byte {
	t.Helper()
	const sr = 8000
	samples := make([]float64, sr)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*freq*float64(i)/sr)
	}
	data, err := audio.EncodeWAV(samples, sr)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return data
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	dir := t.TempDir()
	catalog, err := db.NewJSONClient(filepath.Join(dir, "index", "beats.json"))
	if err != nil {
		t.Fatalf("NewJSONClient: %v", err)
	}
	svc := service.New(dir, catalog, tune.NewAnalyzer(tune.DefaultConfig(), audio.NewDefaultChain(false)))
	t.Cleanup(func() { svc.Close() })

	opts := service.Options{DataDir: dir, KeyMethod: "autocorr", MaxUploadBytes: 8 << 20}
	return newMux(svc, opts, dir, nil)
}

type formFile struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(newTestMux(t), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPreflightAndMethod(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	if rec := do(mux, httptest.NewRequest(http.MethodOptions, "/upload", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec := do(mux, httptest.NewRequest(http.MethodGet, "/search", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestUploadListSearchDelete(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)

	rec := do(mux, multipartRequest(t, "/upload",
		map[string]string{"owner_id": "alice", "bpm": "120", "key": "Am"},
		formFile{"low.wav", toneWAV(t, 220)},
		formFile{"high.wav", toneWAV(t, 660)},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var batch service.BatchResult
	decodeBody(t, rec, &batch)
	if batch.Count != 2 || *batch.Uploaded[0].BPM != 120 {
		t.Fatalf("unexpected upload result %+v", batch)
	}

	rec = do(mux, httptest.NewRequest(http.MethodGet, "/uploads?owner_id=alice", nil))
	var listed service.ListResult
	decodeBody(t, rec, &listed)
	if listed.Count != 2 {
		t.Fatalf("expected 2 listed beats, got %d", listed.Count)
	}

	rec = do(mux, multipartRequest(t, "/search",
		map[string]string{"owner_id": "alice", "top_k": "1"},
		formFile{"hum.wav", toneWAV(t, 230)},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var found service.SearchResult
	decodeBody(t, rec, &found)
	if found.Count != 1 || found.Matches[0].Filename != "low.wav" {
		t.Fatalf("unexpected search result %+v", found)
	}

	rec = do(mux, multipartRequest(t, "/uploads/delete-one",
		map[string]string{"owner_id": "alice", "beat_id": found.Matches[0].BeatID},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete-one: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, multipartRequest(t, "/uploads/delete", map[string]string{"owner_id": "alice"}))
	var deleted service.DeleteResult
	decodeBody(t, rec, &deleted)
	if deleted.Deleted != 1 {
		t.Fatalf("expected the remaining beat to be deleted, got %+v", deleted)
	}
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	hum := formFile{"hum.wav", toneWAV(t, 220)}

	cases := []struct {
		name   string
		fields map[string]string
		files  []formFile
		status int
	}{
		{"missing owner", map[string]string{"top_k": "5"}, []formFile{hum}, http.StatusBadRequest},
		{"top_k too large", map[string]string{"owner_id": "alice", "top_k": "21"}, []formFile{hum}, http.StatusBadRequest},
		{"top_k not a number", map[string]string{"owner_id": "alice", "top_k": "five"}, []formFile{hum}, http.StatusBadRequest},
		{"missing file", map[string]string{"owner_id": "alice"}, nil, http.StatusBadRequest},
		{"not audio", map[string]string{"owner_id": "alice"}, []formFile{{"hum.txt", []byte("hello")}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(mux, multipartRequest(t, "/search", tc.fields, tc.files...))
		if rec.Code != tc.status {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.status, rec.Code, rec.Body.String())
			continue
		}
		var body apiError
		decodeBody(t, rec, &body)
		if body.Message == "" {
			t.Errorf("%s: expected an error message", tc.name)
		}
	}
}

func TestUploadRejectsNonIntegerBPM(t *testing.T) {
	t.Parallel()

	rec := do(newTestMux(t), multipartRequest(t, "/upload",
		map[string]string{"owner_id": "alice", "bpm": "fast"},
		formFile{"a.wav", toneWAV(t, 220)},
	))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteOneUnknownBeat(t *testing.T) {
	t.Parallel()

	rec := do(newTestMux(t), multipartRequest(t, "/uploads/delete-one",
		map[string]string{"owner_id": "alice", "beat_id": "missing"},
	))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListRequiresOwner(t *testing.T) {
	t.Parallel()

	rec := do(newTestMux(t), httptest.NewRequest(http.MethodGet, "/uploads", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
