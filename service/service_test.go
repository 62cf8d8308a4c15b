package service

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"tunefind/audio"
	"tunefind/db"
	"tunefind/tune"
)

func makeTone(t *testing.T, freq float64) []byte {
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

func newTestService(t *testing.T) *TuneFind {
	t.Helper()
	dir := t.TempDir()
	catalog, err := db.NewJSONClient(filepath.Join(dir, "index", "beats.json"))
	if err != nil {
		t.Fatalf("NewJSONClient: %v", err)
	}
	analyzer := tune.NewAnalyzer(tune.DefaultConfig(), audio.NewDefaultChain(false))
	s := New(dir, catalog, analyzer)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUploadAndSearchReturnsExpectedTopMatch(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()
	owner := "producer-123"

	if _, err := s.UploadBeat(ctx, owner, "low.wav", makeTone(t, 220), UploadOptions{}); err != nil {
		t.Fatalf("upload low: %v", err)
	}
	if _, err := s.UploadBeat(ctx, owner, "high.wav", makeTone(t, 660), UploadOptions{}); err != nil {
		t.Fatalf("upload high: %v", err)
	}

	result, err := s.SearchByHum(ctx, owner, makeTone(t, 230), 2)
	if err != nil {
		t.Fatalf("SearchByHum: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 matches, got %d", result.Count)
	}
	if result.Matches[0].Filename != "low.wav" {
		t.Fatalf("expected low.wav first, got %s", result.Matches[0].Filename)
	}
	if result.Matches[0].Score < result.Matches[1].Score {
		t.Fatalf("matches are not sorted by score: %+v", result.Matches)
	}
}

func TestOwnerIsolation(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.UploadBeat(ctx, "alice", "a.wav", makeTone(t, 220), UploadOptions{}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := s.UploadBeat(ctx, "bob", "b.wav", makeTone(t, 220), UploadOptions{}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	result, err := s.SearchByHum(ctx, "alice", makeTone(t, 220), 5)
	if err != nil {
		t.Fatalf("SearchByHum: %v", err)
	}
	if result.Count != 1 || result.Matches[0].OwnerID != "alice" {
		t.Fatalf("expected only alice's beat, got %+v", result.Matches)
	}
	if result.Matches[0].Score < 0.9999 {
		t.Fatalf("identical audio should score ~1, got %f", result.Matches[0].Score)
	}
}

func TestListBeats(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()
	for name, freq := range map[string]float64{"a.wav": 220, "b.wav": 330} {
		if _, err := s.UploadBeat(ctx, "alice", name, makeTone(t, freq), UploadOptions{}); err != nil {
			t.Fatalf("upload %s: %v", name, err)
		}
	}

	result, err := s.ListBeats("alice")
	if err != nil {
		t.Fatalf("ListBeats: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 beats, got %d", result.Count)
	}
	names := map[string]bool{}
	for _, b := range result.Beats {
		names[b.Filename] = true
	}
	if !names["a.wav"] || !names["b.wav"] {
		t.Fatalf("unexpected listing %+v", result.Beats)
	}
}

func TestSearchValidatesTopKBeforeDecoding(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	for _, k := range []int{0, 21} {
		_, err := s.SearchByHum(context.Background(), "alice", []byte("not audio"), k)
		if !errors.Is(err, tune.ErrInvalidParameter) {
			t.Fatalf("k=%d: expected ErrInvalidParameter, got %v", k, err)
		}
	}
	_, err := s.SearchByHum(context.Background(), "alice", []byte("not audio"), 5)
	if !errors.Is(err, tune.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSearchEmptyCatalog(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	result, err := s.SearchByHum(context.Background(), "nobody", makeTone(t, 440), 5)
	if err != nil {
		t.Fatalf("SearchByHum: %v", err)
	}
	if result.Count != 0 || result.Matches == nil {
		t.Fatalf("expected an empty, non-nil match list, got %+v", result)
	}
}

func TestUploadStoresFileAndOverrides(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	bpm := 93
	key := "F#m"
	result, err := s.UploadBeat(context.Background(), "alice", "../loop one.wav", makeTone(t, 220), UploadOptions{BPM: &bpm, Key: &key})
	if err != nil {
		t.Fatalf("UploadBeat: %v", err)
	}
	if result.BPM == nil || *result.BPM != 93 || result.Key == nil || *result.Key != "F#m" {
		t.Fatalf("overrides not applied: %+v", result)
	}
	if result.TempoSource != "caller" || result.KeySource != "caller" {
		t.Fatalf("expected caller sources, got %s/%s", result.TempoSource, result.KeySource)
	}

	stored := filepath.Join(s.DataDir(), "uploads", "alice", result.BeatID+"_loop_one.wav")
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("expected stored upload at %s: %v", stored, err)
	}
}

func TestUploadBeatsSkipsDuplicates(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	tone := makeTone(t, 220)
	files := []UploadFile{
		{Filename: "a.wav", Data: tone},
		{Filename: "a-copy.wav", Data: tone},
		{Filename: "b.wav", Data: makeTone(t, 440)},
	}

	batch, err := s.UploadBeats(context.Background(), "alice", files, UploadOptions{SkipDuplicates: true})
	if err != nil {
		t.Fatalf("UploadBeats: %v", err)
	}
	if batch.Count != 2 || len(batch.Skipped) != 1 {
		t.Fatalf("expected 2 uploaded and 1 skipped, got %+v", batch)
	}
	if batch.Skipped[0].BeatID != batch.Uploaded[0].BeatID {
		t.Fatalf("skipped upload should point at the original beat")
	}

	// duplicates are tracked per owner
	other, err := s.UploadBeats(context.Background(), "bob", files[:1], UploadOptions{SkipDuplicates: true})
	if err != nil || other.Count != 1 {
		t.Fatalf("bob's upload must not be treated as a duplicate: %+v %v", other, err)
	}

	plain, err := s.UploadBeats(context.Background(), "alice", files[:1], UploadOptions{})
	if err != nil || plain.Count != 1 {
		t.Fatalf("without skip_duplicates the upload must be stored: %+v %v", plain, err)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.UploadBeat(ctx, "", "a.wav", makeTone(t, 220), UploadOptions{}); !errors.Is(err, tune.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for missing owner, got %v", err)
	}
	if _, err := s.UploadBeat(ctx, "alice", "a.wav", nil, UploadOptions{}); !errors.Is(err, tune.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
	if _, err := s.UploadBeat(ctx, "alice", "a.txt", []byte("hello world"), UploadOptions{}); !tune.IsClientError(err) {
		t.Fatalf("expected a client error for undecodable bytes, got %v", err)
	}
	if list, _ := s.ListBeats("alice"); list.Count != 0 {
		t.Fatalf("failed uploads must not be stored")
	}
}

func TestDeleteBeat(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()
	up, err := s.UploadBeat(ctx, "alice", "a.wav", makeTone(t, 220), UploadOptions{})
	if err != nil {
		t.Fatalf("UploadBeat: %v", err)
	}
	stored := filepath.Join(s.DataDir(), "uploads", "alice", up.BeatID+"_a.wav")

	if _, err := s.DeleteBeat("bob", up.BeatID); !errors.Is(err, ErrBeatNotFound) {
		t.Fatalf("bob must not delete alice's beat, got %v", err)
	}
	res, err := s.DeleteBeat("alice", up.BeatID)
	if err != nil || res.Deleted != 1 {
		t.Fatalf("DeleteBeat: %+v %v", res, err)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Fatalf("expected stored upload to be removed")
	}
	if _, err := s.DeleteBeat("alice", up.BeatID); !errors.Is(err, ErrBeatNotFound) {
		t.Fatalf("expected ErrBeatNotFound, got %v", err)
	}
}

func TestDeleteBeats(t *testing.T) {
	t.Parallel()

	s := newTestService(t)
	ctx := context.Background()
	for _, owner := range []string{"alice", "alice", "bob"} {
		if _, err := s.UploadBeat(ctx, owner, "x.wav", makeTone(t, 330), UploadOptions{}); err != nil {
			t.Fatalf("UploadBeat: %v", err)
		}
	}

	res, err := s.DeleteBeats("alice")
	if err != nil || res.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %+v %v", res, err)
	}
	if list, _ := s.ListBeats("bob"); list.Count != 1 {
		t.Fatalf("bob's beats must survive")
	}
}

func TestSafePathComponent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"beat.wav":        "beat.wav",
		"../../etc":       "etc",
		"my loop (1).wav": "my_loop_1.wav",
		"..":              "x",
	}
	for in, want := range cases {
		if got := safePathComponent(in, "x"); got != want {
			t.Errorf("safePathComponent(%q) = %q, want %q", in, got, want)
		}
	}
}
