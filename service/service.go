package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"

	"tunefind/db"
	"tunefind/models"
	"tunefind/tune"
	"tunefind/utils"
)

// ErrBeatNotFound is returned when a beat id does not exist in the owner's
// catalog.
var ErrBeatNotFound = errors.New("beat not found")

// TuneFind is the catalog service: uploads are fingerprinted and stored,
// hums are ranked against one owner's beats.
type TuneFind struct {
	dataDir    string
	uploadsDir string
	catalog    db.Catalog
	analyzer   *tune.Analyzer

	// serialises the duplicate check with the insert that follows it
	uploadMu sync.Mutex
}

func New(dataDir string, catalog db.Catalog, analyzer *tune.Analyzer) *TuneFind {
	return &TuneFind{
		dataDir:    dataDir,
		uploadsDir: filepath.Join(dataDir, "uploads"),
		catalog:    catalog,
		analyzer:   analyzer,
	}
}

func (s *TuneFind) DataDir() string          { return s.dataDir }
func (s *TuneFind) Analyzer() *tune.Analyzer { return s.analyzer }
func (s *TuneFind) Close() error             { return s.catalog.Close() }

// UploadFile is one named upload.
type UploadFile struct {
	Filename string
	Data     []byte
}

// UploadOptions carries caller overrides. A non-nil BPM or Key replaces the
// estimate; the key is stored verbatim.
type UploadOptions struct {
	BPM            *int
	Key            *string
	SkipDuplicates bool
}

type UploadResult struct {
	BeatID      string  `json:"beat_id"`
	Filename    string  `json:"filename"`
	OwnerID     string  `json:"owner_id"`
	DurationS   float64 `json:"duration_s"`
	BPM         *int    `json:"bpm"`
	Key         *string `json:"key"`
	TempoSource string  `json:"tempo_source,omitempty"`
	KeySource   string  `json:"key_source,omitempty"`
	Duplicate   bool    `json:"duplicate,omitempty"`
}

type BatchResult struct {
	Uploaded []UploadResult `json:"uploaded"`
	Skipped  []UploadResult `json:"skipped"`
	Count    int            `json:"count"`
}

type SearchResult struct {
	Matches []models.Match `json:"matches"`
	Count   int            `json:"count"`
}

type ListResult struct {
	Beats []models.BeatSummary `json:"beats"`
	Count int                  `json:"count"`
}

type DeleteResult struct {
	Deleted int    `json:"deleted"`
	BeatID  string `json:"beat_id,omitempty"`
}

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner_id is required", tune.ErrInvalidParameter)
	}
	return nil
}

// UploadBeat fingerprints one file and adds it to the owner's catalog.
func (s *TuneFind) UploadBeat(ctx context.Context, ownerID, filename string, data []byte, opts UploadOptions) (UploadResult, error) {
	if err := requireOwner(ownerID); err != nil {
		return UploadResult{}, err
	}
	if strings.TrimSpace(filename) == "" {
		return UploadResult{}, fmt.Errorf("%w: filename is required", tune.ErrInvalidParameter)
	}
	if len(data) == 0 {
		return UploadResult{}, fmt.Errorf("%s: %w", filename, tune.ErrEmptyAudio)
	}
	logger := utils.GetLogger()

	hash := utils.ContentHash(data)
	if opts.SkipDuplicates {
		if existing, ok, err := s.catalog.FindByContentHash(ownerID, hash); err != nil {
			return UploadResult{}, err
		} else if ok {
			logger.InfoContext(ctx, "skipping duplicate upload",
				slog.String("owner_id", ownerID),
				slog.String("filename", filename),
				slog.String("beat_id", existing.BeatID),
			)
			result := resultFromBeat(existing)
			result.Duplicate = true
			return result, nil
		}
	}

	analysis, err := s.analyzer.Analyze(ctx, data)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%s: %w", filename, err)
	}

	beat := models.Beat{
		BeatID:      utils.GenerateUniqueID(),
		Filename:    filename,
		OwnerID:     ownerID,
		DurationS:   analysis.DurationS,
		SampleRate:  analysis.SampleRate,
		Vector:      analysis.Vector,
		BPM:         analysis.BPM,
		Key:         analysis.Key,
		ContentHash: hash,
		CreatedAt:   time.Now().UTC(),
	}
	result := UploadResult{
		TempoSource: analysis.TempoSource,
		KeySource:   analysis.KeySource,
	}
	if opts.BPM != nil {
		bpm := *opts.BPM
		beat.BPM = &bpm
		result.TempoSource = "caller"
	}
	if opts.Key != nil {
		key := *opts.Key
		beat.Key = &key
		result.KeySource = "caller"
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	if opts.SkipDuplicates {
		// a concurrent upload of the same bytes may have landed while we were analysing
		if existing, ok, err := s.catalog.FindByContentHash(ownerID, hash); err != nil {
			return UploadResult{}, err
		} else if ok {
			dup := resultFromBeat(existing)
			dup.Duplicate = true
			return dup, nil
		}
	}

	ownerDir := filepath.Join(s.uploadsDir, safePathComponent(ownerID, "owner"))
	if err := utils.CreateFolder(ownerDir); err != nil {
		return UploadResult{}, fmt.Errorf("error creating upload folder: %v", err)
	}
	beat.StoredPath = filepath.Join(ownerDir, beat.BeatID+"_"+safePathComponent(filepath.Base(filename), "upload"))
	if err := os.WriteFile(beat.StoredPath, data, 0644); err != nil {
		return UploadResult{}, fmt.Errorf("error storing upload: %v", err)
	}

	if err := s.catalog.StoreBeat(beat); err != nil {
		_ = utils.DeleteFile(beat.StoredPath)
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to store beat", slog.Any("error", err))
		return UploadResult{}, err
	}

	logger.InfoContext(ctx, "beat uploaded",
		slog.String("owner_id", ownerID),
		slog.String("beat_id", beat.BeatID),
		slog.String("filename", filename),
		slog.Float64("duration_s", beat.DurationS),
	)

	out := resultFromBeat(beat)
	out.TempoSource = result.TempoSource
	out.KeySource = result.KeySource
	return out, nil
}

// UploadBeats uploads files in order and stops at the first failure. Beats
// stored before the failure stay in the catalog.
func (s *TuneFind) UploadBeats(ctx context.Context, ownerID string, files []UploadFile, opts UploadOptions) (BatchResult, error) {
	if err := requireOwner(ownerID); err != nil {
		return BatchResult{}, err
	}
	if len(files) == 0 {
		return BatchResult{}, fmt.Errorf("%w: file is required", tune.ErrInvalidParameter)
	}

	batch := BatchResult{Uploaded: []UploadResult{}, Skipped: []UploadResult{}}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		result, err := s.UploadBeat(ctx, ownerID, f.Filename, f.Data, opts)
		if err != nil {
			return batch, err
		}
		if result.Duplicate {
			batch.Skipped = append(batch.Skipped, result)
			continue
		}
		batch.Uploaded = append(batch.Uploaded, result)
	}
	batch.Count = len(batch.Uploaded)
	return batch, nil
}

// SearchByHum ranks the owner's beats against a hummed query. k is checked
// before any decoding.
func (s *TuneFind) SearchByHum(ctx context.Context, ownerID string, data []byte, k int) (SearchResult, error) {
	if err := s.analyzer.Config().ValidateTopK(k); err != nil {
		return SearchResult{}, err
	}
	if err := requireOwner(ownerID); err != nil {
		return SearchResult{}, err
	}

	query, err := s.analyzer.Fingerprint(ctx, data)
	if err != nil {
		return SearchResult{}, err
	}

	beats, err := s.catalog.ListBeats(ownerID)
	if err != nil {
		return SearchResult{}, err
	}
	entries := make([]tune.Entry, len(beats))
	for i, b := range beats {
		entries[i] = tune.Entry{ID: b.BeatID, OwnerID: b.OwnerID, Vector: b.Vector}
	}

	ranked := tune.Rank(query.Vector, entries, ownerID, k)
	matches := make([]models.Match, 0, len(ranked))
	for _, r := range ranked {
		b := beats[r.Index]
		matches = append(matches, models.Match{
			BeatID:    b.BeatID,
			Filename:  b.Filename,
			OwnerID:   b.OwnerID,
			DurationS: b.DurationS,
			Score:     tune.RoundScore(r.Score),
			BPM:       b.BPM,
			Key:       b.Key,
		})
	}
	return SearchResult{Matches: matches, Count: len(matches)}, nil
}

func (s *TuneFind) ListBeats(ownerID string) (ListResult, error) {
	if err := requireOwner(ownerID); err != nil {
		return ListResult{}, err
	}
	beats, err := s.catalog.ListBeats(ownerID)
	if err != nil {
		return ListResult{}, err
	}
	summaries := make([]models.BeatSummary, len(beats))
	for i, b := range beats {
		summaries[i] = b.Summary()
	}
	return ListResult{Beats: summaries, Count: len(summaries)}, nil
}

// DeleteBeat removes one beat and its stored audio.
func (s *TuneFind) DeleteBeat(ownerID, beatID string) (DeleteResult, error) {
	if err := requireOwner(ownerID); err != nil {
		return DeleteResult{}, err
	}
	if strings.TrimSpace(beatID) == "" {
		return DeleteResult{}, fmt.Errorf("%w: beat_id is required", tune.ErrInvalidParameter)
	}

	beat, ok, err := s.catalog.GetBeat(ownerID, beatID)
	if err != nil {
		return DeleteResult{}, err
	}
	if !ok {
		return DeleteResult{}, fmt.Errorf("%w: %s", ErrBeatNotFound, beatID)
	}
	if _, err := s.catalog.DeleteBeat(ownerID, beatID); err != nil {
		return DeleteResult{}, err
	}
	s.removeStored(beat)
	return DeleteResult{Deleted: 1, BeatID: beatID}, nil
}

// DeleteBeats clears the owner's whole catalog.
func (s *TuneFind) DeleteBeats(ownerID string) (DeleteResult, error) {
	if err := requireOwner(ownerID); err != nil {
		return DeleteResult{}, err
	}
	beats, err := s.catalog.ListBeats(ownerID)
	if err != nil {
		return DeleteResult{}, err
	}
	n, err := s.catalog.DeleteBeats(ownerID)
	if err != nil {
		return DeleteResult{}, err
	}
	for _, b := range beats {
		s.removeStored(b)
	}
	return DeleteResult{Deleted: n}, nil
}

func (s *TuneFind) removeStored(beat models.Beat) {
	if beat.StoredPath == "" {
		return
	}
	if err := utils.DeleteFile(beat.StoredPath); err != nil {
		err := xerrors.New(err)
		utils.GetLogger().Warn("failed to remove stored upload",
			slog.String("path", beat.StoredPath),
			slog.Any("error", err),
		)
	}
}

func resultFromBeat(b models.Beat) UploadResult {
	return UploadResult{
		BeatID:    b.BeatID,
		Filename:  b.Filename,
		OwnerID:   b.OwnerID,
		DurationS: b.DurationS,
		BPM:       b.BPM,
		Key:       b.Key,
	}
}

// safePathComponent keeps a name usable as a single path element.
func safePathComponent(name, fallback string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '-' || r == '.':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, name)

	safe = strings.Trim(safe, ".")
	if safe == "" {
		return fallback
	}
	return safe
}
