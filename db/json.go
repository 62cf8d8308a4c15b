package db

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tunefind/models"
	"tunefind/utils"
)

// JSONClient keeps the whole catalog in one indented JSON file. Every write
// rewrites the file, so it suits small catalogs and local development.
type JSONClient struct {
	path string
	mu   sync.RWMutex
}

func NewJSONClient(path string) (*JSONClient, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return nil, fmt.Errorf("error creating directory: %v", err)
		}
	}
	c := &JSONClient{path: path}
	// fail early on an unreadable index
	if _, err := c.loadBeatsInternal(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *JSONClient) Close() error { return nil }

// loadBeatsInternal loads all beats from the JSON file (without lock)
func (c *JSONClient) loadBeatsInternal() ([]models.Beat, error) {
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return []models.Beat{}, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("error reading beats file: %v", err)
	}

	if len(data) == 0 {
		return []models.Beat{}, nil
	}

	var beats []models.Beat
	if err := json.Unmarshal(data, &beats); err != nil {
		return nil, fmt.Errorf("error unmarshaling beats: %v", err)
	}

	return beats, nil
}

// saveBeatsInternal writes through a temp file and renames it into place
// (without lock)
func (c *JSONClient) saveBeatsInternal(beats []models.Beat) error {
	data, err := json.MarshalIndent(beats, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling beats: %v", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("error writing beats file: %v", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("error replacing beats file: %v", err)
	}
	return nil
}

func (c *JSONClient) StoreBeat(beat models.Beat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	beats, err := c.loadBeatsInternal()
	if err != nil {
		return err
	}

	if beat.CreatedAt.IsZero() {
		beat.CreatedAt = time.Now().UTC()
	}

	// an upsert moves the record to the end
	kept := beats[:0]
	for _, b := range beats {
		if b.BeatID != beat.BeatID {
			kept = append(kept, b)
		}
	}
	kept = append(kept, beat)

	return c.saveBeatsInternal(kept)
}

func (c *JSONClient) find(match func(models.Beat) bool) (models.Beat, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	beats, err := c.loadBeatsInternal()
	if err != nil {
		return models.Beat{}, false, err
	}
	for _, b := range beats {
		if match(b) {
			return b, true, nil
		}
	}
	return models.Beat{}, false, nil
}

func (c *JSONClient) GetBeat(ownerID, beatID string) (models.Beat, bool, error) {
	return c.find(func(b models.Beat) bool {
		return b.OwnerID == ownerID && b.BeatID == beatID
	})
}

func (c *JSONClient) FindByContentHash(ownerID, hash string) (models.Beat, bool, error) {
	if hash == "" {
		return models.Beat{}, false, nil
	}
	return c.find(func(b models.Beat) bool {
		return b.OwnerID == ownerID && b.ContentHash == hash
	})
}

func (c *JSONClient) ListBeats(ownerID string) ([]models.Beat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	beats, err := c.loadBeatsInternal()
	if err != nil {
		return nil, err
	}
	owned := []models.Beat{}
	for _, b := range beats {
		if b.OwnerID == ownerID {
			owned = append(owned, b)
		}
	}
	return owned, nil
}

func (c *JSONClient) AllBeats() ([]models.Beat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadBeatsInternal()
}

func (c *JSONClient) remove(match func(models.Beat) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	beats, err := c.loadBeatsInternal()
	if err != nil {
		return 0, err
	}
	kept := beats[:0]
	removed := 0
	for _, b := range beats {
		if match(b) {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.saveBeatsInternal(kept)
}

func (c *JSONClient) DeleteBeat(ownerID, beatID string) (bool, error) {
	n, err := c.remove(func(b models.Beat) bool {
		return b.OwnerID == ownerID && b.BeatID == beatID
	})
	return n > 0, err
}

func (c *JSONClient) DeleteBeats(ownerID string) (int, error) {
	return c.remove(func(b models.Beat) bool { return b.OwnerID == ownerID })
}

func (c *JSONClient) TotalBeats() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	beats, err := c.loadBeatsInternal()
	if err != nil {
		return 0, err
	}
	return len(beats), nil
}
