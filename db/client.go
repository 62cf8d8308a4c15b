package db

import (
	"fmt"
	"path/filepath"
	"strings"

	"tunefind/models"
	"tunefind/utils"
)

// Catalog is the beat store shared by every backend. Listing methods return
// beats in insertion order, which is the tie order for ranking.
type Catalog interface {
	Close() error
	StoreBeat(beat models.Beat) error
	GetBeat(ownerID, beatID string) (models.Beat, bool, error)
	ListBeats(ownerID string) ([]models.Beat, error)
	AllBeats() ([]models.Beat, error)
	FindByContentHash(ownerID, hash string) (models.Beat, bool, error)
	DeleteBeat(ownerID, beatID string) (bool, error)
	DeleteBeats(ownerID string) (int, error)
	TotalBeats() (int, error)
}

// NewDBClient picks the backend from DB_TYPE: sqlite (default), mongo or
// json. dataDir anchors the default file locations.
func NewDBClient(dataDir string) (Catalog, error) {
	dbType := strings.ToLower(strings.TrimSpace(utils.GetEnv("DB_TYPE", "sqlite")))

	switch dbType {
	case "mongo", "mongodb":
		uri := utils.GetEnv("MONGO_URI", "mongodb://localhost:27017")
		dbName := utils.GetEnv("MONGO_DB", "tunefind")
		return NewMongoClient(uri, dbName)

	case "json":
		path := utils.GetEnv("JSON_INDEX_PATH", filepath.Join(dataDir, "index", "beats.json"))
		return NewJSONClient(path)

	case "", "sqlite", "sqlite3":
		path := utils.GetEnv("SQLITE_PATH", filepath.Join(dataDir, "index", "tunefind.sqlite3"))
		return NewSQLiteClient(path)

	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", dbType)
	}
}
