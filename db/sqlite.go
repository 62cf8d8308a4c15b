package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"tunefind/models"
	"tunefind/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" && dbPath != ":memory:" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}
	// a single connection keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)

	err = createTables(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createBeatsTable := `
    CREATE TABLE IF NOT EXISTS beats (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        beat_id TEXT NOT NULL UNIQUE,
        owner_id TEXT NOT NULL,
        filename TEXT NOT NULL,
        duration_s REAL NOT NULL,
        sample_rate INTEGER NOT NULL,
        vector TEXT NOT NULL,
        bpm INTEGER,
        key TEXT,
        content_hash TEXT,
        stored_path TEXT,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_beats_owner ON beats(owner_id);
    CREATE INDEX IF NOT EXISTS idx_beats_owner_hash ON beats(owner_id, content_hash);
    `

	_, err := db.Exec(createBeatsTable)
	if err != nil {
		return fmt.Errorf("error creating beats table: %s", err)
	}

	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StoreBeat inserts the beat, replacing any row with the same beat_id. A
// replaced beat moves to the end of the insertion order.
func (db *SQLiteClient) StoreBeat(beat models.Beat) error {
	vectorJSON, err := json.Marshal(beat.Vector)
	if err != nil {
		return fmt.Errorf("error marshaling vector: %s", err)
	}
	if beat.CreatedAt.IsZero() {
		beat.CreatedAt = time.Now().UTC()
	}

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO beats (
			beat_id, owner_id, filename, duration_s, sample_rate, vector,
			bpm, key, content_hash, stored_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %s", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(
		beat.BeatID,
		beat.OwnerID,
		beat.Filename,
		beat.DurationS,
		beat.SampleRate,
		string(vectorJSON),
		beat.BPM,
		beat.Key,
		nullString(beat.ContentHash),
		nullString(beat.StoredPath),
		beat.CreatedAt,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("error storing beat: %s", err)
	}

	return tx.Commit()
}

const beatColumns = `beat_id, owner_id, filename, duration_s, sample_rate, vector,
       bpm, key, content_hash, stored_path, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBeat(row rowScanner) (models.Beat, error) {
	var (
		b           models.Beat
		vectorJSON  string
		bpm         sql.NullInt64
		key         sql.NullString
		contentHash sql.NullString
		storedPath  sql.NullString
	)
	err := row.Scan(
		&b.BeatID,
		&b.OwnerID,
		&b.Filename,
		&b.DurationS,
		&b.SampleRate,
		&vectorJSON,
		&bpm,
		&key,
		&contentHash,
		&storedPath,
		&b.CreatedAt,
	)
	if err != nil {
		return models.Beat{}, err
	}
	if err := json.Unmarshal([]byte(vectorJSON), &b.Vector); err != nil {
		return models.Beat{}, fmt.Errorf("error unmarshaling vector: %s", err)
	}
	if bpm.Valid {
		v := int(bpm.Int64)
		b.BPM = &v
	}
	if key.Valid {
		v := key.String
		b.Key = &v
	}
	b.ContentHash = contentHash.String
	b.StoredPath = storedPath.String
	return b, nil
}

func (db *SQLiteClient) queryBeats(query string, args ...any) ([]models.Beat, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying beats: %s", err)
	}
	defer rows.Close()

	beats := []models.Beat{}
	for rows.Next() {
		b, err := scanBeat(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning beat: %s", err)
		}
		beats = append(beats, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beats: %s", err)
	}
	return beats, nil
}

func (db *SQLiteClient) getOne(query string, args ...any) (models.Beat, bool, error) {
	b, err := scanBeat(db.db.QueryRow(query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Beat{}, false, nil
		}
		return models.Beat{}, false, fmt.Errorf("failed to retrieve beat: %s", err)
	}
	return b, true, nil
}

func (db *SQLiteClient) GetBeat(ownerID, beatID string) (models.Beat, bool, error) {
	return db.getOne("SELECT "+beatColumns+" FROM beats WHERE owner_id = ? AND beat_id = ?", ownerID, beatID)
}

func (db *SQLiteClient) FindByContentHash(ownerID, hash string) (models.Beat, bool, error) {
	return db.getOne("SELECT "+beatColumns+" FROM beats WHERE owner_id = ? AND content_hash = ? ORDER BY seq LIMIT 1", ownerID, hash)
}

func (db *SQLiteClient) ListBeats(ownerID string) ([]models.Beat, error) {
	return db.queryBeats("SELECT "+beatColumns+" FROM beats WHERE owner_id = ? ORDER BY seq", ownerID)
}

func (db *SQLiteClient) AllBeats() ([]models.Beat, error) {
	return db.queryBeats("SELECT " + beatColumns + " FROM beats ORDER BY seq")
}

func (db *SQLiteClient) DeleteBeat(ownerID, beatID string) (bool, error) {
	res, err := db.db.Exec("DELETE FROM beats WHERE owner_id = ? AND beat_id = ?", ownerID, beatID)
	if err != nil {
		return false, fmt.Errorf("failed to delete beat: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete beat: %v", err)
	}
	return n > 0, nil
}

func (db *SQLiteClient) DeleteBeats(ownerID string) (int, error) {
	res, err := db.db.Exec("DELETE FROM beats WHERE owner_id = ?", ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete beats: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete beats: %v", err)
	}
	return int(n), nil
}

func (db *SQLiteClient) TotalBeats() (int, error) {
	var count int
	err := db.db.QueryRow("SELECT COUNT(*) FROM beats").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting beats: %s", err)
	}
	return count, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
