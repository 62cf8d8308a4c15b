package db

import (
	"path/filepath"
	"testing"

	"tunefind/models"
)

func testBeat(id, owner, hash string, vector ...float64) models.Beat {
	bpm := 120
	key := "Am"
	return models.Beat{
		BeatID:      id,
		OwnerID:     owner,
		Filename:    id + ".wav",
		DurationS:   2.5,
		SampleRate:  44100,
		Vector:      vector,
		BPM:         &bpm,
		Key:         &key,
		ContentHash: hash,
	}
}

func openCatalogs(t *testing.T) map[string]Catalog {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteClient(filepath.Join(dir, "index", "beats.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteClient: %v", err)
	}
	jsonClient, err := NewJSONClient(filepath.Join(dir, "index", "beats.json"))
	if err != nil {
		t.Fatalf("NewJSONClient: %v", err)
	}
	t.Cleanup(func() {
		sqlite.Close()
		jsonClient.Close()
	})
	return map[string]Catalog{"sqlite": sqlite, "json": jsonClient}
}

func ids(beats []models.Beat) []string {
	out := make([]string, len(beats))
	for i, b := range beats {
		out[i] = b.BeatID
	}
	return out
}

func TestCatalogStoreAndList(t *testing.T) {
	t.Parallel()

	for name, catalog := range openCatalogs(t) {
		if err := catalog.StoreBeat(testBeat("a", "alice", "h1", 1, 0)); err != nil {
			t.Fatalf("%s: StoreBeat: %v", name, err)
		}
		if err := catalog.StoreBeat(testBeat("b", "bob", "h2", 0, 1)); err != nil {
			t.Fatalf("%s: StoreBeat: %v", name, err)
		}
		if err := catalog.StoreBeat(testBeat("c", "alice", "h3", 0.5, 0.5)); err != nil {
			t.Fatalf("%s: StoreBeat: %v", name, err)
		}

		alice, err := catalog.ListBeats("alice")
		if err != nil {
			t.Fatalf("%s: ListBeats: %v", name, err)
		}
		if got := ids(alice); len(got) != 2 || got[0] != "a" || got[1] != "c" {
			t.Fatalf("%s: expected [a c], got %v", name, got)
		}
		if b := alice[0]; len(b.Vector) != 2 || b.Vector[0] != 1 || b.BPM == nil || *b.BPM != 120 || b.Key == nil || *b.Key != "Am" {
			t.Fatalf("%s: beat did not round-trip: %+v", name, b)
		}

		all, err := catalog.AllBeats()
		if err != nil {
			t.Fatalf("%s: AllBeats: %v", name, err)
		}
		if got := ids(all); len(got) != 3 || got[1] != "b" {
			t.Fatalf("%s: expected insertion order [a b c], got %v", name, got)
		}

		total, err := catalog.TotalBeats()
		if err != nil || total != 3 {
			t.Fatalf("%s: expected 3 beats, got %d (%v)", name, total, err)
		}
	}
}

func TestCatalogUpsertMovesToEnd(t *testing.T) {
	t.Parallel()

	for name, catalog := range openCatalogs(t) {
		for _, id := range []string{"a", "b"} {
			if err := catalog.StoreBeat(testBeat(id, "alice", "", 1)); err != nil {
				t.Fatalf("%s: StoreBeat: %v", name, err)
			}
		}
		replaced := testBeat("a", "alice", "", 2)
		replaced.BPM = nil
		if err := catalog.StoreBeat(replaced); err != nil {
			t.Fatalf("%s: StoreBeat: %v", name, err)
		}

		beats, err := catalog.ListBeats("alice")
		if err != nil {
			t.Fatalf("%s: ListBeats: %v", name, err)
		}
		if got := ids(beats); len(got) != 2 || got[0] != "b" || got[1] != "a" {
			t.Fatalf("%s: expected [b a], got %v", name, got)
		}
		if beats[1].Vector[0] != 2 || beats[1].BPM != nil {
			t.Fatalf("%s: upsert did not replace the record: %+v", name, beats[1])
		}
	}
}

func TestCatalogLookupsAreOwnerScoped(t *testing.T) {
	t.Parallel()

	for name, catalog := range openCatalogs(t) {
		if err := catalog.StoreBeat(testBeat("a", "alice", "same", 1)); err != nil {
			t.Fatalf("%s: StoreBeat: %v", name, err)
		}

		if _, ok, err := catalog.GetBeat("alice", "a"); err != nil || !ok {
			t.Fatalf("%s: expected to find alice's beat (%v)", name, err)
		}
		if _, ok, _ := catalog.GetBeat("bob", "a"); ok {
			t.Fatalf("%s: bob must not see alice's beat", name)
		}
		if b, ok, err := catalog.FindByContentHash("alice", "same"); err != nil || !ok || b.BeatID != "a" {
			t.Fatalf("%s: expected hash lookup to find a, got %v %v", name, ok, err)
		}
		if _, ok, _ := catalog.FindByContentHash("bob", "same"); ok {
			t.Fatalf("%s: hash lookup leaked across owners", name)
		}
	}
}

func TestCatalogDeletes(t *testing.T) {
	t.Parallel()

	for name, catalog := range openCatalogs(t) {
		for _, b := range []models.Beat{
			testBeat("a", "alice", "", 1),
			testBeat("b", "alice", "", 1),
			testBeat("c", "bob", "", 1),
		} {
			if err := catalog.StoreBeat(b); err != nil {
				t.Fatalf("%s: StoreBeat: %v", name, err)
			}
		}

		if ok, err := catalog.DeleteBeat("bob", "a"); err != nil || ok {
			t.Fatalf("%s: bob must not delete alice's beat", name)
		}
		if ok, err := catalog.DeleteBeat("alice", "a"); err != nil || !ok {
			t.Fatalf("%s: expected delete to succeed (%v)", name, err)
		}
		if ok, _ := catalog.DeleteBeat("alice", "a"); ok {
			t.Fatalf("%s: second delete must report nothing removed", name)
		}

		n, err := catalog.DeleteBeats("alice")
		if err != nil || n != 1 {
			t.Fatalf("%s: expected 1 removed, got %d (%v)", name, n, err)
		}
		rest, _ := catalog.ListBeats("bob")
		if len(rest) != 1 {
			t.Fatalf("%s: bob's catalog must be untouched, got %v", name, ids(rest))
		}
	}
}

func TestJSONClientPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "beats.json")
	first, err := NewJSONClient(path)
	if err != nil {
		t.Fatalf("NewJSONClient: %v", err)
	}
	if err := first.StoreBeat(testBeat("a", "alice", "", 0.6, 0.8)); err != nil {
		t.Fatalf("StoreBeat: %v", err)
	}

	second, err := NewJSONClient(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	beats, err := second.ListBeats("alice")
	if err != nil || len(beats) != 1 || beats[0].Vector[1] != 0.8 {
		t.Fatalf("expected persisted beat, got %v (%v)", beats, err)
	}
	if beats[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be stamped")
	}
}

func TestNewDBClientRejectsUnknownType(t *testing.T) {
	t.Setenv("DB_TYPE", "cassandra")

	if _, err := NewDBClient(t.TempDir()); err == nil {
		t.Fatalf("expected an error for an unknown DB_TYPE")
	}
}

func TestNewDBClientDefaultsToSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_TYPE", "")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "catalog.sqlite3"))

	catalog, err := NewDBClient(dir)
	if err != nil {
		t.Fatalf("NewDBClient: %v", err)
	}
	defer catalog.Close()
	if _, ok := catalog.(*SQLiteClient); !ok {
		t.Fatalf("expected *SQLiteClient, got %T", catalog)
	}
}
