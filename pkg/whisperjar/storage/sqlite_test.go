package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/WhisperJar/pkg/models"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_whispers.db")

	t.Setenv("WHISPERJAR_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func insertClip(t *testing.T, client *DBClient, length int) *models.Clip {
	t.Helper()
	clip := models.NewClip(time.Now())
	if _, err := client.Insert(clip); err != nil {
		t.Fatalf("Failed to insert clip: %v", err)
	}
	if length > 0 {
		clip.FileName = models.ClipFileName("/tmp", clip.ID)
		clip.Length = length
		if err := client.Update(clip); err != nil {
			t.Fatalf("Failed to update clip: %v", err)
		}
	}
	return clip
}

// TestNewDBClient tests database initialization
func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
	if !client.DB.Migrator().HasTable("clips") {
		t.Error("Expected clips table to exist")
	}
}

// TestNewDBClientWithCustomPath tests database creation in a missing directory
func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at custom path %s", customPath)
	}
}

// TestNewDBClientUnwritablePath tests that an unusable path reports ErrStorageUnavailable
func TestNewDBClientUnwritablePath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewDBClientWithPath(filepath.Join(blocker, "whispers.db"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("Expected ErrStorageUnavailable, got %v", err)
	}
}

// TestInsertAssignsSequentialIDs tests store-assigned identities
func TestInsertAssignsSequentialIDs(t *testing.T) {
	client, _ := setupTestDB(t)

	first := models.NewClip(time.Now())
	id1, err := client.Insert(first)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	second := models.NewClip(time.Now())
	id2, err := client.Insert(second)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if id1 != 1 || id2 != 2 {
		t.Errorf("Expected ids 1 and 2, got %d and %d", id1, id2)
	}
	if first.ID != id1 || second.ID != id2 {
		t.Error("Insert should set clip.ID")
	}
}

// TestUpdateRoundTrip tests that updated fields come back from Get and Query
func TestUpdateRoundTrip(t *testing.T) {
	client, _ := setupTestDB(t)

	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	clip := models.NewClip(created)
	if _, err := client.Insert(clip); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	clip.FileName = models.ClipFileName("/docs", clip.ID)
	clip.Length = 2500
	clip.Name = "shopping"
	if err := client.Update(clip); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := client.Get(clip.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Length != 2500 {
		t.Errorf("Expected length 2500, got %d", got.Length)
	}
	if got.FileName != clip.FileName {
		t.Errorf("Expected file name %q, got %q", clip.FileName, got.FileName)
	}
	if got.Name != "shopping" {
		t.Errorf("Expected name 'shopping', got %q", got.Name)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected CreatedAt %v, got %v", created, got.CreatedAt)
	}
}

// TestUpdateNotFound tests updating an unknown id
func TestUpdateNotFound(t *testing.T) {
	client, _ := setupTestDB(t)

	err := client.Update(&models.Clip{ID: 99, Length: 10})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	count, _ := client.Count()
	if count != 0 {
		t.Errorf("Update of unknown id must not create rows, found %d", count)
	}
}

// TestQueryRecordedFilter tests that zero-length clips are filtered out
func TestQueryRecordedFilter(t *testing.T) {
	client, _ := setupTestDB(t)

	insertClip(t, client, 1200)
	insertClip(t, client, 0)
	insertClip(t, client, 3400)

	recorded, err := client.Query(Recorded())
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("Expected 2 recorded clips, got %d", len(recorded))
	}
	if recorded[0].ID != 1 || recorded[1].ID != 3 {
		t.Errorf("Expected ids [1 3] in insertion order, got [%d %d]", recorded[0].ID, recorded[1].ID)
	}

	pending, err := client.Query(Pending())
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != 2 {
		t.Errorf("Expected only clip 2 pending, got %+v", pending)
	}

	all, _ := client.Query()
	if len(all) != 3 {
		t.Errorf("Expected 3 clips without filters, got %d", len(all))
	}
}

// TestQueryStable tests repeated queries return the same order
func TestQueryStable(t *testing.T) {
	client, _ := setupTestDB(t)
	for i := 0; i < 5; i++ {
		insertClip(t, client, 100*(i+1))
	}

	a, _ := client.Query(Recorded())
	b, _ := client.Query(Recorded())
	if len(a) != len(b) {
		t.Fatalf("Expected equal lengths, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("Order differs at %d: %d vs %d", i, a[i].ID, b[i].ID)
		}
	}
}

// TestRename tests the name bound and persistence
func TestRename(t *testing.T) {
	client, _ := setupTestDB(t)
	clip := insertClip(t, client, 500)

	renamed, err := client.Rename(clip.ID, "Voice note")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if renamed.Name != "Voice note" || renamed.Length != 500 {
		t.Errorf("Unexpected clip after rename: %+v", renamed)
	}

	_, err = client.Rename(clip.ID, strings.Repeat("x", models.MaxNameLength+1))
	if !errors.Is(err, ErrNameTooLong) {
		t.Errorf("Expected ErrNameTooLong, got %v", err)
	}

	_, err = client.Rename(404, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestClose tests closing the database connection
func TestClose(t *testing.T) {
	client, err := NewDBClientWithPath(filepath.Join(t.TempDir(), "close_test.db"))
	if err != nil {
		t.Fatalf("Failed to create DB client: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Failed to close DB connection: %v", err)
	}
}

// TestNilClientMethods tests that methods handle nil client gracefully
func TestNilClientMethods(t *testing.T) {
	var client *DBClient

	if _, err := client.Insert(&models.Clip{}); err == nil {
		t.Error("Expected error for nil client in Insert")
	}
	if err := client.Update(&models.Clip{ID: 1}); err == nil {
		t.Error("Expected error for nil client in Update")
	}
	if _, err := client.Query(); err == nil {
		t.Error("Expected error for nil client in Query")
	}
	if _, err := client.Get(1); err == nil {
		t.Error("Expected error for nil client in Get")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close on nil client should return nil, got: %v", err)
	}
}

// TestConcurrentInserts tests that concurrent writers get unique ids
func TestConcurrentInserts(t *testing.T) {
	client, _ := setupTestDB(t)

	const n = 8
	var wg sync.WaitGroup
	ids := make(chan uint, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := client.Insert(models.NewClip(time.Now()))
			if err != nil {
				t.Errorf("Concurrent insert failed: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("Duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("Expected %d unique ids, got %d", n, len(seen))
	}
}
