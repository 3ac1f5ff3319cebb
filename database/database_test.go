package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "jsprettify-db-test-")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := Open(filepath.Join(tempDir, "nested", "history.db"), 8)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("let a = 1", "abc")
	if a != CacheKey("let a = 1", "abc") {
		t.Error("Expected cache key to be deterministic")
	}
	if a == CacheKey("let a = 2", "abc") {
		t.Error("Expected different sources to produce different keys")
	}
	if a == CacheKey("let a = 1", "def") {
		t.Error("Expected different fingerprints to produce different keys")
	}
	if !strings.HasSuffix(a, ":abc") {
		t.Errorf("Expected key to end with fingerprint, got %s", a)
	}
}

func TestStoreAndLookup(t *testing.T) {
	db := openTestDB(t)
	key := CacheKey("x", "fp")

	result, err := db.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if result != nil {
		t.Fatalf("Expected miss, got %+v", result)
	}

	if err := db.Store(key, "esbuild", "x;\n"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	result, err = db.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if result == nil || result.Output != "x;\n" || result.Strategy != "esbuild" {
		t.Fatalf("Unexpected cached result: %+v", result)
	}

	// Bypass the in-memory front to check persistence.
	db.cache.Purge()
	result, err = db.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if result == nil || result.Output != "x;\n" {
		t.Fatalf("Expected persisted result, got %+v", result)
	}
	if result.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	if err := db.Store("", "esbuild", "x"); err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestReindentResultsNotCached(t *testing.T) {
	db := openTestDB(t)
	key := CacheKey("a;b;", "fp")

	if err := db.Store(key, "reindent", "a;\nb;\n"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	result, err := db.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if result != nil {
		t.Errorf("Expected reindent result not to be cached, got %+v", result)
	}
}

func TestRecordAndListRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i, status := range []string{StatusSuccess, StatusFailed, StatusSuccess} {
		validationErr := ""
		if i == 1 {
			validationErr = "in_prettified.js:1:5: Unexpected token"
		}
		run := &Run{
			RunID:           "R1-" + string(rune('a'+i)),
			Input:           "in.js",
			Output:          "in_prettified.js",
			Strategy:        "esbuild",
			Status:          status,
			Attempts:        i + 1,
			CacheHit:        i == 2,
			DurationMs:      int64(10 * i),
			Validated:       validationErr == "",
			ValidationError: validationErr,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.RecordRun(run); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
		if run.ID == 0 {
			t.Error("Expected run ID to be set")
		}
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "R1-c" || !runs[0].CacheHit {
		t.Errorf("Expected newest run first, got %+v", runs[0])
	}
	if runs[1].Status != StatusFailed || runs[1].Attempts != 2 {
		t.Errorf("Unexpected second run: %+v", runs[1])
	}
	if !runs[0].Validated || runs[0].ValidationError != "" {
		t.Errorf("Expected newest run to be validated, got %+v", runs[0])
	}
	if runs[1].Validated || runs[1].ValidationError != "in_prettified.js:1:5: Unexpected token" {
		t.Errorf("Expected syntax check failure to be stored, got %+v", runs[1])
	}

	if err := db.RecordRun(&Run{RunID: "R1-x"}); err == nil {
		t.Error("Expected error for run without status")
	}
	if err := db.RecordRun(nil); err == nil {
		t.Error("Expected error for nil run")
	}
}

func TestClearCacheAndStats(t *testing.T) {
	db := openTestDB(t)

	for i, src := range []string{"a", "b", "c"} {
		if err := db.Store(CacheKey(src, "fp"), "prettier", strings.Repeat("x", i+1)); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}
	if err := db.RecordRun(&Run{RunID: "R1", Input: "a.js", Status: StatusSuccess, CacheHit: true}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Results != 3 || stats.ResultBytes != 6 || stats.Runs != 1 || stats.CacheHits != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.FileBytes == 0 {
		t.Error("Expected database file size")
	}

	removed, err := db.ClearCache()
	if err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 removed results, got %d", removed)
	}

	if result, _ := db.Lookup(CacheKey("a", "fp")); result != nil {
		t.Error("Expected cleared result to be gone from the in-memory cache too")
	}

	stats, err = db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Results != 0 || stats.Runs != 1 {
		t.Errorf("Expected history to survive a cache clear, got %+v", stats)
	}
}

func TestExportAndVerify(t *testing.T) {
	db := openTestDB(t)
	if err := db.Store(CacheKey("a", "fp"), "esbuild", "a;\n"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := db.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	if err := VerifyIntegrity(db.Path()); err != nil {
		t.Errorf("Expected live database to verify: %v", err)
	}

	dest := filepath.Join(filepath.Dir(db.Path()), "backup", "copy.db")
	if err := db.Export(dest); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := VerifyIntegrity(dest); err != nil {
		t.Errorf("Expected exported database to verify: %v", err)
	}
	if err := db.Export(dest); err == nil {
		t.Error("Expected export over an existing file to fail")
	}

	copied, err := Open(dest, 4)
	if err != nil {
		t.Fatalf("Failed to open exported database: %v", err)
	}
	defer copied.Close()
	if result, err := copied.Lookup(CacheKey("a", "fp")); err != nil || result == nil {
		t.Errorf("Expected exported result, got %+v, %v", result, err)
	}

	if err := VerifyIntegrity(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("Expected missing database to fail verification")
	}
}
