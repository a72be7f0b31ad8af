package cache

import (
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStatsEmptyCache(t *testing.T) {
	stats, err := Stats(t.TempDir(), time.Now())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats != nil {
		t.Errorf("Expected nil stats for empty cache, got %+v", stats)
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	ages := []time.Duration{
		1 * time.Hour,
		10 * time.Hour,
		100 * time.Hour,
	}
	for i, age := range ages {
		path := filepath.Join(dir, "movies", "42", "doc"+string(rune('a'+i))+".json")
		writeFile(t, path, `{}`)
		mtime := now.Add(-age)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := Stats(dir, now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats == nil {
		t.Fatal("Expected stats, got nil")
	}
	if stats.Total != 3 {
		t.Errorf("Expected 3 files, got %d", stats.Total)
	}
	if stats.Min > stats.Median || stats.Median > stats.Max {
		t.Errorf("Expected ordered percentiles: %+v", stats)
	}
	if stats.Max < 99*time.Hour {
		t.Errorf("Expected max age near 100h, got %v", stats.Max)
	}
}

func TestFixMtimes(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(dir, "movies", "42", "42.json")
	writeFile(t, path, `{"updated_at":"2024-03-01T12:30:00Z"}`)

	if err := FixMtimes(dir, false, logger); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	if !info.ModTime().Equal(want) {
		t.Errorf("Expected mtime %v, got %v", want, info.ModTime())
	}
}

func TestFixMtimesDryRun(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(dir, "movies", "42", "42.json")
	writeFile(t, path, `{"updated_at":"2024-03-01T12:30:00Z"}`)
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := FixMtimes(dir, true, logger); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("Dry run must not modify mtimes")
	}
}

func TestFixMtimesSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	writeFile(t, filepath.Join(dir, "bad.json"), `not json at all`)
	writeFile(t, filepath.Join(dir, "no-ts.json"), `{"title":"Example"}`)

	// Malformed files are reported and skipped, never fatal.
	if err := FixMtimes(dir, false, logger); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rng := rand.New(rand.NewSource(1))

	old := time.Now().Add(-72 * time.Hour)
	for _, name := range []string{"a.json", "b.json", "c.json", "d.json"} {
		path := filepath.Join(dir, "movies", "42", name)
		writeFile(t, path, `{}`)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}
	fresh := filepath.Join(dir, "movies", "42", "fresh.json")
	writeFile(t, fresh, `{}`)

	if err := Prune(dir, 24*time.Hour, AbsoluteLimit(2), false, rng, logger); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	remaining := 0
	err := walkJSONFiles(dir, func(string, os.FileInfo) { remaining++ })
	if err != nil {
		t.Fatal(err)
	}
	// 4 old files minus 2 pruned, plus the fresh file kept by min-age.
	if remaining != 3 {
		t.Errorf("Expected 3 remaining files, got %d", remaining)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("Files younger than min-age must never be pruned")
	}
}

func TestPruneDryRun(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rng := rand.New(rand.NewSource(1))

	old := time.Now().Add(-72 * time.Hour)
	path := filepath.Join(dir, "movies", "42", "a.json")
	writeFile(t, path, `{}`)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	if err := Prune(dir, 0, PercentLimit(1), true, rng, logger); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("Dry run must not delete files")
	}
}
