// Package cache manages the long-lived media cache: a partitioned tree of
// JSON documents keyed by Trakt entity id.
//
// # Layout
//
// Entities are sharded into two-character id-prefix subdirectories to keep
// directory sizes bounded:
//
//	<cache_dir>/media/movies/77/77342.json
//	<cache_dir>/media/shows/13/1390.json
//
// # Semantic modification times
//
// Every document is written with its file mtime set to the entity's own
// updated_at timestamp rather than the time of the fetch. Age computations
// therefore measure how stale the entity is upstream, not how long ago we
// happened to download it. FixMtimes repairs files whose mtime has drifted
// from the embedded timestamp.
//
// # Expiry
//
// Media entries carry no activity signal, so they are never invalidated by
// the freshness classifier. Instead each run selects a bounded, age-weighted
// random subset of entries to treat as expired (see SelectExpired); lookups
// for selected paths behave as cache misses even though the file exists.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// DefaultDir returns the default cache directory under the XDG cache home.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, "trakt-data")
}

// PartitionPath maps an entity id to its sharded file path. The shard is the
// first two characters of the decimal id; single-digit ids are padded with a
// trailing zero ("7" shards to "70"). Pure function, no I/O.
func PartitionPath(baseDir string, id int, suffix string) string {
	idStr := strconv.Itoa(id)
	prefix := idStr + "0"
	if len(idStr) >= 2 {
		prefix = idStr[:2]
	}
	return filepath.Join(baseDir, prefix, idStr+suffix)
}

// WriteJSON persists v as pretty-printed JSON terminated by a newline,
// creating parent directories as needed. The write is atomic (temp file plus
// rename). A non-zero mtime is applied to the final file so the on-disk
// timestamp reflects the resource's own updated_at.
func WriteJSON(path string, v any, mtime time.Time) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}

	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			return fmt.Errorf("failed to set mtime on %s: %w", path, err)
		}
	}
	return nil
}

// ReadJSON decodes the JSON document at path into a value of type T.
func ReadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return v, nil
}

// timestampFields are the per-item timestamp keys recognized when deriving
// the semantic timestamp of a list-like document.
var timestampFields = []string{
	"updated_at",
	"last_updated_at",
	"hidden_at",
	"listed_at",
	"liked_at",
	"rated_at",
	"watched_at",
	"collected_at",
}

// EffectiveUpdatedAt returns the semantic timestamp of the cached JSON
// document at path: the updated_at field for a single-entity document, or
// the maximum per-item timestamp for a list-like document. Returns an error
// when the document carries no recognizable timestamp; callers fall back to
// the file's mtime.
func EffectiveUpdatedAt(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		return objectUpdatedAt(path, obj)
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return maxItemTimestamp(path, items)
	}

	return time.Time{}, fmt.Errorf("%s is not a JSON object or array", path)
}

// ApplySemanticMtime stamps path's mtime with the document's effective
// updated-at timestamp. Documents without a usable timestamp keep their
// wall-clock mtime; that is not an error.
func ApplySemanticMtime(path string) error {
	t, err := EffectiveUpdatedAt(path)
	if err != nil {
		return nil
	}
	return os.Chtimes(path, t, t)
}

func objectUpdatedAt(path string, obj map[string]json.RawMessage) (time.Time, error) {
	raw, ok := obj["updated_at"]
	if !ok {
		return time.Time{}, fmt.Errorf("%s is missing updated_at", path)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("%s has a non-string updated_at", path)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s has an invalid updated_at %q", path, s)
	}
	return t, nil
}

func maxItemTimestamp(path string, items []map[string]json.RawMessage) (time.Time, error) {
	var maxT time.Time
	for _, item := range items {
		for _, field := range timestampFields {
			raw, ok := item[field]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			if t, err := time.Parse(time.RFC3339, s); err == nil && t.After(maxT) {
				maxT = t
			}
		}
	}
	if maxT.IsZero() {
		return time.Time{}, fmt.Errorf("%s has no item timestamps", path)
	}
	return maxT, nil
}
