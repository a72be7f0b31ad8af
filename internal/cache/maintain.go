package cache

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"
)

// AgeStats summarizes the age distribution of cache files, measured from
// their mtimes.
type AgeStats struct {
	Mean   time.Duration
	Median time.Duration
	P75    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Total  int
}

// Stats computes the age distribution of every JSON file under dir.
// Returns nil when the cache is empty.
func Stats(dir string, now time.Time) (*AgeStats, error) {
	var ages []time.Duration

	err := walkJSONFiles(dir, func(path string, info fs.FileInfo) {
		ages = append(ages, now.Sub(info.ModTime()))
	})
	if err != nil {
		return nil, err
	}
	if len(ages) == 0 {
		return nil, nil
	}

	sort.Slice(ages, func(i, j int) bool { return ages[i] < ages[j] })

	var sum time.Duration
	for _, age := range ages {
		sum += age
	}

	return &AgeStats{
		Mean:   sum / time.Duration(len(ages)),
		Median: ages[len(ages)/2],
		P75:    ages[int(float64(len(ages))*0.75)],
		P95:    ages[int(float64(len(ages))*0.95)],
		P99:    ages[int(float64(len(ages))*0.99)],
		Min:    ages[0],
		Max:    ages[len(ages)-1],
		Total:  len(ages),
	}, nil
}

// FixMtimes repairs cache files whose mtime no longer matches their embedded
// updated_at timestamp. Files without a usable timestamp are reported and
// skipped, never treated as fatal.
func FixMtimes(dir string, dryRun bool, logger *slog.Logger) error {
	return walkJSONFiles(dir, func(path string, info fs.FileInfo) {
		expected, err := EffectiveUpdatedAt(path)
		if err != nil {
			logger.Warn("skipping file", "path", path, "reason", err)
			return
		}
		actual := info.ModTime()
		if actual.Equal(expected) {
			return
		}
		logger.Warn("fixing mtime", "path", path, "actual", actual, "expected", expected)
		if dryRun {
			return
		}
		if err := os.Chtimes(path, expected, expected); err != nil {
			logger.Warn("failed to fix mtime", "path", path, "error", err)
		}
	})
}

// Prune deletes a uniform-random subset of cache files older than minAge by
// disk mtime, at most limit files. This is the blunt disk-age tool; the
// per-run expiry set (SelectExpired) is what keeps the cache statistically
// fresh between prunes.
func Prune(dir string, minAge time.Duration, limit Limit, dryRun bool, rng *rand.Rand, logger *slog.Logger) error {
	type pruneFile struct {
		path string
		age  time.Duration
	}
	var files []pruneFile

	now := time.Now()
	err := walkJSONFiles(dir, func(path string, info fs.FileInfo) {
		age := now.Sub(info.ModTime())
		if age < minAge {
			return
		}
		files = append(files, pruneFile{path: path, age: age})
	})
	if err != nil {
		return err
	}

	if len(files) == 0 {
		logger.Info("cache is empty")
		return nil
	}

	n := limit.Bound(len(files))
	if n == 0 {
		logger.Info("no cache files to prune")
		return nil
	}

	rng.Shuffle(len(files), func(i, j int) {
		files[i], files[j] = files[j], files[i]
	})

	logger.Info(fmt.Sprintf("pruning %.2f%% of cache, %d/%d files",
		float64(n)/float64(len(files))*100, n, len(files)))

	for _, f := range files[:n] {
		logger.Debug("prune", "path", f.path, "age", f.age)
		if dryRun {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			return fmt.Errorf("failed to prune %s: %w", f.path, err)
		}
	}
	return nil
}
