package cache

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Limit bounds how many cache entries may be selected in one run, either as
// an absolute count or as a percentage of the candidate pool.
type Limit struct {
	count   int
	percent float64
	isPct   bool
}

// AbsoluteLimit returns a Limit of exactly n entries.
func AbsoluteLimit(n int) Limit {
	return Limit{count: n}
}

// PercentLimit returns a Limit of fraction p (0..1) of the pool.
func PercentLimit(p float64) Limit {
	return Limit{percent: p, isPct: true}
}

// ParseLimit parses a limit given as a plain integer ("25") or a percentage
// ("1%").
func ParseLimit(s string) (Limit, error) {
	if strings.HasSuffix(s, "%") {
		p, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil || p < 0 || p > 100 {
			return Limit{}, fmt.Errorf("invalid percentage limit: %q", s)
		}
		return PercentLimit(p / 100), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Limit{}, fmt.Errorf("invalid limit: %q", s)
	}
	return AbsoluteLimit(n), nil
}

// Bound resolves the limit against a pool of poolSize candidates.
func (l Limit) Bound(poolSize int) int {
	n := l.count
	if l.isPct {
		n = int(float64(poolSize) * l.percent)
	}
	if n > poolSize {
		n = poolSize
	}
	return n
}

// Candidate is one cache file eligible for expiry, with its age computed
// from the file's effective updated-at timestamp.
type Candidate struct {
	Path string
	Age  time.Duration
}

// SelectExpired picks an age-weighted random subset of candidates to treat
// as expired for this run, at most limit entries.
//
// Each candidate gets weight w = 1/(1+age_days) and draws the sort key
// rand^(1/w); the limit lowest keys win. This is weighted sampling without
// replacement: an old entry has a small weight, so its uniform draw is
// raised to a large exponent and collapses toward zero, putting it near the
// front of the selection order. A fresh entry keys out near the uniform draw
// itself, so it is picked rarely but never with zero probability.
//
// The result is deterministic for a fixed rng and never contains a path
// outside the candidate list.
func SelectExpired(candidates []Candidate, limit Limit, rng *rand.Rand) map[string]bool {
	expired := make(map[string]bool)

	n := limit.Bound(len(candidates))
	if n == 0 || len(candidates) == 0 {
		return expired
	}

	type draw struct {
		path string
		key  float64
	}
	draws := make([]draw, 0, len(candidates))
	for _, c := range candidates {
		ageDays := c.Age.Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		w := 1 / (1 + ageDays)
		draws = append(draws, draw{
			path: c.Path,
			key:  math.Pow(rng.Float64(), 1/w),
		})
	}

	sort.Slice(draws, func(i, j int) bool { return draws[i].key < draws[j].key })

	for _, d := range draws[:n] {
		expired[d.path] = true
	}
	return expired
}

// ScanCandidates walks the cache tree and returns every JSON file at least
// minAge old as an eviction candidate. Age is measured from the file's
// semantic timestamp when it has one and from its mtime otherwise.
func ScanCandidates(dir string, minAge time.Duration, now time.Time, logger *slog.Logger) ([]Candidate, error) {
	var candidates []Candidate

	err := walkJSONFiles(dir, func(path string, info fs.FileInfo) {
		updatedAt, err := EffectiveUpdatedAt(path)
		if err != nil {
			logger.Debug("falling back to mtime", "path", path, "reason", err)
			updatedAt = info.ModTime()
		}
		age := now.Sub(updatedAt)
		if age < minAge {
			return
		}
		candidates = append(candidates, Candidate{Path: path, Age: age})
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// walkJSONFiles calls fn for every .json file under dir. A missing dir is
// treated as an empty cache.
func walkJSONFiles(dir string, fn func(path string, info fs.FileInfo)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				return nil // cache dir does not exist yet
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fn(path, info)
		return nil
	})
}
