package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/josh/trakt-data/internal/cache"
	"github.com/josh/trakt-data/internal/trakt"
)

// Exporter runs one sync: fetch the new activity snapshot, classify every
// tracked output file against the previous snapshot, then walk a fixed list
// of resource exports fetching only what is stale and not excluded.
type Exporter struct {
	client    *trakt.Client
	outputDir string
	exclude   []string
	class     Classification
	logger    *slog.Logger
}

// NewExporter creates an Exporter writing under outputDir. Exclude entries
// are path prefixes; relative entries are resolved against outputDir.
func NewExporter(client *trakt.Client, outputDir string, exclude []string, logger *slog.Logger) *Exporter {
	resolved := make([]string, 0, len(exclude))
	for _, entry := range exclude {
		if strings.HasPrefix(entry, ".") || filepath.IsAbs(entry) {
			resolved = append(resolved, filepath.Clean(entry))
		} else {
			resolved = append(resolved, filepath.Join(outputDir, entry))
		}
	}
	return &Exporter{
		client:    client,
		outputDir: outputDir,
		exclude:   resolved,
		logger:    logger,
	}
}

// abs resolves a tracked file's slash-relative path to its on-disk location.
func (e *Exporter) abs(rel string) string {
	return filepath.Join(e.outputDir, filepath.FromSlash(rel))
}

// excluded reports whether rel falls under a configured exclusion prefix.
// Exclusion always wins over freshness: an excluded path is never fetched
// and never reported stale.
func (e *Exporter) excluded(rel string) bool {
	path := e.abs(rel)
	for _, prefix := range e.exclude {
		if path == prefix || strings.HasPrefix(path, prefix+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// fresh reports whether the local copy of rel can be trusted for this run.
// A file missing from disk is never fresh regardless of classification. A
// path on disk that the classifier did not govern is logged and treated as
// stale, the conservative direction.
func (e *Exporter) fresh(rel string) bool {
	if _, err := os.Stat(e.abs(rel)); err != nil {
		return false
	}
	if e.class.Fresh(rel) {
		return true
	}
	if e.class.Stale(rel) {
		return false
	}
	e.logger.Warn("path freshness is unknown", "path", rel)
	return false
}

// skip is the per-resource fetch-or-skip decision: excluded first, then
// fresh.
func (e *Exporter) skip(rel string) bool {
	return e.excluded(rel) || e.fresh(rel)
}

// write persists v as rel and stamps the file's mtime with the document's
// own effective timestamp when it has one.
func (e *Exporter) write(rel string, v any) error {
	path := e.abs(rel)
	if err := cache.WriteJSON(path, v, time.Time{}); err != nil {
		return err
	}
	return cache.ApplySemanticMtime(path)
}

// Run executes one full sync in a fixed order. The activity snapshot is
// fetched and classified before any resource fetch so the whole run works
// against one consistent freshness baseline.
func (e *Exporter) Run() error {
	oldActivities := e.readOldActivities()

	newActivities, err := e.exportLastActivities()
	if err != nil {
		return err
	}

	e.class = Classify(oldActivities, newActivities)
	e.logger.Debug("classified paths",
		"fresh", e.class.FreshPaths(), "stale", e.class.StalePaths())

	steps := []func() error{
		func() error { return e.exportCollection("movies") },
		func() error { return e.exportCollection("shows") },
		func() error { return e.exportComments("episodes") },
		func() error { return e.exportComments("lists") },
		func() error { return e.exportComments("movies") },
		func() error { return e.exportComments("seasons") },
		func() error { return e.exportComments("shows") },
		func() error { return e.exportHidden("calendar") },
		func() error { return e.exportHidden("dropped") },
		func() error { return e.exportHidden("progress_collected") },
		func() error { return e.exportHidden("progress_watched_reset") },
		func() error { return e.exportHidden("progress_watched") },
		func() error { return e.exportHidden("recommendations") },
		func() error { return e.exportLikes("comments") },
		func() error { return e.exportLikes("lists") },
		e.exportLists,
		e.exportWatchlist,
		func() error { return e.exportRatings("episodes") },
		func() error { return e.exportRatings("movies") },
		func() error { return e.exportRatings("seasons") },
		func() error { return e.exportRatings("shows") },
		e.exportUserProfile,
		e.exportUserStats,
		e.exportWatchedHistory,
		e.exportWatchedPlayback,
		func() error { return e.exportWatched("movies") },
		func() error { return e.exportWatched("shows") },
		e.exportProgressShows,
		e.exportUpNext,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// readOldActivities loads the previous run's snapshot. Absence is a defined
// input (first run), not an error; everything classifies stale.
func (e *Exporter) readOldActivities() *trakt.LastActivities {
	path := e.abs(PathLastActivities)
	old, err := cache.ReadJSON[trakt.LastActivities](path)
	if err != nil {
		if !os.IsNotExist(err) {
			e.logger.Warn("ignoring unreadable activity snapshot", "path", path, "error", err)
		}
		return nil
	}
	return &old
}

func (e *Exporter) exportLastActivities() (*trakt.LastActivities, error) {
	var activities trakt.LastActivities
	if err := e.client.Get("/sync/last_activities", nil, &activities); err != nil {
		return nil, err
	}
	if err := e.write(PathLastActivities, &activities); err != nil {
		return nil, err
	}
	return &activities, nil
}

func (e *Exporter) exportUserProfile() error {
	if e.skip(PathUserProfile) {
		return nil
	}
	params := url.Values{}
	params.Set("extended", "vip")

	var profile trakt.UserProfile
	if err := e.client.Get("/users/me", params, &profile); err != nil {
		return err
	}
	return e.write(PathUserProfile, &profile)
}

func (e *Exporter) exportUserStats() error {
	if e.skip(PathUserStats) {
		return nil
	}
	var stats json.RawMessage
	if err := e.client.Get("/users/me/stats", nil, &stats); err != nil {
		return err
	}
	return e.write(PathUserStats, stats)
}

func (e *Exporter) exportCollection(mediaType string) error {
	rel := "collection/collection-" + mediaType + ".json"
	if e.skip(rel) {
		return nil
	}
	var data json.RawMessage
	if err := e.client.Get("/sync/collection/"+mediaType, nil, &data); err != nil {
		return err
	}
	return e.write(rel, data)
}

func (e *Exporter) exportComments(commentType string) error {
	rel := "comments/comments-" + commentType + ".json"
	if e.skip(rel) {
		return nil
	}
	items, err := e.client.GetPaginated("/users/me/comments/"+commentType, nil)
	if err != nil {
		return err
	}
	return e.write(rel, items)
}

func (e *Exporter) exportHidden(section string) error {
	rel := "hidden/hidden-" + strings.ReplaceAll(section, "_", "-") + ".json"
	if e.skip(rel) {
		return nil
	}
	items, err := e.client.GetPaginated("/users/hidden/"+section, nil)
	if err != nil {
		return err
	}
	return e.write(rel, items)
}

func (e *Exporter) exportLikes(likeType string) error {
	rel := "likes/likes-" + likeType + ".json"
	if e.skip(rel) {
		return nil
	}
	items, err := e.client.GetPaginated("/users/me/likes/"+likeType, nil)
	if err != nil {
		return err
	}
	return e.write(rel, items)
}

func (e *Exporter) exportRatings(mediaType string) error {
	rel := "ratings/ratings-" + mediaType + ".json"
	if e.skip(rel) {
		return nil
	}
	var data json.RawMessage
	if err := e.client.Get("/sync/ratings/"+mediaType, nil, &data); err != nil {
		return err
	}
	return e.write(rel, data)
}

func (e *Exporter) exportWatched(mediaType string) error {
	rel := "watched/watched-" + mediaType + ".json"
	if e.skip(rel) {
		return nil
	}
	var data json.RawMessage
	if err := e.client.Get("/sync/watched/"+mediaType, nil, &data); err != nil {
		return err
	}
	return e.write(rel, data)
}

// exportWatchedHistory refreshes the full watch history, with an
// incremental probe first: when a local copy exists, one cheap start_at
// query tells us whether anything new was watched since the newest local
// item, and if not the expensive full fetch is skipped entirely.
func (e *Exporter) exportWatchedHistory() error {
	if e.excluded(PathWatchedHistory) || e.fresh(PathWatchedHistory) {
		return nil
	}

	path := e.abs(PathWatchedHistory)
	if existing, err := cache.ReadJSON[[]trakt.HistoryItem](path); err == nil && len(existing) > 0 {
		startAt := existing[0].WatchedAt

		params := url.Values{}
		params.Set("start_at", startAt)
		newItems, err := e.client.GetPaginated("/sync/history", params)
		if err != nil {
			return err
		}
		// The probe always returns at least the newest known item.
		if len(newItems) <= 1 {
			e.logger.Info("no new items watched", "since", startAt)
			return nil
		}
	}

	items, err := e.client.GetPaginated("/sync/history", nil)
	if err != nil {
		return err
	}
	return e.write(PathWatchedHistory, items)
}

func (e *Exporter) exportWatchedPlayback() error {
	if e.skip(PathWatchedPlayback) {
		return nil
	}
	var data json.RawMessage
	if err := e.client.Get("/sync/playback", nil, &data); err != nil {
		return err
	}
	return e.write(PathWatchedPlayback, data)
}

func (e *Exporter) exportWatchlist() error {
	if e.skip(PathWatchlist) {
		return nil
	}
	params := url.Values{}
	params.Set("sort_by", "rank")
	params.Set("sort_how", "asc")
	items, err := e.client.GetPaginated("/sync/watchlist", params)
	if err != nil {
		return err
	}
	return e.write(PathWatchlist, items)
}

func (e *Exporter) exportLists() error {
	if e.excluded(PathLists) || e.fresh(PathLists) {
		return nil
	}

	var raw json.RawMessage
	if err := e.client.Get("/users/me/lists", nil, &raw); err != nil {
		return err
	}
	if err := e.write(PathLists, raw); err != nil {
		return err
	}

	var lists []trakt.List
	if err := json.Unmarshal(raw, &lists); err != nil {
		return fmt.Errorf("failed to parse %s: %w", PathLists, err)
	}
	return e.exportAllListItems(lists)
}

// exportAllListItems refreshes every list's items and deletes item files
// whose list no longer exists upstream. Item files have no activity field
// of their own: they ride along whenever lists.json itself is stale.
func (e *Exporter) exportAllListItems(lists []trakt.List) error {
	listIDs := make(map[int]bool)
	for _, list := range lists {
		if err := e.exportListItems(list.IDs.Trakt, list.IDs.Slug); err != nil {
			return err
		}
		listIDs[list.IDs.Trakt] = true
	}

	matches, err := filepath.Glob(filepath.Join(e.outputDir, "lists", "list-*.json"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		parts := strings.SplitN(filepath.Base(path), "-", 3)
		if len(parts) < 2 {
			continue
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		if !listIDs[id] {
			e.logger.Info("deleting old list", "path", path)
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Exporter) exportListItems(listID int, listSlug string) error {
	rel := fmt.Sprintf("lists/list-%d-%s.json", listID, listSlug)
	if e.excluded(rel) {
		return nil
	}
	items, err := e.client.GetPaginated(fmt.Sprintf("/users/me/lists/%d/items", listID), nil)
	if err != nil {
		return err
	}
	return e.write(rel, items)
}

// progressEntry pairs a show with its raw watched-progress document as
// persisted in watched/progress-shows.json.
type progressEntry struct {
	Show     trakt.Show      `json:"show"`
	Progress json.RawMessage `json:"progress"`
}

func (e *Exporter) exportProgressShows() error {
	if e.skip(PathProgressShows) {
		return nil
	}

	watchedShows, err := cache.ReadJSON[[]trakt.WatchedShow](e.abs(PathWatchedShows))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", PathWatchedShows, err)
	}

	entries := make([]progressEntry, 0, len(watchedShows))
	for _, watched := range watchedShows {
		var progress json.RawMessage
		path := fmt.Sprintf("/shows/%d/progress/watched", watched.Show.IDs.Trakt)
		if err := e.client.Get(path, nil, &progress); err != nil {
			return err
		}
		entries = append(entries, progressEntry{Show: watched.Show, Progress: progress})
	}
	return e.write(PathProgressShows, entries)
}

// exportUpNext derives the up-next queue from the already-exported watched,
// hidden and progress files. Shows hidden from progress, fully watched
// shows and shows with no aired next episode are dropped.
func (e *Exporter) exportUpNext() error {
	if e.skip(PathUpNext) {
		return nil
	}

	watchedShows, err := cache.ReadJSON[[]trakt.WatchedShow](e.abs(PathWatchedShows))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", PathWatchedShows, err)
	}
	watchedByID := make(map[int]trakt.WatchedShow, len(watchedShows))
	for _, watched := range watchedShows {
		watchedByID[watched.Show.IDs.Trakt] = watched
	}

	hiddenIDs := make(map[int]bool)
	for _, rel := range []string{PathHiddenDropped, PathHiddenProgressWatched} {
		hidden, err := cache.ReadJSON[[]trakt.HiddenItem](e.abs(rel))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		for _, item := range hidden {
			if item.Show != nil {
				hiddenIDs[item.Show.IDs.Trakt] = true
			}
		}
	}

	progressShows, err := cache.ReadJSON[[]trakt.ProgressShow](e.abs(PathProgressShows))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", PathProgressShows, err)
	}

	upNext := make([]trakt.UpNextShow, 0, len(progressShows))
	for _, entry := range progressShows {
		showID := entry.Show.IDs.Trakt
		progress := entry.Progress

		if hiddenIDs[showID] {
			e.logger.Debug("skipping hidden show", "show", entry.Show.Title)
			continue
		}
		if progress.Aired == progress.Completed {
			e.logger.Debug("skipping completed show", "show", entry.Show.Title)
			continue
		}
		if progress.NextEpisode == nil {
			e.logger.Debug("skipping show with no next episode", "show", entry.Show.Title)
			continue
		}

		upNext = append(upNext, trakt.UpNextShow{
			Show: entry.Show,
			Progress: trakt.UpNextProgress{
				Aired:         progress.Aired,
				Completed:     progress.Completed,
				LastWatchedAt: progress.LastWatchedAt,
				ResetAt:       progress.ResetAt,
				Stats: trakt.UpNextStats{
					PlayCount: watchedByID[showID].Plays,
				},
				NextEpisode: progress.NextEpisode,
				LastEpisode: progress.LastEpisode,
			},
		})
	}
	return e.write(PathUpNext, upNext)
}
