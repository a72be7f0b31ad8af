// Package export mirrors the authenticated user's Trakt state into a local
// JSON tree, fetching only resources whose remote activity watermark moved
// since the previous run.
package export

import (
	"sort"
	"time"

	"github.com/josh/trakt-data/internal/trakt"
)

// Paths of the tracked output files, relative to the output directory.
const (
	PathLastActivities             = "user/last-activities.json"
	PathUserProfile                = "user/profile.json"
	PathUserStats                  = "user/stats.json"
	PathCollectionMovies           = "collection/collection-movies.json"
	PathCollectionShows            = "collection/collection-shows.json"
	PathCommentsEpisodes           = "comments/comments-episodes.json"
	PathCommentsLists              = "comments/comments-lists.json"
	PathCommentsMovies             = "comments/comments-movies.json"
	PathCommentsSeasons            = "comments/comments-seasons.json"
	PathCommentsShows              = "comments/comments-shows.json"
	PathHiddenCalendar             = "hidden/hidden-calendar.json"
	PathHiddenDropped              = "hidden/hidden-dropped.json"
	PathHiddenProgressCollected    = "hidden/hidden-progress-collected.json"
	PathHiddenProgressWatched      = "hidden/hidden-progress-watched.json"
	PathHiddenProgressWatchedReset = "hidden/hidden-progress-watched-reset.json"
	PathHiddenRecommendations      = "hidden/hidden-recommendations.json"
	PathLikesComments              = "likes/likes-comments.json"
	PathLikesLists                 = "likes/likes-lists.json"
	PathLists                      = "lists/lists.json"
	PathWatchlist                  = "lists/watchlist.json"
	PathRatingsEpisodes            = "ratings/ratings-episodes.json"
	PathRatingsMovies              = "ratings/ratings-movies.json"
	PathRatingsSeasons             = "ratings/ratings-seasons.json"
	PathRatingsShows               = "ratings/ratings-shows.json"
	PathWatchedHistory             = "watched/history.json"
	PathWatchedPlayback            = "watched/playback.json"
	PathWatchedMovies              = "watched/watched-movies.json"
	PathWatchedShows               = "watched/watched-shows.json"
	PathProgressShows              = "watched/progress-shows.json"
	PathUpNext                     = "watched/up-next.json"
)

// freshnessRule binds one remote activity watermark to the output file it
// governs. The table is data, not control flow: classification walks it
// entry by entry, and tests cover it exhaustively.
type freshnessRule struct {
	field func(a *trakt.LastActivities) string
	path  string
}

var freshnessRules = []freshnessRule{
	{func(a *trakt.LastActivities) string { return a.Movies.CollectedAt }, PathCollectionMovies},
	{func(a *trakt.LastActivities) string { return a.Movies.WatchedAt }, PathWatchedMovies},
	{func(a *trakt.LastActivities) string { return a.Movies.RatedAt }, PathRatingsMovies},
	{func(a *trakt.LastActivities) string { return a.Movies.CommentedAt }, PathCommentsMovies},
	{func(a *trakt.LastActivities) string { return a.Episodes.CollectedAt }, PathCollectionShows},
	{func(a *trakt.LastActivities) string { return a.Episodes.WatchedAt }, PathWatchedShows},
	{func(a *trakt.LastActivities) string { return a.Episodes.WatchedAt }, PathProgressShows},
	{func(a *trakt.LastActivities) string { return a.Episodes.WatchedAt }, PathUpNext},
	{func(a *trakt.LastActivities) string { return a.Episodes.RatedAt }, PathRatingsEpisodes},
	{func(a *trakt.LastActivities) string { return a.Episodes.CommentedAt }, PathCommentsEpisodes},
	{func(a *trakt.LastActivities) string { return a.Shows.RatedAt }, PathRatingsShows},
	{func(a *trakt.LastActivities) string { return a.Shows.CommentedAt }, PathCommentsShows},
	{func(a *trakt.LastActivities) string { return a.Seasons.RatedAt }, PathRatingsSeasons},
	{func(a *trakt.LastActivities) string { return a.Seasons.CommentedAt }, PathCommentsSeasons},
	{func(a *trakt.LastActivities) string { return a.Comments.LikedAt }, PathLikesComments},
	{func(a *trakt.LastActivities) string { return a.Lists.LikedAt }, PathLikesLists},
	{func(a *trakt.LastActivities) string { return a.Lists.UpdatedAt }, PathLists},
	{func(a *trakt.LastActivities) string { return a.Lists.CommentedAt }, PathCommentsLists},
	{func(a *trakt.LastActivities) string { return a.Watchlist.UpdatedAt }, PathWatchlist},
	{func(a *trakt.LastActivities) string { return a.Account.SettingsAt }, PathUserProfile},
}

// hiddenPaths are the hidden-section exports governed as a group by the
// derived hidden watermark. The dropped-shows file is deliberately absent:
// it follows shows.dropped_at instead.
var hiddenPaths = []string{
	PathHiddenCalendar,
	PathHiddenProgressCollected,
	PathHiddenProgressWatched,
	PathHiddenProgressWatchedReset,
	PathHiddenRecommendations,
}

// watermark parses an RFC3339 activity timestamp. Missing or malformed
// values become the zero time, which never vouches for freshness: a zero
// recorded watermark is behind any valid remote one.
func watermark(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func maxTime(ts ...time.Time) time.Time {
	var m time.Time
	for _, t := range ts {
		if t.After(m) {
			m = t
		}
	}
	return m
}

// watchedWatermark is the derived watermark governing the watch history:
// the latest of the movie and episode watched timestamps.
func watchedWatermark(a *trakt.LastActivities) time.Time {
	return maxTime(watermark(a.Movies.WatchedAt), watermark(a.Episodes.WatchedAt))
}

// pausedWatermark is the derived watermark governing playback state.
func pausedWatermark(a *trakt.LastActivities) time.Time {
	return maxTime(watermark(a.Movies.PausedAt), watermark(a.Episodes.PausedAt))
}

// hiddenWatermark is the derived watermark governing the hidden sections:
// the latest hidden timestamp across movies, shows and seasons.
func hiddenWatermark(a *trakt.LastActivities) time.Time {
	return maxTime(
		watermark(a.Movies.HiddenAt),
		watermark(a.Shows.HiddenAt),
		watermark(a.Seasons.HiddenAt),
	)
}

// Classification is the fresh/stale partition of every governed output
// path, computed once at the start of a sync run.
type Classification struct {
	fresh map[string]bool
	stale map[string]bool
}

// Classify compares two activity snapshots and partitions every governed
// path into the fresh or stale set. A path is fresh iff the old snapshot
// exists and its watermark is at or after the new one: equality is fresh
// (a refetch would return identical data), and any remote movement past
// the recorded watermark classifies stale, forcing a refetch. With no old
// snapshot everything is stale.
func Classify(old, new *trakt.LastActivities) Classification {
	c := Classification{
		fresh: make(map[string]bool),
		stale: make(map[string]bool),
	}

	mark := func(path string, fresh bool) {
		if fresh {
			c.fresh[path] = true
		} else {
			c.stale[path] = true
		}
	}

	// The overall watermark governs the snapshot file itself and the
	// aggregate user stats, which have no finer-grained activity field.
	allFresh := old != nil && !watermark(old.All).Before(watermark(new.All))
	mark(PathLastActivities, allFresh)
	mark(PathUserStats, allFresh)

	mark(PathWatchedHistory, old != nil && !watchedWatermark(old).Before(watchedWatermark(new)))
	mark(PathWatchedPlayback, old != nil && !pausedWatermark(old).Before(pausedWatermark(new)))

	for _, rule := range freshnessRules {
		fresh := old != nil && !watermark(rule.field(old)).Before(watermark(rule.field(new)))
		mark(rule.path, fresh)
	}

	droppedFresh := old != nil &&
		!watermark(old.Shows.DroppedAt).Before(watermark(new.Shows.DroppedAt))
	mark(PathHiddenDropped, droppedFresh)

	hiddenFresh := old != nil && !hiddenWatermark(old).Before(hiddenWatermark(new))
	for _, path := range hiddenPaths {
		mark(path, hiddenFresh)
	}

	return c
}

// Fresh reports whether path was classified fresh.
func (c Classification) Fresh(path string) bool { return c.fresh[path] }

// Stale reports whether path was classified stale.
func (c Classification) Stale(path string) bool { return c.stale[path] }

// Governed reports whether path appears in either partition.
func (c Classification) Governed(path string) bool {
	return c.fresh[path] || c.stale[path]
}

// FreshPaths returns the sorted fresh set.
func (c Classification) FreshPaths() []string { return sortedKeys(c.fresh) }

// StalePaths returns the sorted stale set.
func (c Classification) StalePaths() []string { return sortedKeys(c.stale) }

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
