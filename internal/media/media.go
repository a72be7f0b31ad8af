// Package media maintains the long-lived cache of movie, show, season and
// episode documents keyed by Trakt id. Unlike the per-user exports, media
// entities carry no activity watermark, so cached documents are served
// indefinitely; a per-run expiry set marks a bounded random subset of paths
// as forced misses to keep the cache from going permanently stale.
package media

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/josh/trakt-data/internal/cache"
	"github.com/josh/trakt-data/internal/trakt"
)

// Store reads and writes the partitioned media cache under
// <cacheDir>/media, fetching from the API on a miss.
type Store struct {
	client   *trakt.Client
	cacheDir string
	expired  map[string]bool
	logger   *slog.Logger
}

// NewStore creates a Store over cacheDir. Paths in expired are treated as
// cache misses on their first lookup this run, forcing a refetch; the set
// may be nil.
func NewStore(client *trakt.Client, cacheDir string, expired map[string]bool, logger *slog.Logger) *Store {
	if expired == nil {
		expired = make(map[string]bool)
	}
	return &Store{
		client:   client,
		cacheDir: cacheDir,
		expired:  expired,
		logger:   logger,
	}
}

func (s *Store) moviePath(id int) string {
	return cache.PartitionPath(filepath.Join(s.cacheDir, "media", "movies"), id, ".json")
}

func (s *Store) showPath(id int) string {
	return cache.PartitionPath(filepath.Join(s.cacheDir, "media", "shows"), id, ".json")
}

func (s *Store) seasonPath(id int) string {
	return cache.PartitionPath(filepath.Join(s.cacheDir, "media", "seasons"), id, ".json")
}

func (s *Store) episodePath(id int) string {
	return cache.PartitionPath(filepath.Join(s.cacheDir, "media", "episodes"), id, ".json")
}

// readCached decodes the cached document at path unless the path has been
// selected as expired this run. The expiry mark is consumed: once the
// caller refetches, later lookups hit the fresh copy.
func readCached[T any](s *Store, path string) (T, bool) {
	var zero T
	if s.expired[path] {
		delete(s.expired, path)
		s.logger.Debug("cache entry expired", "path", path)
		return zero, false
	}
	v, err := cache.ReadJSON[T](path)
	if err != nil {
		return zero, false
	}
	return v, true
}

// writeEntity persists a media document with its mtime set to the entity's
// updated_at timestamp.
func writeEntity(path string, v any, updatedAt string) error {
	mtime, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return fmt.Errorf("invalid updated_at %q for %s: %w", updatedAt, path, err)
	}
	return cache.WriteJSON(path, v, mtime)
}

func extendedParams() url.Values {
	params := url.Values{}
	params.Set("extended", "full")
	return params
}

// Movie returns the extended movie document, fetching and caching it on a
// miss. The US release list rides along in the same document.
func (s *Store) Movie(traktID int) (trakt.MovieExtended, error) {
	path := s.moviePath(traktID)
	if movie, ok := readCached[trakt.MovieExtended](s, path); ok {
		return movie, nil
	}

	var movie trakt.MovieExtended
	if err := s.client.Get(fmt.Sprintf("/movies/%d", traktID), extendedParams(), &movie); err != nil {
		return trakt.MovieExtended{}, err
	}
	if err := s.client.Get(fmt.Sprintf("/movies/%d/releases/us", traktID), nil, &movie.Releases); err != nil {
		return trakt.MovieExtended{}, err
	}
	if err := writeEntity(path, &movie, movie.UpdatedAt); err != nil {
		return trakt.MovieExtended{}, err
	}
	return movie, nil
}

// Show returns the extended show document, fetching and caching it on a
// miss. The season list rides along in the same document.
func (s *Store) Show(traktID int) (trakt.ShowExtended, error) {
	path := s.showPath(traktID)
	if show, ok := readCached[trakt.ShowExtended](s, path); ok {
		return show, nil
	}
	return s.fetchShow(traktID)
}

func (s *Store) fetchShow(traktID int) (trakt.ShowExtended, error) {
	var show trakt.ShowExtended
	if err := s.client.Get(fmt.Sprintf("/shows/%d", traktID), extendedParams(), &show); err != nil {
		return trakt.ShowExtended{}, err
	}
	if err := s.client.Get(fmt.Sprintf("/shows/%d/seasons", traktID), nil, &show.Seasons); err != nil {
		return trakt.ShowExtended{}, err
	}
	if err := writeEntity(s.showPath(traktID), &show, show.UpdatedAt); err != nil {
		return trakt.ShowExtended{}, err
	}
	return show, nil
}

// showInfo projects a cached extended show down to its minimal form for
// embedding in season documents. Never fetches.
func (s *Store) showInfo(traktID int) *trakt.Show {
	show, err := cache.ReadJSON[trakt.ShowExtended](s.showPath(traktID))
	if err != nil {
		s.logger.Warn("show info not cached", "show", traktID)
		return nil
	}
	return &trakt.Show{Title: show.Title, Year: show.Year, IDs: show.IDs}
}

// Season returns the extended season document, fetching and caching it on
// a miss. Seasons are addressed by show id and season number on the API
// but cached under the season's own Trakt id.
func (s *Store) Season(showID, seasonID, seasonNumber int) (trakt.SeasonExtended, error) {
	path := s.seasonPath(seasonID)
	if season, ok := readCached[trakt.SeasonExtended](s, path); ok {
		return season, nil
	}

	var season trakt.SeasonExtended
	infoPath := fmt.Sprintf("/shows/%d/seasons/%d/info", showID, seasonNumber)
	if err := s.client.Get(infoPath, extendedParams(), &season); err != nil {
		return trakt.SeasonExtended{}, err
	}
	episodesPath := fmt.Sprintf("/shows/%d/seasons/%d", showID, seasonNumber)
	if err := s.client.Get(episodesPath, nil, &season.Episodes); err != nil {
		return trakt.SeasonExtended{}, err
	}
	season.Show = s.showInfo(showID)
	if err := writeEntity(path, &season, season.UpdatedAt); err != nil {
		return trakt.SeasonExtended{}, err
	}
	return season, nil
}

// ResolveSeasonID maps a show id and season number to the season's Trakt
// id via the show's cached season list. A number missing from the cached
// list triggers one forced refetch of the show before giving up: the cache
// may simply predate the season.
func (s *Store) ResolveSeasonID(showID, seasonNumber int) (int, bool, error) {
	show, err := s.Show(showID)
	if err != nil {
		return 0, false, err
	}
	if id, ok := findSeason(show, seasonNumber); ok {
		return id, true, nil
	}

	s.logger.Debug("stale season list, re-fetching show",
		"show", show.Title, "season", seasonNumber)
	show, err = s.fetchShow(showID)
	if err != nil {
		return 0, false, err
	}
	if id, ok := findSeason(show, seasonNumber); ok {
		return id, true, nil
	}

	s.logger.Warn("show is missing season", "show", show.Title, "season", seasonNumber)
	return 0, false, nil
}

func findSeason(show trakt.ShowExtended, seasonNumber int) (int, bool) {
	for _, season := range show.Seasons {
		if season.Number == seasonNumber {
			return season.IDs.Trakt, true
		}
	}
	return 0, false
}

// ResolveEpisodeID maps a show id, season number and episode number to the
// episode's Trakt id via the season's cached episode list.
func (s *Store) ResolveEpisodeID(showID, seasonNumber, episodeNumber int) (int, bool, error) {
	seasonID, ok, err := s.ResolveSeasonID(showID, seasonNumber)
	if err != nil || !ok {
		return 0, false, err
	}

	season, err := s.Season(showID, seasonID, seasonNumber)
	if err != nil {
		return 0, false, err
	}
	for _, episode := range season.Episodes {
		if episode.Number == episodeNumber {
			return episode.IDs.Trakt, true, nil
		}
	}

	s.logger.Warn("season is missing episode",
		"show", showID, "season", seasonNumber, "episode", episodeNumber)
	return 0, false, nil
}

// Episode returns the extended episode document. When episodeID is zero it
// is resolved from the show's season and episode lists first; if resolution
// fails the episode is still fetched by position and cached under the id
// the API reports.
func (s *Store) Episode(episodeID, showID, seasonNumber, episodeNumber int) (trakt.EpisodeExtended, error) {
	if episodeID == 0 {
		id, ok, err := s.ResolveEpisodeID(showID, seasonNumber, episodeNumber)
		if err != nil {
			return trakt.EpisodeExtended{}, err
		}
		if ok {
			episodeID = id
		}
	}

	if episodeID != 0 {
		if episode, ok := readCached[trakt.EpisodeExtended](s, s.episodePath(episodeID)); ok {
			return episode, nil
		}
	}

	var episode trakt.EpisodeExtended
	path := fmt.Sprintf("/shows/%d/seasons/%d/episodes/%d", showID, seasonNumber, episodeNumber)
	if err := s.client.Get(path, extendedParams(), &episode); err != nil {
		return trakt.EpisodeExtended{}, err
	}
	if err := writeEntity(s.episodePath(episode.IDs.Trakt), &episode, episode.UpdatedAt); err != nil {
		return trakt.EpisodeExtended{}, err
	}
	return episode, nil
}
