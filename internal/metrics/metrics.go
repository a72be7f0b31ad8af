// Package metrics renders the exported data tree into a Prometheus
// textfile. Gauges are rebuilt from scratch on every run against a private
// registry, so the output always reflects the current exports rather than
// accumulating across runs.
package metrics

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/josh/trakt-data/internal/cache"
	"github.com/josh/trakt-data/internal/media"
	"github.com/josh/trakt-data/internal/trakt"
)

// futureYear labels entities with no known year; it sorts after every real
// year.
const futureYear = "3000"

// Generator walks the exported data tree, resolves each referenced entity
// through the media cache and populates the gauges.
type Generator struct {
	store    *media.Store
	dataDir  string
	registry *prometheus.Registry
	logger   *slog.Logger

	vipYears            *prometheus.GaugeVec
	collectionCount     *prometheus.GaugeVec
	listCount           *prometheus.GaugeVec
	listMinutes         *prometheus.GaugeVec
	ratingsCount        *prometheus.GaugeVec
	watchedCount        *prometheus.GaugeVec
	watchedMinutes      *prometheus.GaugeVec
	watchlistCount      *prometheus.GaugeVec
	watchlistMinutes    *prometheus.GaugeVec
	showProgressCount   *prometheus.GaugeVec
	showProgressMinutes *prometheus.GaugeVec
}

// NewGenerator creates a Generator reading exports from dataDir and media
// documents through store.
func NewGenerator(store *media.Store, dataDir string, logger *slog.Logger) *Generator {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	listLabels := []string{"list", "media_type", "year", "status"}
	progressLabels := []string{"show", "year", "hidden", "season_aired", "episode_aired", "completed"}

	return &Generator{
		store:    store,
		dataDir:  dataDir,
		registry: registry,
		logger:   logger,

		vipYears: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_vip_years",
			Help: "Trakt VIP years",
		}, []string{"username"}),
		collectionCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_collection_count",
			Help: "Number of items in Trakt collection",
		}, []string{"media_type", "year"}),
		listCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_list_count",
			Help: "Number of items in Trakt lists",
		}, listLabels),
		listMinutes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_list_minutes",
			Help: "Number of minutes in Trakt lists",
		}, listLabels),
		ratingsCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_ratings_count",
			Help: "Number of items in Trakt ratings",
		}, []string{"media_type", "year", "rating"}),
		watchedCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_watched_count",
			Help: "Number of items in Trakt watched",
		}, []string{"media_type", "year"}),
		watchedMinutes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_watched_minutes",
			Help: "Number of minutes in Trakt watched",
		}, []string{"media_type", "year"}),
		watchlistCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_watchlist_count",
			Help: "Number of items in Trakt watchlist",
		}, []string{"media_type", "year", "status"}),
		watchlistMinutes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_watchlist_minutes",
			Help: "Number of minutes in Trakt watchlist",
		}, []string{"media_type", "year", "status"}),
		showProgressCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_show_progress_count",
			Help: "Number of episodes of watched shows",
		}, progressLabels),
		showProgressMinutes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trakt_show_progress_minutes",
			Help: "Number of minutes of watched shows",
		}, progressLabels),
	}
}

// metricInfo is the resolved labelling data for one referenced entity.
type metricInfo struct {
	mediaType string
	status    string
	year      string
	runtime   int
}

// movieReleaseStatus returns the widest release a movie has reached.
// Future-dated releases do not count; a movie with no past releases is
// "unknown".
func movieReleaseStatus(movie trakt.MovieExtended, now time.Time, logger *slog.Logger) trakt.MovieReleaseType {
	widest := 0
	for _, release := range movie.Releases {
		releaseDate, err := time.Parse("2006-01-02", release.ReleaseDate)
		if err != nil || releaseDate.After(now) {
			continue
		}
		index := releaseTypeIndex(release.ReleaseType)
		if index < 0 {
			logger.Warn("unknown release type", "type", release.ReleaseType)
			continue
		}
		if index > widest {
			widest = index
		}
	}
	return trakt.MovieReleaseTypes[widest]
}

func releaseTypeIndex(t trakt.MovieReleaseType) int {
	for i, candidate := range trakt.MovieReleaseTypes {
		if candidate == t {
			return i
		}
	}
	return -1
}

func (g *Generator) movieInfo(traktID int) (metricInfo, error) {
	movie, err := g.store.Movie(traktID)
	if err != nil {
		return metricInfo{}, err
	}

	status := "unknown"
	if movie.Status != "" {
		status = movie.Status
	}
	releaseStatus := movieReleaseStatus(movie, time.Now(), g.logger)
	if status == "released" {
		status = "released/" + string(releaseStatus)
	} else if releaseStatus != trakt.ReleaseUnknown {
		g.logger.Warn("movie has release despite status",
			"status", status, "release_status", releaseStatus)
	}

	year := futureYear
	if movie.Year != 0 {
		year = strconv.Itoa(movie.Year)
	}
	return metricInfo{mediaType: "movie", status: status, year: year, runtime: movie.Runtime}, nil
}

func (g *Generator) showInfo(traktID int) (metricInfo, error) {
	show, err := g.store.Show(traktID)
	if err != nil {
		return metricInfo{}, err
	}

	status := "unknown"
	if show.Status != "" {
		status = show.Status
	}
	year := futureYear
	if show.Year != 0 {
		year = strconv.Itoa(show.Year)
	}
	runtime := 0
	if show.Runtime != 0 && show.AiredEpisodes != 0 {
		runtime = show.Runtime * show.AiredEpisodes
	}
	return metricInfo{mediaType: "show", status: status, year: year, runtime: runtime}, nil
}

// episodeYear prefers the most specific first-aired date available:
// episode, then season, then the show's year.
func episodeYear(show *trakt.ShowExtended, season *trakt.SeasonExtended, episode *trakt.EpisodeExtended) string {
	year := futureYear
	if show != nil && show.Year != 0 {
		year = strconv.Itoa(show.Year)
	}
	if season != nil && season.FirstAired != "" {
		year = season.FirstAired[:4]
	}
	if episode != nil && episode.FirstAired != "" {
		year = episode.FirstAired[:4]
	}
	return year
}

func (g *Generator) episodeInfo(showID, episodeID, seasonNumber, episodeNumber int) (metricInfo, error) {
	show, err := g.store.Show(showID)
	if err != nil {
		return metricInfo{}, err
	}
	episode, err := g.store.Episode(episodeID, showID, seasonNumber, episodeNumber)
	if err != nil {
		return metricInfo{}, err
	}

	status := "unknown"
	if show.Status != "" {
		status = show.Status
	}
	return metricInfo{
		mediaType: "episode",
		status:    status,
		year:      episodeYear(&show, nil, &episode),
		runtime:   episode.Runtime,
	}, nil
}

// Generate populates every gauge from the exported data tree and writes the
// textfile to <dataDir>/metrics.prom.
func (g *Generator) Generate() error {
	profile, err := cache.ReadJSON[trakt.UserProfile](g.path("user/profile.json"))
	if err != nil {
		return fmt.Errorf("failed to read user profile: %w", err)
	}
	g.vipYears.WithLabelValues(profile.Username).Set(float64(profile.VIPYears))

	steps := []func() error{
		g.generateCollectionMetrics,
		g.generateRatingsMetrics,
		g.generateListMetrics,
		g.generateWatchedMetrics,
		g.generateWatchlistMetrics,
		g.generateUpNextMetrics,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	return prometheus.WriteToTextfile(filepath.Join(g.dataDir, "metrics.prom"), g.registry)
}

func (g *Generator) path(rel string) string {
	return filepath.Join(g.dataDir, filepath.FromSlash(rel))
}

func (g *Generator) generateCollectionMetrics() error {
	movies, err := cache.ReadJSON[[]trakt.CollectedMovie](g.path("collection/collection-movies.json"))
	if err != nil {
		return err
	}
	for _, collected := range movies {
		info, err := g.movieInfo(collected.Movie.IDs.Trakt)
		if err != nil {
			return err
		}
		g.collectionCount.WithLabelValues("movie", info.year).Inc()
	}

	shows, err := cache.ReadJSON[[]trakt.CollectedShow](g.path("collection/collection-shows.json"))
	if err != nil {
		return err
	}
	for _, collected := range shows {
		showID := collected.Show.IDs.Trakt
		info, err := g.showInfo(showID)
		if err != nil {
			return err
		}
		g.collectionCount.WithLabelValues("show", info.year).Inc()

		for _, season := range collected.Seasons {
			for _, episode := range season.Episodes {
				episodeInfo, err := g.episodeInfo(showID, 0, season.Number, episode.Number)
				if err != nil {
					return err
				}
				g.collectionCount.WithLabelValues("episode", episodeInfo.year).Inc()
			}
		}
	}
	return nil
}

func (g *Generator) generateRatingsMetrics() error {
	ratings, err := cache.ReadJSON[[]trakt.Rating](g.path("ratings/ratings-episodes.json"))
	if err != nil {
		return err
	}
	for _, rating := range ratings {
		info, err := g.episodeInfo(
			rating.Show.IDs.Trakt,
			rating.Episode.IDs.Trakt,
			rating.Episode.Season,
			rating.Episode.Number,
		)
		if err != nil {
			return err
		}
		g.ratingsCount.WithLabelValues("episode", info.year, strconv.Itoa(rating.Rating)).Inc()
	}

	movieRatings, err := cache.ReadJSON[[]trakt.Rating](g.path("ratings/ratings-movies.json"))
	if err != nil {
		return err
	}
	for _, rating := range movieRatings {
		info, err := g.movieInfo(rating.Movie.IDs.Trakt)
		if err != nil {
			return err
		}
		g.ratingsCount.WithLabelValues("movie", info.year, strconv.Itoa(rating.Rating)).Inc()
	}

	showRatings, err := cache.ReadJSON[[]trakt.Rating](g.path("ratings/ratings-shows.json"))
	if err != nil {
		return err
	}
	for _, rating := range showRatings {
		info, err := g.showInfo(rating.Show.IDs.Trakt)
		if err != nil {
			return err
		}
		g.ratingsCount.WithLabelValues("show", info.year, strconv.Itoa(rating.Rating)).Inc()
	}
	return nil
}

func (g *Generator) generateListMetrics() error {
	lists, err := cache.ReadJSON[[]trakt.List](g.path("lists/lists.json"))
	if err != nil {
		return err
	}
	for _, list := range lists {
		rel := fmt.Sprintf("lists/list-%d-%s.json", list.IDs.Trakt, list.IDs.Slug)
		items, err := cache.ReadJSON[[]trakt.ListItem](g.path(rel))
		if err != nil {
			return err
		}
		for _, item := range items {
			info, ok, err := g.listItemInfo(item)
			if err != nil {
				g.logger.Error("failed to resolve list item", "list", list.IDs.Slug, "error", err)
				continue
			}
			if !ok {
				continue
			}
			labels := []string{list.IDs.Slug, info.mediaType, info.year, info.status}
			g.listCount.WithLabelValues(labels...).Inc()
			g.listMinutes.WithLabelValues(labels...).Add(float64(info.runtime))
		}
	}
	return nil
}

// listItemInfo resolves a list or watchlist entry; unknown entry types are
// logged and skipped rather than failing the run.
func (g *Generator) listItemInfo(item trakt.ListItem) (metricInfo, bool, error) {
	switch item.Type {
	case "movie":
		info, err := g.movieInfo(item.Movie.IDs.Trakt)
		return info, err == nil, err
	case "show":
		info, err := g.showInfo(item.Show.IDs.Trakt)
		return info, err == nil, err
	case "episode":
		if item.Episode == nil || item.Show == nil {
			g.logger.Warn("episode entry missing references")
			return metricInfo{}, false, nil
		}
		info, err := g.episodeInfo(
			item.Show.IDs.Trakt,
			item.Episode.IDs.Trakt,
			item.Episode.Season,
			item.Episode.Number,
		)
		return info, err == nil, err
	default:
		g.logger.Warn("unknown media type", "type", item.Type)
		return metricInfo{}, false, nil
	}
}

func (g *Generator) generateWatchedMetrics() error {
	items, err := cache.ReadJSON[[]trakt.HistoryItem](g.path("watched/history.json"))
	if err != nil {
		return err
	}
	for _, item := range items {
		var info metricInfo
		switch item.Type {
		case "movie":
			info, err = g.movieInfo(item.Movie.IDs.Trakt)
		case "episode":
			info, err = g.episodeInfo(
				item.Show.IDs.Trakt,
				item.Episode.IDs.Trakt,
				item.Episode.Season,
				item.Episode.Number,
			)
		default:
			g.logger.Warn("unknown media type", "type", item.Type)
			continue
		}
		if err != nil {
			g.logger.Error("failed to resolve history item", "error", err)
			continue
		}

		g.watchedCount.WithLabelValues(info.mediaType, info.year).Inc()
		g.watchedMinutes.WithLabelValues(info.mediaType, info.year).Add(float64(info.runtime))
	}
	return nil
}

func (g *Generator) generateWatchlistMetrics() error {
	items, err := cache.ReadJSON[[]trakt.ListItem](g.path("lists/watchlist.json"))
	if err != nil {
		return err
	}
	for _, item := range items {
		info, ok, err := g.listItemInfo(item)
		if err != nil {
			g.logger.Error("failed to resolve watchlist item", "error", err)
			continue
		}
		if !ok {
			continue
		}
		g.watchlistCount.WithLabelValues(info.mediaType, info.year, info.status).Inc()
		g.watchlistMinutes.WithLabelValues(info.mediaType, info.year, info.status).Add(float64(info.runtime))
	}
	return nil
}

// hiddenProgressShowIDs is the set of shows hidden from progress tracking,
// either dropped or explicitly hidden.
func (g *Generator) hiddenProgressShowIDs() (map[int]bool, error) {
	ids := make(map[int]bool)
	for _, rel := range []string{"hidden/hidden-dropped.json", "hidden/hidden-progress-watched.json"} {
		hidden, err := cache.ReadJSON[[]trakt.HiddenItem](g.path(rel))
		if err != nil {
			return nil, err
		}
		for _, item := range hidden {
			if item.Show != nil {
				ids[item.Show.IDs.Trakt] = true
			}
		}
	}
	return ids, nil
}

type episodeKey struct {
	showID  int
	season  int
	episode int
}

func (g *Generator) completedEpisodes() (map[episodeKey]bool, error) {
	progressShows, err := cache.ReadJSON[[]trakt.ProgressShow](g.path("watched/progress-shows.json"))
	if err != nil {
		return nil, err
	}
	completed := make(map[episodeKey]bool)
	for _, progressShow := range progressShows {
		showID := progressShow.Show.IDs.Trakt
		for _, season := range progressShow.Progress.Seasons {
			for _, episode := range season.Episodes {
				if episode.Completed {
					completed[episodeKey{showID, season.Number, episode.Number}] = true
				}
			}
		}
	}
	return completed, nil
}

func (g *Generator) generateUpNextMetrics() error {
	hiddenIDs, err := g.hiddenProgressShowIDs()
	if err != nil {
		return err
	}
	g.logger.Debug("shows hidden from up next progress", "count", len(hiddenIDs))

	completed, err := g.completedEpisodes()
	if err != nil {
		return err
	}
	g.logger.Debug("completed episodes", "count", len(completed))

	showIDs := make(map[int]bool)
	progressShows, err := cache.ReadJSON[[]trakt.ProgressShow](g.path("watched/progress-shows.json"))
	if err != nil {
		return err
	}
	for _, progressShow := range progressShows {
		showIDs[progressShow.Show.IDs.Trakt] = true
	}
	watchlist, err := cache.ReadJSON[[]trakt.ListItem](g.path("lists/watchlist.json"))
	if err != nil {
		return err
	}
	for _, item := range watchlist {
		if item.Type == "show" && item.Show != nil {
			showIDs[item.Show.IDs.Trakt] = true
		}
	}

	for showID := range showIDs {
		if err := g.generateShowProgressMetrics(showID, hiddenIDs, completed); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) generateShowProgressMetrics(showID int, hiddenIDs map[int]bool, completed map[episodeKey]bool) error {
	show, err := g.store.Show(showID)
	if err != nil {
		return err
	}
	hidden := strconv.FormatBool(hiddenIDs[showID])

	for _, seasonInfo := range show.Seasons {
		// Specials have no meaningful progress.
		if seasonInfo.Number == 0 {
			continue
		}
		season, err := g.store.Season(showID, seasonInfo.IDs.Trakt, seasonInfo.Number)
		if err != nil {
			return err
		}

		seasonAired := "airing"
		switch {
		case season.EpisodeCount == season.AiredEpisodes:
			seasonAired = "aired"
		case season.AiredEpisodes == 0:
			seasonAired = "not aired"
		}

		for _, episodeInfo := range season.Episodes {
			episode, err := g.store.Episode(episodeInfo.IDs.Trakt, showID, seasonInfo.Number, episodeInfo.Number)
			if err != nil {
				return err
			}

			episodeAired := seasonAired == "aired"
			if seasonAired == "airing" && episode.FirstAired != "" {
				if aired, err := time.Parse(time.RFC3339, episode.FirstAired); err == nil {
					episodeAired = aired.Before(time.Now().UTC())
				}
			}
			episodeAiredStr := "not aired"
			if episodeAired {
				episodeAiredStr = "aired"
			}

			labels := []string{
				show.IDs.Slug,
				episodeYear(&show, &season, &episode),
				hidden,
				seasonAired,
				episodeAiredStr,
				strconv.FormatBool(completed[episodeKey{showID, seasonInfo.Number, episodeInfo.Number}]),
			}
			g.showProgressCount.WithLabelValues(labels...).Inc()
			g.showProgressMinutes.WithLabelValues(labels...).Add(float64(episode.Runtime))
		}
	}
	return nil
}
