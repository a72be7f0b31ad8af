package metrics

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/josh/trakt-data/internal/cache"
	"github.com/josh/trakt-data/internal/media"
	"github.com/josh/trakt-data/internal/trakt"
)

func writeData(t *testing.T, dir, rel string, v any) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := cache.WriteJSON(path, v, time.Time{}); err != nil {
		t.Fatal(err)
	}
}

// seedEmptyData writes the minimal data tree Generate always reads.
func seedEmptyData(t *testing.T, dir string) {
	t.Helper()
	writeData(t, dir, "user/profile.json", trakt.UserProfile{
		Username: "josh", Name: "Josh", VIP: true, VIPYears: 5,
		IDs: trakt.UserIDs{Slug: "josh"},
	})
	writeData(t, dir, "collection/collection-movies.json", []trakt.CollectedMovie{})
	writeData(t, dir, "collection/collection-shows.json", []trakt.CollectedShow{})
	writeData(t, dir, "ratings/ratings-episodes.json", []trakt.Rating{})
	writeData(t, dir, "ratings/ratings-movies.json", []trakt.Rating{})
	writeData(t, dir, "ratings/ratings-shows.json", []trakt.Rating{})
	writeData(t, dir, "lists/lists.json", []trakt.List{})
	writeData(t, dir, "lists/watchlist.json", []trakt.ListItem{})
	writeData(t, dir, "watched/history.json", []trakt.HistoryItem{})
	writeData(t, dir, "watched/progress-shows.json", []trakt.ProgressShow{})
	writeData(t, dir, "hidden/hidden-dropped.json", []trakt.HiddenItem{})
	writeData(t, dir, "hidden/hidden-progress-watched.json", []trakt.HiddenItem{})
}

func testGenerator(t *testing.T, dataDir string) (*Generator, *trakt.InMemoryTransport) {
	t.Helper()
	transport := trakt.NewInMemoryTransport()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := trakt.NewClient(transport, logger)
	store := media.NewStore(client, t.TempDir(), nil, logger)
	return NewGenerator(store, dataDir, logger), transport
}

func readMetrics(t *testing.T, dataDir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dataDir, "metrics.prom"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestGenerateEmptyData(t *testing.T) {
	dataDir := t.TempDir()
	seedEmptyData(t, dataDir)
	generator, _ := testGenerator(t, dataDir)

	if err := generator.Generate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	output := readMetrics(t, dataDir)
	if !strings.Contains(output, `trakt_vip_years{username="josh"} 5`) {
		t.Errorf("Expected VIP years gauge, got:\n%s", output)
	}
}

func TestGenerateCollectionAndRatings(t *testing.T) {
	dataDir := t.TempDir()
	seedEmptyData(t, dataDir)

	movie := trakt.Movie{Title: "True Lies", Year: 1994, IDs: trakt.MovieIDs{Trakt: 4037}}
	writeData(t, dataDir, "collection/collection-movies.json", []trakt.CollectedMovie{
		{CollectedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z", Movie: movie},
	})
	writeData(t, dataDir, "ratings/ratings-movies.json", []trakt.Rating{
		{RatedAt: "2024-01-02T00:00:00Z", Rating: 9, Type: "movie", Movie: &movie},
	})

	generator, transport := testGenerator(t, dataDir)
	transport.Seed("/movies/4037", trakt.MovieExtended{
		Title: "True Lies", Year: 1994,
		IDs:       trakt.MovieIDs{Trakt: 4037},
		Runtime:   141,
		Status:    "released",
		UpdatedAt: "2024-01-01T00:00:00Z",
	})
	transport.Seed("/movies/4037/releases/us", []trakt.MovieRelease{
		{Country: "us", ReleaseDate: "1994-07-15", ReleaseType: trakt.ReleaseTheatrical},
		{Country: "us", ReleaseDate: "1994-11-01", ReleaseType: trakt.ReleaseDigital},
	})

	if err := generator.Generate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	output := readMetrics(t, dataDir)
	if !strings.Contains(output, `trakt_collection_count{media_type="movie",year="1994"} 1`) {
		t.Errorf("Expected collection gauge, got:\n%s", output)
	}
	if !strings.Contains(output, `trakt_ratings_count{media_type="movie",rating="9",year="1994"} 1`) {
		t.Errorf("Expected ratings gauge, got:\n%s", output)
	}
	// The movie document is fetched once and shared by both generators.
	if got := transport.RequestsFor("/movies/4037"); got != 1 {
		t.Errorf("Expected 1 movie fetch, got %d", got)
	}
}

func TestGenerateWatchedHistoryMinutes(t *testing.T) {
	dataDir := t.TempDir()
	seedEmptyData(t, dataDir)

	movie := trakt.Movie{Title: "True Lies", Year: 1994, IDs: trakt.MovieIDs{Trakt: 4037}}
	writeData(t, dataDir, "watched/history.json", []trakt.HistoryItem{
		{ID: 1, WatchedAt: "2024-02-01T20:00:00Z", Action: "watch", Type: "movie", Movie: &movie},
		{ID: 2, WatchedAt: "2024-03-01T20:00:00Z", Action: "watch", Type: "movie", Movie: &movie},
	})

	generator, transport := testGenerator(t, dataDir)
	transport.Seed("/movies/4037", trakt.MovieExtended{
		Title: "True Lies", Year: 1994,
		IDs:       trakt.MovieIDs{Trakt: 4037},
		Runtime:   141,
		Status:    "released",
		UpdatedAt: "2024-01-01T00:00:00Z",
	})
	transport.Seed("/movies/4037/releases/us", []trakt.MovieRelease{})

	if err := generator.Generate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	output := readMetrics(t, dataDir)
	if !strings.Contains(output, `trakt_watched_count{media_type="movie",year="1994"} 2`) {
		t.Errorf("Expected watched count 2, got:\n%s", output)
	}
	if !strings.Contains(output, `trakt_watched_minutes{media_type="movie",year="1994"} 282`) {
		t.Errorf("Expected watched minutes 282, got:\n%s", output)
	}
}

func TestGenerateSkipsUnresolvableHistoryItems(t *testing.T) {
	dataDir := t.TempDir()
	seedEmptyData(t, dataDir)

	missing := trakt.Movie{Title: "Gone", IDs: trakt.MovieIDs{Trakt: 999}}
	writeData(t, dataDir, "watched/history.json", []trakt.HistoryItem{
		{ID: 1, WatchedAt: "2024-02-01T20:00:00Z", Action: "watch", Type: "movie", Movie: &missing},
	})

	generator, _ := testGenerator(t, dataDir)

	// The movie endpoint is unseeded: resolution fails but the run survives.
	if err := generator.Generate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestMovieReleaseStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		releases []trakt.MovieRelease
		want     trakt.MovieReleaseType
	}{
		{"no releases", nil, trakt.ReleaseUnknown},
		{
			"widest past release wins",
			[]trakt.MovieRelease{
				{ReleaseDate: "2024-01-01", ReleaseType: trakt.ReleaseTheatrical},
				{ReleaseDate: "2024-03-01", ReleaseType: trakt.ReleasePhysical},
			},
			trakt.ReleasePhysical,
		},
		{
			"future releases ignored",
			[]trakt.MovieRelease{
				{ReleaseDate: "2024-01-01", ReleaseType: trakt.ReleaseTheatrical},
				{ReleaseDate: "2025-01-01", ReleaseType: trakt.ReleasePhysical},
			},
			trakt.ReleaseTheatrical,
		},
		{
			"malformed date ignored",
			[]trakt.MovieRelease{
				{ReleaseDate: "soon", ReleaseType: trakt.ReleasePhysical},
			},
			trakt.ReleaseUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movie := trakt.MovieExtended{Releases: tt.releases}
			if got := movieReleaseStatus(movie, now, logger); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEpisodeYear(t *testing.T) {
	show := &trakt.ShowExtended{Year: 2022}
	season := &trakt.SeasonExtended{FirstAired: "2024-01-15T00:00:00Z"}
	episode := &trakt.EpisodeExtended{FirstAired: "2025-02-01T00:00:00Z"}

	tests := []struct {
		name    string
		show    *trakt.ShowExtended
		season  *trakt.SeasonExtended
		episode *trakt.EpisodeExtended
		want    string
	}{
		{"nothing known", nil, nil, nil, futureYear},
		{"show year only", show, nil, nil, "2022"},
		{"season overrides show", show, season, nil, "2024"},
		{"episode overrides season", show, season, episode, "2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := episodeYear(tt.show, tt.season, tt.episode); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
