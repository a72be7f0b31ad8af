package media

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/josh/trakt-data/internal/trakt"
)

func testStore(t *testing.T, expired map[string]bool) (*Store, *trakt.InMemoryTransport) {
	t.Helper()
	transport := trakt.NewInMemoryTransport()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := trakt.NewClient(transport, logger)
	return NewStore(client, t.TempDir(), expired, logger), transport
}

func seedMovie(transport *trakt.InMemoryTransport, id int, updatedAt string) {
	transport.Seed(fmt.Sprintf("/movies/%d", id), trakt.MovieExtended{
		Title: "True Lies", Year: 1994,
		IDs:       trakt.MovieIDs{Trakt: id},
		Runtime:   141,
		Status:    "released",
		UpdatedAt: updatedAt,
	})
	transport.Seed(fmt.Sprintf("/movies/%d/releases/us", id), []trakt.MovieRelease{
		{Country: "us", ReleaseDate: "1994-07-15", ReleaseType: trakt.ReleaseTheatrical},
	})
}

func TestMovieFetchesOnceThenServesFromCache(t *testing.T) {
	store, transport := testStore(t, nil)
	seedMovie(transport, 4037, "2024-03-01T12:30:00Z")

	movie, err := store.Movie(4037)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if movie.Title != "True Lies" || len(movie.Releases) != 1 {
		t.Errorf("Unexpected movie: %+v", movie)
	}

	again, err := store.Movie(4037)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if again.Title != movie.Title {
		t.Errorf("Unexpected cached movie: %+v", again)
	}
	// Movie plus releases, fetched exactly once.
	if got := transport.RequestsMade(); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
}

func TestMovieCachedWithSemanticMtime(t *testing.T) {
	store, transport := testStore(t, nil)
	seedMovie(transport, 4037, "2024-03-01T12:30:00Z")

	if _, err := store.Movie(4037); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	info, err := os.Stat(store.moviePath(4037))
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	if !info.ModTime().Equal(want) {
		t.Errorf("Expected mtime %v from updated_at, got %v", want, info.ModTime())
	}
}

func TestMovieExpiredPathRefetchedOnce(t *testing.T) {
	transport := trakt.NewInMemoryTransport()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := trakt.NewClient(transport, logger)
	dir := t.TempDir()

	warm := NewStore(client, dir, nil, logger)
	seedMovie(transport, 4037, "2024-03-01T12:30:00Z")
	if _, err := warm.Movie(4037); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	warmRequests := transport.RequestsMade()

	expired := map[string]bool{warm.moviePath(4037): true}
	store := NewStore(client, dir, expired, logger)

	// First lookup is a forced miss, the second hits the refreshed copy.
	if _, err := store.Movie(4037); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := store.Movie(4037); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := transport.RequestsMade() - warmRequests; got != 2 {
		t.Errorf("Expected one refetch (2 requests), got %d", got)
	}
}

func seedShow(transport *trakt.InMemoryTransport, seasons ...trakt.Season) {
	transport.Seed("/shows/1390", trakt.ShowExtended{
		Title: "Severance", Year: 2022,
		IDs:           trakt.ShowIDs{Trakt: 1390},
		Runtime:       50,
		Status:        "returning series",
		UpdatedAt:     "2024-05-01T00:00:00Z",
		AiredEpisodes: 19,
	})
	transport.Seed("/shows/1390/seasons", seasons)
}

func TestResolveSeasonID(t *testing.T) {
	store, transport := testStore(t, nil)
	seedShow(transport,
		trakt.Season{Number: 1, IDs: trakt.SeasonIDs{Trakt: 61430}},
		trakt.Season{Number: 2, IDs: trakt.SeasonIDs{Trakt: 61431}},
	)

	id, ok, err := store.ResolveSeasonID(1390, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !ok || id != 61431 {
		t.Errorf("Expected season id 61431, got %d (ok=%v)", id, ok)
	}
}

func TestResolveSeasonIDMissingSeasonRefetchesShow(t *testing.T) {
	store, transport := testStore(t, nil)
	seedShow(transport, trakt.Season{Number: 1, IDs: trakt.SeasonIDs{Trakt: 61430}})

	// Warm the cache, then resolve a season the cached list lacks: the
	// show must be refetched once before the lookup fails.
	if _, err := store.Show(1390); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	before := transport.RequestsFor("/shows/1390")

	_, ok, err := store.ResolveSeasonID(1390, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected resolution to fail for a season the show lacks")
	}
	if got := transport.RequestsFor("/shows/1390"); got != before+1 {
		t.Errorf("Expected exactly one forced refetch, got %d", got-before)
	}
}

func seedSeason(transport *trakt.InMemoryTransport) {
	transport.Seed("/shows/1390/seasons/2/info", trakt.SeasonExtended{
		Number:    2,
		IDs:       trakt.SeasonIDs{Trakt: 61431},
		UpdatedAt: "2024-05-01T00:00:00Z",
	})
	transport.Seed("/shows/1390/seasons/2", []trakt.Episode{
		{Season: 2, Number: 1, Title: "Hello, Ms. Cobel", IDs: trakt.EpisodeIDs{Trakt: 5001}},
		{Season: 2, Number: 2, Title: "Goodbye, Mrs. Selvig", IDs: trakt.EpisodeIDs{Trakt: 5002}},
	})
}

func TestResolveEpisodeID(t *testing.T) {
	store, transport := testStore(t, nil)
	seedShow(transport, trakt.Season{Number: 2, IDs: trakt.SeasonIDs{Trakt: 61431}})
	seedSeason(transport)

	id, ok, err := store.ResolveEpisodeID(1390, 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !ok || id != 5002 {
		t.Errorf("Expected episode id 5002, got %d (ok=%v)", id, ok)
	}
}

func TestSeasonEmbedsCachedShowInfo(t *testing.T) {
	store, transport := testStore(t, nil)
	seedShow(transport, trakt.Season{Number: 2, IDs: trakt.SeasonIDs{Trakt: 61431}})
	seedSeason(transport)

	if _, err := store.Show(1390); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	season, err := store.Season(1390, 61431, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if season.Show == nil || season.Show.Title != "Severance" {
		t.Errorf("Expected embedded show info, got %+v", season.Show)
	}
	if len(season.Episodes) != 2 {
		t.Errorf("Expected 2 episodes, got %d", len(season.Episodes))
	}
}

func TestEpisodeResolvesZeroID(t *testing.T) {
	store, transport := testStore(t, nil)
	seedShow(transport, trakt.Season{Number: 2, IDs: trakt.SeasonIDs{Trakt: 61431}})
	seedSeason(transport)
	transport.Seed("/shows/1390/seasons/2/episodes/1", trakt.EpisodeExtended{
		Season: 2, Number: 1, Title: "Hello, Ms. Cobel",
		IDs:       trakt.EpisodeIDs{Trakt: 5001},
		Runtime:   45,
		UpdatedAt: "2024-05-01T00:00:00Z",
	})

	episode, err := store.Episode(0, 1390, 2, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if episode.IDs.Trakt != 5001 {
		t.Errorf("Expected episode 5001, got %+v", episode)
	}

	// The document was cached under its resolved id.
	if _, err := os.Stat(store.episodePath(5001)); err != nil {
		t.Errorf("Expected cached episode file: %v", err)
	}
}
