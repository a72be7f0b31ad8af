// Package trakt provides the HTTP client and resource types for the Trakt API.
package trakt

// UserIDs identifies a Trakt user.
type UserIDs struct {
	Slug string `json:"slug"`
}

// UserProfile is the authenticated user's profile with VIP details.
type UserProfile struct {
	Username string  `json:"username"`
	Name     string  `json:"name"`
	VIP      bool    `json:"vip"`
	VIPEP    bool    `json:"vip_ep"`
	VIPOG    bool    `json:"vip_og"`
	VIPYears int     `json:"vip_years"`
	IDs      UserIDs `json:"ids"`
}

// MovieIDs identifies a movie.
type MovieIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug,omitempty"`
}

// ShowIDs identifies a show.
type ShowIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug,omitempty"`
}

// SeasonIDs identifies a season.
type SeasonIDs struct {
	Trakt int `json:"trakt"`
}

// EpisodeIDs identifies an episode.
type EpisodeIDs struct {
	Trakt int `json:"trakt"`
}

// Movie is the minimal movie representation embedded in other resources.
type Movie struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	IDs   MovieIDs `json:"ids"`
}

// Show is the minimal show representation embedded in other resources.
type Show struct {
	Title string  `json:"title"`
	Year  int     `json:"year"`
	IDs   ShowIDs `json:"ids"`
}

// Season is the minimal season representation from a show's season list.
type Season struct {
	Number int       `json:"number"`
	IDs    SeasonIDs `json:"ids"`
}

// Episode is the minimal episode representation embedded in other resources.
type Episode struct {
	Season int        `json:"season"`
	Number int        `json:"number"`
	Title  string     `json:"title"`
	IDs    EpisodeIDs `json:"ids"`
}

// MovieReleaseType enumerates Trakt release kinds, ordered from least to
// most widely available.
type MovieReleaseType string

const (
	ReleaseUnknown    MovieReleaseType = "unknown"
	ReleasePremiere   MovieReleaseType = "premiere"
	ReleaseLimited    MovieReleaseType = "limited"
	ReleaseTheatrical MovieReleaseType = "theatrical"
	ReleaseDigital    MovieReleaseType = "digital"
	ReleasePhysical   MovieReleaseType = "physical"
	ReleaseTV         MovieReleaseType = "tv"
)

// MovieReleaseTypes lists all release types in availability order. The index
// of a type in this slice is its rank when folding releases into a status.
var MovieReleaseTypes = []MovieReleaseType{
	ReleaseUnknown,
	ReleasePremiere,
	ReleaseLimited,
	ReleaseTheatrical,
	ReleaseDigital,
	ReleasePhysical,
	ReleaseTV,
}

// MovieRelease is one regional release record for a movie.
type MovieRelease struct {
	Country       string           `json:"country"`
	Certification string           `json:"certification"`
	ReleaseDate   string           `json:"release_date"`
	ReleaseType   MovieReleaseType `json:"release_type"`
	Note          *string          `json:"note"`
}

// MovieExtended is the full movie document stored in the media cache.
// Releases is populated from a second API call and is not part of the
// standard movie resource.
type MovieExtended struct {
	Title     string         `json:"title"`
	Year      int            `json:"year"`
	IDs       MovieIDs       `json:"ids"`
	Released  string         `json:"released"`
	Runtime   int            `json:"runtime"`
	Status    string         `json:"status"`
	UpdatedAt string         `json:"updated_at"`
	Releases  []MovieRelease `json:"releases,omitempty"`
}

// ShowExtended is the full show document stored in the media cache.
// Seasons is populated from a second API call.
type ShowExtended struct {
	Title         string   `json:"title"`
	Year          int      `json:"year"`
	IDs           ShowIDs  `json:"ids"`
	FirstAired    string   `json:"first_aired"`
	Runtime       int      `json:"runtime"`
	Status        string   `json:"status"`
	UpdatedAt     string   `json:"updated_at"`
	AiredEpisodes int      `json:"aired_episodes"`
	Seasons       []Season `json:"seasons,omitempty"`
}

// SeasonExtended is the full season document stored in the media cache.
// Show and Episodes are populated from additional lookups.
type SeasonExtended struct {
	Number        int       `json:"number"`
	IDs           SeasonIDs `json:"ids"`
	FirstAired    string    `json:"first_aired"`
	UpdatedAt     string    `json:"updated_at"`
	EpisodeCount  int       `json:"episode_count"`
	AiredEpisodes int       `json:"aired_episodes"`
	Show          *Show     `json:"show,omitempty"`
	Episodes      []Episode `json:"episodes,omitempty"`
}

// EpisodeExtended is the full episode document stored in the media cache.
type EpisodeExtended struct {
	Season      int        `json:"season"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	IDs         EpisodeIDs `json:"ids"`
	FirstAired  string     `json:"first_aired"`
	UpdatedAt   string     `json:"updated_at"`
	Runtime     int        `json:"runtime"`
	EpisodeType string     `json:"episode_type"`
}

// ListIDs identifies a user list.
type ListIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug"`
}

// List is a user list header as returned by /users/me/lists.
type List struct {
	Name      string  `json:"name"`
	UpdatedAt string  `json:"updated_at"`
	IDs       ListIDs `json:"ids"`
}

// ListItem is one entry of a user list or the watchlist. Exactly one of
// Movie, Show or Episode is set depending on Type.
type ListItem struct {
	Rank     int      `json:"rank"`
	ID       int      `json:"id"`
	ListedAt string   `json:"listed_at"`
	Notes    *string  `json:"notes"`
	Type     string   `json:"type"`
	Movie    *Movie   `json:"movie,omitempty"`
	Show     *Show    `json:"show,omitempty"`
	Episode  *Episode `json:"episode,omitempty"`
}

// CollectedMovie is one entry of the movie collection.
type CollectedMovie struct {
	CollectedAt string `json:"collected_at"`
	UpdatedAt   string `json:"updated_at"`
	Movie       Movie  `json:"movie"`
}

// CollectedEpisode is one collected episode within a collected season.
type CollectedEpisode struct {
	Number      int    `json:"number"`
	CollectedAt string `json:"collected_at"`
}

// CollectedSeason groups collected episodes by season number.
type CollectedSeason struct {
	Number   int                `json:"number"`
	Episodes []CollectedEpisode `json:"episodes"`
}

// CollectedShow is one entry of the show collection.
type CollectedShow struct {
	LastCollectedAt string            `json:"last_collected_at"`
	LastUpdatedAt   string            `json:"last_updated_at"`
	Show            Show              `json:"show"`
	Seasons         []CollectedSeason `json:"seasons"`
}

// HistoryItem is one watch-history event. Movie or Episode+Show is set
// depending on Type.
type HistoryItem struct {
	ID        int      `json:"id"`
	WatchedAt string   `json:"watched_at"`
	Action    string   `json:"action"`
	Type      string   `json:"type"`
	Movie     *Movie   `json:"movie,omitempty"`
	Episode   *Episode `json:"episode,omitempty"`
	Show      *Show    `json:"show,omitempty"`
}

// Rating is one user rating. Movie, Show, Season or Episode is set
// depending on Type.
type Rating struct {
	RatedAt string   `json:"rated_at"`
	Rating  int      `json:"rating"`
	Type    string   `json:"type"`
	Movie   *Movie   `json:"movie,omitempty"`
	Show    *Show    `json:"show,omitempty"`
	Season  *Season  `json:"season,omitempty"`
	Episode *Episode `json:"episode,omitempty"`
}

// WatchedMovie is one entry of /sync/watched/movies.
type WatchedMovie struct {
	Plays         int    `json:"plays"`
	LastWatchedAt string `json:"last_watched_at"`
	LastUpdatedAt string `json:"last_updated_at"`
	Movie         Movie  `json:"movie"`
}

// WatchedShow is one entry of /sync/watched/shows.
type WatchedShow struct {
	Plays         int     `json:"plays"`
	LastWatchedAt string  `json:"last_watched_at"`
	LastUpdatedAt string  `json:"last_updated_at"`
	ResetAt       *string `json:"reset_at"`
	Show          Show    `json:"show"`
}

// HiddenItem is one entry of a /users/hidden section.
type HiddenItem struct {
	HiddenAt string `json:"hidden_at"`
	Type     string `json:"type"`
	Movie    *Movie `json:"movie,omitempty"`
	Show     *Show  `json:"show,omitempty"`
}

// ProgressEpisode is the per-episode completion state within show progress.
type ProgressEpisode struct {
	Number        int     `json:"number"`
	Completed     bool    `json:"completed"`
	LastWatchedAt *string `json:"last_watched_at"`
}

// ProgressSeason groups episode progress by season number.
type ProgressSeason struct {
	Number   int               `json:"number"`
	Aired    int               `json:"aired"`
	Episodes []ProgressEpisode `json:"episodes"`
}

// Progress is the watched-progress summary for one show.
type Progress struct {
	Aired         int              `json:"aired"`
	Completed     int              `json:"completed"`
	LastWatchedAt *string          `json:"last_watched_at"`
	ResetAt       *string          `json:"reset_at"`
	Seasons       []ProgressSeason `json:"seasons"`
	NextEpisode   *Episode         `json:"next_episode"`
	LastEpisode   *Episode         `json:"last_episode"`
}

// ProgressShow pairs a show with its watched progress, as persisted in
// watched/progress-shows.json.
type ProgressShow struct {
	Show     Show     `json:"show"`
	Progress Progress `json:"progress"`
}

// UpNextStats holds aggregate play counts for an up-next entry.
type UpNextStats struct {
	PlayCount      int `json:"play_count"`
	MinutesLeft    int `json:"minutes_left"`
	MinutesWatched int `json:"minutes_watched"`
}

// UpNextProgress is the derived progress block of an up-next entry.
type UpNextProgress struct {
	Aired         int         `json:"aired"`
	Completed     int         `json:"completed"`
	Hidden        int         `json:"hidden"`
	LastWatchedAt *string     `json:"last_watched_at"`
	ResetAt       *string     `json:"reset_at"`
	Stats         UpNextStats `json:"stats"`
	NextEpisode   *Episode    `json:"next_episode"`
	LastEpisode   *Episode    `json:"last_episode"`
}

// UpNextShow is one entry of the derived watched/up-next.json export.
type UpNextShow struct {
	Show     Show           `json:"show"`
	Progress UpNextProgress `json:"progress"`
}

// MoviesLastActivities holds the per-category movie watermarks.
type MoviesLastActivities struct {
	WatchedAt         string `json:"watched_at"`
	CollectedAt       string `json:"collected_at"`
	RatedAt           string `json:"rated_at"`
	WatchlistedAt     string `json:"watchlisted_at"`
	FavoritedAt       string `json:"favorited_at"`
	RecommendationsAt string `json:"recommendations_at"`
	CommentedAt       string `json:"commented_at"`
	PausedAt          string `json:"paused_at"`
	HiddenAt          string `json:"hidden_at"`
}

// EpisodesLastActivities holds the per-category episode watermarks.
type EpisodesLastActivities struct {
	WatchedAt     string `json:"watched_at"`
	CollectedAt   string `json:"collected_at"`
	RatedAt       string `json:"rated_at"`
	WatchlistedAt string `json:"watchlisted_at"`
	CommentedAt   string `json:"commented_at"`
	PausedAt      string `json:"paused_at"`
}

// ShowsLastActivities holds the per-category show watermarks.
type ShowsLastActivities struct {
	RatedAt           string `json:"rated_at"`
	WatchlistedAt     string `json:"watchlisted_at"`
	FavoritedAt       string `json:"favorited_at"`
	RecommendationsAt string `json:"recommendations_at"`
	CommentedAt       string `json:"commented_at"`
	HiddenAt          string `json:"hidden_at"`
	DroppedAt         string `json:"dropped_at"`
}

// SeasonsLastActivities holds the per-category season watermarks.
type SeasonsLastActivities struct {
	RatedAt       string `json:"rated_at"`
	WatchlistedAt string `json:"watchlisted_at"`
	CommentedAt   string `json:"commented_at"`
	HiddenAt      string `json:"hidden_at"`
}

// CommentsLastActivities holds comment-related watermarks.
type CommentsLastActivities struct {
	LikedAt   string `json:"liked_at"`
	BlockedAt string `json:"blocked_at"`
}

// ListsLastActivities holds list-related watermarks.
type ListsLastActivities struct {
	LikedAt     string `json:"liked_at"`
	UpdatedAt   string `json:"updated_at"`
	CommentedAt string `json:"commented_at"`
}

// WatchlistLastActivities holds the watchlist watermark.
type WatchlistLastActivities struct {
	UpdatedAt string `json:"updated_at"`
}

// FavoritesLastActivities holds the favorites watermark.
type FavoritesLastActivities struct {
	UpdatedAt string `json:"updated_at"`
}

// AccountLastActivities holds account-level watermarks.
type AccountLastActivities struct {
	SettingsAt  string `json:"settings_at"`
	FollowedAt  string `json:"followed_at"`
	FollowingAt string `json:"following_at"`
	PendingAt   string `json:"pending_at"`
	RequestedAt string `json:"requested_at"`
}

// LastActivities is the activity snapshot returned by /sync/last_activities.
// One is fetched at the start of every sync run; the previously persisted
// copy serves as the old snapshot for freshness classification.
type LastActivities struct {
	All       string                  `json:"all"`
	Movies    MoviesLastActivities    `json:"movies"`
	Episodes  EpisodesLastActivities  `json:"episodes"`
	Shows     ShowsLastActivities     `json:"shows"`
	Seasons   SeasonsLastActivities   `json:"seasons"`
	Comments  CommentsLastActivities  `json:"comments"`
	Lists     ListsLastActivities     `json:"lists"`
	Watchlist WatchlistLastActivities `json:"watchlist"`
	Favorites FavoritesLastActivities `json:"favorites"`
	Account   AccountLastActivities   `json:"account"`
}
