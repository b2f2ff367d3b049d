package model

// AlbumMetadata is the catalog data merged into an album entry on read.
type AlbumMetadata struct {
	Name        string   `json:"name,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Artists     []string `json:"artists,omitempty"`
	Image       string   `json:"image,omitempty"`
	ExternalURL string   `json:"externalUrl,omitempty"`
}

// Track is one entry of an album's track list.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DurationMS  int      `json:"durationMs"`
	TrackNumber int      `json:"trackNumber"`
	PreviewURL  string   `json:"previewUrl,omitempty"`
	Artists     []string `json:"artists"`
}

// AlbumSummary is the flattened album shape returned by searches and listings.
// Tracks is only filled when the caller asks for track lists.
type AlbumSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Image       string  `json:"image,omitempty"`
	ExternalURL string  `json:"externalUrl,omitempty"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// Playlist is one of the signed-in user's Spotify playlists.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner,omitempty"`
	Image       string `json:"image,omitempty"`
	TrackCount  int    `json:"trackCount"`
	ExternalURL string `json:"externalUrl,omitempty"`
}

// PlaylistTrack is a track as it appears in a playlist.
type PlaylistTrack struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	AlbumID string   `json:"albumId,omitempty"`
	Album   string   `json:"album,omitempty"`
	Image   string   `json:"image,omitempty"`
	AddedAt string   `json:"addedAt,omitempty"`
}

// ArtistSummary is an artist search hit.
type ArtistSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Genres      []string `json:"genres,omitempty"`
	Image       string   `json:"image,omitempty"`
	ExternalURL string   `json:"externalUrl,omitempty"`
}

// TrackSummary is a track search hit.
type TrackSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	AlbumID string   `json:"albumId,omitempty"`
	Album   string   `json:"album,omitempty"`
	Image   string   `json:"image,omitempty"`
}

// SearchResult groups catalog search hits by type.
type SearchResult struct {
	Albums  []AlbumSummary  `json:"albums"`
	Tracks  []TrackSummary  `json:"tracks"`
	Artists []ArtistSummary `json:"artists"`
}

// CatalogUser is the Spotify account behind a session.
type CatalogUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}
