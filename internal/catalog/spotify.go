// Spotify Web API response types, trimmed to the fields we read.
//
// Reference: https://developer.spotify.com/documentation/web-api/reference/
package catalog

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

type spotifyArtist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Genres       []string       `json:"genres"`
	Images       []spotifyImage `json:"images"`
	ExternalURLs externalURLs   `json:"external_urls"`
}

type spotifyAlbum struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ReleaseDate  string          `json:"release_date"`
	TotalTracks  int             `json:"total_tracks"`
	Artists      []spotifyArtist `json:"artists"`
	Images       []spotifyImage  `json:"images"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

type spotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	DurationMS  int             `json:"duration_ms"`
	TrackNumber int             `json:"track_number"`
	PreviewURL  string          `json:"preview_url"`
	Artists     []spotifyArtist `json:"artists"`
	Album       *spotifyAlbum   `json:"album,omitempty"`
}

type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// paging is Spotify's generic paginated envelope.
type paging[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type searchResponse struct {
	Albums  *paging[spotifyAlbum]  `json:"albums"`
	Tracks  *paging[spotifyTrack]  `json:"tracks"`
	Artists *paging[spotifyArtist] `json:"artists"`
}

type spotifyPlaylist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Images       []spotifyImage `json:"images"`
	ExternalURLs externalURLs   `json:"external_urls"`
	Owner        struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// spotifyPlaylistItem wraps a playlist entry. Track is null for entries
// Spotify can no longer resolve.
type spotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *spotifyTrack `json:"track"`
}

type newReleasesResponse struct {
	Albums paging[spotifyAlbum] `json:"albums"`
}

func firstImage(images []spotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func artistNames(artists []spotifyArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}
