// Package catalog is the Spotify Web API client used as the catalog capability.
//
// A Client is bound to exactly one access token. It is created per request
// by the session manager (see auth.SpotifyProvider.Bind) and never cached
// across users. A zero-token Client refuses every call with
// apperror.ErrNotAuthenticated.
//
// Every call is bounded by Options.Timeout and throttled by the shared
// Options.Limiter. Transport failures, timeouts and unexpected statuses are
// reported as apperror.ErrCatalogUnavailable.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/model"
)

const (
	DefaultBaseURL = "https://api.spotify.com/v1"
	DefaultTimeout = 5 * time.Second

	maxTrackPage     = 50
	maxSearchLimit   = 50
	defaultSearch    = 10
	defaultArtistTop = 5
	defaultReleases  = 15

	maxPlaylistPage  = 100
	maxPlaylistPages = 50
	releaseFanout    = 4
)

// Catalog is the full capability exposed to handlers.
type Catalog interface {
	AlbumMetadata(ctx context.Context, albumID string) (*model.AlbumMetadata, error)
	TrackList(ctx context.Context, albumID string) ([]model.Track, error)
	Search(ctx context.Context, query string, types []string, limit int) (*model.SearchResult, error)
	ArtistAlbums(ctx context.Context, artistID string, limit int) ([]model.AlbumSummary, error)
	NewReleases(ctx context.Context, limit int, withTracks bool) ([]model.AlbumSummary, error)
	Playlists(ctx context.Context, limit int) ([]model.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]model.PlaylistTrack, error)
	CurrentUser(ctx context.Context) (*model.CatalogUser, error)
}

var _ Catalog = (*Client)(nil)

// Options configures how bound clients reach Spotify.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Limiter    *rate.Limiter // shared by all bound clients; nil disables throttling
	HTTPClient *http.Client
}

// Client is a catalog capability bound to one access token.
type Client struct {
	token      string
	baseURL    string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// New binds accessToken to a client. It does not touch the network.
func New(accessToken string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		token:      accessToken,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    opts.Timeout,
		limiter:    opts.Limiter,
		httpClient: opts.HTTPClient,
	}
}

// doRequest performs an authenticated GET against the Spotify API.
func (c *Client) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	apiURL := c.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}
	return c.get(ctx, apiURL, endpoint, result)
}

// doNext follows a paging "next" link. The token is only ever sent to the
// configured API base.
func (c *Client) doNext(ctx context.Context, next string, result any) error {
	if !strings.HasPrefix(next, c.baseURL+"/") {
		return apperror.CatalogUnavailable(fmt.Errorf("catalog: next page %q is outside %s", next, c.baseURL))
	}
	return c.get(ctx, next, strings.TrimPrefix(next, c.baseURL), result)
}

// get sends one GET to apiURL, bounded by the client timeout and the shared
// limiter. endpoint only labels errors.
func (c *Client) get(ctx context.Context, apiURL, endpoint string, result any) error {
	if c == nil || c.token == "" {
		return apperror.NotAuthenticated("catalog: not bound to an authenticated session")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperror.CatalogUnavailable(fmt.Errorf("catalog: waiting for rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("catalog: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.CatalogUnavailable(fmt.Errorf("catalog: GET %s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperror.NotAuthenticated("catalog: spotify rejected the access token")
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound("catalog resource", endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperror.CatalogUnavailable(fmt.Errorf("catalog: spotify API error: status %d", resp.StatusCode))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return apperror.CatalogUnavailable(fmt.Errorf("catalog: decoding %s: %w", endpoint, err))
		}
	}
	return nil
}

// AlbumMetadata fetches the fields merged into a profile's album entries.
func (c *Client) AlbumMetadata(ctx context.Context, albumID string) (*model.AlbumMetadata, error) {
	if strings.TrimSpace(albumID) == "" {
		return nil, apperror.ValidationFailed("albumId", "album ID is required")
	}

	var album spotifyAlbum
	if err := c.doRequest(ctx, "/albums/"+url.PathEscape(albumID), nil, &album); err != nil {
		return nil, err
	}

	return &model.AlbumMetadata{
		Name:        album.Name,
		ReleaseDate: album.ReleaseDate,
		Artists:     artistNames(album.Artists),
		Image:       firstImage(album.Images),
		ExternalURL: album.ExternalURLs.Spotify,
	}, nil
}

// TrackList returns the album's tracks in disc order (first 50).
func (c *Client) TrackList(ctx context.Context, albumID string) ([]model.Track, error) {
	if strings.TrimSpace(albumID) == "" {
		return nil, apperror.ValidationFailed("albumId", "album ID is required")
	}

	q := url.Values{"limit": {strconv.Itoa(maxTrackPage)}}
	var page paging[spotifyTrack]
	if err := c.doRequest(ctx, "/albums/"+url.PathEscape(albumID)+"/tracks", q, &page); err != nil {
		return nil, err
	}

	tracks := make([]model.Track, 0, len(page.Items))
	for _, t := range page.Items {
		tracks = append(tracks, model.Track{
			ID:          t.ID,
			Name:        t.Name,
			DurationMS:  t.DurationMS,
			TrackNumber: t.TrackNumber,
			PreviewURL:  t.PreviewURL,
			Artists:     artistNames(t.Artists),
		})
	}
	return tracks, nil
}

var searchTypes = map[string]bool{"album": true, "track": true, "artist": true}

// Search queries albums, tracks and artists. Empty types means all three.
func (c *Client) Search(ctx context.Context, query string, types []string, limit int) (*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query is required")
	}
	if len(types) == 0 {
		types = []string{"album", "track", "artist"}
	}
	for _, t := range types {
		if !searchTypes[t] {
			return nil, apperror.ValidationFailed("type", fmt.Sprintf("unsupported search type %q", t))
		}
	}

	q := url.Values{
		"q":     {query},
		"type":  {strings.Join(types, ",")},
		"limit": {strconv.Itoa(model.ClampLimit(limit, defaultSearch, maxSearchLimit))},
	}
	var resp searchResponse
	if err := c.doRequest(ctx, "/search", q, &resp); err != nil {
		return nil, err
	}

	result := &model.SearchResult{
		Albums:  []model.AlbumSummary{},
		Tracks:  []model.TrackSummary{},
		Artists: []model.ArtistSummary{},
	}
	if resp.Albums != nil {
		result.Albums = summarizeAlbums(resp.Albums.Items)
	}
	if resp.Tracks != nil {
		for _, t := range resp.Tracks.Items {
			ts := model.TrackSummary{ID: t.ID, Name: t.Name, Artists: artistNames(t.Artists)}
			if t.Album != nil {
				ts.AlbumID = t.Album.ID
				ts.Album = t.Album.Name
				ts.Image = firstImage(t.Album.Images)
			}
			result.Tracks = append(result.Tracks, ts)
		}
	}
	if resp.Artists != nil {
		for _, a := range resp.Artists.Items {
			result.Artists = append(result.Artists, model.ArtistSummary{
				ID:          a.ID,
				Name:        a.Name,
				Genres:      a.Genres,
				Image:       firstImage(a.Images),
				ExternalURL: a.ExternalURLs.Spotify,
			})
		}
	}
	return result, nil
}

// ArtistAlbums lists an artist's full-length albums.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string, limit int) ([]model.AlbumSummary, error) {
	if strings.TrimSpace(artistID) == "" {
		return nil, apperror.ValidationFailed("artistId", "artist ID is required")
	}

	q := url.Values{
		"include_groups": {"album"},
		"limit":          {strconv.Itoa(model.ClampLimit(limit, defaultArtistTop, maxSearchLimit))},
	}
	var page paging[spotifyAlbum]
	if err := c.doRequest(ctx, "/artists/"+url.PathEscape(artistID)+"/albums", q, &page); err != nil {
		return nil, err
	}
	return summarizeAlbums(page.Items), nil
}

// NewReleases lists Spotify's featured new album releases. With withTracks
// each album also carries its track list; one failed track list fails the
// whole call.
func (c *Client) NewReleases(ctx context.Context, limit int, withTracks bool) ([]model.AlbumSummary, error) {
	q := url.Values{"limit": {strconv.Itoa(model.ClampLimit(limit, defaultReleases, maxSearchLimit))}}
	var resp newReleasesResponse
	if err := c.doRequest(ctx, "/browse/new-releases", q, &resp); err != nil {
		return nil, err
	}
	albums := summarizeAlbums(resp.Albums.Items)
	if !withTracks {
		return albums, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(releaseFanout)
	for i := range albums {
		g.Go(func() error {
			tracks, err := c.TrackList(gctx, albums[i].ID)
			if err != nil {
				return err
			}
			albums[i].Tracks = tracks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return albums, nil
}

// Playlists lists the signed-in user's playlists (first page, at most 50).
func (c *Client) Playlists(ctx context.Context, limit int) ([]model.Playlist, error) {
	q := url.Values{"limit": {strconv.Itoa(model.ClampLimit(limit, maxSearchLimit, maxSearchLimit))}}
	var page paging[spotifyPlaylist]
	if err := c.doRequest(ctx, "/me/playlists", q, &page); err != nil {
		return nil, err
	}

	playlists := make([]model.Playlist, 0, len(page.Items))
	for _, p := range page.Items {
		owner := p.Owner.DisplayName
		if owner == "" {
			owner = p.Owner.ID
		}
		playlists = append(playlists, model.Playlist{
			ID:          p.ID,
			Name:        p.Name,
			Owner:       owner,
			Image:       firstImage(p.Images),
			TrackCount:  p.Tracks.Total,
			ExternalURL: p.ExternalURLs.Spotify,
		})
	}
	return playlists, nil
}

// PlaylistTracks returns every track of a playlist, following Spotify's
// "next" links. Entries Spotify can no longer resolve are skipped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]model.PlaylistTrack, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, apperror.ValidationFailed("playlistId", "playlist ID is required")
	}

	q := url.Values{"limit": {strconv.Itoa(maxPlaylistPage)}}
	var page paging[spotifyPlaylistItem]
	if err := c.doRequest(ctx, "/playlists/"+url.PathEscape(playlistID)+"/tracks", q, &page); err != nil {
		return nil, err
	}

	tracks := make([]model.PlaylistTrack, 0, page.Total)
	for pages := 1; ; pages++ {
		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			t := model.PlaylistTrack{
				ID:      item.Track.ID,
				Name:    item.Track.Name,
				Artists: artistNames(item.Track.Artists),
				AddedAt: item.AddedAt,
			}
			if item.Track.Album != nil {
				t.AlbumID = item.Track.Album.ID
				t.Album = item.Track.Album.Name
				t.Image = firstImage(item.Track.Album.Images)
			}
			tracks = append(tracks, t)
		}

		if page.Next == nil || *page.Next == "" {
			return tracks, nil
		}
		if pages >= maxPlaylistPages {
			return nil, apperror.CatalogUnavailable(fmt.Errorf("catalog: playlist %s exceeds %d pages", playlistID, maxPlaylistPages))
		}

		next := *page.Next
		page = paging[spotifyPlaylistItem]{}
		if err := c.doNext(ctx, next, &page); err != nil {
			return nil, err
		}
	}
}

// CurrentUser returns the Spotify account the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*model.CatalogUser, error) {
	var u spotifyUser
	if err := c.doRequest(ctx, "/me", nil, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, apperror.CatalogUnavailable(fmt.Errorf("catalog: spotify returned a user without an ID"))
	}
	return &model.CatalogUser{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}, nil
}

// summarizeAlbums flattens albums to the first artist and first image.
func summarizeAlbums(albums []spotifyAlbum) []model.AlbumSummary {
	out := make([]model.AlbumSummary, 0, len(albums))
	for _, a := range albums {
		s := model.AlbumSummary{
			ID:          a.ID,
			Name:        a.Name,
			ReleaseDate: a.ReleaseDate,
			Image:       firstImage(a.Images),
			ExternalURL: a.ExternalURLs.Spotify,
		}
		if len(a.Artists) > 0 {
			s.Artist = a.Artists[0].Name
		}
		out = append(out, s)
	}
	return out
}
