package handler

import (
	"net/http"
	"strings"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/auth"
	"github.com/sakif/albumrank/internal/catalog"
	"github.com/sakif/albumrank/internal/model"
)

// CatalogHandler proxies Spotify catalog reads through the caller's own
// session. It holds no state: the bound catalog arrives on the request.
type CatalogHandler struct{}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

func principalCatalog(r *http.Request) (catalog.Catalog, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || p.Catalog == nil {
		return nil, apperror.NotAuthenticated("valid authentication required")
	}
	return p.Catalog, nil
}

// HandleSearch searches albums, tracks and artists.
//
// HTTP: GET /api/catalog/search?q=radiohead&type=album,artist&limit=10
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	cat, err := principalCatalog(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	var types []string
	for _, t := range strings.Split(r.URL.Query().Get("type"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}

	res, err := cat.Search(r.Context(), r.URL.Query().Get("q"), types, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAlbum returns one album's metadata.
//
// HTTP: GET /api/catalog/albums/{id}
func (h *CatalogHandler) HandleAlbum(w http.ResponseWriter, r *http.Request) {
	cat, err := principalCatalog(r)
	if err != nil {
		writeError(w, err)
		return
	}
	meta, err := cat.AlbumMetadata(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// TracksResponse wraps an album's track list.
type TracksResponse struct {
	Tracks []model.Track `json:"tracks"`
}

// HandleTracks returns an album's full track list.
//
// HTTP: GET /api/catalog/albums/{id}/tracks
func (h *CatalogHandler) HandleTracks(w http.ResponseWriter, r *http.Request) {
	cat, err := principalCatalog(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tracks, err := cat.TrackList(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, TracksResponse{Tracks: tracks})
}

// AlbumsResponse wraps a list of album summaries.
type AlbumsResponse struct {
	Albums []model.AlbumSummary `json:"albums"`
}

// HandleArtistAlbums lists an artist's albums.
//
// HTTP: GET /api/catalog/artists/{id}/albums?limit=5
func (h *CatalogHandler) HandleArtistAlbums(w http.ResponseWriter, r *http.Request) {
	cat, err := principalCatalog(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	albums, err := cat.ArtistAlbums(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAlbums(w, albums)
}

// HandleNewReleases lists new album releases. tracks=true attaches each
// album's track list.
//
// HTTP: GET /api/catalog/new-releases?limit=10&tracks=true
func (h *CatalogHandler) HandleNewReleases(w http.ResponseWriter, r *http.Request) {
	cat, err := principalCatalog(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	withTracks, err := queryBool(r, "tracks")
	if err != nil {
		writeError(w, err)
		return
	}
	albums, err := cat.NewReleases(r.Context(), limit, withTracks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAlbums(w, albums)
}

func writeAlbums(w http.ResponseWriter, albums []model.AlbumSummary) {
	if albums == nil {
		albums = []model.AlbumSummary{}
	}
	writeJSON(w, http.StatusOK, AlbumsResponse{Albums: albums})
}

// PlaylistsResponse wraps the signed-in user's playlists.
type PlaylistsResponse struct {
	Playlists []model.Playlist `json:"playlists"`
}

// HandlePlaylists lists the signed-in user's playlists.
//
// HTTP: GET /api/catalog/playlists?limit=50
func (h *CatalogHandler) HandlePlaylists(w http.ResponseWriter, r *http.Request) {
	cat, err := principalCatalog(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	playlists, err := cat.Playlists(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if playlists == nil {
		playlists = []model.Playlist{}
	}
	writeJSON(w, http.StatusOK, PlaylistsResponse{Playlists: playlists})
}

// PlaylistTracksResponse wraps every track of one playlist.
type PlaylistTracksResponse struct {
	Tracks []model.PlaylistTrack `json:"tracks"`
}

// HandlePlaylistTracks returns all tracks of a playlist.
//
// HTTP: GET /api/catalog/playlists/{id}/tracks
func (h *CatalogHandler) HandlePlaylistTracks(w http.ResponseWriter, r *http.Request) {
	cat, err := principalCatalog(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tracks, err := cat.PlaylistTracks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if tracks == nil {
		tracks = []model.PlaylistTrack{}
	}
	writeJSON(w, http.StatusOK, PlaylistTracksResponse{Tracks: tracks})
}
