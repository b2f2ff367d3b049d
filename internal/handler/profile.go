package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/auth"
	"github.com/sakif/albumrank/internal/catalog"
	"github.com/sakif/albumrank/internal/model"
)

// ProfileManager is the album side of the mutation engine.
type ProfileManager interface {
	GetProfile(ctx context.Context, cat catalog.Catalog, username string) (*model.ProfileView, error)
	ToggleFlag(ctx context.Context, username, albumID, field string, value bool) error
	EditAlbum(ctx context.Context, username, albumID string, rank int, description string) error
	DeleteAlbum(ctx context.Context, username, albumID string) error
	SearchUsers(ctx context.Context, query string, limit int) ([]string, error)
}

// ProfileHandler serves profiles and album mutations under /api/users.
type ProfileHandler struct {
	profiles ProfileManager
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profiles ProfileManager, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// UsersResponse lists usernames.
type UsersResponse struct {
	Users []string `json:"users"`
}

// HandleSearch finds users by substring.
//
// HTTP: GET /api/users?q=ali&limit=10
func (h *ProfileHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	names, err := h.profiles.SearchUsers(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: names})
}

// HandleGet returns a profile with catalog metadata merged into each album.
// Any signed-in user may read any profile.
//
// HTTP: GET /api/users/{username}
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated("valid authentication required"))
		return
	}

	view, err := h.profiles.GetProfile(r.Context(), p.Catalog, r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// EditAlbumRequest is the body of PUT /api/users/{username}/albums/{albumId}.
type EditAlbumRequest struct {
	Rank        *int   `json:"rank"`
	Description string `json:"description"`
}

// HandleEditAlbum ranks an album.
//
// HTTP: PUT /api/users/{username}/albums/{albumId}
// REQUEST BODY: {"rank": 5, "description": "great"}
func (h *ProfileHandler) HandleEditAlbum(w http.ResponseWriter, r *http.Request) {
	username, err := requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req EditAlbumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Rank == nil {
		writeError(w, apperror.ValidationFailed("rank", "rank is required"))
		return
	}

	if err := h.profiles.EditAlbum(r.Context(), username, r.PathValue("albumId"), *req.Rank, req.Description); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "album ranked"})
}

// ToggleFlagRequest is the body of PATCH /api/users/{username}/albums/{albumId}.
type ToggleFlagRequest struct {
	Update string `json:"update"` // "favorite" or "bookmarked"
	Flag   *bool  `json:"flag"`
}

// HandleToggleFlag sets favorite or bookmarked on an album.
//
// HTTP: PATCH /api/users/{username}/albums/{albumId}
// REQUEST BODY: {"update": "bookmarked", "flag": true}
func (h *ProfileHandler) HandleToggleFlag(w http.ResponseWriter, r *http.Request) {
	username, err := requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ToggleFlagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Flag == nil {
		writeError(w, apperror.ValidationFailed("flag", "flag is required"))
		return
	}

	if err := h.profiles.ToggleFlag(r.Context(), username, r.PathValue("albumId"), req.Update, *req.Flag); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "album updated"})
}

// HandleDeleteAlbum removes an album. A second delete answers 404.
//
// HTTP: DELETE /api/users/{username}/albums/{albumId}
func (h *ProfileHandler) HandleDeleteAlbum(w http.ResponseWriter, r *http.Request) {
	username, err := requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.profiles.DeleteAlbum(r.Context(), username, r.PathValue("albumId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "album deleted"})
}

// requireOwner returns {username} from the path if it is the signed-in user.
func requireOwner(r *http.Request) (string, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return "", apperror.NotAuthenticated("valid authentication required")
	}
	username := r.PathValue("username")
	if username != p.Username {
		return "", apperror.Forbidden("you can only modify your own profile")
	}
	return username, nil
}
