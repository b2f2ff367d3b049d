package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/auth"
	"github.com/sakif/albumrank/internal/model"
)

// SocialGraph is the follow/like/feed side of the mutation engine.
type SocialGraph interface {
	Follow(ctx context.Context, follower, followee string) error
	Unfollow(ctx context.Context, follower, followee string) error
	Followers(ctx context.Context, username string) ([]string, error)
	Following(ctx context.Context, username string) ([]string, error)
	Like(ctx context.Context, username, owner, albumID string) error
	Unlike(ctx context.Context, username, owner, albumID string) error
	Feed(ctx context.Context, username string, limit, skip int) (*model.FeedPage, error)
}

// SocialHandler serves follow edges, likes and the feed.
type SocialHandler struct {
	social SocialGraph
	logger *slog.Logger
}

// NewSocialHandler creates a SocialHandler.
func NewSocialHandler(social SocialGraph, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{social: social, logger: logger}
}

// HandleFollowers lists who follows {username}.
//
// HTTP: GET /api/users/{username}/followers
func (h *SocialHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	names, err := h.social.Followers(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeUsers(w, names)
}

// HandleFollowing lists who {username} follows.
//
// HTTP: GET /api/users/{username}/following
func (h *SocialHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	names, err := h.social.Following(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeUsers(w, names)
}

func writeUsers(w http.ResponseWriter, names []string) {
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: names})
}

// HandleFollow adds {followee} to the signed-in user's following list.
//
// HTTP: POST /api/users/{username}/following/{followee}
func (h *SocialHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	username, err := requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.social.Follow(r.Context(), username, r.PathValue("followee")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "followed"})
}

// HandleUnfollow removes {followee} from the signed-in user's following list.
//
// HTTP: DELETE /api/users/{username}/following/{followee}
func (h *SocialHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	username, err := requireOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.social.Unfollow(r.Context(), username, r.PathValue("followee")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "unfollowed"})
}

// HandleLike likes a post as the signed-in user.
//
// HTTP: POST /api/posts/{owner}/{albumId}/likes
func (h *SocialHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, h.social.Like, "liked")
}

// HandleUnlike withdraws the signed-in user's like.
//
// HTTP: DELETE /api/posts/{owner}/{albumId}/likes
func (h *SocialHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, h.social.Unlike, "unliked")
}

func (h *SocialHandler) like(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, username, owner, albumID string) error,
	message string,
) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated("valid authentication required"))
		return
	}
	if err := apply(r.Context(), p.Username, r.PathValue("owner"), r.PathValue("albumId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// FeedItem is one post as seen by the signed-in user.
type FeedItem struct {
	ID        string    `json:"id"`
	Owner     string    `json:"postOwner"`
	AlbumID   string    `json:"albumId"`
	PostedAt  time.Time `json:"postedAt"`
	LikeCount int       `json:"likeCount"`
	Liked     bool      `json:"liked"`
}

// FeedResponse is one page of the feed. Limit is the page size the server
// applied, which may differ from the requested one.
type FeedResponse struct {
	Posts []FeedItem `json:"posts"`
	Limit int        `json:"limit"`
	Skip  int        `json:"skip"`
}

// HandleFeed returns posts by the users the signed-in user follows, newest
// first.
//
// HTTP: GET /api/feed?limit=20&skip=0
func (h *SocialHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated("valid authentication required"))
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	skip, err := queryInt(r, "skip")
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.social.Feed(r.Context(), p.Username, limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]FeedItem, 0, len(page.Posts))
	for _, post := range page.Posts {
		items = append(items, FeedItem{
			ID:        post.ID,
			Owner:     post.Owner,
			AlbumID:   post.AlbumID,
			PostedAt:  post.PostedAt,
			LikeCount: post.LikeCount(),
			Liked:     post.LikedByUser(p.Username),
		})
	}
	writeJSON(w, http.StatusOK, FeedResponse{Posts: items, Limit: page.Limit, Skip: page.Skip})
}
