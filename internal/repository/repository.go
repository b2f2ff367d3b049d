// Package repository declares the storage contracts the services depend on.
//
// Implementations live in sub-packages: sqlite holds sessions, mongo holds
// profiles, follow edges and posts. Store failures come back as
// apperror.Database errors. "Nothing matched" is reported through the
// boolean results so the service layer decides which domain error it means.
package repository

import (
	"context"
	"time"

	"github.com/sakif/albumrank/internal/model"
)

// ListOptions is offset pagination for list endpoints.
type ListOptions struct {
	Limit  int
	Offset int
}

// SessionRepository stores one row per browser session.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// Get returns apperror.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*model.Session, error)
	UpdateTokens(ctx context.Context, id string, tokens model.TokenSet) error
	SetUsername(ctx context.Context, id, username string) error
	Delete(ctx context.Context, id string) error
	// DeleteIdleSince removes sessions not touched since cutoff and returns
	// how many rows were removed.
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProfileRepository stores UserProfile documents and their album entries.
type ProfileRepository interface {
	// GetProfile returns apperror.ErrNotFound when no document exists.
	GetProfile(ctx context.Context, username string) (*model.UserProfile, error)
	// EnsureProfile creates an empty profile if none exists.
	EnsureProfile(ctx context.Context, username string) error
	ProfileExists(ctx context.Context, username string) (bool, error)

	// PushAlbum appends entry unless an entry with the same album id is
	// already present. pushed is false in that case.
	PushAlbum(ctx context.Context, username string, entry model.AlbumEntry) (pushed bool, err error)
	// SetAlbumFlag sets a boolean field on the matching entry.
	SetAlbumFlag(ctx context.Context, username, albumID, field string, value bool) (matched bool, err error)
	// UpdateRankedAlbum sets rank and description and clears bookmarked.
	UpdateRankedAlbum(ctx context.Context, username, albumID string, rank int, description string) (matched bool, err error)
	// PruneOrphan removes the entry if it is neither ranked nor bookmarked.
	PruneOrphan(ctx context.Context, username, albumID string) error
	// RemoveAlbum pulls the entry. removed is false if it was not present.
	RemoveAlbum(ctx context.Context, username, albumID string) (removed bool, err error)

	// SearchUsernames matches usernames containing query, case-insensitively.
	SearchUsernames(ctx context.Context, query string, limit int) ([]string, error)
}

// SocialRepository stores follow edges and posts.
type SocialRepository interface {
	AddFollowing(ctx context.Context, follower, followee string) error
	RemoveFollowing(ctx context.Context, follower, followee string) error
	Followers(ctx context.Context, username string) ([]string, error)
	CountFollowers(ctx context.Context, username string) (int, error)

	// UpsertPost creates the (owner, albumID) post or moves its postedAt.
	UpsertPost(ctx context.Context, owner, albumID string, postedAt time.Time) error
	DeletePost(ctx context.Context, owner, albumID string) error
	// AddLike and RemoveLike report found=false when the post does not exist.
	AddLike(ctx context.Context, owner, albumID, username string) (found bool, err error)
	RemoveLike(ctx context.Context, owner, albumID, username string) (found bool, err error)
	// ListPosts returns posts by any of owners, newest first.
	ListPosts(ctx context.Context, owners []string, opts ListOptions) ([]model.Post, error)
}
