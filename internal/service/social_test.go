package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/albumrank/internal/apperror"
)

func newTestSocialService(store *fakeStore) *SocialService {
	return NewSocialService(store, store, discardLogger())
}

func TestFollow_Idempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestSocialService(store)
	ctx := context.Background()
	require.NoError(t, store.EnsureProfile(ctx, "bob"))

	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	once, err := svc.Following(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	twice, err := svc.Following(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"bob"}, once)
	assert.Equal(t, once, twice)

	followers, err := svc.Followers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, followers)
}

func TestUnfollow_Idempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestSocialService(store)
	ctx := context.Background()
	require.NoError(t, store.EnsureProfile(ctx, "bob"))
	require.NoError(t, svc.Follow(ctx, "alice", "bob"))

	require.NoError(t, svc.Unfollow(ctx, "alice", "bob"))
	require.NoError(t, svc.Unfollow(ctx, "alice", "bob"))

	following, err := svc.Following(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, following)
}

func TestFollow_InvalidEdges(t *testing.T) {
	svc := newTestSocialService(newFakeStore())
	ctx := context.Background()

	tests := []struct {
		name               string
		follower, followee string
	}{
		{"self", "alice", "alice"},
		{"empty follower", "", "bob"},
		{"empty followee", "alice", " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(svc.Follow(ctx, tt.follower, tt.followee), apperror.ErrInvalidEdge))
			assert.True(t, errors.Is(svc.Unfollow(ctx, tt.follower, tt.followee), apperror.ErrInvalidEdge))
		})
	}
}

func TestFollow_TrimsNames(t *testing.T) {
	store := newFakeStore()
	svc := newTestSocialService(store)
	ctx := context.Background()
	require.NoError(t, store.EnsureProfile(ctx, "bob"))

	require.NoError(t, svc.Follow(ctx, "  alice ", " bob\t"))

	following, err := svc.Following(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, following)

	followers, err := svc.Followers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, followers)

	require.NoError(t, svc.Unfollow(ctx, "alice ", " bob"))
	following, err = svc.Following(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, following)

	assert.True(t, errors.Is(svc.Follow(ctx, "alice", " alice "), apperror.ErrInvalidEdge))
}

func TestFollow_UnknownUser(t *testing.T) {
	svc := newTestSocialService(newFakeStore())

	err := svc.Follow(context.Background(), "alice", "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestFollowers_UnknownUser(t *testing.T) {
	svc := newTestSocialService(newFakeStore())

	_, err := svc.Followers(context.Background(), "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = svc.Following(context.Background(), "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestLikeUnlike_Idempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestSocialService(store)
	ctx := context.Background()
	require.NoError(t, store.UpsertPost(ctx, "bob", "A1", time.Now()))

	require.NoError(t, svc.Like(ctx, "alice", "bob", "A1"))
	require.NoError(t, svc.Like(ctx, "alice", "bob", "A1"))
	assert.Equal(t, []string{"alice"}, store.posts[postKey("bob", "A1")].LikedBy)

	require.NoError(t, svc.Unlike(ctx, "alice", "bob", "A1"))
	require.NoError(t, svc.Unlike(ctx, "alice", "bob", "A1"))
	require.NoError(t, svc.Unlike(ctx, "carol", "bob", "A1"), "unliking as a non-liker is a no-op")
	assert.Empty(t, store.posts[postKey("bob", "A1")].LikedBy)
}

func TestLike_MissingPost(t *testing.T) {
	svc := newTestSocialService(newFakeStore())

	err := svc.Like(context.Background(), "alice", "bob", "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	err = svc.Unlike(context.Background(), "alice", "bob", "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestFeed_PagesInRecencyOrder(t *testing.T) {
	store := newFakeStore()
	svc := newTestSocialService(store)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, u := range []string{"bob", "carol", "dave"} {
		require.NoError(t, store.EnsureProfile(ctx, u))
	}
	require.NoError(t, svc.Follow(ctx, "alice", "bob"))
	require.NoError(t, svc.Follow(ctx, "alice", "carol"))

	require.NoError(t, store.UpsertPost(ctx, "bob", "A1", t0))
	require.NoError(t, store.UpsertPost(ctx, "carol", "A2", t0.Add(time.Minute)))
	require.NoError(t, store.UpsertPost(ctx, "dave", "A3", t0.Add(2*time.Minute))) // not followed

	first, err := svc.Feed(ctx, "alice", 1, 0)
	require.NoError(t, err)
	second, err := svc.Feed(ctx, "alice", 1, 1)
	require.NoError(t, err)
	third, err := svc.Feed(ctx, "alice", 1, 2)
	require.NoError(t, err)

	require.Len(t, first.Posts, 1)
	require.Len(t, second.Posts, 1)
	assert.Equal(t, "A2", first.Posts[0].AlbumID)
	assert.Equal(t, "A1", second.Posts[0].AlbumID)
	assert.NotEqual(t, first.Posts[0].ID, second.Posts[0].ID)
	assert.Empty(t, third.Posts)
	assert.Equal(t, 2, third.Skip)
}

func TestFeed_Validation(t *testing.T) {
	svc := newTestSocialService(newFakeStore())
	ctx := context.Background()

	_, err := svc.Feed(ctx, "alice", 10, -1)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	page, err := svc.Feed(ctx, "nobody", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Posts)
	assert.Empty(t, page.Posts)
}

func TestFeed_ReportsAppliedLimit(t *testing.T) {
	store := newFakeStore()
	svc := newTestSocialService(store)
	ctx := context.Background()
	require.NoError(t, store.EnsureProfile(ctx, "alice"))

	tests := []struct{ in, want int }{
		{0, DefaultFeedLimit},
		{-3, DefaultFeedLimit},
		{7, 7},
		{MaxFeedLimit + 50, MaxFeedLimit},
	}
	for _, tt := range tests {
		page, err := svc.Feed(ctx, "alice", tt.in, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, page.Limit, "limit %d", tt.in)
	}
}
