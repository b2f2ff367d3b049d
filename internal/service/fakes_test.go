package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/catalog"
	"github.com/sakif/albumrank/internal/model"
	"github.com/sakif/albumrank/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory ProfileRepository + SocialRepository. It applies
// the same single-document semantics as the Mongo store.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*model.UserProfile
	posts    map[string]*model.Post // keyed by owner + "/" + albumId
	err      error                  // returned by every call when set
}

var (
	_ repository.ProfileRepository = (*fakeStore)(nil)
	_ repository.SocialRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*model.UserProfile),
		posts:    make(map[string]*model.Post),
	}
}

func postKey(owner, albumID string) string { return owner + "/" + albumID }

func (f *fakeStore) entryIndex(p *model.UserProfile, albumID string) int {
	for i, a := range p.Albums {
		if a.AlbumID == albumID {
			return i
		}
	}
	return -1
}

func (f *fakeStore) GetProfile(ctx context.Context, username string) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return nil, apperror.ProfileNotFound(username)
	}
	cp := *p
	cp.Albums = append([]model.AlbumEntry{}, p.Albums...)
	cp.Following = append([]string{}, p.Following...)
	return &cp, nil
}

func (f *fakeStore) EnsureProfile(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.profiles[username]; !ok {
		f.profiles[username] = &model.UserProfile{
			Username:  username,
			Albums:    []model.AlbumEntry{},
			Following: []string{},
			CreatedAt: time.Now(),
		}
	}
	return nil
}

func (f *fakeStore) ProfileExists(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.profiles[username]
	return ok, nil
}

func (f *fakeStore) PushAlbum(ctx context.Context, username string, entry model.AlbumEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.profiles[username]
	if !ok || f.entryIndex(p, entry.AlbumID) >= 0 {
		return false, nil
	}
	p.Albums = append(p.Albums, entry)
	return true, nil
}

func (f *fakeStore) SetAlbumFlag(ctx context.Context, username, albumID, field string, value bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return false, nil
	}
	i := f.entryIndex(p, albumID)
	if i < 0 {
		return false, nil
	}
	switch field {
	case model.FlagBookmarked:
		p.Albums[i].Bookmarked = value
	case model.FlagFavorite:
		p.Albums[i].Favorite = value
	}
	return true, nil
}

func (f *fakeStore) UpdateRankedAlbum(ctx context.Context, username, albumID string, rank int, description string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return false, nil
	}
	i := f.entryIndex(p, albumID)
	if i < 0 {
		return false, nil
	}
	r := rank
	p.Albums[i].Rank = &r
	p.Albums[i].Description = description
	p.Albums[i].Bookmarked = false
	return true, nil
}

func (f *fakeStore) PruneOrphan(ctx context.Context, username, albumID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return nil
	}
	kept := p.Albums[:0]
	for _, a := range p.Albums {
		if a.AlbumID == albumID && !a.Bookmarked && a.Rank == nil {
			continue
		}
		kept = append(kept, a)
	}
	p.Albums = kept
	return nil
}

func (f *fakeStore) RemoveAlbum(ctx context.Context, username, albumID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return false, nil
	}
	i := f.entryIndex(p, albumID)
	if i < 0 {
		return false, nil
	}
	p.Albums = append(p.Albums[:i], p.Albums[i+1:]...)
	return true, nil
}

func (f *fakeStore) SearchUsernames(ctx context.Context, query string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var names []string
	for name := range f.profiles {
		if strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (f *fakeStore) AddFollowing(ctx context.Context, follower, followee string) error {
	if err := f.EnsureProfile(ctx, follower); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[follower]
	for _, u := range p.Following {
		if u == followee {
			return nil
		}
	}
	p.Following = append(p.Following, followee)
	return nil
}

func (f *fakeStore) RemoveFollowing(ctx context.Context, follower, followee string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, ok := f.profiles[follower]
	if !ok {
		return nil
	}
	kept := p.Following[:0]
	for _, u := range p.Following {
		if u != followee {
			kept = append(kept, u)
		}
	}
	p.Following = kept
	return nil
}

func (f *fakeStore) Followers(ctx context.Context, username string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	names := []string{}
	for name, p := range f.profiles {
		for _, u := range p.Following {
			if u == username {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeStore) CountFollowers(ctx context.Context, username string) (int, error) {
	names, err := f.Followers(ctx, username)
	return len(names), err
}

func (f *fakeStore) UpsertPost(ctx context.Context, owner, albumID string, postedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := postKey(owner, albumID)
	if p, ok := f.posts[key]; ok {
		p.PostedAt = postedAt
		return nil
	}
	f.posts[key] = &model.Post{
		ID:       xid.New().String(),
		Owner:    owner,
		AlbumID:  albumID,
		LikedBy:  []string{},
		PostedAt: postedAt,
	}
	return nil
}

func (f *fakeStore) DeletePost(ctx context.Context, owner, albumID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.posts, postKey(owner, albumID))
	return nil
}

func (f *fakeStore) AddLike(ctx context.Context, owner, albumID, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.posts[postKey(owner, albumID)]
	if !ok {
		return false, nil
	}
	if !p.LikedByUser(username) {
		p.LikedBy = append(p.LikedBy, username)
	}
	return true, nil
}

func (f *fakeStore) RemoveLike(ctx context.Context, owner, albumID, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.posts[postKey(owner, albumID)]
	if !ok {
		return false, nil
	}
	kept := p.LikedBy[:0]
	for _, u := range p.LikedBy {
		if u != username {
			kept = append(kept, u)
		}
	}
	p.LikedBy = kept
	return true, nil
}

func (f *fakeStore) ListPosts(ctx context.Context, owners []string, opts repository.ListOptions) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[string]bool, len(owners))
	for _, o := range owners {
		wanted[o] = true
	}
	posts := []model.Post{}
	for _, p := range f.posts {
		if wanted[p.Owner] {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].PostedAt.Equal(posts[j].PostedAt) {
			return posts[i].PostedAt.After(posts[j].PostedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	if opts.Offset >= len(posts) {
		return []model.Post{}, nil
	}
	posts = posts[opts.Offset:]
	if len(posts) > opts.Limit {
		posts = posts[:opts.Limit]
	}
	return posts, nil
}

// album returns the stored entry for albumID, or nil.
func (f *fakeStore) album(username, albumID string) *model.AlbumEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[username]
	if !ok {
		return nil
	}
	for _, a := range p.Albums {
		if a.AlbumID == albumID {
			cp := a
			return &cp
		}
	}
	return nil
}

// fakeSessionRepo is an in-memory SessionRepository.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	nextID   int
	getErr   error
}

var _ repository.SessionRepository = (*fakeSessionRepo)(nil)

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionRepo) Create(ctx context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = "session-" + string(rune('0'+f.nextID))
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionRepo) UpdateTokens(ctx context.Context, id string, tokens model.TokenSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return apperror.NotFound("session", id)
	}
	s.Tokens = tokens
	s.UpdatedAt = time.Now()
	return nil
}

func (f *fakeSessionRepo) SetUsername(ctx context.Context, id, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return apperror.NotFound("session", id)
	}
	s.Username = username
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// fakeProvider counts token endpoint calls.
type fakeProvider struct {
	exchangeErr error
	refreshErr  error
	refreshes   atomic.Int32
	catalog     catalog.Catalog
	now         func() time.Time
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (model.TokenSet, error) {
	if f.exchangeErr != nil {
		return model.TokenSet{}, f.exchangeErr
	}
	return model.TokenSet{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		ExpiresAt:    f.now().Add(time.Hour),
	}, nil
}

func (f *fakeProvider) EnsureValid(ctx context.Context, ts model.TokenSet) (model.TokenSet, bool, error) {
	if ts.Usable(f.now()) {
		return ts, false, nil
	}
	f.refreshes.Add(1)
	if f.refreshErr != nil {
		return ts, false, f.refreshErr
	}
	return model.TokenSet{
		AccessToken:  ts.AccessToken + "-refreshed",
		RefreshToken: ts.RefreshToken,
		ExpiresAt:    f.now().Add(time.Hour),
	}, true, nil
}

func (f *fakeProvider) Bind(ts model.TokenSet) catalog.Catalog {
	return f.catalog
}

// fakeCatalog serves album metadata from a map and tracks concurrency.
type fakeCatalog struct {
	albums    map[string]model.AlbumMetadata
	user      *model.CatalogUser
	userErr   error
	albumErr  error
	delay     time.Duration
	calls     atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

var _ catalog.Catalog = (*fakeCatalog)(nil)

func (f *fakeCatalog) AlbumMetadata(ctx context.Context, albumID string) (*model.AlbumMetadata, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.albumErr != nil {
		return nil, f.albumErr
	}
	meta, ok := f.albums[albumID]
	if !ok {
		return nil, apperror.NotFound("album", albumID)
	}
	return &meta, nil
}

func (f *fakeCatalog) TrackList(ctx context.Context, albumID string) ([]model.Track, error) {
	return []model.Track{}, nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string, types []string, limit int) (*model.SearchResult, error) {
	return &model.SearchResult{}, nil
}

func (f *fakeCatalog) ArtistAlbums(ctx context.Context, artistID string, limit int) ([]model.AlbumSummary, error) {
	return []model.AlbumSummary{}, nil
}

func (f *fakeCatalog) NewReleases(ctx context.Context, limit int, withTracks bool) ([]model.AlbumSummary, error) {
	return []model.AlbumSummary{}, nil
}

func (f *fakeCatalog) Playlists(ctx context.Context, limit int) ([]model.Playlist, error) {
	return []model.Playlist{}, nil
}

func (f *fakeCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]model.PlaylistTrack, error) {
	return []model.PlaylistTrack{}, nil
}

func (f *fakeCatalog) CurrentUser(ctx context.Context) (*model.CatalogUser, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func intPtr(v int) *int { return &v }
