package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/catalog"
	"github.com/sakif/albumrank/internal/model"
	"github.com/sakif/albumrank/internal/repository"
)

const (
	DefaultEnrichConcurrency = 8
	DefaultSearchLimit       = 10
	MaxSearchLimit           = 50
)

// ProfileService applies album mutations to one user's profile document and
// builds the enriched profile view.
//
// Every write is a single filtered update on the store, so concurrent
// toggles of different albums for the same user never overwrite each other.
type ProfileService struct {
	profiles    repository.ProfileRepository
	social      repository.SocialRepository
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewProfileService creates a ProfileService. concurrency bounds the number
// of catalog calls one profile read may have in flight.
func NewProfileService(
	profiles repository.ProfileRepository,
	social repository.SocialRepository,
	concurrency int,
	logger *slog.Logger,
) *ProfileService {
	if concurrency < 1 {
		concurrency = DefaultEnrichConcurrency
	}
	return &ProfileService{
		profiles:    profiles,
		social:      social,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// GetProfile loads username's profile and merges catalog metadata into every
// album entry. If any catalog call fails the whole read fails: a partially
// enriched profile is never returned.
func (s *ProfileService) GetProfile(ctx context.Context, cat catalog.Catalog, username string) (*model.ProfileView, error) {
	if err := requireName("username", username); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %s: %w", username, err)
	}

	albums, err := s.enrich(ctx, cat, profile.Albums)
	if err != nil {
		return nil, fmt.Errorf("service/profile: enriching %s: %w", username, err)
	}

	followers, err := s.social.CountFollowers(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: counting followers of %s: %w", username, err)
	}

	stats := model.ComputeStats(profile.Albums)
	return &model.ProfileView{
		Username:        profile.Username,
		Albums:          albums,
		RankedCount:     stats.RankedCount,
		BookmarkedCount: stats.BookmarkedCount,
		AvgRank:         stats.AvgRank,
		FollowingCount:  len(profile.Following),
		FollowerCount:   followers,
	}, nil
}

// enrich fetches metadata for every entry with at most s.concurrency calls
// in flight. Results keep the stored order.
func (s *ProfileService) enrich(ctx context.Context, cat catalog.Catalog, entries []model.AlbumEntry) ([]model.AlbumView, error) {
	views := make([]model.AlbumView, len(entries))
	if len(entries) == 0 {
		return views, nil
	}
	if cat == nil {
		return nil, apperror.NotAuthenticated("catalog access requires a signed-in session")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, entry := range entries {
		views[i].AlbumEntry = entry
		g.Go(func() error {
			meta, err := cat.AlbumMetadata(gctx, entry.AlbumID)
			if err != nil {
				return err
			}
			views[i].AlbumMetadata = *meta
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, asCatalogFailure(err)
	}
	return views, nil
}

// asCatalogFailure keeps NotAuthenticated (the user must sign in again) and
// folds every other enrichment failure into CatalogUnavailable.
func asCatalogFailure(err error) error {
	switch {
	case errors.Is(err, apperror.ErrNotAuthenticated), errors.Is(err, apperror.ErrCatalogUnavailable):
		return err
	default:
		return apperror.CatalogUnavailable(err)
	}
}

// ToggleFlag sets favorite or bookmarked on an album entry.
//
//   - bookmarked=true adds {albumId, bookmarked:true} if the album is not in
//     the collection yet; an existing entry is left alone.
//   - bookmarked=false clears the flag and prunes the entry if it has no rank.
//   - favorite updates the existing entry or fails with UpdateNotFound.
func (s *ProfileService) ToggleFlag(ctx context.Context, username, albumID, field string, value bool) error {
	if err := requireName("username", username); err != nil {
		return err
	}
	if err := requireName("albumId", albumID); err != nil {
		return err
	}

	switch field {
	case model.FlagBookmarked:
		if value {
			return s.bookmark(ctx, username, albumID)
		}
		return s.unbookmark(ctx, username, albumID)
	case model.FlagFavorite:
		matched, err := s.profiles.SetAlbumFlag(ctx, username, albumID, model.FlagFavorite, value)
		if err != nil {
			return fmt.Errorf("service/profile: setting favorite: %w", err)
		}
		if !matched {
			return apperror.UpdateNotFound(username, albumID)
		}
		s.logger.Info("album favorite set",
			slog.String("username", username),
			slog.String("albumID", albumID),
			slog.Bool("value", value),
		)
		return nil
	default:
		return apperror.ValidationFailed("flag", fmt.Sprintf("flag must be %q or %q", model.FlagFavorite, model.FlagBookmarked))
	}
}

func (s *ProfileService) bookmark(ctx context.Context, username, albumID string) error {
	if err := s.profiles.EnsureProfile(ctx, username); err != nil {
		return fmt.Errorf("service/profile: ensuring profile: %w", err)
	}
	pushed, err := s.profiles.PushAlbum(ctx, username, model.AlbumEntry{AlbumID: albumID, Bookmarked: true})
	if err != nil {
		return fmt.Errorf("service/profile: bookmarking: %w", err)
	}
	if pushed {
		s.logger.Info("album bookmarked",
			slog.String("username", username),
			slog.String("albumID", albumID),
		)
	}
	return nil
}

func (s *ProfileService) unbookmark(ctx context.Context, username, albumID string) error {
	matched, err := s.profiles.SetAlbumFlag(ctx, username, albumID, model.FlagBookmarked, false)
	if err != nil {
		return fmt.Errorf("service/profile: clearing bookmark: %w", err)
	}
	if !matched {
		return apperror.UpdateNotFound(username, albumID)
	}
	if err := s.profiles.PruneOrphan(ctx, username, albumID); err != nil {
		return fmt.Errorf("service/profile: pruning: %w", err)
	}
	s.logger.Info("album bookmark cleared",
		slog.String("username", username),
		slog.String("albumID", albumID),
	)
	return nil
}

// EditAlbum ranks an album. An existing entry gets the new rank and
// description and loses its bookmark; a missing one is appended. Either way
// the album is (re)published as a post with a fresh postedAt.
//
// Rank values are not range-checked.
func (s *ProfileService) EditAlbum(ctx context.Context, username, albumID string, rank int, description string) error {
	if err := requireName("username", username); err != nil {
		return err
	}
	if err := requireName("albumId", albumID); err != nil {
		return err
	}
	description = strings.TrimSpace(description)

	matched, err := s.profiles.UpdateRankedAlbum(ctx, username, albumID, rank, description)
	if err != nil {
		return fmt.Errorf("service/profile: ranking: %w", err)
	}

	if !matched {
		if err := s.profiles.EnsureProfile(ctx, username); err != nil {
			return fmt.Errorf("service/profile: ensuring profile: %w", err)
		}
		entry := model.AlbumEntry{AlbumID: albumID, Rank: &rank, Description: description}
		pushed, err := s.profiles.PushAlbum(ctx, username, entry)
		if err != nil {
			return fmt.Errorf("service/profile: adding ranked album: %w", err)
		}
		if !pushed {
			// another request added the album in between; apply ours on top
			if _, err := s.profiles.UpdateRankedAlbum(ctx, username, albumID, rank, description); err != nil {
				return fmt.Errorf("service/profile: ranking: %w", err)
			}
		}
	}

	if err := s.social.UpsertPost(ctx, username, albumID, s.now()); err != nil {
		return fmt.Errorf("service/profile: publishing post: %w", err)
	}

	s.logger.Info("album ranked",
		slog.String("username", username),
		slog.String("albumID", albumID),
		slog.Int("rank", rank),
	)
	return nil
}

// DeleteAlbum removes an album and its post. Deleting an album that is not
// in the collection fails with UpdateFailed, so a second delete is reported.
func (s *ProfileService) DeleteAlbum(ctx context.Context, username, albumID string) error {
	if err := requireName("username", username); err != nil {
		return err
	}
	if err := requireName("albumId", albumID); err != nil {
		return err
	}

	removed, err := s.profiles.RemoveAlbum(ctx, username, albumID)
	if err != nil {
		return fmt.Errorf("service/profile: deleting album: %w", err)
	}
	if !removed {
		return apperror.UpdateFailed(username, albumID)
	}

	if err := s.social.DeletePost(ctx, username, albumID); err != nil {
		return fmt.Errorf("service/profile: deleting post: %w", err)
	}

	s.logger.Info("album deleted",
		slog.String("username", username),
		slog.String("albumID", albumID),
	)
	return nil
}

// SearchUsers returns usernames containing query, ignoring case.
func (s *ProfileService) SearchUsers(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query is required")
	}
	limit = model.ClampLimit(limit, DefaultSearchLimit, MaxSearchLimit)

	names, err := s.profiles.SearchUsernames(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("service/profile: searching %q: %w", query, err)
	}
	return names, nil
}

func requireName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	return nil
}
