package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/model"
	"github.com/sakif/albumrank/internal/repository"
)

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

// SocialService handles follow edges, likes and the feed. Follow, unfollow,
// like and unlike are set operations: applying one twice leaves the same
// state as applying it once.
type SocialService struct {
	profiles repository.ProfileRepository
	social   repository.SocialRepository
	logger   *slog.Logger
}

// NewSocialService creates a SocialService.
func NewSocialService(profiles repository.ProfileRepository, social repository.SocialRepository, logger *slog.Logger) *SocialService {
	return &SocialService{
		profiles: profiles,
		social:   social,
		logger:   logger,
	}
}

// Follow adds the edge follower → followee. The followee must have a profile.
func (s *SocialService) Follow(ctx context.Context, follower, followee string) error {
	follower, followee, err := validateEdge(follower, followee)
	if err != nil {
		return err
	}

	exists, err := s.profiles.ProfileExists(ctx, followee)
	if err != nil {
		return fmt.Errorf("service/social: checking %s: %w", followee, err)
	}
	if !exists {
		return apperror.ProfileNotFound(followee)
	}

	if err := s.social.AddFollowing(ctx, follower, followee); err != nil {
		return fmt.Errorf("service/social: following: %w", err)
	}
	s.logger.Info("user followed",
		slog.String("follower", follower),
		slog.String("followee", followee),
	)
	return nil
}

// Unfollow removes the edge follower → followee if it exists.
func (s *SocialService) Unfollow(ctx context.Context, follower, followee string) error {
	follower, followee, err := validateEdge(follower, followee)
	if err != nil {
		return err
	}
	if err := s.social.RemoveFollowing(ctx, follower, followee); err != nil {
		return fmt.Errorf("service/social: unfollowing: %w", err)
	}
	s.logger.Info("user unfollowed",
		slog.String("follower", follower),
		slog.String("followee", followee),
	)
	return nil
}

// validateEdge returns the trimmed names the edge is stored under.
func validateEdge(follower, followee string) (string, string, error) {
	follower, followee = strings.TrimSpace(follower), strings.TrimSpace(followee)
	if follower == "" || followee == "" {
		return "", "", apperror.InvalidEdge("follower and followee are required")
	}
	if follower == followee {
		return "", "", apperror.InvalidEdge("users cannot follow themselves")
	}
	return follower, followee, nil
}

// Followers lists who follows username.
func (s *SocialService) Followers(ctx context.Context, username string) ([]string, error) {
	if err := s.requireProfile(ctx, username); err != nil {
		return nil, err
	}
	names, err := s.social.Followers(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/social: followers of %s: %w", username, err)
	}
	return names, nil
}

// Following lists who username follows.
func (s *SocialService) Following(ctx context.Context, username string) ([]string, error) {
	if err := requireName("username", username); err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetProfile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/social: loading %s: %w", username, err)
	}
	return profile.Following, nil
}

func (s *SocialService) requireProfile(ctx context.Context, username string) error {
	if err := requireName("username", username); err != nil {
		return err
	}
	exists, err := s.profiles.ProfileExists(ctx, username)
	if err != nil {
		return fmt.Errorf("service/social: checking %s: %w", username, err)
	}
	if !exists {
		return apperror.ProfileNotFound(username)
	}
	return nil
}

// Like adds username to the likes of owner's post for albumID.
func (s *SocialService) Like(ctx context.Context, username, owner, albumID string) error {
	if err := validatePostRef(username, owner, albumID); err != nil {
		return err
	}
	found, err := s.social.AddLike(ctx, owner, albumID, username)
	if err != nil {
		return fmt.Errorf("service/social: liking: %w", err)
	}
	if !found {
		return apperror.NotFound("post", owner+"/"+albumID)
	}
	s.logger.Info("post liked",
		slog.String("username", username),
		slog.String("owner", owner),
		slog.String("albumID", albumID),
	)
	return nil
}

// Unlike removes username from the likes. Unliking a post the user never
// liked succeeds.
func (s *SocialService) Unlike(ctx context.Context, username, owner, albumID string) error {
	if err := validatePostRef(username, owner, albumID); err != nil {
		return err
	}
	found, err := s.social.RemoveLike(ctx, owner, albumID, username)
	if err != nil {
		return fmt.Errorf("service/social: unliking: %w", err)
	}
	if !found {
		return apperror.NotFound("post", owner+"/"+albumID)
	}
	s.logger.Info("post unliked",
		slog.String("username", username),
		slog.String("owner", owner),
		slog.String("albumID", albumID),
	)
	return nil
}

func validatePostRef(username, owner, albumID string) error {
	if err := requireName("username", username); err != nil {
		return err
	}
	if err := requireName("owner", owner); err != nil {
		return err
	}
	return requireName("albumId", albumID)
}

// Feed returns one page of posts by the users username follows, newest
// first. Pages are computed per call; there is no cursor state. limit is
// clamped to [1, MaxFeedLimit] and defaults to DefaultFeedLimit; the page
// reports the limit actually applied.
func (s *SocialService) Feed(ctx context.Context, username string, limit, skip int) (*model.FeedPage, error) {
	if err := requireName("username", username); err != nil {
		return nil, err
	}
	if skip < 0 {
		return nil, apperror.ValidationFailed("skip", "skip must not be negative")
	}
	page := &model.FeedPage{
		Posts: []model.Post{},
		Limit: model.ClampLimit(limit, DefaultFeedLimit, MaxFeedLimit),
		Skip:  skip,
	}

	profile, err := s.profiles.GetProfile(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return page, nil
		}
		return nil, fmt.Errorf("service/social: loading %s: %w", username, err)
	}

	posts, err := s.social.ListPosts(ctx, profile.Following, repository.ListOptions{Limit: page.Limit, Offset: skip})
	if err != nil {
		return nil, fmt.Errorf("service/social: feed of %s: %w", username, err)
	}
	if posts != nil {
		page.Posts = posts
	}
	return page, nil
}
