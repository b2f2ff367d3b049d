package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/model"
	"github.com/sakif/albumrank/internal/repository"
)

// AddFollowing adds followee to follower's following set.
func (s *Store) AddFollowing(ctx context.Context, follower, followee string) error {
	if err := s.EnsureProfile(ctx, follower); err != nil {
		return err
	}
	_, err := s.profiles.UpdateOne(ctx,
		bson.M{"username": follower},
		bson.M{"$addToSet": bson.M{"following": followee}},
	)
	if err != nil {
		return apperror.Database("following user", fmt.Errorf("mongo: %s follows %s: %w", follower, followee, err))
	}
	return nil
}

// RemoveFollowing pulls followee from follower's following set.
func (s *Store) RemoveFollowing(ctx context.Context, follower, followee string) error {
	_, err := s.profiles.UpdateOne(ctx,
		bson.M{"username": follower},
		bson.M{"$pull": bson.M{"following": followee}},
	)
	if err != nil {
		return apperror.Database("unfollowing user", fmt.Errorf("mongo: %s unfollows %s: %w", follower, followee, err))
	}
	return nil
}

// Followers lists every username whose following set contains username.
func (s *Store) Followers(ctx context.Context, username string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"username": 1, "_id": 0}).
		SetSort(bson.D{{Key: "username", Value: 1}})

	names, err := s.findUsernames(ctx, bson.M{"following": username}, opts)
	if err != nil {
		return nil, apperror.Database("listing followers", fmt.Errorf("mongo: followers of %s: %w", username, err))
	}
	return names, nil
}

// CountFollowers counts the profiles following username.
func (s *Store) CountFollowers(ctx context.Context, username string) (int, error) {
	n, err := s.profiles.CountDocuments(ctx, bson.M{"following": username})
	if err != nil {
		return 0, apperror.Database("counting followers", fmt.Errorf("mongo: counting followers of %s: %w", username, err))
	}
	return int(n), nil
}

// UpsertPost creates the post for (owner, albumID) or bumps its postedAt.
// Likes survive a re-rank.
func (s *Store) UpsertPost(ctx context.Context, owner, albumID string, postedAt time.Time) error {
	upsert := func() error {
		_, err := s.posts.UpdateOne(ctx,
			bson.M{"owner": owner, "albumId": albumID},
			bson.M{
				"$set": bson.M{"postedAt": postedAt.UTC()},
				"$setOnInsert": bson.M{
					"_id":     xid.New().String(),
					"likedBy": bson.A{},
				},
			},
			options.Update().SetUpsert(true),
		)
		return err
	}

	err := upsert()
	if mongo.IsDuplicateKeyError(err) {
		// lost an insert race on {owner, albumId}; the second try matches
		err = upsert()
	}
	if err != nil {
		return apperror.Database("publishing post", fmt.Errorf("mongo: upserting post %s/%s: %w", owner, albumID, err))
	}
	return nil
}

// DeletePost removes the post for (owner, albumID) if there is one.
func (s *Store) DeletePost(ctx context.Context, owner, albumID string) error {
	_, err := s.posts.DeleteOne(ctx, bson.M{"owner": owner, "albumId": albumID})
	if err != nil {
		return apperror.Database("deleting post", fmt.Errorf("mongo: deleting post %s/%s: %w", owner, albumID, err))
	}
	return nil
}

// AddLike adds username to the post's likedBy set.
func (s *Store) AddLike(ctx context.Context, owner, albumID, username string) (bool, error) {
	res, err := s.posts.UpdateOne(ctx,
		bson.M{"owner": owner, "albumId": albumID},
		bson.M{"$addToSet": bson.M{"likedBy": username}},
	)
	if err != nil {
		return false, apperror.Database("liking post", fmt.Errorf("mongo: like %s/%s by %s: %w", owner, albumID, username, err))
	}
	return res.MatchedCount > 0, nil
}

// RemoveLike pulls username from the post's likedBy set.
func (s *Store) RemoveLike(ctx context.Context, owner, albumID, username string) (bool, error) {
	res, err := s.posts.UpdateOne(ctx,
		bson.M{"owner": owner, "albumId": albumID},
		bson.M{"$pull": bson.M{"likedBy": username}},
	)
	if err != nil {
		return false, apperror.Database("unliking post", fmt.Errorf("mongo: unlike %s/%s by %s: %w", owner, albumID, username, err))
	}
	return res.MatchedCount > 0, nil
}

// ListPosts returns posts whose owner is in owners, ordered by postedAt
// descending with _id as the tie-break, so pages never overlap.
func (s *Store) ListPosts(ctx context.Context, owners []string, opts repository.ListOptions) ([]model.Post, error) {
	if len(owners) == 0 {
		return []model.Post{}, nil
	}

	find := options.Find().
		SetSort(bson.D{{Key: "postedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))

	cur, err := s.posts.Find(ctx, bson.M{"owner": bson.M{"$in": owners}}, find)
	if err != nil {
		return nil, apperror.Database("loading feed", fmt.Errorf("mongo: finding posts: %w", err))
	}

	posts := []model.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, apperror.Database("loading feed", fmt.Errorf("mongo: decoding posts: %w", err))
	}
	for i := range posts {
		if posts[i].LikedBy == nil {
			posts[i].LikedBy = []string{}
		}
	}
	return posts, nil
}
