package mongo

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/model"
)

// GetProfile loads the profile document for username.
func (s *Store) GetProfile(ctx context.Context, username string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := s.profiles.FindOne(ctx, bson.M{"username": username}).Decode(&p)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.ProfileNotFound(username)
		}
		return nil, apperror.Database("loading profile", fmt.Errorf("mongo: finding profile %s: %w", username, err))
	}
	if p.Albums == nil {
		p.Albums = []model.AlbumEntry{}
	}
	if p.Following == nil {
		p.Following = []string{}
	}
	return &p, nil
}

// EnsureProfile upserts an empty profile. Two concurrent first writes may
// both try to insert; the loser hits the unique index and the document it
// wanted exists anyway.
func (s *Store) EnsureProfile(ctx context.Context, username string) error {
	_, err := s.profiles.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$setOnInsert": bson.M{
			"albums":    bson.A{},
			"following": bson.A{},
			"createdAt": s.now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return apperror.Database("creating profile", fmt.Errorf("mongo: upserting profile %s: %w", username, err))
	}
	return nil
}

// ProfileExists reports whether a document exists for username.
func (s *Store) ProfileExists(ctx context.Context, username string) (bool, error) {
	n, err := s.profiles.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, apperror.Database("loading profile", fmt.Errorf("mongo: counting profile %s: %w", username, err))
	}
	return n > 0, nil
}

// PushAlbum appends entry only if no entry with its album id exists. The
// $ne guard in the filter makes the check and the push one atomic step.
func (s *Store) PushAlbum(ctx context.Context, username string, entry model.AlbumEntry) (bool, error) {
	res, err := s.profiles.UpdateOne(ctx,
		bson.M{
			"username":       username,
			"albums.albumId": bson.M{"$ne": entry.AlbumID},
		},
		bson.M{"$push": bson.M{"albums": entry}},
	)
	if err != nil {
		return false, apperror.Database("adding album", fmt.Errorf("mongo: pushing album %s for %s: %w", entry.AlbumID, username, err))
	}
	return res.ModifiedCount > 0, nil
}

// SetAlbumFlag sets albums.$.<field> on the matching entry. matched is
// false when the entry does not exist; setting a flag to its current value
// still counts as matched.
func (s *Store) SetAlbumFlag(ctx context.Context, username, albumID, field string, value bool) (bool, error) {
	res, err := s.profiles.UpdateOne(ctx,
		bson.M{"username": username, "albums.albumId": albumID},
		bson.M{"$set": bson.M{"albums.$." + field: value}},
	)
	if err != nil {
		return false, apperror.Database("updating album", fmt.Errorf("mongo: setting %s on %s/%s: %w", field, username, albumID, err))
	}
	return res.MatchedCount > 0, nil
}

// UpdateRankedAlbum rewrites rank and description of an existing entry and
// clears its bookmark.
func (s *Store) UpdateRankedAlbum(ctx context.Context, username, albumID string, rank int, description string) (bool, error) {
	res, err := s.profiles.UpdateOne(ctx,
		bson.M{"username": username, "albums.albumId": albumID},
		bson.M{"$set": bson.M{
			"albums.$.rank":        rank,
			"albums.$.description": description,
			"albums.$.bookmarked":  false,
		}},
	)
	if err != nil {
		return false, apperror.Database("updating album", fmt.Errorf("mongo: ranking %s/%s: %w", username, albumID, err))
	}
	return res.MatchedCount > 0, nil
}

// PruneOrphan pulls the entry if it is neither bookmarked nor ranked. A nil
// rank in the pull condition matches both a missing and a null field.
func (s *Store) PruneOrphan(ctx context.Context, username, albumID string) error {
	_, err := s.profiles.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$pull": bson.M{"albums": bson.M{
			"albumId":    albumID,
			"bookmarked": false,
			"rank":       nil,
		}}},
	)
	if err != nil {
		return apperror.Database("updating album", fmt.Errorf("mongo: pruning %s/%s: %w", username, albumID, err))
	}
	return nil
}

// RemoveAlbum pulls the entry for albumID.
func (s *Store) RemoveAlbum(ctx context.Context, username, albumID string) (bool, error) {
	res, err := s.profiles.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$pull": bson.M{"albums": bson.M{"albumId": albumID}}},
	)
	if err != nil {
		return false, apperror.Database("deleting album", fmt.Errorf("mongo: pulling %s/%s: %w", username, albumID, err))
	}
	return res.ModifiedCount > 0, nil
}

// SearchUsernames returns usernames containing query, sorted, at most limit.
// The query is matched literally.
func (s *Store) SearchUsernames(ctx context.Context, query string, limit int) ([]string, error) {
	filter := bson.M{"username": bson.M{
		"$regex":   regexp.QuoteMeta(query),
		"$options": "i",
	}}
	opts := options.Find().
		SetProjection(bson.M{"username": 1, "_id": 0}).
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetLimit(int64(limit))

	names, err := s.findUsernames(ctx, filter, opts)
	if err != nil {
		return nil, apperror.Database("searching users", fmt.Errorf("mongo: searching %q: %w", query, err))
	}
	return names, nil
}

func (s *Store) findUsernames(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]string, error) {
	cur, err := s.profiles.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []struct {
		Username string `bson:"username"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Username)
	}
	return names, nil
}
