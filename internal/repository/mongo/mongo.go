// Package mongo implements the profile and social repositories on MongoDB.
//
// Two collections:
//
//	profiles  one document per username: album entries + following list
//	posts     one document per (owner, albumId) that was ranked
//
// Every mutation is a single filtered update (positional $, $addToSet,
// $pull, guarded $push), so concurrent requests never read-modify-write a
// whole document. Multi-document sequences are not transactional: a post
// can briefly exist without its album entry and vice versa.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/albumrank/internal/repository"
)

const (
	profilesCollection = "profiles"
	postsCollection    = "posts"
)

// Store holds the client and the collections it operates on.
type Store struct {
	client   *mongo.Client
	profiles *mongo.Collection
	posts    *mongo.Collection
	now      func() time.Time
}

var (
	_ repository.ProfileRepository = (*Store)(nil)
	_ repository.SocialRepository  = (*Store)(nil)
)

// Connect dials uri, verifies the primary is reachable and creates the
// indexes the store relies on.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging primary: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		profiles: db.Collection(profilesCollection),
		posts:    db.Collection(postsCollection),
		now:      time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Ping checks the primary is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client, waiting for in-flight operations until ctx
// is done.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.profiles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// follower lookups: {following: username}
		{Keys: bson.D{{Key: "following", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating profile indexes: %w", err)
	}

	_, err = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "albumId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "postedAt", Value: -1}, {Key: "_id", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating post indexes: %w", err)
	}
	return nil
}

// isNoDocuments reports whether err is the driver's "no match" result.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
