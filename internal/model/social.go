package model

import "time"

// Post is an album a user ranked, shared to the feed of their followers.
// (Owner, AlbumID) is unique; LikedBy is a set of usernames.
type Post struct {
	ID       string    `json:"id"       bson:"_id,omitempty"`
	Owner    string    `json:"postOwner" bson:"owner"`
	AlbumID  string    `json:"albumId"  bson:"albumId"`
	LikedBy  []string  `json:"likedBy"  bson:"likedBy"`
	PostedAt time.Time `json:"postedAt" bson:"postedAt"`
}

// LikeCount is a convenience for the feed view.
func (p Post) LikeCount() int {
	return len(p.LikedBy)
}

// LikedByUser reports whether username is in the post's like set.
func (p Post) LikedByUser(username string) bool {
	for _, u := range p.LikedBy {
		if u == username {
			return true
		}
	}
	return false
}
