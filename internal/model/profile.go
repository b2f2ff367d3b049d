package model

import (
	"math"
	"time"
)

// Flag names accepted by the toggle operation.
const (
	FlagFavorite   = "favorite"
	FlagBookmarked = "bookmarked"
)

// AlbumEntry is one album in a user's collection.
//
// An entry is either ranked (Rank != nil) or bookmarked. An entry that is
// neither is an orphan and gets pruned by the store.
type AlbumEntry struct {
	AlbumID     string `json:"albumId"               bson:"albumId"`
	Rank        *int   `json:"rank,omitempty"        bson:"rank,omitempty"`
	Bookmarked  bool   `json:"bookmarked"            bson:"bookmarked"`
	Favorite    bool   `json:"favorite"              bson:"favorite"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// Ranked reports whether the entry counts towards average-rank statistics.
func (e AlbumEntry) Ranked() bool {
	return !e.Bookmarked && e.Rank != nil
}

// UserProfile is the stored document for one username.
type UserProfile struct {
	Username  string       `json:"username"  bson:"username"`
	Albums    []AlbumEntry `json:"albums"    bson:"albums"`
	Following []string     `json:"following" bson:"following"`
	CreatedAt time.Time    `json:"createdAt" bson:"createdAt"`
}

// AlbumView is an AlbumEntry merged with catalog metadata. The metadata is
// fetched on every read and never persisted.
type AlbumView struct {
	AlbumEntry
	AlbumMetadata
}

// ProfileView is what a profile read returns.
type ProfileView struct {
	Username        string      `json:"username"`
	Albums          []AlbumView `json:"albums"`
	RankedCount     int         `json:"rankedCount"`
	BookmarkedCount int         `json:"bookmarkedCount"`
	AvgRank         float64     `json:"avgRank"`
	FollowingCount  int         `json:"followingCount"`
	FollowerCount   int         `json:"followerCount"`
}

// ProfileStats holds the derived counters of a profile.
type ProfileStats struct {
	RankedCount     int
	BookmarkedCount int
	AvgRank         float64
}

// ComputeStats derives counters from an album collection. The average is
// rounded to two decimals and is 0 when nothing is ranked.
func ComputeStats(albums []AlbumEntry) ProfileStats {
	var stats ProfileStats
	sum := 0
	for _, a := range albums {
		switch {
		case a.Bookmarked:
			stats.BookmarkedCount++
		case a.Rank != nil:
			stats.RankedCount++
			sum += *a.Rank
		}
	}
	if stats.RankedCount > 0 {
		avg := float64(sum) / float64(stats.RankedCount)
		stats.AvgRank = math.Round(avg*100) / 100
	}
	return stats
}
