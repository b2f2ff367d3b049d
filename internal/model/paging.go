package model

// ClampLimit applies def to non-positive page sizes and caps them at upper.
func ClampLimit(v, def, upper int) int {
	if v <= 0 {
		return def
	}
	if v > upper {
		return upper
	}
	return v
}

// FeedPage is one slice of a feed together with the paging values that
// produced it, so clients can request the next page.
type FeedPage struct {
	Posts []Post
	Limit int
	Skip  int
}
