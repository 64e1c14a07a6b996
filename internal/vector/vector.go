package vector

// Match is one nearest-neighbor hit from the similarity index. Matches are
// ephemeral; they live only for the duration of one query.
type Match struct {
	DocumentID string
	Filename   string
	Page       int
	Content    string
	Score      float64
}

// Filter restricts a similarity query by exact-match metadata. Zero values
// are ignored.
type Filter struct {
	OwnerID    string
	DocumentID string
}
