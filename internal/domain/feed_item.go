package domain

import "time"

// DefaultFeedItemKind is the kind of item the blacklist command accepts unless
// configured otherwise.
const DefaultFeedItemKind = "feed_item"

// MetaPermalink is the item meta field holding the source permalink.
const MetaPermalink = "permalink"

// FeedItem is an imported item owned by the item storage layer.
type FeedItem struct {
	ID        int64     `json:"id" db:"id"`
	Kind      string    `json:"kind" db:"kind"`
	Title     string    `json:"title" db:"title"`
	Permalink string    `json:"permalink" db:"permalink"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CandidateItem is an item proposed by the ingestion pipeline that has not
// been persisted yet.
type CandidateItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
}

// ItemRef references a live item that is about to be blacklisted.
type ItemRef struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
}

// Pagination is the listing context a blacklist command was issued from.
// A zero Page means the request carried no page.
type Pagination struct {
	Page int `json:"page,omitempty"`
}
