package blacklist

import (
	"context"
	"time"

	"github.com/ignite/feed-aggregator/internal/domain"
)

// Repository persists the whole blacklist mapping.
type Repository interface {
	// Load returns the current mapping. First access initializes an empty
	// mapping in storage.
	Load(ctx context.Context) (domain.Blacklist, error)

	// Save replaces the stored mapping.
	Save(ctx context.Context, b domain.Blacklist) error
}

// ItemStore is the item storage the blacklist deletes from and reads
// titles and metadata out of.
type ItemStore interface {
	// Get returns the item or ErrNotFound.
	Get(ctx context.Context, id int64) (*domain.FeedItem, error)

	// Exists reports whether the item is stored.
	Exists(ctx context.Context, id int64) (bool, error)

	// Kind returns the item's kind or ErrNotFound.
	Kind(ctx context.Context, id int64) (string, error)

	// Title returns the item's title or ErrNotFound.
	Title(ctx context.Context, id int64) (string, error)

	// Meta returns a metadata value. An unset key yields an empty string.
	Meta(ctx context.Context, id int64, key string) (string, error)

	// HardDelete removes the item and its metadata permanently.
	// Deleting an item that is already gone is not an error.
	HardDelete(ctx context.Context, id int64) error
}

// Observer receives blacklist events, typically for metrics.
type Observer interface {
	ObserveCheck(blocked bool)
	ObserveWrite(op string, err error, took time.Duration)
	ObserveSize(n int)
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) ObserveCheck(bool)                         {}
func (NoopObserver) ObserveWrite(string, error, time.Duration) {}
func (NoopObserver) ObserveSize(int)                           {}
