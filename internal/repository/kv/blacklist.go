// Package kv implements repositories on top of the settings key/value store.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/pkg/retry"
	"github.com/ignite/feed-aggregator/internal/storage"
)

// DefaultBlacklistKey is the settings key holding the blacklist.
const DefaultBlacklistKey = "feed_blacklist"

var emptyObject = []byte("{}")

// ErrInvalidIdentity is returned by Save for identities JSON cannot carry
// unchanged.
var ErrInvalidIdentity = errors.New("kv: blacklist identity is not valid UTF-8")

// BlacklistRepo stores the whole blacklist as one JSON object under a single
// settings key. Saves replace the value; concurrent writers are last-write-wins.
type BlacklistRepo struct {
	store storage.Store
	key   string
}

// NewBlacklistRepo creates a repository for key. An empty key falls back to
// DefaultBlacklistKey.
func NewBlacklistRepo(store storage.Store, key string) *BlacklistRepo {
	if key == "" {
		key = DefaultBlacklistKey
	}
	return &BlacklistRepo{store: store, key: key}
}

// Key returns the settings key the repository reads and writes.
func (r *BlacklistRepo) Key() string {
	return r.key
}

// Load returns the current blacklist. On first access the key is initialized
// to an empty object, so the stored value always exists after a Load. A value
// that does not decode is a permanent error.
func (r *BlacklistRepo) Load(ctx context.Context) (domain.Blacklist, error) {
	data, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}
	if !found {
		created, err := r.store.SetIfAbsent(ctx, r.key, emptyObject)
		if err != nil {
			return nil, fmt.Errorf("init blacklist: %w", err)
		}
		if created {
			return domain.Blacklist{}, nil
		}
		// Another writer initialized the key first.
		data, _, err = r.store.Get(ctx, r.key)
		if err != nil {
			return nil, fmt.Errorf("load blacklist: %w", err)
		}
	}
	return decodeBlacklist(data)
}

// Save replaces the stored blacklist with b. Encoding failures and invalid
// identities are permanent; store failures may be retried.
func (r *BlacklistRepo) Save(ctx context.Context, b domain.Blacklist) error {
	for identity := range b {
		if !domain.ValidIdentity(identity) {
			return retry.Permanent(fmt.Errorf("encode blacklist %q: %w", identity, ErrInvalidIdentity))
		}
	}
	data, err := json.Marshal(b.Clone())
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode blacklist: %w", err))
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("save blacklist: %w", err)
	}
	return nil
}

func decodeBlacklist(data []byte) (domain.Blacklist, error) {
	trimmed := bytes.TrimSpace(data)
	// Older writers stored an empty list as [] or null.
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return domain.Blacklist{}, nil
	}

	var b domain.Blacklist
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode blacklist: %w", err))
	}
	if b == nil {
		b = domain.Blacklist{}
	}
	return b, nil
}
