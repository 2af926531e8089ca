package kv

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/pkg/retry"
	"github.com/ignite/feed-aggregator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingStore simulates another writer initializing the key between our
// Get and SetIfAbsent.
type racingStore struct {
	*storage.MemoryStore
	raced bool
}

func (s *racingStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if !s.raced {
		s.raced = true
		s.MemoryStore.Set(ctx, key, []byte(`{"https://other.example/p":"Other"}`))
	}
	return s.MemoryStore.SetIfAbsent(ctx, key, value)
}

type failingStore struct {
	storage.Store
	err error
}

func (s failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, s.err
}

func (s failingStore) Set(ctx context.Context, key string, value []byte) error {
	return s.err
}

func TestBlacklistRepo_FirstAccessInitializes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewBlacklistRepo(store, "")

	b, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Empty(t, b)

	raw, found, err := store.Get(ctx, DefaultBlacklistKey)
	require.NoError(t, err)
	assert.True(t, found, "first load must persist an empty mapping")
	assert.Equal(t, "{}", string(raw))
}

func TestBlacklistRepo_InitRace(t *testing.T) {
	store := &racingStore{MemoryStore: storage.NewMemoryStore()}
	repo := NewBlacklistRepo(store, "feed_blacklist")

	b, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Blacklist{"https://other.example/p": "Other"}, b)
}

func TestBlacklistRepo_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 2, 1000}

	for _, n := range sizes {
		t.Run(fmt.Sprintf("%d entries", n), func(t *testing.T) {
			ctx := context.Background()
			repo := NewBlacklistRepo(storage.NewMemoryStore(), "feed_blacklist")

			want := domain.Blacklist{}
			for i := 0; i < n; i++ {
				want[fmt.Sprintf("https://example.com/item/%d", i)] = fmt.Sprintf("Item %d", i)
			}

			require.NoError(t, repo.Save(ctx, want))
			got, err := repo.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestBlacklistRepo_NonASCIIKeysRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewBlacklistRepo(storage.NewMemoryStore(), "feed_blacklist")
	want := domain.Blacklist{
		"https://ex.com/caf\u00e9":      "Caf\u00e9",
		"https://ex.com/\u65e5\u672c":   "Nihon",
		"https://ex.com/a\u2028b":       "Line separator",
		"https://ex.com/?a=<b>&c=\"d\"": "Escaped",
		"https://ex.com/\U0001F600":     "Emoji",
	}

	require.NoError(t, repo.Save(ctx, want))
	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	for identity := range want {
		assert.True(t, got.Has(identity), "identity %q must survive byte for byte", identity)
	}
}

func TestBlacklistRepo_RejectsInvalidUTF8Keys(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewBlacklistRepo(store, "feed_blacklist")
	require.NoError(t, repo.Save(ctx, domain.Blacklist{"https://ex.com/ok": "OK"}))

	err := repo.Save(ctx, domain.Blacklist{"https://ex.com/ok": "OK", "https://ex.com/\xff": "Bad"})
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Blacklist{"https://ex.com/ok": "OK"}, got, "rejected save must leave the stored value alone")
}

func TestBlacklistRepo_SaveNil(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewBlacklistRepo(store, "feed_blacklist")

	require.NoError(t, repo.Save(ctx, nil))
	raw, _, err := store.Get(ctx, "feed_blacklist")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestBlacklistRepo_LegacyEmptyValues(t *testing.T) {
	for _, raw := range []string{"", "null", "[]", "  {} "} {
		t.Run(raw, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(ctx, "feed_blacklist", []byte(raw)))

			b, err := NewBlacklistRepo(store, "feed_blacklist").Load(ctx)
			require.NoError(t, err)
			assert.NotNil(t, b)
			assert.Empty(t, b)
		})
	}
}

func TestBlacklistRepo_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "feed_blacklist", []byte("{not json")))

	_, err := NewBlacklistRepo(store, "feed_blacklist").Load(ctx)
	assert.Error(t, err)
}

func TestBlacklistRepo_CorruptValueIsPermanent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "feed_blacklist", []byte("{not json")))
	repo := NewBlacklistRepo(store, "feed_blacklist")

	calls := 0
	err := retry.Do(ctx, retry.Policy{Attempts: 3, BaseDelay: time.Millisecond}, "load", func(ctx context.Context) error {
		calls++
		_, err := repo.Load(ctx)
		return err
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "decode errors must not be retried")
}

func TestBlacklistRepo_StoreErrorsAreRetried(t *testing.T) {
	ctx := context.Background()
	repo := NewBlacklistRepo(failingStore{err: errors.New("store down")}, "feed_blacklist")

	calls := 0
	_ = retry.Do(ctx, retry.Policy{Attempts: 3, BaseDelay: time.Millisecond}, "load", func(ctx context.Context) error {
		calls++
		_, err := repo.Load(ctx)
		return err
	})
	assert.Equal(t, 3, calls)
}

func TestBlacklistRepo_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store down")
	repo := NewBlacklistRepo(failingStore{err: boom}, "feed_blacklist")

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, boom)

	err = repo.Save(ctx, domain.Blacklist{"a": "A"})
	assert.ErrorIs(t, err, boom)
}
