package blacklist

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/feed-aggregator/internal/domain"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu        sync.Mutex
	data      domain.Blacklist
	saves     int
	loadFails int // number of upcoming Load calls that fail
	saveFails int // number of upcoming Save calls that fail
	err       error
}

func newMockRepo(initial domain.Blacklist) *mockRepo {
	return &mockRepo{data: initial.Clone()}
}

func (m *mockRepo) Load(_ context.Context) (domain.Blacklist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadFails > 0 {
		m.loadFails--
		return nil, m.err
	}
	return m.data.Clone(), nil
}

func (m *mockRepo) Save(_ context.Context, b domain.Blacklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveFails > 0 {
		m.saveFails--
		return m.err
	}
	m.saves++
	m.data = b.Clone()
	return nil
}

func (m *mockRepo) snapshot() domain.Blacklist {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone()
}

// mockItems is an in-memory item store for testing.
type mockItems struct {
	mu      sync.Mutex
	items   map[int64]*domain.FeedItem
	deleted []int64
}

func newMockItems(items ...domain.FeedItem) *mockItems {
	m := &mockItems{items: make(map[int64]*domain.FeedItem)}
	for i := range items {
		it := items[i]
		m.items[it.ID] = &it
	}
	return m
}

func (m *mockItems) Get(_ context.Context, id int64) (*domain.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockItems) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := m.Get(ctx, id)
	return err == nil, nil
}

func (m *mockItems) Kind(ctx context.Context, id int64) (string, error) {
	it, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return it.Kind, nil
}

func (m *mockItems) Title(ctx context.Context, id int64) (string, error) {
	it, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return it.Title, nil
}

func (m *mockItems) Meta(ctx context.Context, id int64, key string) (string, error) {
	it, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if key == domain.MetaPermalink {
		return it.Permalink, nil
	}
	return "", nil
}

func (m *mockItems) HardDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockItems) has(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok
}

func (m *mockItems) deletedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.deleted...)
}

// recordingObserver counts observer events.
type recordingObserver struct {
	mu      sync.Mutex
	checks  map[bool]int
	writes  map[string]int
	failed  int
	lastLen int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{checks: map[bool]int{}, writes: map[string]int{}}
}

func (o *recordingObserver) ObserveCheck(blocked bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checks[blocked]++
}

func (o *recordingObserver) ObserveWrite(op string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes[op]++
	if err != nil {
		o.failed++
	}
}

func (o *recordingObserver) ObserveSize(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastLen = n
}

func testOptions() Options {
	return Options{LockWait: time.Second, LockPoll: 5 * time.Millisecond}
}
