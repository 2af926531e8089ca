package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ignite/feed-aggregator/internal/auth"
	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/ingest"
	"github.com/ignite/feed-aggregator/internal/metrics"
	"github.com/ignite/feed-aggregator/internal/pkg/httputil"
	"github.com/ignite/feed-aggregator/internal/repository/kv"
	"github.com/ignite/feed-aggregator/internal/service/blacklist"
	"github.com/ignite/feed-aggregator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeItems is an in-memory blacklist.ItemStore.
type fakeItems struct {
	mu    sync.Mutex
	items map[int64]domain.FeedItem
}

func (f *fakeItems) Get(_ context.Context, id int64) (*domain.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, blacklist.ErrNotFound
	}
	return &it, nil
}

func (f *fakeItems) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := f.Get(ctx, id)
	return err == nil, nil
}

func (f *fakeItems) Kind(ctx context.Context, id int64) (string, error) {
	it, err := f.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return it.Kind, nil
}

func (f *fakeItems) Title(ctx context.Context, id int64) (string, error) {
	it, err := f.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return it.Title, nil
}

func (f *fakeItems) Meta(ctx context.Context, id int64, key string) (string, error) {
	it, err := f.Get(ctx, id)
	if err != nil || key != domain.MetaPermalink {
		return "", err
	}
	return it.Permalink, nil
}

func (f *fakeItems) HardDelete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeItems) has(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id]
	return ok
}

// brokenStore fails every write.
type brokenStore struct{ *storage.MemoryStore }

func (brokenStore) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

type testEnv struct {
	handler http.Handler
	store   storage.Store
	items   *fakeItems
	nonces  *auth.NonceGuard
	svc     *blacklist.Service
	cmd     *blacklist.Command
}

func newTestEnv(t *testing.T, store storage.Store) *testEnv {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	items := &fakeItems{items: map[int64]domain.FeedItem{
		5: {ID: 5, Kind: "feed_item", Title: "Hello World", Permalink: "http://ex.com/a "},
		6: {ID: 6, Kind: "feed_item", Title: "Six", Permalink: "http://ex.com/six"},
		7: {ID: 7, Kind: "page", Title: "About", Permalink: "http://ex.com/about"},
		8: {ID: 8, Kind: "feed_item", Title: "Broken", Permalink: "http://ex.com/\xff"},
	}}
	nonces := auth.NewNonceGuard("test-secret", time.Hour)
	m := metrics.New()

	svc := blacklist.NewService(kv.NewBlacklistRepo(store, "feed_blacklist"), items, blacklist.Options{
		LockWait: time.Second,
		Observer: m,
	})
	cmd, err := blacklist.NewCommand(svc, items, blacklist.CommandConfig{
		ItemKind:   "feed_item",
		ListingURL: "/admin/feed-items?kind={{ kind }}{% if paged > 0 %}&paged={{ paged }}{% endif %}",
		ActionURL:  "/admin/feed-items/blacklist?item={{ id }}&_nonce={{ nonce }}{% if paged > 0 %}&paged={{ paged }}{% endif %}",
		Nonces:     nonces,
	})
	require.NoError(t, err)

	handler := SetupRoutes(RouteDeps{
		Blacklist: NewBlacklistAPI(svc, cmd),
		Ingest:    NewIngestAPI(ingest.NewFilter(svc, m)),
		Health:    NewHealthChecker(nil, nil, nil, "memory"),
		Nonces:    nonces,
		Metrics:   m.Handler(),
	})
	return &testEnv{handler: handler, store: store, items: items, nonces: nonces, svc: svc, cmd: cmd}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) stored(t *testing.T) domain.Blacklist {
	t.Helper()
	raw, found, err := e.store.Get(context.Background(), "feed_blacklist")
	require.NoError(t, err)
	if !found {
		return nil
	}
	var b domain.Blacklist
	require.NoError(t, json.Unmarshal(raw, &b))
	return b
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestHandleCommand_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	nonce := env.nonces.Create(blacklist.NonceAction, "5")

	rec := env.do(t, http.MethodGet, "/admin/feed-items/blacklist?item=5&paged=2&_nonce="+nonce, nil, nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/feed-items?kind=feed_item&paged=2", rec.Header().Get("Location"))
	assert.Equal(t, domain.Blacklist{"http://ex.com/a": "Hello World"}, env.stored(t))
	assert.False(t, env.items.has(5))
}

func TestHandleCommand_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		item   string
		nonce  bool
		status int
		code   string
	}{
		{"unknown item", "999", true, http.StatusNotFound, "item_not_found"},
		{"unparseable item", "abc", true, http.StatusNotFound, "item_not_found"},
		{"wrong kind", "7", true, http.StatusBadRequest, "wrong_kind"},
		{"missing item", "", true, http.StatusBadRequest, "invalid_item"},
		{"invalid utf-8 permalink", "8", true, http.StatusBadRequest, "invalid_permalink"},
		{"missing nonce", "5", false, http.StatusForbidden, "invalid_nonce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			target := "/admin/feed-items/blacklist?item=" + tt.item
			if tt.nonce {
				target += "&_nonce=" + env.nonces.Create(blacklist.NonceAction, tt.item)
			}

			rec := env.do(t, http.MethodGet, target, nil, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))

			assert.Empty(t, env.stored(t), "rejection must not change the blacklist")
			assert.True(t, env.items.has(5))
			assert.True(t, env.items.has(7))
			assert.True(t, env.items.has(8))
		})
	}
}

func TestHandleCommand_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t, brokenStore{storage.NewMemoryStore()})
	nonce := env.nonces.Create(blacklist.NonceAction, "5")

	rec := env.do(t, http.MethodGet, "/admin/feed-items/blacklist?item=5&_nonce="+nonce, nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "persistence_failure", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleCommand_NonceBoundToItem(t *testing.T) {
	env := newTestEnv(t, nil)
	nonce := env.nonces.Create(blacklist.NonceAction, "5")

	rec := env.do(t, http.MethodGet, "/admin/feed-items/blacklist?item=6&_nonce="+nonce, nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "invalid_nonce", errorCode(t, rec))
	assert.True(t, env.items.has(6))
	assert.Empty(t, env.stored(t))
}

func TestHandleCommand_ActionURLAccepted(t *testing.T) {
	env := newTestEnv(t, nil)

	link, err := env.cmd.ActionURL(5, domain.Pagination{Page: 3})
	require.NoError(t, err)
	assert.Contains(t, link, "item=5")

	rec := env.do(t, http.MethodGet, link, nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/feed-items?kind=feed_item&paged=3", rec.Header().Get("Location"))
}

func TestActionURLNotServed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/blacklist/action-url?item=5", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "_nonce")
}

func TestHandleListAndCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.svc.Add(context.Background(), &domain.ItemRef{ID: 5, Title: "Hello World", Permalink: "http://ex.com/a"}))

	rec := env.do(t, http.MethodGet, "/api/blacklist", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Entries []domain.BlacklistEntry `json:"entries"`
		Total   int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "http://ex.com/a", list.Entries[0].Identity)

	rec = env.do(t, http.MethodGet, "/api/blacklist/check?permalink=%20http://ex.com/a%20", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check struct {
		Identity    string `json:"identity"`
		Blacklisted bool   `json:"blacklisted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.True(t, check.Blacklisted)
	assert.Equal(t, "http://ex.com/a", check.Identity)
}

func TestHandleRemove(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.svc.Add(context.Background(), &domain.ItemRef{Title: "A", Permalink: "http://ex.com/a"}))
	header := http.Header{auth.NonceHeader: []string{env.nonces.Create(NonceActionRemove, "http://ex.com/a")}}

	rec := env.do(t, http.MethodDelete, "/api/blacklist?permalink=http://ex.com/a", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "remove needs a nonce")

	other := http.Header{auth.NonceHeader: []string{env.nonces.Create(NonceActionRemove, "http://ex.com/b")}}
	rec = env.do(t, http.MethodDelete, "/api/blacklist?permalink=http://ex.com/a", nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code, "nonce is bound to its permalink")
	assert.Equal(t, domain.Blacklist{"http://ex.com/a": "A"}, env.stored(t))

	rec = env.do(t, http.MethodDelete, "/api/blacklist?permalink=http://ex.com/a", nil, header)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.stored(t))

	rec = env.do(t, http.MethodDelete, "/api/blacklist?permalink=http://ex.com/a", nil, header)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_blacklisted", errorCode(t, rec))

	empty := http.Header{auth.NonceHeader: []string{env.nonces.Create(NonceActionRemove, "")}}
	rec = env.do(t, http.MethodDelete, "/api/blacklist", nil, empty)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngestCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.svc.Add(context.Background(), &domain.ItemRef{Title: "B", Permalink: "http://ex.com/b"}))

	body := []byte(`{"items":[
		{"id":"1","title":"A","permalink":"http://ex.com/a"},
		{"id":"2","title":"B","permalink":" http://ex.com/b"}
	]}`)
	rec := env.do(t, http.MethodPost, "/api/ingest/check", body, http.Header{"Content-Type": []string{"application/json"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var res ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Admitted, 1)
	assert.Equal(t, "1", res.Admitted[0].ID)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "2", res.Skipped[0].ID)

	rec = env.do(t, http.MethodPost, "/api/ingest/check", []byte(`{bad`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngestCheck_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)

	body := append([]byte(`{"items":`), bytes.Repeat([]byte(" "), maxIngestBodyBytes+1)...)
	body = append(body, []byte(`[]}`)...)
	rec := env.do(t, http.MethodPost, "/api/ingest/check", body, http.Header{"Content-Type": []string{"application/json"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

func TestHandleIngestCheck_TooManyItems(t *testing.T) {
	env := newTestEnv(t, nil)

	items := make([]domain.CandidateItem, maxIngestBatch+1)
	body, err := json.Marshal(map[string]any{"items": items})
	require.NoError(t, err)
	rec := env.do(t, http.MethodPost, "/api/ingest/check", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Contains(t, status.Checks, "settings_store")

	env.do(t, http.MethodGet, "/api/blacklist/check?permalink=x", nil, nil)
	rec = env.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feed_blacklist_checks_total")
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "not configured"},
	}))
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{
		"database":       {Status: "up"},
		"settings_store": {Status: "down", Message: "s3 ping failed"},
	}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "ping failed"},
	}))
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("bucket gone") }

func TestHealthReadiness_StoreDown(t *testing.T) {
	hc := NewHealthChecker(nil, nil, downPinger{}, "s3")
	rec := httptest.NewRecorder()
	hc.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket gone")
}
