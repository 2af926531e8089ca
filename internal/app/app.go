// Package app wires configuration into the live blacklist components shared
// by the server and the admin CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/feed-aggregator/internal/auth"
	"github.com/ignite/feed-aggregator/internal/config"
	"github.com/ignite/feed-aggregator/internal/ingest"
	"github.com/ignite/feed-aggregator/internal/metrics"
	"github.com/ignite/feed-aggregator/internal/pkg/distlock"
	"github.com/ignite/feed-aggregator/internal/pkg/retry"
	"github.com/ignite/feed-aggregator/internal/repository/kv"
	"github.com/ignite/feed-aggregator/internal/repository/postgres"
	"github.com/ignite/feed-aggregator/internal/service/blacklist"
	"github.com/ignite/feed-aggregator/internal/storage"
)

// App holds the opened connections and the services built on them.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Store     storage.Store
	Items     *postgres.FeedItemRepo
	Metrics   *metrics.Metrics
	Nonces    *auth.NonceGuard
	Blacklist *blacklist.Service
	Command   *blacklist.Command
	Filter    *ingest.Filter
}

// withTimeouts appends connect and statement timeouts to a lib/pq DSN.
func withTimeouts(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "connect_timeout") {
		dsn += sep + "connect_timeout=5"
		sep = "&"
	}
	if !strings.Contains(dsn, "statement_timeout") {
		dsn += sep + "options=-c%20statement_timeout%3D15000"
	}
	return dsn
}

// OpenDB opens the item database with the configured driver and pool limits.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	dsn := cfg.URL
	if cfg.Driver == "postgres" {
		dsn = withTimeouts(dsn)
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Lifetime())
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenRedis connects to Redis when a URL is configured. A nil client with a
// nil error means Redis is not in use.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	var client *redis.Client
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		client = redis.NewClient(&redis.Options{Addr: cfg.URL})
	} else {
		client = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New opens every configured dependency and builds the blacklist services.
// A Redis failure is logged and tolerated; database and store failures are
// fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db

	rdb, err := OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Printf("[app] Warning: %v, continuing without redis", err)
	}
	a.Redis = rdb

	store, err := storage.New(ctx, cfg.Storage, storage.Deps{DB: db, Redis: rdb})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("settings store: %w", err)
	}
	a.Store = store

	a.Items = postgres.NewFeedItemRepo(db)
	a.Metrics = metrics.New()
	a.Nonces, err = auth.NewFromConfig(cfg.Auth)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := blacklist.Options{
		Retry: retry.Policy{
			Attempts:  cfg.Blacklist.PersistAttempts,
			BaseDelay: cfg.Blacklist.RetryDelay(),
			MaxDelay:  2 * time.Second,
		},
		LockWait: cfg.Blacklist.LockWait(),
		Observer: a.Metrics,
	}
	if cfg.Blacklist.DistributedLock {
		opts.Lock = distlock.NewFactory(rdb, db, "lock:"+cfg.Blacklist.SettingsKey, cfg.Blacklist.LockTTL())
	}

	repo := kv.NewBlacklistRepo(store, cfg.Blacklist.SettingsKey)
	a.Blacklist = blacklist.NewService(repo, a.Items, opts)

	cmdCfg := blacklist.CommandConfig{
		ItemKind:   cfg.Blacklist.ItemKind,
		ListingURL: cfg.Blacklist.ListingURL,
		ActionURL:  cfg.Blacklist.ActionURL,
	}
	// a nil *NonceGuard must stay a nil interface
	if a.Nonces != nil {
		cmdCfg.Nonces = a.Nonces
	}
	a.Command, err = blacklist.NewCommand(a.Blacklist, a.Items, cmdCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Filter = ingest.NewFilter(a.Blacklist, a.Metrics)
	return a, nil
}

// Pinger returns the store as a storage.Pinger, or nil when the backend
// cannot report reachability.
func (a *App) Pinger() storage.Pinger {
	if p, ok := a.Store.(storage.Pinger); ok {
		return p
	}
	return nil
}

// Close releases every opened connection.
func (a *App) Close() {
	if c, ok := a.Store.(interface{ Close() error }); ok {
		c.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
