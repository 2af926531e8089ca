package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/service/blacklist"
)

// FeedItemRepo implements blacklist.ItemStore against PostgreSQL.
// Items live in feed_items; extra metadata in feed_item_meta.
type FeedItemRepo struct{ db *sql.DB }

// NewFeedItemRepo creates a Postgres-backed feed item repository.
func NewFeedItemRepo(db *sql.DB) *FeedItemRepo { return &FeedItemRepo{db: db} }

func (r *FeedItemRepo) Get(ctx context.Context, id int64) (*domain.FeedItem, error) {
	var it domain.FeedItem
	err := r.db.QueryRowContext(ctx,
		`SELECT id, kind, title, permalink, created_at FROM feed_items WHERE id = $1`,
		id,
	).Scan(&it.ID, &it.Kind, &it.Title, &it.Permalink, &it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blacklist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feed item: %w", err)
	}
	return &it, nil
}

func (r *FeedItemRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM feed_items WHERE id = $1)`,
		id,
	).Scan(&exists)
	return exists, err
}

func (r *FeedItemRepo) Kind(ctx context.Context, id int64) (string, error) {
	return r.column(ctx, "kind", id)
}

func (r *FeedItemRepo) Title(ctx context.Context, id int64) (string, error) {
	return r.column(ctx, "title", id)
}

// column reads a single text column. Only called with constant names.
func (r *FeedItemRepo) column(ctx context.Context, name string, id int64) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM feed_items WHERE id = $1`, name),
		id,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", blacklist.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get feed item %s: %w", name, err)
	}
	return v, nil
}

// Meta returns the metadata value for key. The permalink is stored on the
// item row itself; everything else comes from feed_item_meta.
func (r *FeedItemRepo) Meta(ctx context.Context, id int64, key string) (string, error) {
	if key == domain.MetaPermalink {
		return r.column(ctx, "permalink", id)
	}

	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT meta_value FROM feed_item_meta WHERE item_id = $1 AND meta_key = $2`,
		id, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get feed item meta: %w", err)
	}
	return v, nil
}

// SetMeta upserts a metadata value.
func (r *FeedItemRepo) SetMeta(ctx context.Context, id int64, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_item_meta (item_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value
	`, id, key, value)
	if err != nil {
		return fmt.Errorf("set feed item meta: %w", err)
	}
	return nil
}

// Create inserts an item and fills in its ID and CreatedAt.
func (r *FeedItemRepo) Create(ctx context.Context, it *domain.FeedItem) error {
	if it.Kind == "" {
		it.Kind = domain.DefaultFeedItemKind
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feed_items (kind, title, permalink, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`, it.Kind, it.Title, it.Permalink).Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		return fmt.Errorf("create feed item: %w", err)
	}
	return nil
}

// HardDelete removes the item and its metadata in one transaction.
// A missing item is not an error.
func (r *FeedItemRepo) HardDelete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete feed item: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_item_meta WHERE item_id = $1`, id); err != nil {
		return fmt.Errorf("delete feed item meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete feed item: %w", err)
	}
	return tx.Commit()
}
