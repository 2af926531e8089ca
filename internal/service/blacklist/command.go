package blacklist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/pkg/logger"
	"github.com/osteele/liquid"
)

// NonceAction is the action name blacklist tokens are bound to.
const NonceAction = "blacklist_feed_item"

// NonceGuard issues and checks short-lived action tokens bound to an action
// and the subject acted on.
type NonceGuard interface {
	Create(action, subject string) string
	Verify(action, subject, token string) bool
}

// CommandConfig configures a Command.
type CommandConfig struct {
	// ItemKind is the only kind the command accepts.
	ItemKind string
	// ListingURL is a Liquid template for the redirect after a successful
	// run. It receives kind and paged.
	ListingURL string
	// ActionURL is a Liquid template for the per-item action link. It
	// receives id, kind, paged and nonce.
	ActionURL string
	// Nonces guards Handle. Nil disables the check.
	Nonces NonceGuard
}

// CommandRequest is the raw input of one command invocation.
type CommandRequest struct {
	ItemID string
	Paged  string
	Nonce  string
}

// Command is the admin "blacklist this item" action: validate the target,
// blacklist it, then redirect back to the listing.
type Command struct {
	svc     *Service
	items   ItemStore
	kind    string
	nonces  NonceGuard
	listing *liquid.Template
	action  *liquid.Template
}

func newEngine() *liquid.Engine {
	engine := liquid.NewEngine()
	// URL encode: {{ kind | urlencode }}
	engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})
	return engine
}

// NewCommand compiles the URL templates. A template that does not parse is
// a configuration error.
func NewCommand(svc *Service, items ItemStore, cfg CommandConfig) (*Command, error) {
	if cfg.ItemKind == "" {
		cfg.ItemKind = domain.DefaultFeedItemKind
	}
	engine := newEngine()

	listing, err := engine.ParseString(cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url template: %w", err)
	}
	action, err := engine.ParseString(cfg.ActionURL)
	if err != nil {
		return nil, fmt.Errorf("parse action url template: %w", err)
	}

	return &Command{
		svc:     svc,
		items:   items,
		kind:    cfg.ItemKind,
		nonces:  cfg.Nonces,
		listing: listing,
		action:  action,
	}, nil
}

// ParsePagination reads the paged parameter. Anything but a positive
// integer means "no pagination".
func ParsePagination(raw string) domain.Pagination {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return domain.Pagination{}
	}
	return domain.Pagination{Page: n}
}

// Validate resolves rawID to a stored feed item. An id that does not parse
// or names no item yields ErrNotFound; an item of another kind yields
// ErrWrongKind.
func (c *Command) Validate(ctx context.Context, rawID string) (*domain.FeedItem, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrNotFound
	}

	item, err := c.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != c.kind {
		return nil, ErrWrongKind
	}
	return item, nil
}

// Execute blacklists a validated item.
func (c *Command) Execute(ctx context.Context, item *domain.FeedItem) error {
	return c.svc.AddByID(ctx, item.ID)
}

// Respond returns the listing URL to redirect to, keeping the page.
func (c *Command) Respond(p domain.Pagination) (string, error) {
	out, err := c.listing.RenderString(liquid.Bindings{
		"kind":  c.kind,
		"paged": p.Page,
	})
	if err != nil {
		return "", fmt.Errorf("render listing url: %w", err)
	}
	return out, nil
}

// ActionURL builds the "Blacklist" row action link for item id. The link
// carries a fresh nonce when a guard is configured.
func (c *Command) ActionURL(id int64, p domain.Pagination) (string, error) {
	nonce := ""
	if c.nonces != nil {
		nonce = c.nonces.Create(NonceAction, strconv.FormatInt(id, 10))
	}
	out, err := c.action.RenderString(liquid.Bindings{
		"id":    id,
		"kind":  c.kind,
		"paged": p.Page,
		"nonce": nonce,
	})
	if err != nil {
		return "", fmt.Errorf("render action url: %w", err)
	}
	return out, nil
}

// Handle runs one invocation: nonce check, validation, execution and
// redirect. Nothing is mutated unless validation passes.
func (c *Command) Handle(ctx context.Context, req CommandRequest) (string, error) {
	if c.nonces != nil && !c.nonces.Verify(NonceAction, strings.TrimSpace(req.ItemID), req.Nonce) {
		return "", ErrInvalidNonce
	}
	if strings.TrimSpace(req.ItemID) == "" {
		return "", ErrMissingItem
	}

	item, err := c.Validate(ctx, req.ItemID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrWrongKind) {
			logger.Error("blacklist validate failed", "item", req.ItemID, "error", err)
		}
		return "", err
	}

	if err := c.Execute(ctx, item); err != nil {
		return "", err
	}
	logger.Info("feed item blacklisted", "item_id", item.ID, "permalink", item.Permalink)

	return c.Respond(ParsePagination(req.Paged))
}
