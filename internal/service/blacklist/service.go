package blacklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/pkg/distlock"
	"github.com/ignite/feed-aggregator/internal/pkg/logger"
	"github.com/ignite/feed-aggregator/internal/pkg/retry"
)

// Options tunes a Service. Zero values pick sensible defaults.
type Options struct {
	// Retry applies to every repository Load and Save.
	Retry retry.Policy
	// Lock, when set, serializes writers across processes.
	Lock distlock.Factory
	// LockWait bounds how long a writer waits for the lock before ErrBusy.
	LockWait time.Duration
	// LockPoll is the interval between distributed lock attempts.
	LockPoll time.Duration
	Observer Observer
}

// Service implements the blacklist business logic. It is safe for concurrent
// use. Writers (Add, Remove) are serialized; readers take no lock.
type Service struct {
	repo  Repository
	items ItemStore
	opts  Options

	// sem serializes writers within the process.
	sem chan struct{}
}

// NewService creates a blacklist service over the given repository and item
// storage.
func NewService(repo Repository, items ItemStore, opts Options) *Service {
	if opts.Retry.Attempts < 2 {
		opts.Retry.Attempts = 2
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	if opts.LockPoll <= 0 {
		opts.LockPoll = 50 * time.Millisecond
	}
	if opts.Observer == nil {
		opts.Observer = NoopObserver{}
	}
	return &Service{
		repo:  repo,
		items: items,
		opts:  opts,
		sem:   make(chan struct{}, 1),
	}
}

// Contains reports whether permalink is blacklisted. Every call reads the
// current mapping from the repository.
func (s *Service) Contains(ctx context.Context, permalink string) (bool, error) {
	b, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	blocked := b.Has(domain.NormalizePermalink(permalink))
	s.opts.Observer.ObserveCheck(blocked)
	return blocked, nil
}

// Add blacklists the referenced item: it is deleted from item storage and
// its identity is recorded with its title as label. A nil ref is a no-op.
// Adding an identity that is already present overwrites its label. A
// permalink that is not valid UTF-8 yields ErrInvalidPermalink and nothing
// is deleted.
func (s *Service) Add(ctx context.Context, ref *domain.ItemRef) (err error) {
	if ref == nil {
		return nil
	}
	entry := domain.NewBlacklistEntry(ref.Title, ref.Permalink)
	opID := uuid.NewString()
	start := time.Now()
	defer func() { s.opts.Observer.ObserveWrite("add", err, time.Since(start)) }()

	if !domain.ValidIdentity(entry.Identity) {
		logger.Warn("blacklist add rejected", "op_id", opID, "item_id", ref.ID, "error", ErrInvalidPermalink)
		return ErrInvalidPermalink
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.load(ctx)
	if err != nil {
		return err
	}
	updated := current.With(entry)

	// The item is deleted before the mapping is saved. A crash in between
	// loses the item without blacklisting it.
	if ref.ID > 0 {
		if err := s.items.HardDelete(ctx, ref.ID); err != nil {
			return fmt.Errorf("delete feed item %d: %w", ref.ID, err)
		}
	}

	if err := s.save(ctx, updated); err != nil {
		logger.Error("blacklist save failed after item delete",
			"op_id", opID, "item_id", ref.ID, "identity", entry.Identity, "error", err)
		return err
	}

	if mapping, merr := json.Marshal(updated); merr == nil {
		logger.Debug("blacklist updated",
			"op_id", opID, "item_id", ref.ID, "identity", entry.Identity, "blacklist", string(mapping))
	} else {
		logger.Warn("blacklist updated, mapping not loggable",
			"op_id", opID, "item_id", ref.ID, "identity", entry.Identity, "size", len(updated), "error", merr)
	}
	s.opts.Observer.ObserveSize(len(updated))
	return nil
}

// AddByID resolves the item's title and permalink from item storage and
// blacklists it.
func (s *Service) AddByID(ctx context.Context, id int64) error {
	title, err := s.items.Title(ctx, id)
	if err != nil {
		return fmt.Errorf("item %d title: %w", id, err)
	}
	permalink, err := s.items.Meta(ctx, id, domain.MetaPermalink)
	if err != nil {
		return fmt.Errorf("item %d permalink: %w", id, err)
	}
	return s.Add(ctx, &domain.ItemRef{ID: id, Title: title, Permalink: permalink})
}

// Remove takes permalink off the blacklist. Returns ErrNotFound when it is
// not blacklisted.
func (s *Service) Remove(ctx context.Context, permalink string) (err error) {
	identity := domain.NormalizePermalink(permalink)
	opID := uuid.NewString()
	start := time.Now()
	defer func() { s.opts.Observer.ObserveWrite("remove", err, time.Since(start)) }()

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.load(ctx)
	if err != nil {
		return err
	}
	if !current.Has(identity) {
		return ErrNotFound
	}
	updated := current.Without(identity)
	if err := s.save(ctx, updated); err != nil {
		return err
	}

	logger.Info("blacklist entry removed", "op_id", opID, "identity", identity)
	s.opts.Observer.ObserveSize(len(updated))
	return nil
}

// Snapshot returns a copy of the current mapping.
func (s *Service) Snapshot(ctx context.Context) (domain.Blacklist, error) {
	return s.load(ctx)
}

// List returns every entry ordered by identity.
func (s *Service) List(ctx context.Context) ([]domain.BlacklistEntry, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return b.Entries(), nil
}

// Count returns the number of blacklisted identities.
func (s *Service) Count(ctx context.Context) (int, error) {
	b, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (s *Service) load(ctx context.Context) (domain.Blacklist, error) {
	var b domain.Blacklist
	err := retry.Do(ctx, s.opts.Retry, "blacklist.load", func(ctx context.Context) error {
		var err error
		b, err = s.repo.Load(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}
	return b, nil
}

func (s *Service) save(ctx context.Context, b domain.Blacklist) error {
	err := retry.Do(ctx, s.opts.Retry, "blacklist.save", func(ctx context.Context) error {
		return s.repo.Save(ctx, b)
	})
	if err != nil {
		return fmt.Errorf("%w: save: %w", ErrPersistence, err)
	}
	return nil
}

// lock acquires the in-process writer slot and, when configured, the
// distributed lock. Both waits share the LockWait budget.
func (s *Service) lock(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(s.opts.LockWait)
	timer := time.NewTimer(s.opts.LockWait)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if s.opts.Lock == nil {
		return func() { <-s.sem }, nil
	}

	l := s.opts.Lock()
	if err := distlock.AcquireWait(ctx, l, time.Until(deadline), s.opts.LockPoll); err != nil {
		<-s.sem
		if errors.Is(err, distlock.ErrTimeout) {
			return nil, ErrBusy
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}

	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("blacklist lock release failed", "error", err)
		}
		<-s.sem
	}, nil
}
