// Package store is the local state store: the single owner of the user's
// items and account record.
//
// A Store runs one worker goroutine that holds the in-memory state. Every
// public method is a request to that worker and is processed to completion
// before the next one starts, so mutations never interleave and reads always
// observe the result of the last finished write. Mutations are written to the
// backing medium before the call returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/listlift/internal/model"
	"github.com/raine/listlift/internal/storage"
)

// Keys under which the two blobs are persisted.
const (
	ItemsKey   = "items"
	AccountKey = "account"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("store is closed")
	// ErrItemNotFound is returned by UpdateItem for an unknown id.
	ErrItemNotFound = errors.New("item not found")
	// ErrQuotaExceeded is returned when the plan's listing quota is used up.
	ErrQuotaExceeded = errors.New("listing quota exceeded")
)

// PersistenceError reports that the medium could not be read or written.
// After a failed write the in-memory state still holds the mutation.
type PersistenceError struct {
	Key string
	Op  string // "read", "encode" or "write"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// request is one unit of work for the worker.
type request struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	err  error
	done chan struct{}
}

// Store owns the items collection and the account record.
type Store struct {
	backend storage.Backend
	now     func() time.Time

	// Owned by the worker goroutine
	items   []model.Item
	account model.Account

	inbox  chan *request
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Open loads state from backend and starts the worker. The returned store is
// fully loaded.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	workerCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
		inbox:   make(chan *request),
		ctx:     workerCtx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.runWorker()

	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// runWorker processes requests one at a time until Close.
func (s *Store) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Release senders that raced with Close
			for {
				select {
				case req := <-s.inbox:
					req.err = ErrClosed
					close(req.done)
				default:
					return
				}
			}
		case req := <-s.inbox:
			s.process(req)
		}
	}
}

func (s *Store) process(req *request) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic in store worker")
			req.err = fmt.Errorf("store operation panicked: %v", r)
		}
		close(req.done)
	}()

	// The caller may stop waiting, but an accepted request always runs to completion
	req.err = req.run(context.WithoutCancel(req.ctx))
}

// do hands fn to the worker and waits for it to finish. ctx only bounds the
// wait for the worker to accept the request.
func (s *Store) do(ctx context.Context, fn func(ctx context.Context) error) error {
	req := &request{ctx: ctx, run: fn, done: make(chan struct{})}

	select {
	case s.inbox <- req:
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-req.done
	return req.err
}

// Close stops the worker. It is safe to call more than once.
func (s *Store) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}

// Load replaces the in-memory state with what the medium holds. Missing or
// undecodable blobs yield an empty collection and a default account. Only a
// failure to read the medium is returned, in which case state is unchanged.
func (s *Store) Load(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		itemsRaw, err := s.backend.Get(ctx, ItemsKey)
		if err != nil && !errors.Is(err, storage.ErrCorrupt) {
			return &PersistenceError{Key: ItemsKey, Op: "read", Err: err}
		}
		accountRaw, accErr := s.backend.Get(ctx, AccountKey)
		if accErr != nil && !errors.Is(accErr, storage.ErrCorrupt) {
			return &PersistenceError{Key: AccountKey, Op: "read", Err: accErr}
		}

		var itemsAssigned, accountAssigned bool
		s.items, itemsAssigned = loadItems(itemsRaw, err)
		s.account, accountAssigned = loadAccount(accountRaw, accErr)

		// Ids given to legacy records are written back so they stay stable
		if itemsAssigned {
			if err := s.persistItems(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to persist assigned item ids")
			}
		}
		if accountAssigned {
			if err := s.persistAccount(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to persist assigned user id")
			}
		}
		return nil
	})
}

func loadItems(raw []byte, readErr error) ([]model.Item, bool) {
	if readErr != nil {
		log.Warn().Err(readErr).Str("key", ItemsKey).Msg("stored items unreadable, starting empty")
		return []model.Item{}, false
	}
	if raw == nil {
		return []model.Item{}, false
	}
	items, assigned, err := decodeItems(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", ItemsKey).Msg("failed to decode stored items, starting empty")
		return []model.Item{}, false
	}
	return items, assigned
}

func loadAccount(raw []byte, readErr error) (model.Account, bool) {
	if readErr != nil {
		log.Warn().Err(readErr).Str("key", AccountKey).Msg("stored account unreadable, using default")
		return model.DefaultAccount(), false
	}
	if raw == nil {
		return model.DefaultAccount(), false
	}
	a, assigned, err := decodeAccount(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", AccountKey).Msg("failed to decode stored account, using default")
		return model.DefaultAccount(), false
	}
	return a, assigned
}

func (s *Store) persistItems(ctx context.Context) error {
	data, err := encodeBlob(s.items)
	if err != nil {
		return &PersistenceError{Key: ItemsKey, Op: "encode", Err: err}
	}
	if err := s.backend.Put(ctx, ItemsKey, data); err != nil {
		return &PersistenceError{Key: ItemsKey, Op: "write", Err: err}
	}
	return nil
}

func (s *Store) persistAccount(ctx context.Context) error {
	data, err := encodeBlob(s.account)
	if err != nil {
		return &PersistenceError{Key: AccountKey, Op: "encode", Err: err}
	}
	if err := s.backend.Put(ctx, AccountKey, data); err != nil {
		return &PersistenceError{Key: AccountKey, Op: "write", Err: err}
	}
	return nil
}

// Items returns a copy of the item collection in storage order.
func (s *Store) Items(ctx context.Context) ([]model.Item, error) {
	var out []model.Item
	err := s.do(ctx, func(ctx context.Context) error {
		out = cloneItems(s.items)
		return nil
	})
	return out, err
}

// Item returns a copy of the item with id.
func (s *Store) Item(ctx context.Context, id string) (model.Item, bool, error) {
	var (
		out   model.Item
		found bool
	)
	err := s.do(ctx, func(ctx context.Context) error {
		if i := s.indexOf(id); i >= 0 {
			out, found = s.items[i].Clone(), true
		}
		return nil
	})
	return out, found, err
}

// SaveItems replaces the whole collection with items.
func (s *Store) SaveItems(ctx context.Context, items []model.Item) error {
	items = cloneItems(items)
	if items == nil {
		items = []model.Item{}
	}
	return s.do(ctx, func(ctx context.Context) error {
		s.items = items
		return s.persistItems(ctx)
	})
}

// UpsertItem replaces the item with the same id in place, or appends it.
// UpdatedAt is set to the current time. The stored value is returned.
func (s *Store) UpsertItem(ctx context.Context, item model.Item) (model.Item, error) {
	item = item.Clone()
	var out model.Item
	err := s.do(ctx, func(ctx context.Context) error {
		item.UpdatedAt = s.now()
		if i := s.indexOf(item.ID); i >= 0 {
			s.items[i] = item
		} else {
			s.items = append(s.items, item)
		}
		out = item.Clone()
		return s.persistItems(ctx)
	})
	return out, err
}

// UpdateItem applies fn to the stored item with id and persists the result.
// If fn returns an error nothing changes. fn runs on the store's worker and
// must not call back into the store.
func (s *Store) UpdateItem(ctx context.Context, id string, fn func(*model.Item) error) (model.Item, error) {
	var out model.Item
	err := s.do(ctx, func(ctx context.Context) error {
		i := s.indexOf(id)
		if i < 0 {
			return ErrItemNotFound
		}
		item := s.items[i].Clone()
		if err := fn(&item); err != nil {
			return err
		}
		// fn may have stored caller-owned references into item
		item = item.Clone()
		item.ID = s.items[i].ID
		item.UpdatedAt = s.now()
		s.items[i] = item
		out = item.Clone()
		return s.persistItems(ctx)
	})
	return out, err
}

// DeleteItem removes every item with id. An unknown id is a no-op and does
// not touch the medium.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.do(ctx, func(ctx context.Context) error {
		kept := s.items[:0:0]
		for _, it := range s.items {
			if it.ID != id {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(s.items) {
			return nil
		}
		s.items = kept
		return s.persistItems(ctx)
	})
}

// Account returns a copy of the account record.
func (s *Store) Account(ctx context.Context) (model.Account, error) {
	var out model.Account
	err := s.do(ctx, func(ctx context.Context) error {
		out = s.account.Clone()
		return nil
	})
	return out, err
}

// SaveAccount replaces the account record.
func (s *Store) SaveAccount(ctx context.Context, account model.Account) error {
	account = account.Clone()
	return s.do(ctx, func(ctx context.Context) error {
		s.account = account
		return s.persistAccount(ctx)
	})
}

// UpdateAccount applies fn to the account and persists the result. If fn
// returns an error nothing changes. fn must not call back into the store.
func (s *Store) UpdateAccount(ctx context.Context, fn func(*model.Account) error) (model.Account, error) {
	var out model.Account
	err := s.do(ctx, func(ctx context.Context) error {
		a := s.account.Clone()
		if err := fn(&a); err != nil {
			return err
		}
		s.account = a.Clone()
		out = a.Clone()
		return s.persistAccount(ctx)
	})
	return out, err
}

// ChangePlan switches the plan and its listing limit in one step. Usage is kept.
func (s *Store) ChangePlan(ctx context.Context, plan model.Plan) (model.Account, error) {
	if !plan.Valid() {
		return model.Account{}, fmt.Errorf("unknown plan %q", plan)
	}
	return s.UpdateAccount(ctx, func(a *model.Account) error {
		*a = a.WithPlan(plan)
		return nil
	})
}

// RecordProcessedListing counts one processed listing against the quota.
// When the quota is already used up the counter is left alone and
// ErrQuotaExceeded is returned.
func (s *Store) RecordProcessedListing(ctx context.Context) (model.Quotas, error) {
	a, err := s.UpdateAccount(ctx, func(a *model.Account) error {
		if a.Quotas.Exhausted() {
			return ErrQuotaExceeded
		}
		a.Quotas.ProcessedListings++
		return nil
	})
	if errors.Is(err, ErrQuotaExceeded) {
		cur, accErr := s.Account(ctx)
		if accErr != nil {
			return model.Quotas{}, err
		}
		return cur.Quotas, err
	}
	return a.Quotas, err
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(in []model.Item) []model.Item {
	if in == nil {
		return nil
	}
	out := make([]model.Item, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}
