// Package memstore provides an in-memory store.Driver. It backs the
// "memory" database driver used for local development and tests, where the
// event log does not need to survive a restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kallestrom/nftmarket/internal/clock"
	"github.com/kallestrom/nftmarket/internal/config"
	"github.com/kallestrom/nftmarket/internal/event"
	"github.com/kallestrom/nftmarket/internal/store"
)

func init() {
	store.Register("memory", open)
}

func open(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	return New(clk), nil
}

// New returns in-memory Repositories.
func New(clk clock.Clock) *store.Repositories {
	return &store.Repositories{
		Listings: &ListingRepo{listings: make(map[int64]store.Listing), clock: clk},
		Auctions: &AuctionRepo{auctions: make(map[int64]store.Auction), clock: clk},
		Events:   NewEventStore(clk),
		Closer:   closerFunc(func() error { return nil }),
		Ping:     func(context.Context) error { return nil },
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ListingRepo implements store.ListingRepository in memory.
type ListingRepo struct {
	mu       sync.RWMutex
	listings map[int64]store.Listing
	clock    clock.Clock
}

func (r *ListingRepo) Upsert(_ context.Context, l *store.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	if existing, ok := r.listings[l.ItemID]; ok {
		l.CreatedAt = existing.CreatedAt
	} else {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	r.listings[l.ItemID] = *l
	return nil
}

func (r *ListingRepo) Get(_ context.Context, itemID int64) (*store.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[itemID]
	if !ok {
		return nil, fmt.Errorf("listing for item %d not found", itemID)
	}
	return &l, nil
}

func (r *ListingRepo) ListActive(_ context.Context) ([]store.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []store.Listing
	for _, l := range r.listings {
		if l.Active {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

// AuctionRepo implements store.AuctionRepository in memory.
type AuctionRepo struct {
	mu       sync.RWMutex
	auctions map[int64]store.Auction
	clock    clock.Clock
}

func (r *AuctionRepo) Upsert(_ context.Context, a *store.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	if existing, ok := r.auctions[a.ItemID]; ok {
		a.CreatedAt = existing.CreatedAt
	} else {
		a.CreatedAt = now
	}
	r.auctions[a.ItemID] = *a
	return nil
}

func (r *AuctionRepo) Get(_ context.Context, itemID int64) (*store.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[itemID]
	if !ok {
		return nil, fmt.Errorf("auction for item %d not found", itemID)
	}
	return &a, nil
}

func (r *AuctionRepo) ListActive(_ context.Context) ([]store.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []store.Auction
	for _, a := range r.auctions {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

// EventStore implements event.Store in memory.
type EventStore struct {
	mu     sync.RWMutex
	events []event.Event
	clock  clock.Clock
}

// NewEventStore returns an empty in-memory event store.
func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{clock: clk}
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.clock.Now().UTC()
		}
		s.events = append(s.events, e)
	}
	return nil
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}
