package memstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kallestrom/nftmarket/internal/clock"
	"github.com/kallestrom/nftmarket/internal/event"
	"github.com/kallestrom/nftmarket/internal/store"
	"github.com/kallestrom/nftmarket/internal/store/memstore"
)

func newRepos() (*store.Repositories, *clock.Mock) {
	clk := &clock.Mock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return memstore.New(clk), clk
}

func TestListingRepo_UpsertPreservesCreatedAt(t *testing.T) {
	repos, clk := newRepos()
	ctx := context.Background()

	l := &store.Listing{ItemID: 1, Seller: "alice", Price: 4, Active: true}
	if err := repos.Listings.Upsert(ctx, l); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	created := l.CreatedAt

	clk.Advance(time.Hour)
	l.Active = false
	if err := repos.Listings.Upsert(ctx, l); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := repos.Listings.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if !got.UpdatedAt.After(created) {
		t.Errorf("UpdatedAt = %v, want after %v", got.UpdatedAt, created)
	}
	if got.Active {
		t.Error("expected listing to be inactive after update")
	}
}

func TestListingRepo_GetMissing(t *testing.T) {
	repos, _ := newRepos()

	if _, err := repos.Listings.Get(context.Background(), 99); err == nil {
		t.Error("expected error for unknown item")
	}
}

func TestAuctionRepo_ListActive(t *testing.T) {
	repos, clk := newRepos()
	ctx := context.Background()

	for _, a := range []*store.Auction{
		{ItemID: 2, Seller: "alice", StartPrice: 2, EndsAt: clk.Now().Add(time.Hour), Active: true},
		{ItemID: 1, Seller: "bob", StartPrice: 5, EndsAt: clk.Now().Add(time.Hour), Active: true},
		{ItemID: 3, Seller: "carol", StartPrice: 1, EndsAt: clk.Now(), Active: false},
	} {
		if err := repos.Auctions.Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert(%d): %v", a.ItemID, err)
		}
	}

	active, err := repos.Auctions.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("ListActive returned %d auctions, want 2", len(active))
	}
	if active[0].ItemID != 1 || active[1].ItemID != 2 {
		t.Errorf("item ids = [%d, %d], want [1, 2]", active[0].ItemID, active[1].ItemID)
	}
}

func TestEventStore_AppendAssignsIDAndTime(t *testing.T) {
	repos, clk := newRepos()
	ctx := context.Background()

	e := event.Event{
		AggregateID: "item-1",
		Type:        event.ListingChanged,
		Data:        json.RawMessage(`{}`),
		Version:     1,
	}
	if err := repos.Events.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := repos.Events.Load(ctx, "item-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Load returned %d events, want 1", len(loaded))
	}
	if loaded[0].ID == "" {
		t.Error("expected an assigned event id")
	}
	if !loaded[0].CreatedAt.Equal(clk.Now().UTC()) {
		t.Errorf("CreatedAt = %v, want %v", loaded[0].CreatedAt, clk.Now().UTC())
	}
}

func TestEventStore_LoadOrdersByVersion(t *testing.T) {
	repos, _ := newRepos()
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "item-1", Type: event.BidPlaced, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "item-1", Type: event.AuctionListed, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "item-2", Type: event.AuctionListed, Data: json.RawMessage(`{}`), Version: 1},
	}
	if err := repos.Events.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := repos.Events.Load(ctx, "item-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}
	if loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("versions = [%d, %d], want [1, 2]", loaded[0].Version, loaded[1].Version)
	}

	listed, err := repos.Events.LoadByType(ctx, event.AuctionListed)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("LoadByType(AuctionListed) returned %d, want 2", len(listed))
	}
}
