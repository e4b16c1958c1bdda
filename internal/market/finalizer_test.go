package market_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/kallestrom/nftmarket/internal/market"
)

func TestFinalizer_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "bob", 100)
	f.fund(t, "carol", 100)

	expired := f.mint(t, "alice")
	if err := f.m.ListItemOnAuction(ctx, "alice", expired, 2); err != nil {
		t.Fatalf("ListItemOnAuction() error = %v", err)
	}
	_ = f.m.MakeBid(ctx, "bob", expired, 3)
	_ = f.m.MakeBid(ctx, "carol", expired, 8)

	f.clk.Advance(36 * time.Hour)

	// Listed halfway through, so still running after the first expires.
	running := f.mint(t, "alice")
	if err := f.m.ListItemOnAuction(ctx, "alice", running, 2); err != nil {
		t.Fatalf("ListItemOnAuction() error = %v", err)
	}

	f.clk.Advance(36 * time.Hour)

	fin := market.NewFinalizer(f.m, time.Minute, slog.Default())
	if got := fin.Sweep(ctx); got != 1 {
		t.Errorf("Sweep() settled %d auctions, want 1", got)
	}

	if a, _ := f.m.Auction(expired); a.Active {
		t.Error("expired auction still active after sweep")
	}
	if a, _ := f.m.Auction(running); !a.Active {
		t.Error("running auction settled early by sweep")
	}
	if got := f.owner(t, expired); got != "carol" {
		t.Errorf("winner custody = %q, want %q", got, "carol")
	}

	// Sweeping again is a no-op.
	if got := fin.Sweep(ctx); got != 0 {
		t.Errorf("second Sweep() settled %d auctions, want 0", got)
	}
}

func TestFinalizer_SweepRacesAreBenign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.mint(t, "alice")
	if err := f.m.ListItemOnAuction(ctx, "alice", id, 2); err != nil {
		t.Fatalf("ListItemOnAuction() error = %v", err)
	}
	f.clk.Advance(72 * time.Hour)

	// A participant settles first; the sweep sees ErrNotOnAuction and
	// moves on without error.
	if _, _, _, err := f.m.FinishAuction(ctx, "alice", id); err != nil {
		t.Fatalf("FinishAuction() error = %v", err)
	}
	if _, _, _, err := f.m.FinishAuction(ctx, "sweeper", id); !errors.Is(err, market.ErrNotOnAuction) {
		t.Fatalf("expected ErrNotOnAuction, got %v", err)
	}

	fin := market.NewFinalizer(f.m, time.Minute, slog.Default())
	if got := fin.Sweep(ctx); got != 0 {
		t.Errorf("Sweep() settled %d auctions, want 0", got)
	}
}
