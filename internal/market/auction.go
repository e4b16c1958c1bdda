package market

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kallestrom/nftmarket/internal/event"
	"github.com/kallestrom/nftmarket/internal/store"
)

// ListItemOnAuction puts an item up for English auction. Custody moves into
// marketplace escrow; the deadline and the participant threshold are both
// fixed now, from the current policy.
func (m *Marketplace) ListItemOnAuction(ctx context.Context, caller string, itemID, startPrice int64) error {
	ctx, span := m.tracer.Start(ctx, "Marketplace.ListItemOnAuction",
		trace.WithAttributes(
			attribute.String("caller", caller),
			attribute.Int64("item_id", itemID),
			attribute.Int64("start_price", startPrice),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if startPrice <= 0 {
		return ErrInvalidPrice
	}
	if a := m.auctions[itemID]; a != nil && a.Active {
		return ErrAlreadyOnAuction
	}
	if l := m.listings[itemID]; l != nil && l.Active {
		return ErrAlreadyListed
	}

	if err := m.registry.TransferFrom(ctx, m.account, caller, m.account, itemID); err != nil {
		return collaboratorErr("registry.TransferFrom", err)
	}

	a := &Auction{
		ItemID:          itemID,
		Seller:          caller,
		StartPrice:      startPrice,
		Highest:         nil,
		BidCount:        0,
		MinParticipants: m.policy.MinParticipants,
		EndsAt:          m.clock.Now().Add(m.policy.AuctionPeriod),
		Active:          true,
	}
	m.auctions[itemID] = a

	m.record(ctx, itemID, event.AuctionListed, event.AuctionListedData{
		ItemID:          itemID,
		Seller:          caller,
		StartPrice:      startPrice,
		MinParticipants: a.MinParticipants,
		EndsAt:          a.EndsAt,
	})
	m.snapshotAuction(ctx, a, nil, nil)

	m.logger.InfoContext(ctx, "item listed on auction",
		slog.Int64("item_id", itemID),
		slog.String("seller", caller),
		slog.Int64("start_price", startPrice),
		slog.Time("ends_at", a.EndsAt),
	)
	return nil
}

// MakeBid escrows the caller's bid and refunds the previous highest bidder
// in full, so the marketplace never holds more or less than the current
// highest bid for an auction. The first bid must strictly exceed the start
// price; later bids must strictly exceed the highest bid.
func (m *Marketplace) MakeBid(ctx context.Context, caller string, itemID, amount int64) error {
	ctx, span := m.tracer.Start(ctx, "Marketplace.MakeBid",
		trace.WithAttributes(
			attribute.String("caller", caller),
			attribute.Int64("item_id", itemID),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.auctions[itemID]
	if a == nil || !a.Active {
		return ErrNotOnAuction
	}
	if !m.clock.Now().Before(a.EndsAt) {
		return ErrAuctionExpired
	}
	if amount <= a.floor() {
		return ErrBidTooLow
	}

	// Escrow the new bid before releasing the old one; if the refund then
	// fails, the new escrow is unwound so held funds still equal exactly
	// one highest bid.
	if err := m.ledger.TransferFrom(ctx, m.account, caller, m.account, amount); err != nil {
		return collaboratorErr("ledger.TransferFrom", err)
	}
	if prev := a.Highest; prev != nil {
		if err := m.ledger.Transfer(ctx, m.account, prev.Bidder, prev.Amount); err != nil {
			if undoErr := m.ledger.Transfer(ctx, m.account, caller, amount); undoErr != nil {
				m.logger.ErrorContext(ctx, "unwinding bid escrow failed",
					slog.Int64("item_id", itemID),
					slog.Any("error", undoErr),
				)
			}
			return collaboratorErr("ledger.Transfer", err)
		}
	}

	a.Highest = &Bid{Bidder: caller, Amount: amount}
	a.BidCount++

	m.record(ctx, itemID, event.BidPlaced, event.BidPlacedData{
		ItemID: itemID,
		Bidder: caller,
		Amount: amount,
	})
	m.snapshotAuction(ctx, a, nil, nil)

	m.logger.InfoContext(ctx, "bid placed",
		slog.Int64("item_id", itemID),
		slog.String("bidder", caller),
		slog.Int64("amount", amount),
		slog.Int("bid_count", a.BidCount),
	)
	return nil
}

// FinishAuction settles an auction once its deadline has passed. Any caller
// may trigger it; the outcome is a pure function of recorded state and the
// clock. An auction that reached its participant threshold settles as a
// sale (sold=true); otherwise the item returns to the seller, the highest
// bidder, if any, is refunded in full, and the seller is reported as winner
// with amount 0. A second call fails with ErrNotOnAuction.
func (m *Marketplace) FinishAuction(ctx context.Context, caller string, itemID int64) (winner string, amount int64, sold bool, err error) {
	ctx, span := m.tracer.Start(ctx, "Marketplace.FinishAuction",
		trace.WithAttributes(
			attribute.String("caller", caller),
			attribute.Int64("item_id", itemID),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.auctions[itemID]
	if a == nil || !a.Active {
		return "", 0, false, ErrNotOnAuction
	}
	if m.clock.Now().Before(a.EndsAt) {
		return "", 0, false, ErrTooEarly
	}

	sold = a.Highest != nil && a.BidCount >= a.MinParticipants

	if sold {
		if err := m.registry.TransferFrom(ctx, m.account, m.account, a.Highest.Bidder, itemID); err != nil {
			return "", 0, false, collaboratorErr("registry.TransferFrom", err)
		}
		if err := m.ledger.Transfer(ctx, m.account, a.Seller, a.Highest.Amount); err != nil {
			return "", 0, false, collaboratorErr("ledger.Transfer", err)
		}
		winner, amount = a.Highest.Bidder, a.Highest.Amount
	} else {
		if err := m.registry.TransferFrom(ctx, m.account, m.account, a.Seller, itemID); err != nil {
			return "", 0, false, collaboratorErr("registry.TransferFrom", err)
		}
		if a.Highest != nil {
			if err := m.ledger.Transfer(ctx, m.account, a.Highest.Bidder, a.Highest.Amount); err != nil {
				return "", 0, false, collaboratorErr("ledger.Transfer", err)
			}
		}
		winner, amount = a.Seller, 0
	}

	a.Active = false

	m.record(ctx, itemID, event.AuctionFinished, event.AuctionFinishedData{
		ItemID: itemID,
		Winner: winner,
		Amount: amount,
		Sold:   sold,
	})
	closedAt := m.clock.Now().UTC()
	m.snapshotAuction(ctx, a, &winner, &closedAt)

	m.logger.InfoContext(ctx, "auction finished",
		slog.Int64("item_id", itemID),
		slog.String("winner", winner),
		slog.Int64("amount", amount),
		slog.Bool("sold", sold),
	)
	return winner, amount, sold, nil
}

// ExpiredAuctions returns the ids of active auctions whose deadline has
// passed, ready to be finished.
func (m *Marketplace) ExpiredAuctions() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var ids []int64
	for id, a := range m.auctions {
		if a.Active && !now.Before(a.EndsAt) {
			ids = append(ids, id)
		}
	}
	return ids
}

// snapshotAuction mirrors an auction into the repository. Best-effort.
func (m *Marketplace) snapshotAuction(ctx context.Context, a *Auction, winner *string, closedAt *time.Time) {
	rec := &store.Auction{
		ItemID:          a.ItemID,
		Seller:          a.Seller,
		StartPrice:      a.StartPrice,
		BidCount:        a.BidCount,
		MinParticipants: a.MinParticipants,
		EndsAt:          a.EndsAt.UTC(),
		Active:          a.Active,
		Winner:          winner,
		ClosedAt:        closedAt,
	}
	if a.Highest != nil {
		rec.HighestBid = &a.Highest.Amount
		rec.HighestBidder = &a.Highest.Bidder
		if winner != nil && *winner == a.Highest.Bidder {
			rec.WinAmount = &a.Highest.Amount
		}
	}
	if err := m.auctionRepo.Upsert(ctx, rec); err != nil {
		m.logger.ErrorContext(ctx, "persisting auction snapshot",
			slog.Int64("item_id", a.ItemID),
			slog.Any("error", err),
		)
	}
}
