package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kallestrom/nftmarket/internal/clock"
	"github.com/kallestrom/nftmarket/internal/store"
)

// AuctionRepo implements store.AuctionRepository with sqlx.
type AuctionRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewAuctionRepo returns a new AuctionRepo.
func NewAuctionRepo(db *sqlx.DB, clk clock.Clock) *AuctionRepo {
	return &AuctionRepo{db: db, clock: clk}
}

func (r *AuctionRepo) Upsert(ctx context.Context, a *store.Auction) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.clock.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auctions (item_id, seller, start_price, highest_bid, highest_bidder,
		                       bid_count, min_participants, ends_at, active, winner,
		                       win_amount, created_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (item_id) DO UPDATE
		 SET seller = EXCLUDED.seller, start_price = EXCLUDED.start_price,
		     highest_bid = EXCLUDED.highest_bid, highest_bidder = EXCLUDED.highest_bidder,
		     bid_count = EXCLUDED.bid_count, min_participants = EXCLUDED.min_participants,
		     ends_at = EXCLUDED.ends_at, active = EXCLUDED.active,
		     winner = EXCLUDED.winner, win_amount = EXCLUDED.win_amount,
		     closed_at = EXCLUDED.closed_at`,
		a.ItemID, a.Seller, a.StartPrice, a.HighestBid, a.HighestBidder,
		a.BidCount, a.MinParticipants, a.EndsAt, a.Active, a.Winner,
		a.WinAmount, a.CreatedAt, a.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting auction for item %d: %w", a.ItemID, err)
	}
	return nil
}

func (r *AuctionRepo) Get(ctx context.Context, itemID int64) (*store.Auction, error) {
	var a store.Auction
	err := r.db.GetContext(ctx, &a, `SELECT * FROM auctions WHERE item_id = $1`, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting auction for item %d: %w", itemID, err)
	}
	return &a, nil
}

func (r *AuctionRepo) ListActive(ctx context.Context) ([]store.Auction, error) {
	var auctions []store.Auction
	err := r.db.SelectContext(ctx, &auctions,
		`SELECT * FROM auctions WHERE active ORDER BY ends_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing active auctions: %w", err)
	}
	return auctions, nil
}
