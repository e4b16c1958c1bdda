package store

import (
	"context"
	"time"
)

// Listing is the persisted snapshot of a fixed-price listing.
type Listing struct {
	ItemID    int64     `db:"item_id"`
	Seller    string    `db:"seller"`
	Price     int64     `db:"price"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Auction is the persisted snapshot of an auction.
type Auction struct {
	ItemID          int64      `db:"item_id"`
	Seller          string     `db:"seller"`
	StartPrice      int64      `db:"start_price"`
	HighestBid      *int64     `db:"highest_bid"`
	HighestBidder   *string    `db:"highest_bidder"`
	BidCount        int        `db:"bid_count"`
	MinParticipants int        `db:"min_participants"`
	EndsAt          time.Time  `db:"ends_at"`
	Active          bool       `db:"active"`
	Winner          *string    `db:"winner"`
	WinAmount       *int64     `db:"win_amount"`
	CreatedAt       time.Time  `db:"created_at"`
	ClosedAt        *time.Time `db:"closed_at"`
}

// ListingRepository persists listing snapshots for indexers and queries.
// The in-memory engine remains authoritative; these writes follow commits.
type ListingRepository interface {
	Upsert(ctx context.Context, l *Listing) error
	Get(ctx context.Context, itemID int64) (*Listing, error)
	ListActive(ctx context.Context) ([]Listing, error)
}

// AuctionRepository persists auction snapshots.
type AuctionRepository interface {
	Upsert(ctx context.Context, a *Auction) error
	Get(ctx context.Context, itemID int64) (*Auction, error)
	ListActive(ctx context.Context) ([]Auction, error)
}
