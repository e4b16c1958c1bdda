package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kallestrom/nftmarket/internal/clock"
	"github.com/kallestrom/nftmarket/internal/store"
)

// ListingRepo implements store.ListingRepository with sqlx.
type ListingRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewListingRepo returns a new ListingRepo.
func NewListingRepo(db *sqlx.DB, clk clock.Clock) *ListingRepo {
	return &ListingRepo{db: db, clock: clk}
}

func (r *ListingRepo) Upsert(ctx context.Context, l *store.Listing) error {
	now := r.clock.Now().UTC()
	l.UpdatedAt = now
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (item_id, seller, price, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (item_id) DO UPDATE
		 SET seller = EXCLUDED.seller, price = EXCLUDED.price,
		     active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`,
		l.ItemID, l.Seller, l.Price, l.Active, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting listing for item %d: %w", l.ItemID, err)
	}
	return nil
}

func (r *ListingRepo) Get(ctx context.Context, itemID int64) (*store.Listing, error) {
	var l store.Listing
	err := r.db.GetContext(ctx, &l, `SELECT * FROM listings WHERE item_id = $1`, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting listing for item %d: %w", itemID, err)
	}
	return &l, nil
}

func (r *ListingRepo) ListActive(ctx context.Context) ([]store.Listing, error) {
	var listings []store.Listing
	err := r.db.SelectContext(ctx, &listings,
		`SELECT * FROM listings WHERE active ORDER BY item_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing active listings: %w", err)
	}
	return listings, nil
}
