// Package market implements the marketplace's listing and auction state
// machines. The Marketplace owns the authoritative record of which item is
// for sale, under what terms and who holds the highest claim, and moves
// item custody and payment balances through the external registry and
// ledger collaborators. Operations are validated solely from recorded
// state: any account may call any operation at any time.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kallestrom/nftmarket/internal/clock"
	"github.com/kallestrom/nftmarket/internal/event"
	"github.com/kallestrom/nftmarket/internal/nft"
	"github.com/kallestrom/nftmarket/internal/store"
	"github.com/kallestrom/nftmarket/internal/token"
)

// Bid is a recorded highest bid. A nil *Bid on an Auction means no bid has
// been placed yet, which keeps a bid equal to the start price
// distinguishable from no bid at all.
type Bid struct {
	Bidder string
	Amount int64
}

// Listing is the fixed-price sale state for one item.
type Listing struct {
	ItemID int64
	Seller string
	Price  int64
	Active bool
}

// Auction is the English-auction state for one item. MinParticipants and
// EndsAt are both fixed when the auction is listed, so later policy changes
// never alter an auction already in progress.
type Auction struct {
	ItemID          int64
	Seller          string
	StartPrice      int64
	Highest         *Bid
	BidCount        int
	MinParticipants int
	EndsAt          time.Time
	Active          bool
}

// floor is the amount a new bid must strictly exceed.
func (a *Auction) floor() int64 {
	if a.Highest != nil {
		return a.Highest.Amount
	}
	return a.StartPrice
}

// Policy holds the administrator-controlled auction parameters.
type Policy struct {
	AuctionPeriod   time.Duration
	MinParticipants int
}

// Config holds the marketplace identities and initial policy.
type Config struct {
	// Account is the marketplace's own identity; it holds escrowed items
	// and escrowed bid funds.
	Account string
	// Admin is the only identity allowed to change the policy.
	Admin string
	// Policy is the initial auction policy.
	Policy Policy
}

// Marketplace is the escrow marketplace engine. All public operations are
// serialized behind one mutex, reproducing the strictly sequential
// execution model the transition rules assume.
type Marketplace struct {
	mu sync.Mutex

	registry nft.Registry
	ledger   token.Ledger
	account  string
	admin    string
	policy   Policy

	listings map[int64]*Listing
	auctions map[int64]*Auction
	versions map[string]int

	events      event.Store
	publisher   event.Publisher
	listingRepo store.ListingRepository
	auctionRepo store.AuctionRepository

	logger *slog.Logger
	tracer trace.Tracer
	clock  clock.Clock
}

// New creates a Marketplace. The registry and ledger are the external
// custody and balance collaborators; repos receives listing/auction
// snapshots and the event log.
func New(registry nft.Registry, ledger token.Ledger, repos *store.Repositories, pub event.Publisher, cfg Config, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Marketplace {
	return &Marketplace{
		registry:    registry,
		ledger:      ledger,
		account:     cfg.Account,
		admin:       cfg.Admin,
		policy:      cfg.Policy,
		listings:    make(map[int64]*Listing),
		auctions:    make(map[int64]*Auction),
		versions:    make(map[string]int),
		events:      repos.Events,
		publisher:   pub,
		listingRepo: repos.Listings,
		auctionRepo: repos.Auctions,
		logger:      logger,
		tracer:      tp.Tracer("github.com/kallestrom/nftmarket/internal/market"),
		clock:       clk,
	}
}

// Account returns the marketplace's escrow identity.
func (m *Marketplace) Account() string { return m.account }

// CreateItem mints a new item with the given metadata URI and assigns
// custody to the recipient. Any caller may invoke it; the mint itself is
// gated by the registry's minter role held by the marketplace.
func (m *Marketplace) CreateItem(ctx context.Context, caller, uri, recipient string) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "Marketplace.CreateItem",
		trace.WithAttributes(
			attribute.String("caller", caller),
			attribute.String("recipient", recipient),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.registry.Mint(ctx, m.account, recipient, uri)
	if err != nil {
		return 0, collaboratorErr("registry.Mint", err)
	}

	m.record(ctx, id, event.ItemCreated, event.ItemCreatedData{
		ItemID: id,
		Owner:  recipient,
		URI:    uri,
	})

	m.logger.InfoContext(ctx, "item created",
		slog.Int64("item_id", id),
		slog.String("owner", recipient),
	)
	return id, nil
}

// ListItem puts an item up for fixed-price sale. The caller must hold
// custody and must have approved the marketplace as an operator; custody
// moves into marketplace escrow.
func (m *Marketplace) ListItem(ctx context.Context, caller string, itemID, price int64) error {
	ctx, span := m.tracer.Start(ctx, "Marketplace.ListItem",
		trace.WithAttributes(
			attribute.String("caller", caller),
			attribute.Int64("item_id", itemID),
			attribute.Int64("price", price),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if price <= 0 {
		return ErrInvalidPrice
	}
	if l := m.listings[itemID]; l != nil && l.Active {
		return ErrAlreadyListed
	}
	if a := m.auctions[itemID]; a != nil && a.Active {
		return ErrAlreadyOnAuction
	}

	// Custody and approval are enforced by the registry at transfer time.
	if err := m.registry.TransferFrom(ctx, m.account, caller, m.account, itemID); err != nil {
		return collaboratorErr("registry.TransferFrom", err)
	}

	l := &Listing{ItemID: itemID, Seller: caller, Price: price, Active: true}
	m.listings[itemID] = l

	m.record(ctx, itemID, event.ListingChanged, event.ListingChangedData{
		ItemID: itemID,
		Price:  price,
		Active: true,
		Seller: caller,
	})
	m.snapshotListing(ctx, l)

	m.logger.InfoContext(ctx, "item listed",
		slog.Int64("item_id", itemID),
		slog.String("seller", caller),
		slog.Int64("price", price),
	)
	return nil
}

// Cancel takes an active listing down and returns the item to its seller.
// Only the seller may cancel.
func (m *Marketplace) Cancel(ctx context.Context, caller string, itemID int64) error {
	ctx, span := m.tracer.Start(ctx, "Marketplace.Cancel",
		trace.WithAttributes(
			attribute.String("caller", caller),
			attribute.Int64("item_id", itemID),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.listings[itemID]
	if l == nil || !l.Active || l.Seller != caller {
		return ErrNotPermitted
	}

	if err := m.registry.TransferFrom(ctx, m.account, m.account, l.Seller, itemID); err != nil {
		return collaboratorErr("registry.TransferFrom", err)
	}

	l.Active = false

	m.record(ctx, itemID, event.ListingChanged, event.ListingChangedData{
		ItemID: itemID,
		Price:  0,
		Active: false,
		Seller: l.Seller,
	})
	m.snapshotListing(ctx, l)

	m.logger.InfoContext(ctx, "listing cancelled", slog.Int64("item_id", itemID))
	return nil
}

// BuyItem settles a fixed-price sale: the price moves from the buyer
// directly to the seller and custody moves from escrow to the buyer in the
// same operation, so no payment is ever held in escrow on this path.
func (m *Marketplace) BuyItem(ctx context.Context, caller string, itemID int64) error {
	ctx, span := m.tracer.Start(ctx, "Marketplace.BuyItem",
		trace.WithAttributes(
			attribute.String("caller", caller),
			attribute.Int64("item_id", itemID),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.listings[itemID]
	if l == nil || !l.Active {
		return ErrNotListed
	}
	if caller == l.Seller {
		return ErrSameParty
	}

	// Payment first: it is the only transfer on this path that can fail
	// for user reasons (missing allowance or balance), and nothing has
	// been mutated yet when it does.
	if err := m.ledger.TransferFrom(ctx, m.account, caller, l.Seller, l.Price); err != nil {
		return collaboratorErr("ledger.TransferFrom", err)
	}
	if err := m.registry.TransferFrom(ctx, m.account, m.account, caller, itemID); err != nil {
		// The marketplace holds custody of every listed item, so this
		// only fails on a deployment fault.
		return collaboratorErr("registry.TransferFrom", err)
	}

	l.Active = false

	m.record(ctx, itemID, event.BuyCompleted, event.BuyCompletedData{
		ItemID: itemID,
		Buyer:  caller,
		Price:  l.Price,
	})
	m.record(ctx, itemID, event.ListingChanged, event.ListingChangedData{
		ItemID: itemID,
		Price:  0,
		Active: false,
		Seller: l.Seller,
	})
	m.snapshotListing(ctx, l)

	m.logger.InfoContext(ctx, "item bought",
		slog.Int64("item_id", itemID),
		slog.String("buyer", caller),
		slog.Int64("price", l.Price),
	)
	return nil
}

// UpdateAuctionPeriod changes how long future auctions accept bids.
// Auctions already listed keep their deadline.
func (m *Marketplace) UpdateAuctionPeriod(ctx context.Context, caller string, period time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.admin {
		return ErrUnauthorized
	}
	if period <= 0 {
		return fmt.Errorf("auction period must be positive, got %s", period)
	}
	m.policy.AuctionPeriod = period

	m.logger.InfoContext(ctx, "auction period updated", slog.Duration("period", period))
	return nil
}

// UpdateAuctionMinParticipants changes the bid-count threshold for future
// auctions. Auctions already listed keep the threshold they were created
// with.
func (m *Marketplace) UpdateAuctionMinParticipants(ctx context.Context, caller string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.admin {
		return ErrUnauthorized
	}
	if count < 0 {
		return fmt.Errorf("min participants must be >= 0, got %d", count)
	}
	m.policy.MinParticipants = count

	m.logger.InfoContext(ctx, "auction min participants updated", slog.Int("count", count))
	return nil
}

// Policy returns the current auction policy.
func (m *Marketplace) Policy() Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// Listing returns a copy of the listing state for an item.
func (m *Marketplace) Listing(itemID int64) (Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.listings[itemID]
	if l == nil {
		return Listing{}, false
	}
	return *l, true
}

// Auction returns a copy of the auction state for an item.
func (m *Marketplace) Auction(itemID int64) (Auction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.auctions[itemID]
	if a == nil {
		return Auction{}, false
	}
	out := *a
	if a.Highest != nil {
		bid := *a.Highest
		out.Highest = &bid
	}
	return out, true
}

// record appends a domain event to the log and fans it out. Failures are
// logged, not propagated: the transfers backing the event have already
// happened and the in-memory book is authoritative within a run.
func (m *Marketplace) record(ctx context.Context, itemID int64, t event.Type, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.ErrorContext(ctx, "marshalling event payload", slog.Any("error", err))
		return
	}

	agg := aggregateID(itemID)
	m.versions[agg]++
	e := event.Event{
		AggregateID: agg,
		Type:        t,
		Data:        data,
		Version:     m.versions[agg],
		CreatedAt:   m.clock.Now().UTC(),
	}

	if err := m.events.Append(ctx, e); err != nil {
		m.logger.ErrorContext(ctx, "persisting event",
			slog.String("type", string(t)),
			slog.Any("error", err),
		)
	}
	if err := m.publisher.Publish(ctx, e); err != nil {
		m.logger.WarnContext(ctx, "publishing event",
			slog.String("type", string(t)),
			slog.Any("error", err),
		)
	}
}

// snapshotListing mirrors a listing into the repository. Best-effort.
func (m *Marketplace) snapshotListing(ctx context.Context, l *Listing) {
	rec := &store.Listing{
		ItemID: l.ItemID,
		Seller: l.Seller,
		Price:  l.Price,
		Active: l.Active,
	}
	if err := m.listingRepo.Upsert(ctx, rec); err != nil {
		m.logger.ErrorContext(ctx, "persisting listing snapshot",
			slog.Int64("item_id", l.ItemID),
			slog.Any("error", err),
		)
	}
}

func aggregateID(itemID int64) string {
	return fmt.Sprintf("item-%d", itemID)
}
