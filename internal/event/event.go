package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	ItemCreated     Type = "item.created"
	ListingChanged  Type = "listing.changed"
	BuyCompleted    Type = "listing.buy_completed"
	AuctionListed   Type = "auction.listed"
	BidPlaced       Type = "auction.bid_placed"
	AuctionFinished Type = "auction.finished"
)

// Event represents a single domain event. AggregateID is the item id the
// event belongs to, rendered as "item-<id>".
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ItemCreatedData is the payload for ItemCreated events.
type ItemCreatedData struct {
	ItemID int64  `json:"item_id"`
	Owner  string `json:"owner"`
	URI    string `json:"uri"`
}

// ListingChangedData is the payload for ListingChanged events. A cancelled
// or settled listing carries price 0 and active=false.
type ListingChangedData struct {
	ItemID int64  `json:"item_id"`
	Price  int64  `json:"price"`
	Active bool   `json:"active"`
	Seller string `json:"seller,omitempty"`
}

// BuyCompletedData is the payload for BuyCompleted events.
type BuyCompletedData struct {
	ItemID int64  `json:"item_id"`
	Buyer  string `json:"buyer"`
	Price  int64  `json:"price"`
}

// AuctionListedData is the payload for AuctionListed events.
type AuctionListedData struct {
	ItemID          int64     `json:"item_id"`
	Seller          string    `json:"seller"`
	StartPrice      int64     `json:"start_price"`
	MinParticipants int       `json:"min_participants"`
	EndsAt          time.Time `json:"ends_at"`
}

// BidPlacedData is the payload for BidPlaced events.
type BidPlacedData struct {
	ItemID int64  `json:"item_id"`
	Bidder string `json:"bidder"`
	Amount int64  `json:"amount"`
}

// AuctionFinishedData is the payload for AuctionFinished events. Winner is
// the seller and Amount is 0 when the auction settled without a sale.
type AuctionFinishedData struct {
	ItemID int64  `json:"item_id"`
	Winner string `json:"winner"`
	Amount int64  `json:"amount"`
	Sold   bool   `json:"sold"`
}
