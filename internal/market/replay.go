package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kallestrom/nftmarket/internal/event"
)

// Recover rebuilds the in-memory book from the event log. Item custody and
// ledger balances live in the external collaborators and survive on their
// own; replay restores only the listing/auction state machines. It returns
// how many active listings and auctions were restored.
func (m *Marketplace) Recover(ctx context.Context) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Marketplace.Recover")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.aggregates(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, agg := range ids {
		events, err := m.events.Load(ctx, agg)
		if err != nil {
			return restored, fmt.Errorf("loading events for %s: %w", agg, err)
		}

		listing, auction, version, err := replay(events)
		if err != nil {
			m.logger.WarnContext(ctx, "skipping unreplayable aggregate",
				slog.String("aggregate_id", agg),
				slog.Any("error", err),
			)
			continue
		}
		m.versions[agg] = version

		if listing != nil {
			m.listings[listing.ItemID] = listing
			if listing.Active {
				restored++
			}
		}
		if auction != nil {
			m.auctions[auction.ItemID] = auction
			if auction.Active {
				restored++
			}
		}
	}

	m.logger.InfoContext(ctx, "recovery complete",
		slog.Int("aggregates", len(ids)),
		slog.Int("restored_active", restored),
	)
	return restored, nil
}

// aggregates collects every aggregate id present in the log. ItemCreated is
// included so that an item minted but never listed still gets its version
// counter restored; otherwise the first post-restart event would reuse a
// version the durable store already holds.
func (m *Marketplace) aggregates(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string

	for _, t := range []event.Type{event.ItemCreated, event.ListingChanged, event.AuctionListed} {
		events, err := m.events.LoadByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("loading %s events: %w", t, err)
		}
		for _, e := range events {
			if _, ok := seen[e.AggregateID]; !ok {
				seen[e.AggregateID] = struct{}{}
				ids = append(ids, e.AggregateID)
			}
		}
	}
	return ids, nil
}

// replay folds one aggregate's event history into its final listing and
// auction state.
func replay(events []event.Event) (*Listing, *Auction, int, error) {
	if len(events) == 0 {
		return nil, nil, 0, fmt.Errorf("no events to replay")
	}

	var (
		listing *Listing
		auction *Auction
		version int
	)
	for _, e := range events {
		switch e.Type {
		case event.ListingChanged:
			var d event.ListingChangedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, nil, 0, fmt.Errorf("unmarshalling listing event: %w", err)
			}
			if d.Active {
				listing = &Listing{ItemID: d.ItemID, Seller: d.Seller, Price: d.Price, Active: true}
			} else if listing != nil {
				listing.Active = false
			}

		case event.AuctionListed:
			var d event.AuctionListedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, nil, 0, fmt.Errorf("unmarshalling auction listed event: %w", err)
			}
			auction = &Auction{
				ItemID:          d.ItemID,
				Seller:          d.Seller,
				StartPrice:      d.StartPrice,
				MinParticipants: d.MinParticipants,
				EndsAt:          d.EndsAt,
				Active:          true,
			}

		case event.BidPlaced:
			var d event.BidPlacedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, nil, 0, fmt.Errorf("unmarshalling bid event: %w", err)
			}
			if auction != nil {
				auction.Highest = &Bid{Bidder: d.Bidder, Amount: d.Amount}
				auction.BidCount++
			}

		case event.AuctionFinished:
			if auction != nil {
				auction.Active = false
			}

		case event.ItemCreated, event.BuyCompleted:
			// ItemCreated carries no sale state; BuyCompleted is always
			// followed by a deactivating ListingChanged.
		}
		version = e.Version
	}
	return listing, auction, version, nil
}
