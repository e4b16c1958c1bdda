package market

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// sweeperIdentity names the finalizer in logs and events. Settlement is
// permissionless, so the identity carries no privilege.
const sweeperIdentity = "sweeper"

// Finalizer periodically finishes expired auctions so settlement does not
// depend on a participant remembering to call FinishAuction.
type Finalizer struct {
	market   *Marketplace
	interval time.Duration
	logger   *slog.Logger
}

// NewFinalizer creates a Finalizer sweeping at the given interval.
func NewFinalizer(m *Marketplace, interval time.Duration, logger *slog.Logger) *Finalizer {
	return &Finalizer{market: m, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (f *Finalizer) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.InfoContext(ctx, "finalizer started", slog.Duration("interval", f.interval))
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("finalizer stopped")
			return
		case <-ticker.C:
			f.Sweep(ctx)
		}
	}
}

// Sweep finishes every expired auction once and returns how many settled.
// Races with a concurrent manual FinishAuction are benign: the loser gets
// ErrNotOnAuction.
func (f *Finalizer) Sweep(ctx context.Context) int {
	settled := 0
	for _, id := range f.market.ExpiredAuctions() {
		_, _, _, err := f.market.FinishAuction(ctx, sweeperIdentity, id)
		switch {
		case err == nil:
			settled++
		case errors.Is(err, ErrNotOnAuction), errors.Is(err, ErrTooEarly):
			// Already settled, or the deadline moved past us.
		default:
			f.logger.ErrorContext(ctx, "finishing expired auction",
				slog.Int64("item_id", id),
				slog.Any("error", err),
			)
		}
	}
	return settled
}
