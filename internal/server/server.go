// Package server exposes the marketplace over HTTP. The caller identity is
// taken from the X-Account header; account and key management are handled
// outside this service, so the header is trusted as-is.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kallestrom/nftmarket/internal/market"
	"github.com/kallestrom/nftmarket/internal/nft"
	"github.com/kallestrom/nftmarket/internal/store"
	"github.com/kallestrom/nftmarket/internal/token"
)

// Server holds the HTTP handlers for the marketplace API.
type Server struct {
	market   *market.Marketplace
	registry nft.Registry
	ledger   token.Ledger
	repos    *store.Repositories
	logger   *slog.Logger
}

// New creates a Server.
func New(m *market.Marketplace, registry nft.Registry, ledger token.Ledger, repos *store.Repositories, logger *slog.Logger) *Server {
	return &Server{market: m, registry: registry, ledger: ledger, repos: repos, logger: logger}
}

// Router builds the chi router with the full API surface. Health handlers
// are mounted by the caller alongside this router.
func (s *Server) Router(extra ...func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Recovery(s.logger))
	r.Use(RequestID)
	r.Use(Logging(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Account"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/items", s.createItem)
		r.Get("/items/{itemID}", s.getItem)

		r.Post("/items/{itemID}/listing", s.listItem)
		r.Get("/items/{itemID}/listing", s.getListing)
		r.Delete("/items/{itemID}/listing", s.cancelListing)
		r.Post("/items/{itemID}/buy", s.buyItem)

		r.Post("/items/{itemID}/auction", s.listItemOnAuction)
		r.Get("/items/{itemID}/auction", s.getAuction)
		r.Post("/items/{itemID}/bids", s.makeBid)
		r.Post("/items/{itemID}/auction/finish", s.finishAuction)

		r.Get("/listings", s.activeListings)
		r.Get("/auctions", s.activeAuctions)

		r.Get("/accounts/{account}/balance", s.balance)

		r.Route("/admin/policy", func(r chi.Router) {
			r.Get("/", s.getPolicy)
			r.Put("/auction-period", s.updateAuctionPeriod)
			r.Put("/min-participants", s.updateMinParticipants)
		})
	})

	for _, mount := range extra {
		mount(r)
	}
	return r
}

// caller extracts the caller identity from the request.
func caller(r *http.Request) string {
	return r.Header.Get("X-Account")
}
