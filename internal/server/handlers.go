package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kallestrom/nftmarket/internal/market"
)

type createItemRequest struct {
	URI       string `json:"uri"`
	Recipient string `json:"recipient"`
}

type createItemResponse struct {
	ItemID int64 `json:"item_id"`
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var req createItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Recipient == "" {
		req.Recipient = acct
	}
	id, err := s.market.CreateItem(r.Context(), acct, req.URI, req.Recipient)
	if err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, createItemResponse{ItemID: id})
}

type itemResponse struct {
	ItemID int64  `json:"item_id"`
	Owner  string `json:"owner"`
	URI    string `json:"uri"`
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	owner, err := s.registry.OwnerOf(r.Context(), id)
	if err != nil {
		respondMarketError(w, err)
		return
	}
	uri, err := s.registry.TokenURI(r.Context(), id)
	if err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, itemResponse{ItemID: id, Owner: owner, URI: uri})
}

type listItemRequest struct {
	Price int64 `json:"price"`
}

func (s *Server) listItem(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req listItemRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.market.ListItem(r.Context(), acct, id, req.Price); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.listingView(id))
}

type listingResponse struct {
	ItemID int64  `json:"item_id"`
	Seller string `json:"seller"`
	Price  int64  `json:"price"`
	Active bool   `json:"active"`
}

func (s *Server) listingView(id int64) listingResponse {
	l, _ := s.market.Listing(id)
	return listingResponse{ItemID: l.ItemID, Seller: l.Seller, Price: l.Price, Active: l.Active}
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	l, found := s.market.Listing(id)
	if !found || !l.Active {
		respondError(w, http.StatusNotFound, "item is not listed")
		return
	}
	respondJSON(w, http.StatusOK, listingResponse{ItemID: l.ItemID, Seller: l.Seller, Price: l.Price, Active: l.Active})
}

func (s *Server) cancelListing(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := s.market.Cancel(r.Context(), acct, id); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) buyItem(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := s.market.BuyItem(r.Context(), acct, id); err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

type listOnAuctionRequest struct {
	StartPrice int64 `json:"start_price"`
}

func (s *Server) listItemOnAuction(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req listOnAuctionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.market.ListItemOnAuction(r.Context(), acct, id, req.StartPrice); err != nil {
		respondMarketError(w, err)
		return
	}
	a, _ := s.market.Auction(id)
	respondJSON(w, http.StatusCreated, auctionView(a))
}

type bidResponse struct {
	Bidder string `json:"bidder"`
	Amount int64  `json:"amount"`
}

type auctionResponse struct {
	ItemID          int64        `json:"item_id"`
	Seller          string       `json:"seller"`
	StartPrice      int64        `json:"start_price"`
	Highest         *bidResponse `json:"highest,omitempty"`
	BidCount        int          `json:"bid_count"`
	MinParticipants int          `json:"min_participants"`
	EndsAt          time.Time    `json:"ends_at"`
	Active          bool         `json:"active"`
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	a, found := s.market.Auction(id)
	if !found || !a.Active {
		respondError(w, http.StatusNotFound, "item is not on auction")
		return
	}
	respondJSON(w, http.StatusOK, auctionView(a))
}

type makeBidRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) makeBid(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req makeBidRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.market.MakeBid(r.Context(), acct, id, req.Amount); err != nil {
		respondMarketError(w, err)
		return
	}
	a, _ := s.market.Auction(id)
	respondJSON(w, http.StatusCreated, auctionView(a))
}

type finishAuctionResponse struct {
	ItemID int64  `json:"item_id"`
	Winner string `json:"winner"`
	Amount int64  `json:"amount"`
	Sold   bool   `json:"sold"`
}

func (s *Server) finishAuction(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	winner, amount, sold, err := s.market.FinishAuction(r.Context(), acct, id)
	if err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, finishAuctionResponse{
		ItemID: id,
		Winner: winner,
		Amount: amount,
		Sold:   sold,
	})
}

func (s *Server) activeListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.repos.Listings.ListActive(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "listing active listings", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingResponse{ItemID: l.ItemID, Seller: l.Seller, Price: l.Price, Active: l.Active})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) activeAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := s.repos.Auctions.ListActive(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "listing active auctions", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]auctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp := auctionResponse{
			ItemID:          a.ItemID,
			Seller:          a.Seller,
			StartPrice:      a.StartPrice,
			BidCount:        a.BidCount,
			MinParticipants: a.MinParticipants,
			EndsAt:          a.EndsAt,
			Active:          a.Active,
		}
		if a.HighestBid != nil && a.HighestBidder != nil {
			resp.Highest = &bidResponse{Bidder: *a.HighestBidder, Amount: *a.HighestBid}
		}
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	acct := chi.URLParam(r, "account")
	bal, err := s.ledger.BalanceOf(r.Context(), acct)
	if err != nil {
		respondMarketError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{Account: acct, Balance: bal})
}

type policyResponse struct {
	AuctionPeriodSeconds int64 `json:"auction_period_seconds"`
	MinParticipants      int   `json:"min_participants"`
}

func (s *Server) getPolicy(w http.ResponseWriter, r *http.Request) {
	p := s.market.Policy()
	respondJSON(w, http.StatusOK, policyResponse{
		AuctionPeriodSeconds: int64(p.AuctionPeriod / time.Second),
		MinParticipants:      p.MinParticipants,
	})
}

type updatePeriodRequest struct {
	Seconds int64 `json:"seconds"`
}

func (s *Server) updateAuctionPeriod(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var req updatePeriodRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.market.UpdateAuctionPeriod(r.Context(), acct, time.Duration(req.Seconds)*time.Second); err != nil {
		respondMarketError(w, err)
		return
	}
	s.getPolicy(w, r)
}

type updateMinParticipantsRequest struct {
	Count int `json:"count"`
}

func (s *Server) updateMinParticipants(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var req updateMinParticipantsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.market.UpdateAuctionMinParticipants(r.Context(), acct, req.Count); err != nil {
		respondMarketError(w, err)
		return
	}
	s.getPolicy(w, r)
}

func auctionView(a market.Auction) auctionResponse {
	resp := auctionResponse{
		ItemID:          a.ItemID,
		Seller:          a.Seller,
		StartPrice:      a.StartPrice,
		BidCount:        a.BidCount,
		MinParticipants: a.MinParticipants,
		EndsAt:          a.EndsAt,
		Active:          a.Active,
	}
	if a.Highest != nil {
		resp.Highest = &bidResponse{Bidder: a.Highest.Bidder, Amount: a.Highest.Amount}
	}
	return resp
}

func (s *Server) requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	acct := caller(r)
	if acct == "" {
		respondError(w, http.StatusBadRequest, "missing X-Account header")
		return "", false
	}
	return acct, true
}

func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
