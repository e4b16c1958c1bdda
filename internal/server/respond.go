package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kallestrom/nftmarket/internal/market"
	"github.com/kallestrom/nftmarket/internal/nft"
	"github.com/kallestrom/nftmarket/internal/token"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondMarketError maps engine errors onto HTTP statuses. Collaborator
// failures caused by the caller (funds, allowance, approval) surface as
// client errors; anything unrecognized is a 500.
func respondMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrBidTooLow):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrNotListed),
		errors.Is(err, market.ErrNotOnAuction):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrAlreadyListed),
		errors.Is(err, market.ErrAlreadyOnAuction),
		errors.Is(err, market.ErrSameParty),
		errors.Is(err, market.ErrAuctionExpired),
		errors.Is(err, market.ErrTooEarly):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrNotPermitted),
		errors.Is(err, market.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, nft.ErrNotApproved),
		errors.Is(err, nft.ErrNotCustodian),
		errors.Is(err, nft.ErrNotMinter):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, nft.ErrUnknownItem):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
