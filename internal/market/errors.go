package market

import (
	"errors"
	"fmt"
)

// Errors returned by marketplace operations. Every validation failure is
// detected before any state changes or external transfers happen, so a
// rejected operation has no effect.
var (
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrAlreadyListed    = errors.New("item is already listed")
	ErrAlreadyOnAuction = errors.New("item is already on auction")
	ErrNotListed        = errors.New("item is not listed")
	ErrNotOnAuction     = errors.New("item is not on auction")
	ErrNotPermitted     = errors.New("not permitted")
	ErrSameParty        = errors.New("seller and buyer must differ")
	ErrBidTooLow        = errors.New("bid must exceed the current highest bid")
	ErrAuctionExpired   = errors.New("bids are no longer accepted")
	ErrTooEarly         = errors.New("auction cannot be finished yet")
	ErrUnauthorized     = errors.New("admin identity required")
)

// CollaboratorError reports a failed call to the item registry or payment
// ledger. In a correctly deployed system with pre-authorized allowances
// these indicate a configuration fault, not a user error.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator call %s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func collaboratorErr(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}
