// Package nft provides the item registry that holds custody and ownership
// of unique items. The marketplace only depends on the Registry interface;
// MemRegistry is the in-process reference implementation.
package nft

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Errors returned by registry operations.
var (
	ErrUnknownItem  = errors.New("unknown item")
	ErrNotMinter    = errors.New("minter role required")
	ErrNotCustodian = errors.New("not the item custodian")
	ErrNotApproved  = errors.New("transfer not approved")
)

// Registry is the custody and ownership source of truth for items.
type Registry interface {
	// Mint creates a new item with the next sequential id, assigns custody
	// to the recipient and stores the metadata URI. Gated by the minter role.
	Mint(ctx context.Context, minter, to, uri string) (int64, error)
	// TransferFrom moves custody of an item. The operator must be the
	// current custodian or an approved operator for the custodian.
	TransferFrom(ctx context.Context, operator, from, to string, itemID int64) error
	// OwnerOf reports the current custodian of an item.
	OwnerOf(ctx context.Context, itemID int64) (string, error)
	// TokenURI reports the item's metadata reference.
	TokenURI(ctx context.Context, itemID int64) (string, error)
	// SetApprovalForAll lets an operator move any of owner's items.
	SetApprovalForAll(ctx context.Context, owner, operator string, approved bool) error
	// GrantMinter gives an identity the right to mint.
	GrantMinter(identity string)
}

// MemRegistry is an in-memory Registry. Safe for concurrent use.
type MemRegistry struct {
	mu        sync.Mutex
	nextID    int64
	owners    map[int64]string
	uris      map[int64]string
	operators map[string]map[string]bool // owner -> operator -> approved
	minters   map[string]bool
}

// NewMemRegistry returns an empty in-memory registry. Item ids start at 1.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		nextID:    1,
		owners:    make(map[int64]string),
		uris:      make(map[int64]string),
		operators: make(map[string]map[string]bool),
		minters:   make(map[string]bool),
	}
}

func (r *MemRegistry) Mint(_ context.Context, minter, to, uri string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.minters[minter] {
		return 0, fmt.Errorf("%w: %s", ErrNotMinter, minter)
	}

	id := r.nextID
	r.nextID++
	r.owners[id] = to
	r.uris[id] = uri
	return id, nil
}

func (r *MemRegistry) TransferFrom(_ context.Context, operator, from, to string, itemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[itemID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownItem, itemID)
	}
	if owner != from {
		return fmt.Errorf("%w: item %d is held by %s, not %s", ErrNotCustodian, itemID, owner, from)
	}
	if operator != owner && !r.operators[owner][operator] {
		return fmt.Errorf("%w: %s may not move items held by %s", ErrNotApproved, operator, owner)
	}

	r.owners[itemID] = to
	return nil
}

func (r *MemRegistry) OwnerOf(_ context.Context, itemID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[itemID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownItem, itemID)
	}
	return owner, nil
}

func (r *MemRegistry) TokenURI(_ context.Context, itemID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uri, ok := r.uris[itemID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownItem, itemID)
	}
	return uri, nil
}

func (r *MemRegistry) SetApprovalForAll(_ context.Context, owner, operator string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.operators[owner] == nil {
		r.operators[owner] = make(map[string]bool)
	}
	r.operators[owner][operator] = approved
	return nil
}

func (r *MemRegistry) GrantMinter(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minters[identity] = true
}
