package nft_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kallestrom/nftmarket/internal/nft"
)

func TestMemRegistry_Mint(t *testing.T) {
	ctx := context.Background()
	r := nft.NewMemRegistry()
	r.GrantMinter("gateway")

	id, err := r.Mint(ctx, "gateway", "alice", "ipfs://meta/1")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if id != 1 {
		t.Errorf("first item id = %d, want 1", id)
	}

	id2, err := r.Mint(ctx, "gateway", "bob", "ipfs://meta/2")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if id2 != 2 {
		t.Errorf("second item id = %d, want 2", id2)
	}

	owner, err := r.OwnerOf(ctx, id)
	if err != nil {
		t.Fatalf("OwnerOf() error = %v", err)
	}
	if owner != "alice" {
		t.Errorf("owner = %q, want %q", owner, "alice")
	}

	uri, err := r.TokenURI(ctx, id)
	if err != nil {
		t.Fatalf("TokenURI() error = %v", err)
	}
	if uri != "ipfs://meta/1" {
		t.Errorf("uri = %q, want %q", uri, "ipfs://meta/1")
	}
}

func TestMemRegistry_Mint_RequiresRole(t *testing.T) {
	ctx := context.Background()
	r := nft.NewMemRegistry()

	_, err := r.Mint(ctx, "stranger", "alice", "ipfs://meta/1")
	if !errors.Is(err, nft.ErrNotMinter) {
		t.Fatalf("Mint() error = %v, want ErrNotMinter", err)
	}
}

func TestMemRegistry_TransferFrom(t *testing.T) {
	ctx := context.Background()
	r := nft.NewMemRegistry()
	r.GrantMinter("gateway")
	id, _ := r.Mint(ctx, "gateway", "alice", "ipfs://meta/1")

	// Custodian moves their own item.
	if err := r.TransferFrom(ctx, "alice", "alice", "bob", id); err != nil {
		t.Fatalf("TransferFrom() error = %v", err)
	}
	if owner, _ := r.OwnerOf(ctx, id); owner != "bob" {
		t.Errorf("owner = %q, want %q", owner, "bob")
	}

	// Unapproved operator may not move it.
	err := r.TransferFrom(ctx, "mallory", "bob", "mallory", id)
	if !errors.Is(err, nft.ErrNotApproved) {
		t.Fatalf("TransferFrom() error = %v, want ErrNotApproved", err)
	}

	// Approved operator may.
	_ = r.SetApprovalForAll(ctx, "bob", "market", true)
	if err := r.TransferFrom(ctx, "market", "bob", "carol", id); err != nil {
		t.Fatalf("TransferFrom() with approval error = %v", err)
	}
	if owner, _ := r.OwnerOf(ctx, id); owner != "carol" {
		t.Errorf("owner = %q, want %q", owner, "carol")
	}
}

func TestMemRegistry_TransferFrom_WrongCustodian(t *testing.T) {
	ctx := context.Background()
	r := nft.NewMemRegistry()
	r.GrantMinter("gateway")
	id, _ := r.Mint(ctx, "gateway", "alice", "ipfs://meta/1")

	err := r.TransferFrom(ctx, "bob", "bob", "carol", id)
	if !errors.Is(err, nft.ErrNotCustodian) {
		t.Fatalf("TransferFrom() error = %v, want ErrNotCustodian", err)
	}
}

func TestMemRegistry_UnknownItem(t *testing.T) {
	ctx := context.Background()
	r := nft.NewMemRegistry()

	if _, err := r.OwnerOf(ctx, 42); !errors.Is(err, nft.ErrUnknownItem) {
		t.Errorf("OwnerOf() error = %v, want ErrUnknownItem", err)
	}
	if err := r.TransferFrom(ctx, "a", "a", "b", 42); !errors.Is(err, nft.ErrUnknownItem) {
		t.Errorf("TransferFrom() error = %v, want ErrUnknownItem", err)
	}
}
