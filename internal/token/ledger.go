// Package token provides the fungible payment ledger the marketplace
// settles against. The marketplace only depends on the Ledger interface;
// MemLedger is the in-process reference implementation.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Errors returned by ledger operations.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

// Ledger is an allowance-gated fungible balance ledger.
type Ledger interface {
	// Transfer moves amount from the caller's own balance to another account.
	Transfer(ctx context.Context, from, to string, amount int64) error
	// TransferFrom moves amount from owner to recipient, spending the
	// allowance owner granted to spender.
	TransferFrom(ctx context.Context, spender, owner, to string, amount int64) error
	// Approve grants spender the right to move up to amount of owner's funds.
	Approve(ctx context.Context, owner, spender string, amount int64) error
	// Allowance reports the remaining amount spender may move on behalf of owner.
	Allowance(ctx context.Context, owner, spender string) (int64, error)
	// BalanceOf reports an account's balance.
	BalanceOf(ctx context.Context, account string) (int64, error)
	// Mint credits an account out of thin air. Deployment-time seeding only.
	Mint(ctx context.Context, to string, amount int64) error
}

// MemLedger is an in-memory Ledger. Safe for concurrent use.
type MemLedger struct {
	mu         sync.Mutex
	balances   map[string]int64
	allowances map[string]map[string]int64 // owner -> spender -> amount
}

// NewMemLedger returns an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances:   make(map[string]int64),
		allowances: make(map[string]map[string]int64),
	}
}

func (l *MemLedger) Transfer(_ context.Context, from, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *MemLedger) TransferFrom(_ context.Context, spender, owner, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[owner][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %s allows %s only %d, need %d", ErrInsufficientAllowance, owner, spender, allowed, amount)
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	l.allowances[owner][spender] = allowed - amount
	return nil
}

func (l *MemLedger) Approve(_ context.Context, owner, spender string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[string]int64)
	}
	l.allowances[owner][spender] = amount
	return nil
}

func (l *MemLedger) Allowance(_ context.Context, owner, spender string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner][spender], nil
}

func (l *MemLedger) BalanceOf(_ context.Context, account string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func (l *MemLedger) Mint(_ context.Context, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
	return nil
}

// move transfers balance between accounts. Caller must hold the lock.
func (l *MemLedger) move(from, to string, amount int64) error {
	if l.balances[from] < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, from, l.balances[from], amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
