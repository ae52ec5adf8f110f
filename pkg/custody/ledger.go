// Package custody provides the fungible-asset ledger the order engine moves
// value through: debit-from-caller, credit-to-address and balance queries on
// assets identified by the pool's two token identifiers.
package custody

import (
	"errors"
	"sync"

	"github.com/nikolaydubina/fpdecimal"
)

// Errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonPositiveAmount   = errors.New("non-positive amount")
)

// Ledger defines the custody/transfer interface the engine consumes
type Ledger interface {
	// Balance returns the account's balance of the asset
	Balance(account, asset string) fpdecimal.Decimal

	// Transfer moves amount of asset from one account to another. It fails
	// with ErrInsufficientBalance if the source balance is too small and
	// leaves both accounts untouched on any failure.
	Transfer(from, to, asset string, amount fpdecimal.Decimal) error

	// Mint credits new units of asset to an account
	Mint(account, asset string, amount fpdecimal.Decimal) error
}

// MemoryLedger implements Ledger with in-memory balances
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]map[string]fpdecimal.Decimal
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]map[string]fpdecimal.Decimal),
	}
}

// Balance returns the account's balance of the asset
func (l *MemoryLedger) Balance(account, asset string) fpdecimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balances[account][asset]
}

// Transfer moves amount of asset between accounts
func (l *MemoryLedger) Transfer(from, to, asset string, amount fpdecimal.Decimal) error {
	if amount.LessThanOrEqual(fpdecimal.Zero) {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from][asset].LessThan(amount) {
		return ErrInsufficientBalance
	}

	l.credit(from, asset, l.balances[from][asset].Sub(amount))
	l.credit(to, asset, l.balances[to][asset].Add(amount))
	return nil
}

// Mint credits new units of asset to an account
func (l *MemoryLedger) Mint(account, asset string, amount fpdecimal.Decimal) error {
	if amount.LessThanOrEqual(fpdecimal.Zero) {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(account, asset, l.balances[account][asset].Add(amount))
	return nil
}

// credit sets the account's balance of asset. Caller holds the lock.
func (l *MemoryLedger) credit(account, asset string, balance fpdecimal.Decimal) {
	if l.balances[account] == nil {
		l.balances[account] = make(map[string]fpdecimal.Decimal)
	}
	l.balances[account][asset] = balance
}

var _ Ledger = (*MemoryLedger)(nil)
