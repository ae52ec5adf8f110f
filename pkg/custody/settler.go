package custody

import (
	"context"

	"github.com/nikolaydubina/fpdecimal"
)

// LedgerSettler fulfills a settlement by moving a fixed counter amount from
// the settler's ledger account to the engine's custody account. It satisfies
// the engine's settlement callback interface without importing it, so the
// custody package stays free of engine dependencies.
type LedgerSettler struct {
	ledger        Ledger
	settler       string
	engineAccount string
	counterAmount fpdecimal.Decimal
}

// NewLedgerSettler creates a callback that pays counterAmount of the counter
// asset from settler to engineAccount when invoked.
func NewLedgerSettler(ledger Ledger, settler, engineAccount string, counterAmount fpdecimal.Decimal) *LedgerSettler {
	return &LedgerSettler{
		ledger:        ledger,
		settler:       settler,
		engineAccount: engineAccount,
		counterAmount: counterAmount,
	}
}

// Settle delivers the counter asset. The input asset has already been handed
// to the settler when this runs; a transfer failure here unwinds that
// hand-off on the engine side.
func (s *LedgerSettler) Settle(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error {
	return s.ledger.Transfer(s.settler, s.engineAccount, tokenOut, s.counterAmount)
}
