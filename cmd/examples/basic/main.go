package main

import (
	"context"
	"fmt"

	"github.com/erain9/tickorder/pkg/backend/memory"
	"github.com/erain9/tickorder/pkg/core"
	"github.com/erain9/tickorder/pkg/custody"
	"github.com/nikolaydubina/fpdecimal"
)

func main() {
	ctx := context.Background()

	// Initialize a pool engine with an in-memory order store and ledger
	pool := core.PoolKey{ID: "eth-usdc", Token0: "ETH", Token1: "USDC", TickSpacing: 10}
	ledger := custody.NewMemoryLedger()

	engine, err := core.NewEngine(pool, memory.NewMemoryBackend(), ledger, nil, 100)
	if err != nil {
		panic(err)
	}

	// Fund the trader and the settling party
	if err := ledger.Mint("alice", "USDC", fpdecimal.FromFloat(5000.0)); err != nil {
		panic(err)
	}
	if err := ledger.Mint("bob", "ETH", fpdecimal.FromFloat(10.0)); err != nil {
		panic(err)
	}

	// Alice places a buy-limit: spend 3600 USDC on ETH once the pool tick
	// falls to 50
	order, err := engine.Place(ctx, "alice", core.TypeBuyLimit, fpdecimal.FromFloat(3600.0), 50)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Placed order: %s\n", order.ID())
	fmt.Printf("Alice USDC after custody: %s\n", ledger.Balance("alice", "USDC"))

	// A zero-for-one swap pushes the pool tick down through the trigger level
	report, err := engine.AfterSwap(ctx, true, 40)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Swap moved tick %d -> %d, crossed orders: %v\n",
		report.FromTick, report.ToTick, report.OrderIDs)

	// Bob settles the crossed order, delivering 2 ETH for the 3600 USDC
	settler := custody.NewLedgerSettler(ledger, "bob", engine.Account(), fpdecimal.FromFloat(2.0))
	delivered, err := engine.Settle(ctx, "bob", order.ID(), nil, settler)
	if err != nil {
		panic(err)
	}

	// Print the results
	fmt.Printf("Settled, alice received %s ETH\n", delivered)
	fmt.Println("\nFinal balances:")
	fmt.Printf("- alice: ETH=%s USDC=%s\n", ledger.Balance("alice", "ETH"), ledger.Balance("alice", "USDC"))
	fmt.Printf("- bob:   ETH=%s USDC=%s\n", ledger.Balance("bob", "ETH"), ledger.Balance("bob", "USDC"))
	fmt.Printf("- order status: %s\n", engine.GetOrder(order.ID()).Status())
}
