package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	serverAddr = flag.String("addr", "http://localhost:8080", "The server base URL")
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Check if we have enough arguments
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Get the command
	command := os.Args[1]

	// Remove the command from os.Args to make flag parsing work
	os.Args = append(os.Args[:1], os.Args[2:]...)

	// Execute the appropriate command
	switch command {
	case "create-pool":
		createPool()
	case "get-pool":
		getPool()
	case "list-pools":
		listPools()
	case "place-order":
		placeOrder()
	case "get-order":
		getOrder()
	case "cancel-order":
		cancelOrder()
	case "settle-order":
		settleOrder()
	case "swap":
		swap()
	case "user-orders":
		userOrders()
	case "mint":
		mint()
	case "balance":
		balance()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: client <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  create-pool\tCreate a new pool")
	fmt.Fprintln(w, "  get-pool\tShow a pool and its current tick")
	fmt.Fprintln(w, "  list-pools\tList registered pools")
	fmt.Fprintln(w, "  place-order\tPlace a conditional order")
	fmt.Fprintln(w, "  get-order\tShow an order")
	fmt.Fprintln(w, "  cancel-order\tCancel an open order")
	fmt.Fprintln(w, "  settle-order\tSettle an eligible order")
	fmt.Fprintln(w, "  swap\tReport a swap's new tick and run the crossing scan")
	fmt.Fprintln(w, "  user-orders\tList a user's orders")
	fmt.Fprintln(w, "  mint\tCredit an account on the ledger")
	fmt.Fprintln(w, "  balance\tShow an account balance")
	w.Flush()
}

func createPool() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	token0 := flag.String("token0", "ETH", "Token0 identifier")
	token1 := flag.String("token1", "USDC", "Token1 identifier")
	tickSpacing := flag.Int64("spacing", 10, "Tick spacing")
	initialTick := flag.Int64("tick", 0, "Initial pool tick")
	backendType := flag.String("backend", "memory", "Backend type (memory or redis)")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis address for redis backend")
	flag.Parse()

	options := make(map[string]string)
	if *backendType == "redis" {
		options["addr"] = *redisAddr
		options["db"] = "0"
		options["prefix"] = *poolID
	}

	var resp map[string]any
	err := doRequest(http.MethodPost, "/api/v1/pools", map[string]any{
		"pool_id":      *poolID,
		"token0":       *token0,
		"token1":       *token1,
		"tick_spacing": *tickSpacing,
		"initial_tick": *initialTick,
		"backend":      *backendType,
		"options":      options,
	}, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("create-pool failed")
	}

	color.Green("Created pool %s (%s/%s, spacing %d, backend %s)",
		*poolID, *token0, *token1, *tickSpacing, *backendType)
}

func getPool() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	flag.Parse()

	var resp map[string]any
	if err := doRequest(http.MethodGet, "/api/v1/pools/"+*poolID, nil, &resp); err != nil {
		log.Fatal().Err(err).Msg("get-pool failed")
	}

	printJSON(resp)
}

func listPools() {
	flag.Parse()

	var resp struct {
		Pools []map[string]any `json:"pools"`
	}
	if err := doRequest(http.MethodGet, "/api/v1/pools", nil, &resp); err != nil {
		log.Fatal().Err(err).Msg("list-pools failed")
	}

	fmt.Printf("%d pool(s)\n", len(resp.Pools))
	for _, pool := range resp.Pools {
		printJSON(pool)
	}
}

func placeOrder() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	owner := flag.String("owner", "", "Order owner account")
	orderType := flag.String("type", "STOP_LOSS", "Order type: STOP_LOSS, BUY_STOP, BUY_LIMIT, TAKE_PROFIT")
	amount := flag.String("amount", "1.0", "Input amount to custody")
	triggerTick := flag.Int64("trigger", 0, "Trigger tick")
	flag.Parse()

	if *owner == "" {
		log.Fatal().Msg("-owner is required")
	}

	var resp map[string]any
	err := doRequest(http.MethodPost, fmt.Sprintf("/api/v1/pools/%s/orders", *poolID), map[string]any{
		"owner":        *owner,
		"order_type":   *orderType,
		"amount_in":    *amount,
		"trigger_tick": *triggerTick,
	}, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("place-order failed")
	}

	color.Green("Placed %s order %v (amount %s, trigger %d)",
		*orderType, resp["id"], *amount, *triggerTick)
}

func getOrder() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	orderID := flag.String("id", "", "Order id")
	flag.Parse()

	if *orderID == "" {
		log.Fatal().Msg("-id is required")
	}

	var resp map[string]any
	err := doRequest(http.MethodGet, fmt.Sprintf("/api/v1/pools/%s/orders/%s", *poolID, *orderID), nil, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("get-order failed")
	}

	printJSON(resp)
}

func cancelOrder() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	orderID := flag.String("id", "", "Order id")
	caller := flag.String("caller", "", "Calling account (must be the owner)")
	flag.Parse()

	if *orderID == "" || *caller == "" {
		log.Fatal().Msg("-id and -caller are required")
	}

	var resp map[string]any
	err := doRequest(http.MethodPost, fmt.Sprintf("/api/v1/pools/%s/orders/%s/cancel", *poolID, *orderID),
		map[string]any{"caller": *caller}, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("cancel-order failed")
	}

	color.Yellow("Canceled order %s", *orderID)
}

func settleOrder() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	orderID := flag.String("id", "", "Order id")
	settler := flag.String("settler", "", "Settling account")
	counterAmount := flag.String("counter", "", "Counter-asset amount to deliver")
	flag.Parse()

	if *orderID == "" || *settler == "" || *counterAmount == "" {
		log.Fatal().Msg("-id, -settler and -counter are required")
	}

	var resp struct {
		OrderID   string `json:"order_id"`
		AmountOut string `json:"amount_out"`
	}
	err := doRequest(http.MethodPost, fmt.Sprintf("/api/v1/pools/%s/orders/%s/settle", *poolID, *orderID),
		map[string]any{"settler": *settler, "counter_amount": *counterAmount}, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("settle-order failed")
	}

	color.Green("Settled order %s, owner received %s", resp.OrderID, resp.AmountOut)
}

func swap() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	newTick := flag.Int64("tick", 0, "New pool tick after the swap")
	zeroForOne := flag.Bool("zero-for-one", false, "Trade direction (token0 in, token1 out)")
	flag.Parse()

	var resp struct {
		FromTick int64    `json:"fromTick"`
		ToTick   int64    `json:"toTick"`
		OrderIDs []string `json:"orderIDs"`
	}
	err := doRequest(http.MethodPost, fmt.Sprintf("/api/v1/pools/%s/swaps", *poolID),
		map[string]any{"zero_for_one": *zeroForOne, "new_tick": *newTick}, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("swap failed")
	}

	if len(resp.OrderIDs) == 0 {
		fmt.Printf("Tick %d -> %d, no orders crossed\n", resp.FromTick, resp.ToTick)
		return
	}

	color.Cyan("Tick %d -> %d, %d order(s) crossed:", resp.FromTick, resp.ToTick, len(resp.OrderIDs))
	for _, id := range resp.OrderIDs {
		fmt.Printf("  %s\n", id)
	}
}

func userOrders() {
	poolID := flag.String("pool", "eth-usdc", "Pool id")
	owner := flag.String("owner", "", "Owner account")
	flag.Parse()

	if *owner == "" {
		log.Fatal().Msg("-owner is required")
	}

	var resp struct {
		Orders []map[string]any `json:"orders"`
	}
	err := doRequest(http.MethodGet, fmt.Sprintf("/api/v1/pools/%s/users/%s/orders", *poolID, *owner), nil, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("user-orders failed")
	}

	fmt.Printf("%d order(s) for %s\n", len(resp.Orders), *owner)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tAMOUNT\tTRIGGER\tSTATUS")
	for _, order := range resp.Orders {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n",
			order["id"], order["orderType"], order["amountIn"], order["triggerTick"], order["status"])
	}
	w.Flush()
}

func mint() {
	account := flag.String("account", "", "Account to credit")
	asset := flag.String("asset", "", "Asset identifier")
	amount := flag.String("amount", "", "Amount to credit")
	flag.Parse()

	if *account == "" || *asset == "" || *amount == "" {
		log.Fatal().Msg("-account, -asset and -amount are required")
	}

	var resp struct {
		Balance string `json:"balance"`
	}
	err := doRequest(http.MethodPost, fmt.Sprintf("/api/v1/accounts/%s/balances", *account),
		map[string]any{"asset": *asset, "amount": *amount}, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("mint failed")
	}

	color.Green("Minted %s %s to %s (balance now %s)", *amount, *asset, *account, resp.Balance)
}

func balance() {
	account := flag.String("account", "", "Account to query")
	asset := flag.String("asset", "", "Asset identifier")
	flag.Parse()

	if *account == "" || *asset == "" {
		log.Fatal().Msg("-account and -asset are required")
	}

	var resp struct {
		Balance string `json:"balance"`
	}
	err := doRequest(http.MethodGet, fmt.Sprintf("/api/v1/accounts/%s/balances/%s", *account, *asset), nil, &resp)
	if err != nil {
		log.Fatal().Err(err).Msg("balance failed")
	}

	fmt.Printf("%s %s: %s\n", *account, *asset, resp.Balance)
}

// doRequest issues one JSON request against the server and decodes the
// response into out when out is non-nil.
func doRequest(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, *serverAddr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to render response")
	}
	fmt.Println(string(data))
}
