package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"
)

const (
	numWorkers        = 50
	ordersPerWorker   = 100
	maxConcurrentReqs = 200
)

var (
	serverAddr = flag.String("addr", "http://localhost:8080", "Server base URL")
	poolID     = flag.String("pool", "load-test-pool", "Pool id to create and fill")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, cleaning up...")
		cancel()
	}()

	client := &http.Client{Timeout: 10 * time.Second}

	// Create test pool
	if err := post(ctx, client, "/api/v1/pools", map[string]any{
		"pool_id":      *poolID,
		"token0":       "ETH",
		"token1":       "USDC",
		"tick_spacing": 10,
		"initial_tick": 0,
		"backend":      "memory",
	}); err != nil {
		log.Fatalf("Failed to create pool: %v", err)
	}
	log.Printf("Created pool: %s", *poolID)

	// Fund the workers so placements clear custody
	for i := 0; i < numWorkers; i++ {
		owner := fmt.Sprintf("trader-%d", i)
		for _, asset := range []string{"ETH", "USDC"} {
			if err := post(ctx, client, fmt.Sprintf("/api/v1/accounts/%s/balances", owner), map[string]any{
				"asset":  asset,
				"amount": "1000000.0",
			}); err != nil {
				log.Fatalf("Failed to fund %s: %v", owner, err)
			}
		}
	}

	// Set up rate limiter, latency histogram and wait group
	limiter := rate.NewLimiter(rate.Limit(maxConcurrentReqs), maxConcurrentReqs)
	hist := hdrhistogram.New(1, int64(10*time.Second/time.Microsecond), 3)
	var histMu sync.Mutex
	var wg sync.WaitGroup
	errChan := make(chan error, numWorkers*ordersPerWorker)

	// Start workers
	start := time.Now()
	log.Printf("Starting %d workers, %d orders per worker...", numWorkers, ordersPerWorker)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			owner := fmt.Sprintf("trader-%d", workerID)
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for j := 0; j < ordersPerWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					errChan <- fmt.Errorf("rate limiter error: %v", err)
					return
				}

				orderType, triggerTick := randomOrder(r)
				reqStart := time.Now()
				err := post(ctx, client, fmt.Sprintf("/api/v1/pools/%s/orders", *poolID), map[string]any{
					"owner":        owner,
					"order_type":   orderType,
					"amount_in":    "1.0",
					"trigger_tick": triggerTick,
				})
				elapsed := time.Since(reqStart)

				if err != nil {
					errChan <- fmt.Errorf("failed to place order: %v", err)
					continue
				}

				histMu.Lock()
				_ = hist.RecordValue(elapsed.Microseconds())
				histMu.Unlock()
			}
		}(i)
	}

	// Wait for all workers to finish
	wg.Wait()
	duration := time.Since(start)
	close(errChan)

	// Run one big swap so the crossing scan walks the populated range
	scanStart := time.Now()
	if err := post(ctx, client, fmt.Sprintf("/api/v1/pools/%s/swaps", *poolID), map[string]any{
		"zero_for_one": true,
		"new_tick":     -1000,
	}); err != nil {
		log.Printf("Swap scan failed: %v", err)
	} else {
		log.Printf("Crossing scan over 100 spacings took %v", time.Since(scanStart))
	}

	// Process errors
	var errors []error
	for err := range errChan {
		errors = append(errors, err)
	}

	// Print results
	total := numWorkers * ordersPerWorker
	log.Printf("Load test completed in %v", duration)
	log.Printf("Total orders attempted: %d (%.0f/s)", total, float64(total)/duration.Seconds())
	log.Printf("Errors encountered: %d", len(errors))
	log.Printf("Placement latency (us): p50=%d p95=%d p99=%d max=%d",
		hist.ValueAtQuantile(50), hist.ValueAtQuantile(95), hist.ValueAtQuantile(99), hist.Max())

	if len(errors) > 0 {
		log.Printf("First error: %v", errors[0])
		os.Exit(1)
	}
}

// randomOrder picks an order type and a trigger tick on the side of the pool
// tick the type watches, so the closing downward swap walks a populated range.
func randomOrder(r *rand.Rand) (string, int64) {
	tick := int64(r.Intn(100)) * 10
	switch r.Intn(4) {
	case 0:
		return "STOP_LOSS", -tick
	case 1:
		return "BUY_LIMIT", -tick
	case 2:
		return "BUY_STOP", tick
	default:
		return "TAKE_PROFIT", tick
	}
}

func post(ctx context.Context, client *http.Client, path string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *serverAddr+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

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

	return nil
}
