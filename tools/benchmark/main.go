// Command benchmark floods a running API server with bids against one auction
// and reports admission throughput and latency. It exercises the real HTTP
// surface, so the numbers include gin, auth, and the row-lock serialization in
// the ledger.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	defaultAPIURL      = "http://localhost:8080"
	defaultBidders     = 8
	defaultTotalBids   = 500
	defaultStartAmount = 100
	progressInterval   = time.Second
)

type Config struct {
	APIURL      string
	APIKey      string
	AuctionID   int64
	Bidders     int // Concurrent bidder goroutines
	TotalBids   int // Bids to attempt across all bidders
	StartAmount int64
	Increment   int64 // Amount step between generated bids
	Debug       bool
	OutputFile  string // Output markdown file path (optional)
}

// outcome buckets one bid attempt by what the API said about it
type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeTooLow
	outcomeConflict
	outcomeRejected // auth, validation, not found
	outcomeError    // transport failure or 5xx
)

type BidStats struct {
	AuctionID int64
	StartTime time.Time
	Duration  time.Duration

	Total    int
	Accepted int
	TooLow   int
	Conflict int
	Rejected int
	Errors   int

	Latencies []time.Duration // Successful round trips only, sorted
}

func main() {
	cfg := parseFlags()

	if cfg.AuctionID <= 0 {
		fmt.Println("Error: auction is required")
		flag.Usage()
		os.Exit(1)
	}
	if cfg.APIKey == "" {
		fmt.Println("Error: api-key is required (flag or config file)")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	fmt.Printf("Target:   %s (auction %d)\n", cfg.APIURL, cfg.AuctionID)
	fmt.Printf("Load:     %d bids from %d concurrent bidders\n", cfg.TotalBids, cfg.Bidders)
	fmt.Printf("Amounts:  start %d, step %d\n\n", cfg.StartAmount, cfg.Increment)

	stats := runLoad(ctx, cfg)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BENCHMARK RESULTS")
	fmt.Println(strings.Repeat("=", 80))
	printBidStats(stats)

	if cfg.OutputFile != "" {
		if err := writeMarkdownReport(cfg.OutputFile, stats); err != nil {
			fmt.Printf("\n⚠️  Warning: Failed to write markdown file: %v\n", err)
		} else {
			fmt.Printf("\n✓ Report written to: %s\n", cfg.OutputFile)
		}
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	var configPath string
	flag.StringVar(&configPath, "config", GetDefaultConfigPath(), "Path to benchmark config file")
	flag.StringVar(&cfg.APIURL, "url", "", "API server base URL")
	flag.StringVar(&cfg.APIKey, "api-key", "", "API key for the bid endpoint")
	flag.Int64Var(&cfg.AuctionID, "auction", 0, "Auction ID to bid on (required)")
	flag.IntVar(&cfg.Bidders, "bidders", defaultBidders, "Concurrent bidder goroutines")
	flag.IntVar(&cfg.TotalBids, "bids", defaultTotalBids, "Total bids to attempt")
	flag.Int64Var(&cfg.StartAmount, "start", defaultStartAmount, "Starting bid amount")
	flag.Int64Var(&cfg.Increment, "increment", 1, "Amount step between generated bids")
	flag.BoolVar(&cfg.Debug, "debug", false, "Log every response")
	flag.StringVar(&cfg.OutputFile, "output", "", "Write a markdown report to this path")
	flag.Parse()

	// Flags override the config file; the file supplies credentials so they
	// stay out of shell history.
	if fileCfg, err := LoadConfig(configPath); err == nil {
		if cfg.APIURL == "" {
			cfg.APIURL = fileCfg.APIURL
		}
		if cfg.APIKey == "" {
			cfg.APIKey = fileCfg.APIKey
		}
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}

	return cfg
}

func runLoad(ctx context.Context, cfg *Config) *BidStats {
	stats := &BidStats{
		AuctionID: cfg.AuctionID,
		StartTime: time.Now(),
	}

	client := &http.Client{Timeout: 10 * time.Second}
	endpoint := fmt.Sprintf("%s/api/v1/auctions/%d/bids", strings.TrimRight(cfg.APIURL, "/"), cfg.AuctionID)

	var (
		mu        sync.Mutex
		nextSeq   atomic.Int64
		attempted atomic.Int64
		wg        sync.WaitGroup
	)

	record := func(o outcome, latency time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		stats.Total++
		switch o {
		case outcomeAccepted:
			stats.Accepted++
			stats.Latencies = append(stats.Latencies, latency)
		case outcomeTooLow:
			stats.TooLow++
			stats.Latencies = append(stats.Latencies, latency)
		case outcomeConflict:
			stats.Conflict++
		case outcomeRejected:
			stats.Rejected++
		case outcomeError:
			stats.Errors++
		}
	}

	for i := 0; i < cfg.Bidders; i++ {
		wg.Add(1)
		go func(bidder int) {
			defer wg.Done()
			for {
				seq := nextSeq.Add(1) - 1
				if int(seq) >= cfg.TotalBids {
					return
				}
				select {
				case <-ctx.Done():
					return
				default:
				}

				amount := cfg.StartAmount + seq*cfg.Increment
				o, latency, err := placeBid(ctx, client, endpoint, cfg.APIKey, bidder, amount)
				if cfg.Debug && err != nil {
					fmt.Printf("\nbidder %d: %v\n", bidder, err)
				}
				record(o, latency)
				attempted.Add(1)
			}
		}(i)
	}

	// Progress indicator
	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-progressDone:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := attempted.Load()
				fmt.Printf("\r⏳ %d/%d bids sent (%s elapsed)    ",
					n, cfg.TotalBids, formatDuration(time.Since(stats.StartTime)))
			}
		}
	}()

	wg.Wait()
	close(progressDone)

	stats.Duration = time.Since(stats.StartTime)
	sort.Slice(stats.Latencies, func(i, j int) bool { return stats.Latencies[i] < stats.Latencies[j] })
	return stats
}

type bidRequest struct {
	Amount   string `json:"amount"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

func placeBid(ctx context.Context, client *http.Client, endpoint, apiKey string, bidder int, amount int64) (outcome, time.Duration, error) {
	body, err := json.Marshal(bidRequest{
		Amount:   fmt.Sprintf("%d", amount),
		UserID:   fmt.Sprintf("bench-bidder-%d", bidder),
		UserName: fmt.Sprintf("Bench Bidder %d", bidder),
	})
	if err != nil {
		return outcomeError, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return outcomeError, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "ApiKey "+apiKey)

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return outcomeError, latency, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return classifyStatus(resp.StatusCode), latency, nil
}

// classifyStatus buckets an HTTP status into a bid outcome
func classifyStatus(status int) outcome {
	switch {
	case status == http.StatusCreated:
		return outcomeAccepted
	case status == http.StatusUnprocessableEntity:
		return outcomeTooLow
	case status == http.StatusConflict:
		return outcomeConflict
	case status >= 400 && status < 500:
		return outcomeRejected
	default:
		return outcomeError
	}
}

func printBidStats(stats *BidStats) {
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Auction:     %d\n", stats.AuctionID)
	fmt.Printf("Start Time:  %s\n", stats.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration:    %s\n", formatDuration(stats.Duration))
	fmt.Printf("Throughput:  %s\n", formatRate(stats.Total, stats.Duration))
	fmt.Println()

	emoji := statusEmoji(stats.Accepted, stats.Errors, 0)
	fmt.Printf("%s Bids:\n", emoji)
	fmt.Printf("  Total:     %d\n", stats.Total)
	fmt.Printf("  Accepted:  %d (%s)\n", stats.Accepted, percentageString(stats.Accepted, stats.Total))
	fmt.Printf("  Too Low:   %d (%s)\n", stats.TooLow, percentageString(stats.TooLow, stats.Total))
	if stats.Conflict > 0 {
		fmt.Printf("  Conflict:  %d (%s)\n", stats.Conflict, percentageString(stats.Conflict, stats.Total))
	}
	if stats.Rejected > 0 {
		fmt.Printf("  Rejected:  %d (%s)\n", stats.Rejected, percentageString(stats.Rejected, stats.Total))
	}
	if stats.Errors > 0 {
		fmt.Printf("  Errors:    %d (%s)\n", stats.Errors, percentageString(stats.Errors, stats.Total))
	}
	fmt.Println()

	if len(stats.Latencies) > 0 {
		fmt.Println("Latency (admitted + too-low responses):")
		fmt.Printf("  Min:  %s\n", formatDuration(stats.Latencies[0]))
		fmt.Printf("  P50:  %s\n", formatDuration(percentile(stats.Latencies, 50)))
		fmt.Printf("  P90:  %s\n", formatDuration(percentile(stats.Latencies, 90)))
		fmt.Printf("  P99:  %s\n", formatDuration(percentile(stats.Latencies, 99)))
		fmt.Printf("  Max:  %s\n", formatDuration(stats.Latencies[len(stats.Latencies)-1]))
	}

	fmt.Println(strings.Repeat("-", 80))
}

func writeMarkdownReport(path string, stats *BidStats) error {
	var sb strings.Builder

	sb.WriteString("# Bid Load Benchmark Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Auction:** %d\n\n", stats.AuctionID))
	sb.WriteString(fmt.Sprintf("**Duration:** %s\n\n", formatDuration(stats.Duration)))
	sb.WriteString(fmt.Sprintf("**Throughput:** %s\n\n", formatRate(stats.Total, stats.Duration)))

	sb.WriteString("## Outcomes\n\n")
	sb.WriteString("| Outcome | Count | Share |\n")
	sb.WriteString("|---------|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Accepted | %d | %s |\n", stats.Accepted, percentageString(stats.Accepted, stats.Total)))
	sb.WriteString(fmt.Sprintf("| Too Low | %d | %s |\n", stats.TooLow, percentageString(stats.TooLow, stats.Total)))
	sb.WriteString(fmt.Sprintf("| Conflict | %d | %s |\n", stats.Conflict, percentageString(stats.Conflict, stats.Total)))
	sb.WriteString(fmt.Sprintf("| Rejected | %d | %s |\n", stats.Rejected, percentageString(stats.Rejected, stats.Total)))
	sb.WriteString(fmt.Sprintf("| Errors | %d | %s |\n", stats.Errors, percentageString(stats.Errors, stats.Total)))

	if len(stats.Latencies) > 0 {
		sb.WriteString("\n## Latency\n\n")
		sb.WriteString("| Percentile | Value |\n")
		sb.WriteString("|------------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Min | %s |\n", formatDuration(stats.Latencies[0])))
		sb.WriteString(fmt.Sprintf("| P50 | %s |\n", formatDuration(percentile(stats.Latencies, 50))))
		sb.WriteString(fmt.Sprintf("| P90 | %s |\n", formatDuration(percentile(stats.Latencies, 90))))
		sb.WriteString(fmt.Sprintf("| P99 | %s |\n", formatDuration(percentile(stats.Latencies, 99))))
		sb.WriteString(fmt.Sprintf("| Max | %s |\n", formatDuration(stats.Latencies[len(stats.Latencies)-1])))
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}
