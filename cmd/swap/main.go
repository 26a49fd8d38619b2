// Package main is a one-shot swap CLI: quote, submit and confirm a single
// trade from the command line, then print the settled record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/jupiter"
	"solana-swap-service/internal/solana"
	"solana-swap-service/internal/storage/memory"
	"solana-swap-service/internal/swap"
)

func main() {
	// Parse flags
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	aggregatorURL := flag.String("aggregator-url", envOr("AGGREGATOR_URL", "https://quote-api.jup.ag/v6"), "DEX aggregator API base URL")
	aggregatorAPIKey := flag.String("aggregator-api-key", os.Getenv("AGGREGATOR_API_KEY"), "DEX aggregator API key")
	walletKey := flag.String("wallet-key", os.Getenv("WALLET_SECRET_KEY"), "Trading wallet secret key (base58)")

	fromMint := flag.String("from", "", "Input token mint (required)")
	toMint := flag.String("to", "", "Output token mint (required)")
	amount := flag.Uint64("amount", 0, "Fixed-side amount in base units (required)")
	slippageBps := flag.Int("slippage-bps", 100, "Slippage tolerance in basis points")
	swapMode := flag.String("swap-mode", "ExactIn", "Swap mode: ExactIn or ExactOut")

	feeBps := flag.Int("fee-bps", 0, "Platform fee in basis points (0 disables fee collection)")
	feeOwner := flag.String("fee-owner", os.Getenv("FEE_OWNER"), "Platform fee owner address (base58)")
	onlyDirect := flag.Bool("only-direct-routes", false, "Request single-hop routes from the aggregator")
	priorityFee := flag.Uint64("priority-fee", 0, "Prioritization fee in lamports")
	commitment := flag.String("commitment", solana.CommitmentConfirmed, "Target commitment (confirmed or finalized)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall deadline for the trade")
	outputJSON := flag.Bool("json", false, "Output the trade record as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[swap] ", log.LstdFlags)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *walletKey == "" {
		logger.Fatal("--wallet-key is required (or WALLET_SECRET_KEY)")
	}
	if *fromMint == "" || *toMint == "" {
		logger.Fatal("--from and --to are required")
	}
	if *amount == 0 {
		logger.Fatal("--amount is required")
	}
	if *swapMode != string(domain.SwapModeExactIn) && *swapMode != string(domain.SwapModeExactOut) {
		logger.Fatalf("Invalid swap mode: %s. Must be ExactIn or ExactOut", *swapMode)
	}
	if *feeBps > 0 && *feeOwner == "" {
		logger.Fatal("--fee-owner is required when --fee-bps is set")
	}

	wallet, err := solana.KeypairFromBase58(*walletKey)
	if err != nil {
		logger.Fatalf("Invalid wallet key: %v", err)
	}
	logger.Printf("Trading wallet: %s", wallet.PublicKey())

	// Create context with cancellation
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	rpc := solana.NewHTTPClient(*rpcEndpoint)
	tracker := swap.NewConfirmationTracker(rpc, logger)

	var aggOpts []jupiter.Option
	if *aggregatorAPIKey != "" {
		aggOpts = append(aggOpts, jupiter.WithAPIKey(*aggregatorAPIKey))
	}
	agg := jupiter.NewClient(*aggregatorURL, aggOpts...)

	feePolicy := domain.FeePolicy{Enabled: *feeBps > 0, Bps: *feeBps, Owner: *feeOwner}
	routePolicy := swap.RoutePolicy{OnlyDirectRoutes: *onlyDirect}

	var assemblerOpts []swap.AssemblerOption
	if *priorityFee > 0 {
		assemblerOpts = append(assemblerOpts, swap.WithPrioritizationFee(*priorityFee))
	}

	trades := memory.NewTradeStore()

	pipeline, err := swap.NewPipeline(swap.Options{
		Quotes:           swap.NewQuoteResolver(agg, routePolicy, feePolicy, logger),
		Fees:             swap.NewFeeResolver(feePolicy),
		Provisioner:      swap.NewAccountProvisioner(rpc, tracker, wallet, logger),
		Assembler:        swap.NewTransactionAssembler(agg, assemblerOpts...),
		Submitter:        swap.NewSubmitter(rpc, tracker, logger),
		Tracker:          tracker,
		Wallet:           wallet,
		Trades:           trades,
		Events:           memory.NewTradeEventStore(),
		Logger:           logger,
		TargetCommitment: *commitment,
	})
	if err != nil {
		logger.Fatalf("Failed to build pipeline: %v", err)
	}

	trade, err := pipeline.Execute(ctx, swap.TradeRequest{
		FromMint:    *fromMint,
		ToMint:      *toMint,
		Amount:      *amount,
		SlippageBps: *slippageBps,
		SwapMode:    domain.SwapMode(*swapMode),
	})
	if err != nil {
		if trade != nil {
			printTrade(trade, *outputJSON)
		}
		logger.Fatalf("Trade failed: %v", err)
	}

	// Wait for the background confirmation to settle, then reload
	pipeline.Wait()
	final, err := trades.GetByID(context.Background(), trade.TradeID)
	if err != nil {
		logger.Fatalf("Load trade: %v", err)
	}

	printTrade(final, *outputJSON)
	if final.Status == domain.TradeFailed {
		os.Exit(1)
	}
}

func printTrade(t *domain.Trade, asJSON bool) {
	if asJSON {
		out := map[string]interface{}{
			"tradeId":    t.TradeID,
			"status":     string(t.Status),
			"fromMint":   t.FromMint,
			"toMint":     t.ToMint,
			"amount":     t.Amount,
			"swapMode":   string(t.SwapMode),
			"signatures": t.Signatures,
		}
		if t.OutAmount != nil {
			out["outAmount"] = *t.OutAmount
		}
		if t.FeeMint != nil {
			out["feeMint"] = *t.FeeMint
			out["feeAccount"] = *t.FeeAccount
		}
		if t.FailureReason != nil {
			out["failureReason"] = *t.FailureReason
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
		return
	}

	fmt.Printf("Trade %s: %s\n", t.TradeID, t.Status)
	fmt.Printf("  %s -> %s (%s %d)\n", t.FromMint, t.ToMint, t.SwapMode, t.Amount)
	if t.OutAmount != nil {
		fmt.Printf("  Quoted out: %d\n", *t.OutAmount)
	}
	if t.FeeMint != nil {
		fmt.Printf("  Fee mint: %s (account %s)\n", *t.FeeMint, *t.FeeAccount)
	}
	if len(t.Signatures) > 0 {
		fmt.Printf("  Signatures: %s\n", strings.Join(t.Signatures, ", "))
	}
	if t.FailureReason != nil {
		fmt.Printf("  Failure: %s\n", *t.FailureReason)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
