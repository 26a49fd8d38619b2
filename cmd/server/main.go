// Package main runs the trade settlement service: an HTTP API that quotes,
// provisions, assembles, submits and tracks token swaps through the DEX
// aggregator, persisting every trade transition.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/jupiter"
	"solana-swap-service/internal/observability"
	"solana-swap-service/internal/solana"
	"solana-swap-service/internal/storage"
	chstore "solana-swap-service/internal/storage/clickhouse"
	"solana-swap-service/internal/storage/memory"
	"solana-swap-service/internal/storage/migrations"
	pgstore "solana-swap-service/internal/storage/postgres"
	"solana-swap-service/internal/swap"
)

// Server holds the wired settlement components behind the HTTP API.
type Server struct {
	pipeline *swap.Pipeline
	tracker  *swap.ConfirmationTracker
	trades   storage.TradeStore
	events   storage.TradeEventStore
	logger   *log.Logger
	started  time.Time
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional, enables the confirmation fast path)")
	aggregatorURL := flag.String("aggregator-url", envOr("AGGREGATOR_URL", "https://quote-api.jup.ag/v6"), "DEX aggregator API base URL")
	aggregatorAPIKey := flag.String("aggregator-api-key", os.Getenv("AGGREGATOR_API_KEY"), "DEX aggregator API key")
	walletKey := flag.String("wallet-key", os.Getenv("WALLET_SECRET_KEY"), "Trading wallet secret key (base58)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables the durable event log)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP API address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	feeBps := flag.Int("fee-bps", 0, "Platform fee in basis points (0 disables fee collection)")
	feeOwner := flag.String("fee-owner", os.Getenv("FEE_OWNER"), "Platform fee owner address (base58)")
	onlyDirect := flag.Bool("only-direct-routes", false, "Request single-hop routes from the aggregator")
	rejectIndirect := flag.Bool("reject-indirect", false, "Reject multi-hop quotes under --only-direct-routes instead of warning")
	quoteTTL := flag.Duration("quote-ttl", 30*time.Second, "Maximum quote age at assembly time")
	commitment := flag.String("commitment", solana.CommitmentConfirmed, "Target commitment for swap confirmation (confirmed or finalized)")
	priorityFee := flag.Uint64("priority-fee", 0, "Prioritization fee in lamports attached to swap transactions")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *walletKey == "" {
		logger.Fatal("--wallet-key is required (or WALLET_SECRET_KEY)")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if *feeBps > 0 && *feeOwner == "" {
		logger.Fatal("--fee-owner is required when --fee-bps is set")
	}
	if *commitment != solana.CommitmentConfirmed && *commitment != solana.CommitmentFinalized {
		logger.Fatalf("Unsupported commitment: %s", *commitment)
	}

	wallet, err := solana.KeypairFromBase58(*walletKey)
	if err != nil {
		logger.Fatalf("Invalid wallet key: %v", err)
	}
	logger.Printf("Trading wallet: %s", wallet.PublicKey())

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores (migrations run here)
	trades, events, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("swap_service")
	rpc := solana.NewHTTPClient(*rpcEndpoint)

	// Confirmation tracker, with the WebSocket fast path when available
	var trackerOpts []swap.TrackerOption
	if *wsEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, *wsEndpoint, nil)
		if err != nil {
			logger.Printf("WebSocket connection failed, falling back to polling: %v", err)
		} else {
			defer ws.Close()
			trackerOpts = append(trackerOpts, swap.WithWSClient(ws))
		}
	}
	tracker := swap.NewConfirmationTracker(rpc, logger, trackerOpts...)

	// Aggregator client
	var aggOpts []jupiter.Option
	if *aggregatorAPIKey != "" {
		aggOpts = append(aggOpts, jupiter.WithAPIKey(*aggregatorAPIKey))
	}
	agg := jupiter.NewClient(*aggregatorURL, aggOpts...)

	feePolicy := domain.FeePolicy{Enabled: *feeBps > 0, Bps: *feeBps, Owner: *feeOwner}
	routePolicy := swap.RoutePolicy{OnlyDirectRoutes: *onlyDirect, RejectIndirect: *rejectIndirect}

	var assemblerOpts []swap.AssemblerOption
	if *priorityFee > 0 {
		assemblerOpts = append(assemblerOpts, swap.WithPrioritizationFee(*priorityFee))
	}

	pipeline, err := swap.NewPipeline(swap.Options{
		Quotes:           swap.NewQuoteResolver(agg, routePolicy, feePolicy, logger),
		Fees:             swap.NewFeeResolver(feePolicy),
		Provisioner:      swap.NewAccountProvisioner(rpc, tracker, wallet, logger),
		Assembler:        swap.NewTransactionAssembler(agg, assemblerOpts...),
		Submitter:        swap.NewSubmitter(rpc, tracker, logger),
		Tracker:          tracker,
		Wallet:           wallet,
		Trades:           trades,
		Events:           events,
		Metrics:          metrics,
		Logger:           logger,
		QuoteTTL:         *quoteTTL,
		TargetCommitment: *commitment,
	})
	if err != nil {
		logger.Fatalf("Failed to build pipeline: %v", err)
	}

	server := &Server{
		pipeline: pipeline,
		tracker:  tracker,
		trades:   trades,
		events:   events,
		logger:   logger,
		started:  time.Now(),
	}

	// Prometheus metrics on a separate listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Printf("Starting metrics server on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	logger.Printf("Starting HTTP API on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	// Let in-flight confirmations persist their outcome before exiting
	pipeline.Wait()
	cancel()
	logger.Println("Shutdown complete")
}

// createStores creates the trade and event stores, running migrations for
// the database-backed ones. ClickHouse is optional; without it the event
// log stays in memory.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (storage.TradeStore, storage.TradeEventStore, func(), error) {
	if useMemory {
		return memory.NewTradeStore(), memory.NewTradeEventStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	trades := pgstore.NewTradeStore(pool)

	if clickhouseDSN == "" {
		logger.Println("No ClickHouse DSN, keeping the trade event log in memory")
		return trades, memory.NewTradeEventStore(), func() { pool.Close() }, nil
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return trades, chstore.NewTradeEventStore(chConn), cleanup, nil
}

// routes builds the HTTP API mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/trades", s.handleTrades)
	mux.HandleFunc("/v1/trades/", s.handleTradeByID)
	mux.HandleFunc("/v1/status", s.handleSignatureStatus)
	return mux
}

// tradeRequest is the POST /v1/trades body.
type tradeRequest struct {
	FromMint    string `json:"fromMint"`
	ToMint      string `json:"toMint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippageBps"`
	SwapMode    string `json:"swapMode"`
}

// tradeResponse is the JSON shape of a trade record.
type tradeResponse struct {
	TradeID       string   `json:"tradeId"`
	Wallet        string   `json:"wallet"`
	FromMint      string   `json:"fromMint"`
	ToMint        string   `json:"toMint"`
	Amount        uint64   `json:"amount"`
	SlippageBps   int      `json:"slippageBps"`
	SwapMode      string   `json:"swapMode"`
	Status        string   `json:"status"`
	FeeMint       *string  `json:"feeMint,omitempty"`
	FeeAccount    *string  `json:"feeAccount,omitempty"`
	OutAmount     *uint64  `json:"outAmount,omitempty"`
	Signatures    []string `json:"signatures,omitempty"`
	FailureReason *string  `json:"failureReason,omitempty"`
	CreatedAt     int64    `json:"createdAt"`
	UpdatedAt     int64    `json:"updatedAt"`
}

func toTradeResponse(t *domain.Trade) *tradeResponse {
	return &tradeResponse{
		TradeID:       t.TradeID,
		Wallet:        t.Wallet,
		FromMint:      t.FromMint,
		ToMint:        t.ToMint,
		Amount:        t.Amount,
		SlippageBps:   t.SlippageBps,
		SwapMode:      string(t.SwapMode),
		Status:        string(t.Status),
		FeeMint:       t.FeeMint,
		FeeAccount:    t.FeeAccount,
		OutAmount:     t.OutAmount,
		Signatures:    t.Signatures,
		FailureReason: t.FailureReason,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// handleHealth returns service health as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

// handleTrades serves POST /v1/trades and GET /v1/trades?wallet=.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateTrade(w, r)
	case http.MethodGet:
		s.handleListTrades(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.SwapMode == "" {
		req.SwapMode = string(domain.SwapModeExactIn)
	}

	trade, err := s.pipeline.Execute(r.Context(), swap.TradeRequest{
		FromMint:    req.FromMint,
		ToMint:      req.ToMint,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
		SwapMode:    domain.SwapMode(req.SwapMode),
	})
	if err != nil {
		s.writePipelineError(w, trade, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toTradeResponse(trade))
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter is required")
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	list, err := s.trades.ListByWallet(r.Context(), wallet, limit, offset)
	if err != nil {
		s.logger.Printf("List trades: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	out := make([]*tradeResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTradeResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTradeByID serves GET /v1/trades/{id} and /v1/trades/{id}/events.
// A trade still awaiting confirmation is refreshed against the chain before
// being returned.
func (s *Server) handleTradeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tradeID := strings.TrimPrefix(r.URL.Path, "/v1/trades/")
	if rest, ok := strings.CutSuffix(tradeID, "/events"); ok {
		s.handleTradeEvents(w, r, rest)
		return
	}
	if tradeID == "" || strings.Contains(tradeID, "/") {
		writeError(w, http.StatusBadRequest, "trade id required")
		return
	}

	trade, err := s.pipeline.Status(r.Context(), tradeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		s.logger.Printf("Trade status: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	writeJSON(w, http.StatusOK, toTradeResponse(trade))
}

// handleTradeEvents returns a trade's lifecycle transitions in timestamp
// order.
func (s *Server) handleTradeEvents(w http.ResponseWriter, r *http.Request, tradeID string) {
	if tradeID == "" || strings.Contains(tradeID, "/") {
		writeError(w, http.StatusBadRequest, "trade id required")
		return
	}
	if s.events == nil {
		writeError(w, http.StatusNotFound, "event log not configured")
		return
	}

	events, err := s.events.GetByTradeID(r.Context(), tradeID)
	if err != nil {
		s.logger.Printf("Trade events: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	out := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		ev := map[string]interface{}{
			"status":      string(e.Status),
			"timestampMs": e.TimestampMs,
		}
		if e.Detail != "" {
			ev["detail"] = e.Detail
		}
		out = append(out, ev)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSignatureStatus serves GET /v1/status?signature= for ad-hoc
// confirmation checks outside a trade's lifecycle.
func (s *Server) handleSignatureStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	signature := r.URL.Query().Get("signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "signature query parameter is required")
		return
	}
	commitment := r.URL.Query().Get("commitment")
	if commitment == "" {
		commitment = solana.CommitmentConfirmed
	}

	result, err := s.tracker.CheckOnce(r.Context(), signature, commitment)
	if err != nil {
		s.logger.Printf("Signature status: %v", err)
		writeError(w, http.StatusBadGateway, "rpc error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signature": result.Signature,
		"state":     string(result.State),
		"slot":      result.Slot,
		"error":     result.ErrDetail,
	})
}

// writePipelineError maps a settlement error to an HTTP status, carrying
// the trade's last persisted state when one exists.
func (s *Server) writePipelineError(w http.ResponseWriter, trade *domain.Trade, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, swap.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, swap.ErrNoRoute), errors.Is(err, swap.ErrIndirectRoute):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, swap.ErrQuoteExpired):
		status = http.StatusConflict
	case swap.IsRetryable(err):
		status = http.StatusBadGateway
	}

	body := map[string]interface{}{"error": err.Error()}
	if trade != nil {
		body["trade"] = toTradeResponse(trade)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
