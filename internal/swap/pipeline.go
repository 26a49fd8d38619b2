package swap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/observability"
	"solana-swap-service/internal/solana"
	"solana-swap-service/internal/storage"
)

// TradeRequest is one settlement request.
type TradeRequest struct {
	FromMint    string
	ToMint      string
	Amount      uint64
	SlippageBps int
	SwapMode    domain.SwapMode
}

// Options configures the settlement pipeline.
type Options struct {
	Quotes      *QuoteResolver
	Fees        *FeeResolver
	Provisioner *AccountProvisioner
	Assembler   *TransactionAssembler
	Submitter   *Submitter
	Tracker     *ConfirmationTracker

	// Wallet is the trading wallet keypair that signs swap transactions.
	Wallet *solana.Keypair

	Trades storage.TradeStore
	Events storage.TradeEventStore // optional

	Metrics *observability.Metrics // optional
	Logger  *log.Logger

	// QuoteTTL bounds quote age at assembly time; an older quote is
	// re-resolved once before the swap is built. Default 30s.
	QuoteTTL time.Duration

	// TargetCommitment is the commitment the swap is tracked to.
	// Default confirmed.
	TargetCommitment string

	Clock Clock
}

// Pipeline drives a trade from request to terminal state: quote, fee
// decision, account provisioning, transaction assembly, submission and
// confirmation, persisting every transition along the way.
type Pipeline struct {
	quotes      *QuoteResolver
	fees        *FeeResolver
	provisioner *AccountProvisioner
	assembler   *TransactionAssembler
	submitter   *Submitter
	tracker     *ConfirmationTracker
	wallet      *solana.Keypair
	trades      storage.TradeStore
	events      storage.TradeEventStore
	metrics     *observability.Metrics
	logger      *log.Logger
	quoteTTL    time.Duration
	commitment  string
	clock       Clock

	wg sync.WaitGroup
}

// NewPipeline creates a Pipeline from options.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Quotes == nil || opts.Fees == nil || opts.Provisioner == nil ||
		opts.Assembler == nil || opts.Submitter == nil || opts.Tracker == nil {
		return nil, fmt.Errorf("all pipeline stages are required")
	}
	if opts.Wallet == nil {
		return nil, fmt.Errorf("trading wallet keypair is required")
	}
	if opts.Trades == nil {
		return nil, fmt.Errorf("trade store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.QuoteTTL <= 0 {
		opts.QuoteTTL = 30 * time.Second
	}
	if opts.TargetCommitment == "" {
		opts.TargetCommitment = solana.CommitmentConfirmed
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}

	return &Pipeline{
		quotes:      opts.Quotes,
		fees:        opts.Fees,
		provisioner: opts.Provisioner,
		assembler:   opts.Assembler,
		submitter:   opts.Submitter,
		tracker:     opts.Tracker,
		wallet:      opts.Wallet,
		trades:      opts.Trades,
		events:      opts.Events,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		quoteTTL:    opts.QuoteTTL,
		commitment:  opts.TargetCommitment,
		clock:       opts.Clock,
	}, nil
}

// Execute runs a trade through submission and returns it in
// AWAITING_CONFIRMATION; confirmation continues in the background and is
// persisted when it resolves. Errors before the submission stage surface
// synchronously and leave the trade at its last persisted status; errors
// from submission onward mark it FAILED.
//
// Cancellation is honored until the first transaction is submitted. From
// that point the trade is on the wire and the pipeline runs it to a
// persisted outcome regardless of the caller's context.
func (p *Pipeline) Execute(ctx context.Context, req TradeRequest) (*domain.Trade, error) {
	now := p.clock.Now().UnixMilli()
	trade := &domain.Trade{
		TradeID:     uuid.New().String(),
		Wallet:      p.wallet.PublicKey(),
		FromMint:    req.FromMint,
		ToMint:      req.ToMint,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
		SwapMode:    req.SwapMode,
		Status:      domain.TradeRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if p.metrics != nil {
		p.metrics.QuotesRequested.Inc()
		p.metrics.TradesActive.Inc()
		defer p.metrics.TradesActive.Dec()
	}

	if err := p.trades.Create(ctx, trade); err != nil {
		// Storage trouble degrades the record, never the trade.
		p.storeError("trade_records", err)
	}
	p.recordEvent(ctx, trade.TradeID, domain.TradeRequested, "")

	params := QuoteParams{
		FromMint:    req.FromMint,
		ToMint:      req.ToMint,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
		SwapMode:    req.SwapMode,
	}
	quote, err := p.quotes.Resolve(ctx, params)
	if err != nil {
		p.countQuoteError(err)
		return trade, err
	}

	fee, err := p.fees.Resolve(quote)
	if err != nil {
		return trade, fmt.Errorf("fee resolution: %w", err)
	}

	update := &storage.TradeUpdate{OutAmount: &quote.OutAmount}
	if fee != nil {
		update.FeeMint = &fee.FeeMint
		update.FeeAccount = &fee.FeeAccount
	}
	p.persistStatus(ctx, trade, domain.TradeQuoted, update,
		fmt.Sprintf("out=%d hops=%d", quote.OutAmount, len(quote.RoutePlan)))

	if err := p.provision(ctx, trade, quote, fee); err != nil {
		return trade, err
	}

	// Provisioning can outlive the quote's useful life waiting on finality.
	// Re-resolve once rather than assembling a stale build.
	var submitUpdate *storage.TradeUpdate
	if age := p.clock.Now().UnixMilli() - quote.FetchedAt; age > p.quoteTTL.Milliseconds() {
		p.logger.Printf("trade %s: quote is %dms old, re-resolving", trade.TradeID, age)
		fresh, rerr := p.quotes.Resolve(ctx, params)
		if rerr != nil {
			p.countQuoteError(rerr)
			return trade, fmt.Errorf("%w: %w", ErrQuoteExpired, rerr)
		}
		freshFee, ferr := p.fees.Resolve(fresh)
		if ferr != nil {
			return trade, fmt.Errorf("fee resolution: %w", ferr)
		}
		if freshFee != nil && (fee == nil || freshFee.FeeAccount != fee.FeeAccount) {
			if err := p.ensureAccounts(ctx, []ProvisionTarget{{Owner: p.fees.policy.Owner, Mint: freshFee.FeeMint}}); err != nil {
				return trade, err
			}
		}
		quote, fee = fresh, freshFee
		submitUpdate = &storage.TradeUpdate{OutAmount: &quote.OutAmount}
		if fee != nil {
			submitUpdate.FeeMint = &fee.FeeMint
			submitUpdate.FeeAccount = &fee.FeeAccount
		}
	}

	set, _, err := p.assembler.Assemble(ctx, quote, trade.Wallet, fee)
	if err != nil {
		return trade, err
	}

	p.persistStatus(ctx, trade, domain.TradeSubmitting, submitUpdate, "")

	if err := ctx.Err(); err != nil {
		return trade, err
	}

	// Past this point the trade may be on the wire; run it to a persisted
	// outcome even if the caller goes away.
	sctx := context.WithoutCancel(ctx)
	signatures, err := p.submitter.Submit(sctx, set, p.wallet)
	if len(signatures) > 0 {
		if p.metrics != nil {
			p.metrics.TradesSubmitted.Inc()
		}
	}
	if err != nil {
		reason := err.Error()
		update := &storage.TradeUpdate{FailureReason: &reason}
		if len(signatures) > 0 {
			update.Signatures = signatures
		}
		p.persistStatus(sctx, trade, domain.TradeFailed, update, reason)
		p.countOutcome(string(ConfirmationFailed))
		return trade, err
	}

	p.persistStatus(sctx, trade, domain.TradeAwaitingConfirmation,
		&storage.TradeUpdate{Signatures: signatures}, signatures[len(signatures)-1])

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.confirm(sctx, trade.TradeID, signatures[len(signatures)-1])
	}()

	return trade, nil
}

// confirm tracks the swap signature to a terminal state and persists the
// outcome. A timeout leaves the trade in AWAITING_CONFIRMATION for a later
// status query to resolve.
func (p *Pipeline) confirm(ctx context.Context, tradeID, signature string) {
	result, err := p.tracker.Track(ctx, signature, p.commitment)
	if err != nil {
		p.logger.Printf("trade %s: confirmation tracking failed: %v", tradeID, err)
		return
	}

	switch result.State {
	case ConfirmationConfirmed, ConfirmationFinalized:
		p.persistTerminal(ctx, tradeID, domain.TradeConfirmed, nil, signature)
	case ConfirmationFailed:
		reason := result.ErrDetail
		p.persistTerminal(ctx, tradeID, domain.TradeFailed, &reason, reason)
	case ConfirmationTimedOut:
		p.logger.Printf("trade %s: confirmation timed out for %s, outcome unknown", tradeID, signature)
	}
	p.countOutcome(string(result.State))
}

// Status returns the trade's current state. A trade still awaiting
// confirmation gets one fresh status check, so an outcome that landed
// after a tracking timeout is promoted on read.
func (p *Pipeline) Status(ctx context.Context, tradeID string) (*domain.Trade, error) {
	trade, err := p.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status != domain.TradeAwaitingConfirmation || len(trade.Signatures) == 0 {
		return trade, nil
	}

	result, err := p.tracker.CheckOnce(ctx, trade.Signatures[len(trade.Signatures)-1], p.commitment)
	if err != nil {
		p.logger.Printf("trade %s: status recheck failed: %v", tradeID, err)
		return trade, nil
	}

	switch result.State {
	case ConfirmationConfirmed, ConfirmationFinalized:
		p.persistTerminal(ctx, tradeID, domain.TradeConfirmed, nil, result.Signature)
		trade.Status = domain.TradeConfirmed
	case ConfirmationFailed:
		reason := result.ErrDetail
		p.persistTerminal(ctx, tradeID, domain.TradeFailed, &reason, reason)
		trade.Status = domain.TradeFailed
		trade.FailureReason = &reason
	}
	return trade, nil
}

// Wait blocks until all in-flight confirmations resolve. Used on shutdown
// and by the one-shot CLI.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// provision makes sure the token accounts the settlement lands in exist:
// the trading wallet's output-mint account, and the platform's fee-mint
// account when a fee is collected. A wrapped-native output still needs its
// account: the swap lands there before the cleanup unwraps it.
func (p *Pipeline) provision(ctx context.Context, trade *domain.Trade, quote *domain.Quote, fee *domain.FeeDecision) error {
	targets := []ProvisionTarget{{Owner: trade.Wallet, Mint: quote.OutputMint}}
	if fee != nil {
		targets = append(targets, ProvisionTarget{Owner: p.fees.policy.Owner, Mint: fee.FeeMint})
	}
	return p.ensureAccounts(ctx, targets)
}

func (p *Pipeline) ensureAccounts(ctx context.Context, targets []ProvisionTarget) error {
	_, created, err := p.provisioner.EnsureMany(ctx, targets)
	if p.metrics != nil && created > 0 {
		p.metrics.AccountsProvisioned.Add(float64(created))
	}
	if err != nil {
		return fmt.Errorf("account provisioning: %w", err)
	}
	return nil
}

// persistStatus advances the trade in storage and in memory, recording the
// analytics event. Storage failures are logged and absorbed.
func (p *Pipeline) persistStatus(ctx context.Context, trade *domain.Trade, status domain.TradeStatus, update *storage.TradeUpdate, detail string) {
	if err := p.trades.UpdateStatus(ctx, trade.TradeID, status, update); err != nil {
		p.storeError("trade_records", err)
	}
	trade.Status = status
	trade.UpdatedAt = p.clock.Now().UnixMilli()
	if update != nil {
		if update.FeeMint != nil {
			trade.FeeMint = update.FeeMint
		}
		if update.FeeAccount != nil {
			trade.FeeAccount = update.FeeAccount
		}
		if update.OutAmount != nil {
			trade.OutAmount = update.OutAmount
		}
		if update.Signatures != nil {
			trade.Signatures = update.Signatures
		}
		if update.FailureReason != nil {
			trade.FailureReason = update.FailureReason
		}
	}
	p.recordEvent(ctx, trade.TradeID, status, detail)
}

// persistTerminal records a terminal outcome reached after Execute returned.
func (p *Pipeline) persistTerminal(ctx context.Context, tradeID string, status domain.TradeStatus, reason *string, detail string) {
	update := &storage.TradeUpdate{FailureReason: reason}
	if err := p.trades.UpdateStatus(ctx, tradeID, status, update); err != nil {
		p.storeError("trade_records", err)
	}
	p.recordEvent(ctx, tradeID, status, detail)
	p.logger.Printf("trade %s: %s %s", tradeID, status, detail)
}

func (p *Pipeline) recordEvent(ctx context.Context, tradeID string, status domain.TradeStatus, detail string) {
	if p.events == nil {
		return
	}
	event := &domain.TradeStatusEvent{
		TradeID:     tradeID,
		Status:      status,
		Detail:      detail,
		TimestampMs: p.clock.Now().UnixMilli(),
	}
	if err := p.events.Insert(ctx, event); err != nil {
		p.storeError("trade_status_events", err)
	}
}

func (p *Pipeline) storeError(store string, err error) {
	p.logger.Printf("storage degraded (%s): %v", store, err)
	if p.metrics != nil {
		p.metrics.DBQueryErrors.WithLabelValues(store).Inc()
	}
}

func (p *Pipeline) countQuoteError(err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.QuoteErrors.WithLabelValues(classifyErrorClass(err)).Inc()
}

func (p *Pipeline) countOutcome(state string) {
	if p.metrics == nil {
		return
	}
	p.metrics.ConfirmationOutcomes.WithLabelValues(state).Inc()
}

// classifyErrorClass maps an error to its taxonomy label for metrics.
func classifyErrorClass(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNoRoute):
		return "no_route"
	case errors.Is(err, ErrIndirectRoute):
		return "indirect_route"
	case IsRetryable(err):
		return "upstream"
	default:
		return "other"
	}
}
