package domain

// TradeStatus is the lifecycle state of a trade.
// Corresponds to the status column of the trade_records table.
type TradeStatus string

// Trade status constants. Transitions are strictly forward except Failed,
// which is terminal from any non-terminal state. Confirmed is terminal.
const (
	TradeRequested            TradeStatus = "REQUESTED"
	TradeQuoted               TradeStatus = "QUOTED"
	TradeSubmitting           TradeStatus = "SUBMITTING"
	TradeAwaitingConfirmation TradeStatus = "AWAITING_CONFIRMATION"
	TradeConfirmed            TradeStatus = "CONFIRMED"
	TradeFailed               TradeStatus = "FAILED"
)

// statusRank orders statuses along the forward path.
var statusRank = map[TradeStatus]int{
	TradeRequested:            0,
	TradeQuoted:               1,
	TradeSubmitting:           2,
	TradeAwaitingConfirmation: 3,
	TradeConfirmed:            4,
	TradeFailed:               5,
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeConfirmed || s == TradeFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition. Failed is reachable from any non-terminal state.
func (s TradeStatus) CanTransitionTo(next TradeStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == TradeFailed {
		return true
	}
	return statusRank[next] == statusRank[s]+1
}

// Trade represents one swap request through its settlement lifecycle.
// Corresponds to trade_records table in PostgreSQL.
type Trade struct {
	TradeID       string      // PRIMARY KEY, generated UUID
	Wallet        string      // trading wallet address (base58)
	FromMint      string      // input token mint address
	ToMint        string      // output token mint address
	Amount        uint64      // fixed-side amount in base units
	SlippageBps   int
	SwapMode      SwapMode
	Status        TradeStatus
	FeeMint       *string  // platform fee mint, set once fee decision exists
	FeeAccount    *string  // platform fee token account, set with FeeMint
	OutAmount     *uint64  // quoted output amount (nullable until quoted)
	Signatures    []string // transaction signatures in submission order
	FailureReason *string  // terminal diagnostic, set only for Failed
	CreatedAt     int64    // Unix timestamp in milliseconds
	UpdatedAt     int64    // Unix timestamp in milliseconds
}

// TradeStatusEvent is one lifecycle transition, recorded append-only
// for analytics. Corresponds to trade_status_events table in ClickHouse.
type TradeStatusEvent struct {
	TradeID     string
	Status      TradeStatus
	Detail      string // signature, failure reason or empty
	TimestampMs int64
}
