package solana

// Commitment levels for confirmation queries.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// LatestBlockhash is the result of getLatestBlockhash.
type LatestBlockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SendOpts configures transaction submission.
type SendOpts struct {
	// SkipPreflight disables the pre-submit simulation. Off by default:
	// simulation catches bad transactions before they cost a fee.
	SkipPreflight bool

	// PreflightCommitment is the commitment level for simulation.
	PreflightCommitment string

	// MaxRetries bounds the RPC node's own resubmission attempts.
	MaxRetries *int
}

// SignatureStatus is one entry from getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64       `json:"slot"`
	Confirmations      *int        `json:"confirmations"` // nil once rooted
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"` // processed|confirmed|finalized
}
