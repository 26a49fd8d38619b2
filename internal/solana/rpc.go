package solana

import "context"

// RPCClient defines the ledger RPC interface the settlement pipeline needs.
type RPCClient interface {
	// GetAccountInfo retrieves account info by address. Returns nil if the
	// account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetLatestBlockhash retrieves a recent blockhash for transaction building.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// SendTransaction submits a signed wire transaction and returns its signature.
	SendTransaction(ctx context.Context, wireTx []byte, opts *SendOpts) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Result entries are positionally aligned with the input; nil means unknown.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetBalance retrieves the lamport balance of an address.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}
