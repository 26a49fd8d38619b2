// Package stub provides an in-memory RPCClient for testing.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"solana-swap-service/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	Accounts  map[string]*solana.AccountInfo
	Statuses  map[string]*solana.SignatureStatus
	Blockhash string

	// Balances holds explicit lamport balances; addresses without an entry
	// report DefaultBalance, so tests only set balances when scarcity matters.
	Balances       map[string]uint64
	DefaultBalance uint64

	// Submitted collects every transaction passed to SendTransaction.
	Submitted [][]byte

	// SendErr, when set, is returned by SendTransaction.
	SendErr error

	// OnSend, when set, is invoked with each parsed transaction before the
	// signature is returned. Lets tests mutate stub state on submission.
	OnSend func(tx *solana.WireTransaction)

	sendCount int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:       make(map[string]*solana.AccountInfo),
		Statuses:       make(map[string]*solana.SignatureStatus),
		Balances:       make(map[string]uint64),
		DefaultBalance: 10_000_000_000,
		Blockhash:      base58.Encode(make([]byte, 32)),
	}
}

// GetAccountInfo retrieves account info from the stub store.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &solana.LatestBlockhash{Blockhash: c.Blockhash, LastValidBlockHeight: 1}, nil
}

// SendTransaction records the submission and returns the fee payer signature.
func (c *RPCClient) SendTransaction(_ context.Context, wireTx []byte, _ *solana.SendOpts) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		return "", c.SendErr
	}

	c.Submitted = append(c.Submitted, append([]byte(nil), wireTx...))
	c.sendCount++

	tx, err := solana.ParseWireTransaction(wireTx)
	if err != nil {
		return "", fmt.Errorf("stub parse transaction: %w", err)
	}
	if c.OnSend != nil {
		c.OnSend(tx)
	}

	sig := tx.PrimarySignature()
	if sig == "" {
		sig = fmt.Sprintf("stub-signature-%d", c.sendCount)
	}
	return sig, nil
}

// GetSignatureStatuses returns configured statuses, nil for unknown signatures.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.Statuses[sig]
	}
	return out, nil
}

// GetBalance returns the configured balance for an address, or
// DefaultBalance when none was set.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if balance, ok := c.Balances[pubkey]; ok {
		return balance, nil
	}
	return c.DefaultBalance, nil
}

// SetBalance sets the lamport balance reported for an address.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[pubkey] = lamports
}

// SetAccount adds an account to the stub store.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

// SetStatus sets the status returned for a signature.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

// SubmittedCount returns how many transactions were accepted.
func (c *RPCClient) SubmittedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Submitted)
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)
