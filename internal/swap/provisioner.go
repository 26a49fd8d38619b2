package swap

import (
	"context"
	"fmt"
	"log"
	"sync"

	"solana-swap-service/internal/ata"
	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/solana"
)

// ataRentLamports is the rent-exempt minimum for a token account.
const ataRentLamports = 2_039_280

// ProvisionTarget names an (owner, mint) pair whose associated token
// account must exist before settlement.
type ProvisionTarget struct {
	Owner string
	Mint  string
}

// AccountProvisioner guarantees associated token accounts exist, creating
// them with the service payer when missing. Creation uses the idempotent
// instruction variant, so a concurrent creation by anyone else still
// settles as success.
type AccountProvisioner struct {
	rpc     solana.RPCClient
	tracker *ConfirmationTracker
	payer   *solana.Keypair
	logger  *log.Logger
}

// NewAccountProvisioner creates an AccountProvisioner. payer funds account
// creation and signs the provisioning transactions.
func NewAccountProvisioner(rpc solana.RPCClient, tracker *ConfirmationTracker, payer *solana.Keypair, logger *log.Logger) *AccountProvisioner {
	return &AccountProvisioner{
		rpc:     rpc,
		tracker: tracker,
		payer:   payer,
		logger:  logger,
	}
}

// Check derives the associated token account for (owner, mint) and reports
// whether it currently exists as a token account.
func (p *AccountProvisioner) Check(ctx context.Context, owner, mint string) (*domain.AssociatedAccount, error) {
	address, _, err := ata.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive associated account: %w", err)
	}

	info, err := p.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, &UpstreamError{Op: "getAccountInfo", Err: err}
	}

	return &domain.AssociatedAccount{
		Owner:   owner,
		Mint:    mint,
		Address: address,
		Exists:  info != nil && info.Owner == ata.TokenProgramID,
	}, nil
}

// Ensure makes the associated token account for (owner, mint) exist,
// creating and finalizing it when missing. The returned bool reports
// whether a creation transaction was submitted.
func (p *AccountProvisioner) Ensure(ctx context.Context, owner, mint string) (*domain.AssociatedAccount, bool, error) {
	account, err := p.Check(ctx, owner, mint)
	if err != nil {
		return nil, false, err
	}
	if account.Exists {
		return account, false, nil
	}

	balance, err := p.rpc.GetBalance(ctx, p.payer.PublicKey())
	if err != nil {
		return nil, false, &UpstreamError{Op: "getBalance", Err: err}
	}
	if balance < ataRentLamports {
		return nil, false, fmt.Errorf("provision %s: payer balance %d lamports below rent-exempt minimum %d",
			account.Address, balance, ataRentLamports)
	}

	blockhash, err := p.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, false, &UpstreamError{Op: "getLatestBlockhash", Err: err}
	}

	ix := solana.NewCreateATAInstruction(p.payer.PublicKey(), account.Address, owner, mint)
	tx, err := solana.NewLegacyTransaction(p.payer.PublicKey(), blockhash.Blockhash, []solana.Instruction{ix})
	if err != nil {
		return nil, false, fmt.Errorf("build provisioning transaction: %w", err)
	}
	tx.Sign(p.payer)

	signature, err := p.rpc.SendTransaction(ctx, tx.Serialize(), nil)
	if err != nil {
		// A concurrent creation makes the account exist regardless of what
		// happened to this submission.
		if recheck, checkErr := p.Check(ctx, owner, mint); checkErr == nil && recheck.Exists {
			return recheck, false, nil
		}
		return nil, false, mapSendError("provision "+account.Address, err)
	}
	p.logger.Printf("provisioning %s (owner=%s mint=%s): %s", account.Address, owner, mint, signature)

	result, err := p.tracker.Track(ctx, signature, solana.CommitmentFinalized)
	if err != nil {
		return nil, false, err
	}

	switch result.State {
	case ConfirmationFinalized, ConfirmationConfirmed:
		account.Exists = true
		return account, true, nil
	case ConfirmationFailed, ConfirmationTimedOut:
		// CreateIdempotent only fails for structural reasons; a concurrent
		// creation still lands as success. Re-check before giving up, the
		// account may exist regardless of this transaction's fate.
		recheck, checkErr := p.Check(ctx, owner, mint)
		if checkErr == nil && recheck.Exists {
			return recheck, false, nil
		}
		if result.State == ConfirmationTimedOut {
			return nil, false, &UpstreamError{
				Op:  "provision " + account.Address,
				Err: fmt.Errorf("confirmation timed out for %s", signature),
			}
		}
		return nil, false, &OnChainError{Signature: signature, Detail: result.ErrDetail}
	default:
		return nil, false, fmt.Errorf("unexpected confirmation state %q for %s", result.State, signature)
	}
}

// EnsureMany provisions several accounts concurrently. All targets are
// attempted; the first error is returned.
func (p *AccountProvisioner) EnsureMany(ctx context.Context, targets []ProvisionTarget) ([]*domain.AssociatedAccount, int, error) {
	accounts := make([]*domain.AssociatedAccount, len(targets))
	created := make([]bool, len(targets))
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target ProvisionTarget) {
			defer wg.Done()
			accounts[i], created[i], errs[i] = p.Ensure(ctx, target.Owner, target.Mint)
		}(i, target)
	}
	wg.Wait()

	createdCount := 0
	for _, c := range created {
		if c {
			createdCount++
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, createdCount, err
		}
	}
	return accounts, createdCount, nil
}
