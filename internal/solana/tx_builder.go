package solana

import (
	"fmt"

	"github.com/mr-tron/base58"

	"solana-swap-service/internal/ata"
)

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	Pubkey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is one program invocation.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// NewCreateATAInstruction builds the idempotent variant of the associated
// token account creation instruction. Succeeds on-chain even when a
// concurrent actor created the account first.
func NewCreateATAInstruction(payer, ataAddress, owner, mint string) Instruction {
	return Instruction{
		ProgramID: ata.AssociatedTokenProgramID,
		Accounts: []AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: ataAddress, IsWritable: true},
			{Pubkey: owner},
			{Pubkey: mint},
			{Pubkey: ata.SystemProgramID},
			{Pubkey: ata.TokenProgramID},
		},
		Data: []byte{1}, // CreateIdempotent discriminator
	}
}

// NewLegacyTransaction compiles instructions into an unsigned legacy wire
// transaction with the given fee payer and recent blockhash.
func NewLegacyTransaction(feePayer, recentBlockhash string, instructions []Instruction) (*WireTransaction, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("no instructions")
	}

	keys, header, err := compileAccounts(feePayer, instructions)
	if err != nil {
		return nil, err
	}

	keyIndex := make(map[string]int, len(keys))
	for i, k := range keys {
		keyIndex[k] = i
	}

	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}
	if len(blockhash) != 32 {
		return nil, fmt.Errorf("blockhash must be 32 bytes, got %d", len(blockhash))
	}

	msg := []byte{header[0], header[1], header[2]}
	msg = append(msg, encodeShortvec(len(keys))...)
	for _, k := range keys {
		raw, err := base58.Decode(k)
		if err != nil {
			return nil, fmt.Errorf("decode account key %q: %w", k, err)
		}
		msg = append(msg, raw...)
	}
	msg = append(msg, blockhash...)

	msg = append(msg, encodeShortvec(len(instructions))...)
	for _, ix := range instructions {
		msg = append(msg, byte(keyIndex[ix.ProgramID]))
		msg = append(msg, encodeShortvec(len(ix.Accounts))...)
		for _, acc := range ix.Accounts {
			msg = append(msg, byte(keyIndex[acc.Pubkey]))
		}
		msg = append(msg, encodeShortvec(len(ix.Data))...)
		msg = append(msg, ix.Data...)
	}

	sigs := make([][]byte, header[0])
	for i := range sigs {
		sigs[i] = make([]byte, signatureLength)
	}

	tx := &WireTransaction{
		Signatures: sigs,
		Message:    msg,
	}
	if err := tx.parseMessageHeader(); err != nil {
		return nil, fmt.Errorf("compiled message invalid: %w", err)
	}
	return tx, nil
}

// compileAccounts orders accounts per message layout rules: writable
// signers (fee payer first), readonly signers, writable non-signers,
// readonly non-signers. Program ids come last as readonly non-signers.
func compileAccounts(feePayer string, instructions []Instruction) ([]string, [3]byte, error) {
	type meta struct {
		signer   bool
		writable bool
	}
	metas := map[string]*meta{
		feePayer: {signer: true, writable: true},
	}
	order := []string{feePayer}

	upsert := func(pubkey string, signer, writable bool) {
		m, ok := metas[pubkey]
		if !ok {
			m = &meta{}
			metas[pubkey] = m
			order = append(order, pubkey)
		}
		m.signer = m.signer || signer
		m.writable = m.writable || writable
	}

	for _, ix := range instructions {
		for _, acc := range ix.Accounts {
			upsert(acc.Pubkey, acc.IsSigner, acc.IsWritable)
		}
		upsert(ix.ProgramID, false, false)
	}

	var signerW, signerR, nonSignerW, nonSignerR []string
	for _, k := range order {
		m := metas[k]
		switch {
		case m.signer && m.writable:
			signerW = append(signerW, k)
		case m.signer:
			signerR = append(signerR, k)
		case m.writable:
			nonSignerW = append(nonSignerW, k)
		default:
			nonSignerR = append(nonSignerR, k)
		}
	}

	keys := append(append(append(signerW, signerR...), nonSignerW...), nonSignerR...)
	numRequired := len(signerW) + len(signerR)
	if numRequired > 255 || len(nonSignerR) > 255 {
		return nil, [3]byte{}, fmt.Errorf("too many accounts")
	}

	header := [3]byte{
		byte(numRequired),
		byte(len(signerR)),
		byte(len(nonSignerR)),
	}
	return keys, header, nil
}
