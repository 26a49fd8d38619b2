// Package ata derives associated token account addresses. The same
// derivation is used everywhere an ATA is checked or created, so resolved
// addresses are comparable byte-for-byte across components.
package ata

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known program and mint addresses.
const (
	SystemProgramID          = "11111111111111111111111111111111"
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"

	// WrappedSOLMint is the wrapped-native mint: SOL represented as an
	// ordinary SPL token.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
)

// FindAssociatedTokenAddress derives the associated token account address
// for (owner, mint). Returns the address and the bump seed used.
func FindAssociatedTokenAddress(owner, mint string) (string, uint8, error) {
	ownerBytes, err := base58.Decode(owner)
	if err != nil {
		return "", 0, fmt.Errorf("decode owner %q: %w", owner, err)
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", 0, fmt.Errorf("decode mint %q: %w", mint, err)
	}
	tokenProgram, err := base58.Decode(TokenProgramID)
	if err != nil {
		return "", 0, fmt.Errorf("decode token program: %w", err)
	}

	seeds := [][]byte{ownerBytes, tokenProgram, mintBytes}
	return FindProgramAddress(seeds, AssociatedTokenProgramID)
}

// FindProgramAddress searches bump seeds 255..0 for the first derivation
// that lands off the ed25519 curve, per the program-derived-address rules.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	programBytes, err := base58.Decode(programID)
	if err != nil {
		return "", 0, fmt.Errorf("decode program id %q: %w", programID, err)
	}

	for bump := 255; bump >= 0; bump-- {
		var data []byte
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programBytes...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), uint8(bump), nil
		}
	}

	return "", 0, fmt.Errorf("no viable bump seed for program %s", programID)
}

// isOnCurve reports whether the bytes decode to a valid ed25519 point.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
