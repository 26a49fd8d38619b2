package ata

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	testMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func TestFindAssociatedTokenAddress_Deterministic(t *testing.T) {
	addr1, bump1, err := FindAssociatedTokenAddress(testOwner, testMint)
	require.NoError(t, err)
	addr2, bump2, err := FindAssociatedTokenAddress(testOwner, testMint)
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2, "derivation must be deterministic")
	assert.Equal(t, bump1, bump2)

	raw, err := base58.Decode(addr1)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestFindAssociatedTokenAddress_DistinctInputs(t *testing.T) {
	forMint, _, err := FindAssociatedTokenAddress(testOwner, testMint)
	require.NoError(t, err)
	forWSOL, _, err := FindAssociatedTokenAddress(testOwner, WrappedSOLMint)
	require.NoError(t, err)
	otherOwner, _, err := FindAssociatedTokenAddress(testMint, testMint)
	require.NoError(t, err)

	assert.NotEqual(t, forMint, forWSOL, "different mints must derive different accounts")
	assert.NotEqual(t, forMint, otherOwner, "different owners must derive different accounts")
	assert.NotEqual(t, forMint, testOwner, "derived address must not equal the owner")
	assert.NotEqual(t, forMint, testMint, "derived address must not equal the mint")
}

func TestFindAssociatedTokenAddress_OffCurve(t *testing.T) {
	addr, _, err := FindAssociatedTokenAddress(testOwner, testMint)
	require.NoError(t, err)

	raw, err := base58.Decode(addr)
	require.NoError(t, err)
	assert.False(t, isOnCurve(raw), "program-derived address must be off the curve")
}

func TestFindAssociatedTokenAddress_InvalidInput(t *testing.T) {
	_, _, err := FindAssociatedTokenAddress("not-base58-0OIl", testMint)
	assert.Error(t, err)

	_, _, err = FindAssociatedTokenAddress(testOwner, "not-base58-0OIl")
	assert.Error(t, err)
}

func TestFindProgramAddress_BumpInfluencesResult(t *testing.T) {
	seeds := [][]byte{[]byte("seed-a")}
	addr1, _, err := FindProgramAddress(seeds, TokenProgramID)
	require.NoError(t, err)

	addr2, _, err := FindProgramAddress([][]byte{[]byte("seed-b")}, TokenProgramID)
	require.NoError(t, err)

	assert.NotEqual(t, addr1, addr2)
}
