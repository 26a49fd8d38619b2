package solana

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-service/internal/ata"
)

func testBlockhash() string {
	return base58.Encode(make([]byte, 32))
}

func buildTestCreateATATx(t *testing.T, payer *Keypair) *WireTransaction {
	t.Helper()

	owner, err := NewKeypair()
	require.NoError(t, err)

	address, _, err := ata.FindAssociatedTokenAddress(owner.PublicKey(), ata.WrappedSOLMint)
	require.NoError(t, err)

	ix := NewCreateATAInstruction(payer.PublicKey(), address, owner.PublicKey(), ata.WrappedSOLMint)
	tx, err := NewLegacyTransaction(payer.PublicKey(), testBlockhash(), []Instruction{ix})
	require.NoError(t, err)
	return tx
}

func TestNewLegacyTransaction_FeePayerIsFirstSigner(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)

	tx := buildTestCreateATATx(t, payer)

	signers := tx.RequiredSigners()
	require.NotEmpty(t, signers)
	assert.Equal(t, payer.PublicKey(), signers[0])
	assert.Len(t, tx.Signatures, len(signers))
}

func TestWireTransaction_SignAndSerialize_RoundTrip(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)

	tx := buildTestCreateATATx(t, payer)
	require.NotEmpty(t, tx.MissingSigners(), "unsigned transaction must report missing signers")

	tx.Sign(payer)
	assert.Empty(t, tx.MissingSigners())
	assert.NotEmpty(t, tx.PrimarySignature())

	// The signature covers the raw message bytes
	pub, err := base58.Decode(payer.PublicKey())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), tx.Message, tx.Signatures[0]))

	parsed, err := ParseWireTransaction(tx.Serialize())
	require.NoError(t, err)
	assert.Equal(t, tx.RequiredSigners(), parsed.RequiredSigners())
	assert.Equal(t, tx.Message, parsed.Message)
	assert.Equal(t, tx.PrimarySignature(), parsed.PrimarySignature())
}

func TestWireTransaction_SignIgnoresUnrelatedKeypair(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)
	stranger, err := NewKeypair()
	require.NoError(t, err)

	tx := buildTestCreateATATx(t, payer)
	tx.Sign(stranger)

	assert.Equal(t, []string{payer.PublicKey()}, tx.MissingSigners())
}

func TestParseWireTransaction_VersionedMessage(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)

	legacy := buildTestCreateATATx(t, payer)

	// Rebuild the same content as a v0 message: version prefix byte, then
	// the legacy header and body.
	v0msg := append([]byte{0x80}, legacy.Message...)
	raw := encodeShortvec(len(legacy.Signatures))
	for _, sig := range legacy.Signatures {
		raw = append(raw, sig...)
	}
	raw = append(raw, v0msg...)

	tx, err := ParseWireTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, legacy.RequiredSigners(), tx.RequiredSigners())

	tx.Sign(payer)
	assert.Empty(t, tx.MissingSigners())
	pub, _ := base58.Decode(payer.PublicKey())
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), tx.Message, tx.Signatures[0]),
		"v0 signature must cover the version prefix")
}

func TestParseWireTransaction_Truncated(t *testing.T) {
	_, err := ParseWireTransaction([]byte{2, 0, 0})
	assert.Error(t, err)

	_, err = ParseWireTransaction(nil)
	assert.Error(t, err)
}

func TestShortvec_RoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 255, 256, 16383, 16384} {
		enc := encodeShortvec(v)
		got, n, err := decodeShortvec(enc)
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
		assert.Equal(t, len(enc), n)
	}
}

func TestNewCreateATAInstruction_Accounts(t *testing.T) {
	ix := NewCreateATAInstruction("payer", "ata", "owner", "mint")

	assert.Equal(t, ata.AssociatedTokenProgramID, ix.ProgramID)
	assert.Equal(t, []byte{1}, ix.Data, "must use the idempotent create variant")
	require.Len(t, ix.Accounts, 6)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.True(t, ix.Accounts[0].IsWritable)
	assert.True(t, ix.Accounts[1].IsWritable)
	assert.False(t, ix.Accounts[1].IsSigner)
}
