package solana

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

const signatureLength = 64

// WireTransaction is a deserialized wire transaction: the signature table
// plus the raw message bytes the signatures cover. Supports legacy and
// versioned (v0) messages; only the parts needed for signing are decoded.
type WireTransaction struct {
	Signatures [][]byte // one 64-byte slot per required signer
	Message    []byte   // raw message bytes, signed verbatim

	version     int // -1 for legacy
	numRequired int
	accountKeys []string
}

// ParseWireTransaction deserializes a wire transaction produced by the
// aggregator (or locally). Signature slots may be zero-filled placeholders.
func ParseWireTransaction(raw []byte) (*WireTransaction, error) {
	numSigs, n, err := decodeShortvec(raw)
	if err != nil {
		return nil, fmt.Errorf("read signature count: %w", err)
	}

	offset := n
	if len(raw) < offset+numSigs*signatureLength {
		return nil, fmt.Errorf("transaction truncated: %d signatures declared, %d bytes left",
			numSigs, len(raw)-offset)
	}

	sigs := make([][]byte, numSigs)
	for i := 0; i < numSigs; i++ {
		sig := make([]byte, signatureLength)
		copy(sig, raw[offset:offset+signatureLength])
		sigs[i] = sig
		offset += signatureLength
	}

	message := raw[offset:]
	tx := &WireTransaction{
		Signatures: sigs,
		Message:    append([]byte(nil), message...),
	}

	if err := tx.parseMessageHeader(); err != nil {
		return nil, err
	}

	return tx, nil
}

// parseMessageHeader decodes version, header counts and the static account
// keys. Address table lookups (v0) are not needed for signing and are left
// unparsed.
func (t *WireTransaction) parseMessageHeader() error {
	msg := t.Message
	if len(msg) == 0 {
		return fmt.Errorf("empty message")
	}

	offset := 0
	t.version = -1
	if msg[0]&0x80 != 0 {
		t.version = int(msg[0] & 0x7f)
		offset = 1
	}

	if len(msg) < offset+3 {
		return fmt.Errorf("message header truncated")
	}

	t.numRequired = int(msg[offset])
	offset += 3

	numKeys, n, err := decodeShortvec(msg[offset:])
	if err != nil {
		return fmt.Errorf("read account key count: %w", err)
	}
	offset += n

	if len(msg) < offset+numKeys*32 {
		return fmt.Errorf("account keys truncated: %d declared, %d bytes left",
			numKeys, len(msg)-offset)
	}
	if t.numRequired > numKeys {
		return fmt.Errorf("header requires %d signers but message has %d keys",
			t.numRequired, numKeys)
	}
	if t.numRequired != len(t.Signatures) {
		return fmt.Errorf("header requires %d signers but transaction has %d signature slots",
			t.numRequired, len(t.Signatures))
	}

	t.accountKeys = make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		t.accountKeys[i] = base58.Encode(msg[offset : offset+32])
		offset += 32
	}

	return nil
}

// RequiredSigners returns the addresses that must sign, in signature order.
func (t *WireTransaction) RequiredSigners() []string {
	return t.accountKeys[:t.numRequired]
}

// Sign fills signature slots for every required signer matching one of the
// given keypairs. Signers without a matching keypair are left untouched
// (they may have been signed upstream).
func (t *WireTransaction) Sign(keypairs ...*Keypair) {
	for i, signer := range t.RequiredSigners() {
		for _, kp := range keypairs {
			if kp.PublicKey() == signer {
				t.Signatures[i] = kp.Sign(t.Message)
				break
			}
		}
	}
}

// MissingSigners returns required signers whose signature slot is still a
// zero-filled placeholder.
func (t *WireTransaction) MissingSigners() []string {
	var missing []string
	zero := make([]byte, signatureLength)
	for i, signer := range t.RequiredSigners() {
		if bytes.Equal(t.Signatures[i], zero) {
			missing = append(missing, signer)
		}
	}
	return missing
}

// PrimarySignature returns the fee payer signature encoded as base58,
// which is the transaction's identifier once submitted.
func (t *WireTransaction) PrimarySignature() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return base58.Encode(t.Signatures[0])
}

// Serialize re-encodes the transaction to wire format.
func (t *WireTransaction) Serialize() []byte {
	out := encodeShortvec(len(t.Signatures))
	for _, sig := range t.Signatures {
		out = append(out, sig...)
	}
	return append(out, t.Message...)
}

// decodeShortvec reads a compact-u16 length prefix.
func decodeShortvec(data []byte) (value, bytesRead int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("shortvec truncated")
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("shortvec too long")
}

// encodeShortvec writes a compact-u16 length prefix.
func encodeShortvec(value int) []byte {
	var out []byte
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
