package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair wraps an ed25519 key pair with base58 address encoding.
type Keypair struct {
	priv ed25519.PrivateKey
}

// KeypairFromBase58 parses a base58-encoded secret key. Accepts the common
// 64-byte seed+pubkey form and the bare 32-byte seed form.
func KeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return &Keypair{priv: ed25519.PrivateKey(raw)}, nil
	case ed25519.SeedSize:
		return &Keypair{priv: ed25519.NewKeyFromSeed(raw)}, nil
	default:
		return nil, fmt.Errorf("secret key must be %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// PublicKey returns the base58-encoded public key.
func (k *Keypair) PublicKey() string {
	return base58.Encode(k.priv.Public().(ed25519.PublicKey))
}

// Sign signs the message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}
