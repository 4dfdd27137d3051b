package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// PublicKey identifies a participant (provider, owner, or oracle) and verifies
// signatures produced with the matching private key. Ed25519 underneath.
type PublicKey []byte

// NewPublicKeyFromBytes creates a PublicKey from a byte slice.
// The input is copied so the key is immutable afterwards.
func NewPublicKeyFromBytes(data []byte) PublicKey {
	pk := make([]byte, len(data))
	copy(pk, data)
	return PublicKey(pk)
}

// NewPublicKeyFromString creates a PublicKey from a hex-encoded string.
func NewPublicKeyFromString(data string) (PublicKey, error) {
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return PublicKey{}, err
	}
	return NewPublicKeyFromBytes(rawBytes), nil
}

// Bytes returns the public key as a byte slice.
func (pk PublicKey) Bytes() []byte {
	return pk
}

// Equal compares two public keys in constant time.
func (pk PublicKey) Equal(other PublicKey) bool {
	return subtle.ConstantTimeCompare(pk, other) == 1
}

// String returns the hex encoding, usable for logging and as a map key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// PrivateKey signs submissions, administrative requests, and decryption
// proofs. Callers are responsible for keeping the material secret.
type PrivateKey []byte

// NewPrivateKeyFromBytes creates a PrivateKey from a byte slice.
// The input is copied so the key is immutable afterwards.
func NewPrivateKeyFromBytes(data []byte) PrivateKey {
	sk := make([]byte, len(data))
	copy(sk, data)
	return PrivateKey(sk)
}

// Bytes exposes the raw key material, for sealing or serialization only.
func (sk PrivateKey) Bytes() []byte {
	return sk
}

// PublicKey derives the public half of this private key.
func (sk PrivateKey) PublicKey() (PublicKey, error) {
	if len(sk) < ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return PublicKey(sk[32:]), nil
}

// GenerateKeyPair generates a fresh Ed25519 key pair.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(publicKey), PrivateKey(privateKey), nil
}

// Signature is a detached Ed25519 signature over a message.
type Signature []byte

// NewSignature creates a Signature from a byte slice, copying the input.
func NewSignature(data []byte) Signature {
	sig := make([]byte, len(data))
	copy(sig, data)
	return Signature(sig)
}

// Bytes returns the signature as a byte slice.
func (s Signature) Bytes() []byte {
	return []byte(s)
}

// String returns the hex encoding of the signature.
func (s Signature) String() string {
	return hex.EncodeToString(s.Bytes())
}

// Verify reports whether this signature is valid for data under publicKey.
func (s Signature) Verify(publicKey PublicKey, data []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), data, s)
}

// Sign produces a signature over data with the given private key.
func Sign(privateKey PrivateKey, data []byte) (Signature, error) {
	if len(privateKey) < ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return Signature(ed25519.Sign(ed25519.PrivateKey(privateKey), data)), nil
}
