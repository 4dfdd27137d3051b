// Package crypto provides the cryptographic primitives used by the encrypted
// game-of-life coordinator: Ed25519 keys and signatures for authenticating
// participants and decryption proofs, opaque ciphertext handles, actor
// addresses derived from public keys, and the batch commitment used to detect
// tampering between a decryption request and its fulfillment.
//
// The package never touches plaintext cell values. Handles are produced by an
// external encryption capability and are only compared, stored, and hashed
// here.
package crypto
