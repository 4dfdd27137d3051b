package protocol

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
)

// Signed wraps a message with an Ed25519 signature for authentication. The
// HTTP surface uses it for provider submissions and owner administration:
// the handler recovers the signer and derives the acting address from the
// public key, so transport-level identity is never trusted.
type Signed[T any] struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

// NewSigned creates an authenticated message by signing the serialized
// object together with the signer's public key.
func NewSigned[T any](privkey crypto.PrivateKey, obj *T) (*Signed[T], error) {
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return nil, err
	}

	serialized, err := SerializeMessage(obj)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(privkey, append(serialized, pubkey...))
	if err != nil {
		return nil, err
	}

	return &Signed[T]{
		PublicKey: pubkey,
		Signature: signature,
		Object:    obj,
	}, nil
}

// UnsafeObject returns the wrapped object without verifying the signature.
func (s *Signed[T]) UnsafeObject() *T {
	return s.Object
}

// Recover verifies the signature and returns the authenticated object with
// the signer's public key.
func (s *Signed[T]) Recover() (*T, crypto.PublicKey, error) {
	serialized, err := SerializeMessage(s.Object)
	if err != nil {
		return nil, nil, err
	}

	if !s.Signature.Verify(s.PublicKey, append(serialized, s.PublicKey...)) {
		return nil, nil, errors.New("signature not valid")
	}

	return s.Object, s.PublicKey, nil
}

// RecoverAddress verifies the signature and returns the object together
// with the signer's derived actor address.
func (s *Signed[T]) RecoverAddress() (*T, crypto.Address, error) {
	obj, pubkey, err := s.Recover()
	if err != nil {
		return nil, crypto.Address{}, err
	}
	return obj, crypto.AddressFromPublicKey(pubkey), nil
}

// UnmarshalMessage deserializes a message from JSON.
func UnmarshalMessage[T any](data []byte) (*T, error) {
	var msg T
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// DecodeMessage deserializes a message from a JSON reader.
func DecodeMessage[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}

// SerializeMessage serializes a message to JSON.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}
