// Package common provides shared utilities for the service binaries.
package common

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/oracle"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/tdx"
)

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// FetchProtocolConfig retrieves the protocol configuration from a
// coordinator's /config endpoint.
func FetchProtocolConfig(coordinatorURL string) (*protocol.Config, error) {
	resp, err := http.Get(coordinatorURL + "/config")
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}

	config, err := protocol.DecodeMessage[protocol.Config](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}

// NewAttestationProvider creates a TEE provider based on configuration flags.
// Returns the local TDX provider or a remote DCAP provider when useTDX is
// true, otherwise a DummyProvider for local development.
func NewAttestationProvider(useTDX bool, remoteTDXURL string) oracle.TEEProvider {
	if useTDX {
		if remoteTDXURL != "" {
			return &tdx.RemoteProvider{URL: remoteTDXURL, Timeout: 30 * time.Second}
		}
		return &tdx.Provider{}
	}
	return &tdx.DummyProvider{}
}

// FetchVerifiedOracleKey fetches an oracle service's verification key and
// checks the attestation binding it before returning the key. When
// expectedMRTD is non-empty the attested TD measurement must match it.
func FetchVerifiedOracleKey(ctx context.Context, remote *oracle.RemoteOracle, provider oracle.TEEProvider, expectedMRTD string) (crypto.PublicKey, error) {
	keyResp, err := remote.FetchVerificationKey(ctx)
	if err != nil {
		return nil, err
	}

	verifyKey, err := crypto.NewPublicKeyFromString(keyResp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid oracle key: %w", err)
	}

	measurements, err := oracle.VerifyKeyAttestation(provider, verifyKey, keyResp.Attestation)
	if err != nil {
		return nil, err
	}

	if expectedMRTD != "" {
		if got := hex.EncodeToString(measurements[0]); got != expectedMRTD {
			return nil, fmt.Errorf("oracle MRTD %s does not match expected %s", got, expectedMRTD)
		}
	}
	return verifyKey, nil
}
