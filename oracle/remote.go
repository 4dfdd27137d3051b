package oracle

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// Wire types of the oracle HTTP protocol, shared by RemoteOracle and the
// standalone oracle service.

// DecryptRequest carries the ordered handle sequence of one batch.
type DecryptRequest struct {
	Handles []crypto.Handle `json:"handles"`
}

// DecryptResponse returns the oracle's fresh request identifier.
type DecryptResponse struct {
	RequestID protocol.RequestID `json:"request_id"`
}

// EncryptRequest asks the encryption capability for a handle.
type EncryptRequest struct {
	Value byte `json:"value"`
}

// EncryptResponse carries the minted handle.
type EncryptResponse struct {
	Handle crypto.Handle `json:"handle"`
}

// KeyResponse publishes the oracle's proof verification key together with a
// TEE attestation binding it.
type KeyResponse struct {
	PublicKey       string `json:"public_key"`
	AttestationType string `json:"attestation_type"`
	Attestation     []byte `json:"attestation,omitempty"`
}

// RemoteOracle dispatches decryption requests to a standalone oracle service
// over HTTP. The service calls the coordinator's callback endpoint on its
// own schedule; only the request identifier travels back synchronously.
type RemoteOracle struct {
	URL    string
	Client *http.Client
}

// NewRemoteOracle creates a client for the oracle service at baseURL.
func NewRemoteOracle(baseURL string) *RemoteOracle {
	return &RemoteOracle{URL: baseURL, Client: http.DefaultClient}
}

// RequestDecryption implements protocol.DecryptionOracle.
func (o *RemoteOracle) RequestDecryption(ctx context.Context, handles []crypto.Handle) (protocol.RequestID, error) {
	body, err := protocol.SerializeMessage(&DecryptRequest{Handles: handles})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL+"/oracle/decrypt", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	decoded, err := protocol.DecodeMessage[DecryptResponse](resp.Body)
	if err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if decoded.RequestID == "" {
		return "", fmt.Errorf("oracle returned empty request id")
	}
	return decoded.RequestID, nil
}

// FetchVerificationKey retrieves the oracle's proof key and attestation.
func (o *RemoteOracle) FetchVerificationKey(ctx context.Context) (*KeyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.URL+"/oracle/key", nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch oracle key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}
	return protocol.DecodeMessage[KeyResponse](resp.Body)
}

// Encrypt asks the oracle service's encryption capability for a handle.
func (o *RemoteOracle) Encrypt(ctx context.Context, value byte) (crypto.Handle, error) {
	body, err := protocol.SerializeMessage(&EncryptRequest{Value: value})
	if err != nil {
		return crypto.ZeroHandle, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL+"/oracle/encrypt", bytes.NewReader(body))
	if err != nil {
		return crypto.ZeroHandle, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return crypto.ZeroHandle, fmt.Errorf("encrypt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return crypto.ZeroHandle, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	decoded, err := protocol.DecodeMessage[EncryptResponse](resp.Body)
	if err != nil {
		return crypto.ZeroHandle, err
	}
	return decoded.Handle, nil
}
