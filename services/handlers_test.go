package services

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/coordinator"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/oracle"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

type handlerFixture struct {
	t *testing.T

	srv    *httptest.Server
	engine *coordinator.Engine
	oracle *oracle.SigningOracle
	sink   *MemorySink

	ownerKey    crypto.PrivateKey
	providerKey crypto.PrivateKey
	provider    crypto.Address
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	ownerPub, ownerKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	providerPub, providerKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	so, err := oracle.NewSigningOracle()
	require.NoError(t, err)

	cfg := protocol.DefaultConfig()
	cfg.SubmitCooldown = 0
	cfg.DecryptCooldown = 0

	sink := NewMemorySink()
	engine, err := coordinator.New(coordinator.EngineConfig{
		Protocol: cfg,
		Owner:    crypto.AddressFromPublicKey(ownerPub),
		Oracle:   so,
		Verifier: oracle.NewEd25519Verifier(so.VerificationKey()),
		Sink:     sink,
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	NewCoordinatorHandler(engine, slog.Default()).RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &handlerFixture{
		t:           t,
		srv:         srv,
		engine:      engine,
		oracle:      so,
		sink:        sink,
		ownerKey:    ownerKey,
		providerKey: providerKey,
		provider:    crypto.AddressFromPublicKey(providerPub),
	}
}

func postSigned[T any](f *handlerFixture, path string, key crypto.PrivateKey, body *T) *http.Response {
	f.t.Helper()

	signed, err := protocol.NewSigned(key, body)
	require.NoError(f.t, err)
	payload, err := protocol.SerializeMessage(signed)
	require.NoError(f.t, err)

	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(f.t, err)
	return resp
}

func postJSON[T any](f *handlerFixture, path string, body *T) *http.Response {
	f.t.Helper()

	payload, err := protocol.SerializeMessage(body)
	require.NoError(f.t, err)
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(f.t, err)
	return resp
}

func decodeBody[T any](f *handlerFixture, resp *http.Response) *T {
	f.t.Helper()
	defer resp.Body.Close()
	decoded, err := protocol.DecodeMessage[T](resp.Body)
	require.NoError(f.t, err)
	return decoded
}

func requireStatus(f *handlerFixture, resp *http.Response, status int) {
	f.t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(f.t, status, resp.StatusCode, "body: %s", string(body))
}

func (f *handlerFixture) addProvider(addr crypto.Address) {
	f.t.Helper()
	resp := postSigned(f, "/admin/providers/add", f.ownerKey, &ProviderRequest{Provider: addr})
	requireStatus(f, resp, http.StatusOK)
}

func (f *handlerFixture) openBatch() uint64 {
	f.t.Helper()
	resp := postSigned(f, "/admin/batch/open", f.ownerKey, &BatchCommand{Op: "open"})
	require.Equal(f.t, http.StatusOK, resp.StatusCode)
	return decodeBody[BatchResponse](f, resp).BatchID
}

func (f *handlerFixture) closeBatch() {
	f.t.Helper()
	resp := postSigned(f, "/admin/batch/close", f.ownerKey, &BatchCommand{Op: "close"})
	requireStatus(f, resp, http.StatusOK)
}

func (f *handlerFixture) submitHandle(x, y int) crypto.Handle {
	f.t.Helper()
	handle, err := f.oracle.Encrypt(1)
	require.NoError(f.t, err)
	resp := postSigned(f, "/cells", f.providerKey, &SubmitCellRequest{X: x, Y: y, Handle: handle})
	requireStatus(f, resp, http.StatusOK)
	return handle
}

func TestStatusEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := http.Get(f.srv.URL + "/status")
	require.NoError(t, err)
	status := decodeBody[StatusResponse](f, resp)
	require.False(t, status.Paused)
	require.Equal(t, 0, status.Providers)
}

func TestConfigEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := http.Get(f.srv.URL + "/config")
	require.NoError(t, err)
	cfg := decodeBody[protocol.Config](f, resp)
	require.Equal(t, 10, cfg.Width)
	require.Equal(t, 10, cfg.Height)
}

func TestSubmitRequiresProvider(t *testing.T) {
	f := newHandlerFixture(t)
	f.openBatch()

	handle, err := f.oracle.Encrypt(1)
	require.NoError(t, err)
	resp := postSigned(f, "/cells", f.providerKey, &SubmitCellRequest{X: 1, Y: 1, Handle: handle})
	requireStatus(f, resp, http.StatusForbidden)

	f.addProvider(f.provider)
	resp = postSigned(f, "/cells", f.providerKey, &SubmitCellRequest{X: 1, Y: 1, Handle: handle})
	requireStatus(f, resp, http.StatusOK)
}

func TestSubmitRejectsTamperedEnvelope(t *testing.T) {
	f := newHandlerFixture(t)
	f.openBatch()
	f.addProvider(f.provider)

	handle, err := f.oracle.Encrypt(1)
	require.NoError(t, err)
	signed, err := protocol.NewSigned(f.providerKey, &SubmitCellRequest{X: 1, Y: 1, Handle: handle})
	require.NoError(t, err)
	signed.Object.X = 2 // breaks the signature

	payload, err := protocol.SerializeMessage(signed)
	require.NoError(t, err)
	resp, err := http.Post(f.srv.URL+"/cells", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	requireStatus(f, resp, http.StatusForbidden)
}

func TestAdminRequiresOwner(t *testing.T) {
	f := newHandlerFixture(t)

	resp := postSigned(f, "/admin/providers/add", f.providerKey, &ProviderRequest{Provider: f.provider})
	requireStatus(f, resp, http.StatusForbidden)

	resp = postSigned(f, "/admin/batch/open", f.providerKey, &BatchCommand{Op: "open"})
	requireStatus(f, resp, http.StatusForbidden)
}

func TestBatchCommandOpMismatch(t *testing.T) {
	f := newHandlerFixture(t)

	resp := postSigned(f, "/admin/batch/open", f.ownerKey, &BatchCommand{Op: "close"})
	requireStatus(f, resp, http.StatusBadRequest)
}

func TestBatchLifecycleOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)

	require.Equal(t, uint64(0), f.openBatch())

	// Opening again while open is rejected.
	resp := postSigned(f, "/admin/batch/open", f.ownerKey, &BatchCommand{Op: "open"})
	requireStatus(f, resp, http.StatusBadRequest)

	f.closeBatch()
	require.Equal(t, uint64(1), f.openBatch())
}

func TestSubmitCooldownOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)
	f.openBatch()
	f.addProvider(f.provider)

	resp := postSigned(f, "/admin/cooldown", f.ownerKey, &CooldownRequest{
		Action:   protocol.ActionSubmit,
		Cooldown: time.Hour,
	})
	requireStatus(f, resp, http.StatusOK)

	f.submitHandle(0, 0)

	handle, err := f.oracle.Encrypt(1)
	require.NoError(t, err)
	resp = postSigned(f, "/cells", f.providerKey, &SubmitCellRequest{X: 0, Y: 1, Handle: handle})
	requireStatus(f, resp, http.StatusTooManyRequests)
}

func TestPausedReturnsServiceUnavailable(t *testing.T) {
	f := newHandlerFixture(t)
	f.openBatch()
	f.addProvider(f.provider)

	resp := postSigned(f, "/admin/pause", f.ownerKey, &PauseRequest{Paused: true})
	requireStatus(f, resp, http.StatusOK)

	handle, err := f.oracle.Encrypt(1)
	require.NoError(t, err)
	resp = postSigned(f, "/cells", f.providerKey, &SubmitCellRequest{X: 0, Y: 0, Handle: handle})
	requireStatus(f, resp, http.StatusServiceUnavailable)
}

func TestBoardSnapshotEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	batchID := f.openBatch()
	f.addProvider(f.provider)
	handle := f.submitHandle(3, 2)

	resp, err := http.Get(fmt.Sprintf("%s/board/%d", f.srv.URL, batchID))
	require.NoError(t, err)
	boardResp := decodeBody[BoardResponse](f, resp)
	require.Len(t, boardResp.Handles, 100)
	require.Equal(t, handle, boardResp.Handles[3+2*10])
	require.True(t, boardResp.Handles[0].IsZero())
}

func TestDecryptionOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)
	batchID := f.openBatch()
	f.addProvider(f.provider)
	f.submitHandle(4, 4)

	// Still open: not decryptable yet.
	resp := postSigned(f, "/decryption/request", f.providerKey, &DecryptionRequestBody{BatchID: batchID})
	requireStatus(f, resp, http.StatusBadRequest)

	f.closeBatch()
	resp = postSigned(f, "/decryption/request", f.providerKey, &DecryptionRequestBody{BatchID: batchID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	requestID := decodeBody[DecryptionRequestResponse](f, resp).RequestID

	plaintexts, proof, err := f.oracle.Fulfill(requestID)
	require.NoError(t, err)

	resp = postJSON(f, "/decryption/callback", &CallbackRequest{
		RequestID:  requestID,
		Plaintexts: plaintexts,
		Proof:      proof,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cb := decodeBody[CallbackResponse](f, resp)
	require.NotNil(t, cb.Outcome)
	require.Equal(t, 1, cb.Outcome.LiveCells)

	// Replaying the same callback is rejected.
	resp = postJSON(f, "/decryption/callback", &CallbackRequest{
		RequestID:  requestID,
		Plaintexts: plaintexts,
		Proof:      proof,
	})
	requireStatus(f, resp, http.StatusConflict)

	// The result endpoint serves the finalized state.
	resp, err = http.Get(f.srv.URL + "/decryption/result/" + string(requestID))
	require.NoError(t, err)
	result := decodeBody[ResultResponse](f, resp)
	require.True(t, result.Processed)
	require.NotNil(t, result.Outcome)
	require.Equal(t, 1, result.Outcome.LiveCells)
}

func TestCallbackUnknownRequest(t *testing.T) {
	f := newHandlerFixture(t)

	resp := postJSON(f, "/decryption/callback", &CallbackRequest{
		RequestID:  "deadbeef",
		Plaintexts: make([]byte, 100),
		Proof:      crypto.Signature{1, 2, 3},
	})
	requireStatus(f, resp, http.StatusNotFound)
}

func TestResultUnknownRequest(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := http.Get(f.srv.URL + "/decryption/result/unknown")
	require.NoError(t, err)
	requireStatus(f, resp, http.StatusNotFound)
}
