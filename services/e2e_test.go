package services

import (
	"context"
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
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/tdx"
)

// Exercises the full two-service deployment: a coordinator talking to a
// standalone oracle service over HTTP, with the proof verification key
// fetched from the oracle's attested key endpoint.
func TestCoordinatorOracleEndToEnd(t *testing.T) {
	ctx := context.Background()

	so, err := oracle.NewSigningOracle()
	require.NoError(t, err)

	tee := &tdx.DummyProvider{}
	oracleSvc := NewOracleService(so, tee, "", slog.Default())
	oracleRouter := chi.NewRouter()
	oracleSvc.RegisterRoutes(oracleRouter)
	oracleSrv := httptest.NewServer(oracleRouter)
	defer oracleSrv.Close()

	remote := oracle.NewRemoteOracle(oracleSrv.URL)

	// Fetch the oracle's verification key and check the attestation binds it.
	keyResp, err := remote.FetchVerificationKey(ctx)
	require.NoError(t, err)
	verifyKey, err := crypto.NewPublicKeyFromString(keyResp.PublicKey)
	require.NoError(t, err)
	_, err = oracle.VerifyKeyAttestation(tee, verifyKey, keyResp.Attestation)
	require.NoError(t, err)

	ownerPub, ownerKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	providerPub, providerKey, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	cfg := protocol.DefaultConfig()
	cfg.SubmitCooldown = 0
	cfg.DecryptCooldown = 0

	engine, err := coordinator.New(coordinator.EngineConfig{
		Protocol: cfg,
		Owner:    crypto.AddressFromPublicKey(ownerPub),
		Oracle:   remote,
		Verifier: oracle.NewEd25519Verifier(verifyKey),
	})
	require.NoError(t, err)

	coordRouter := chi.NewRouter()
	NewCoordinatorHandler(engine, slog.Default()).RegisterRoutes(coordRouter)
	coordSrv := httptest.NewServer(coordRouter)
	defer coordSrv.Close()

	// The oracle delivers callbacks to the coordinator it now knows about.
	oracleSvc.callbackURL = coordSrv.URL + "/decryption/callback"

	f := &handlerFixture{
		t:           t,
		srv:         coordSrv,
		engine:      engine,
		oracle:      so,
		ownerKey:    ownerKey,
		providerKey: providerKey,
		provider:    crypto.AddressFromPublicKey(providerPub),
	}

	batchID := f.openBatch()
	f.addProvider(f.provider)

	// A blinker: three live cells in a row, encrypted by the oracle service.
	for _, pos := range [][2]int{{4, 4}, {5, 4}, {6, 4}} {
		handle, err := remote.Encrypt(ctx, cfg.AliveValue)
		require.NoError(t, err)
		resp := postSigned(f, "/cells", providerKey, &SubmitCellRequest{X: pos[0], Y: pos[1], Handle: handle})
		requireStatus(f, resp, http.StatusOK)
	}

	f.closeBatch()

	resp := postSigned(f, "/decryption/request", providerKey, &DecryptionRequestBody{BatchID: batchID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	requestID := decodeBody[DecryptionRequestResponse](f, resp).RequestID
	require.NotEmpty(t, requestID)

	// The oracle posts the callback on its own goroutine; poll until the
	// request is finalized.
	require.Eventually(t, func() bool {
		pending, ok := engine.Context(requestID)
		return ok && pending.Processed
	}, 5*time.Second, 10*time.Millisecond)

	outcome, ok := engine.Outcome(requestID)
	require.True(t, ok)
	require.Equal(t, batchID, outcome.BatchID)
	require.Equal(t, 3, outcome.LiveCells)
	require.Len(t, outcome.Plaintexts, cfg.NumCells())
	require.Equal(t, cfg.AliveValue, outcome.Plaintexts[cfg.SlotIndex(5, 4)])
	require.Equal(t, byte(0), outcome.Plaintexts[cfg.SlotIndex(0, 0)])
}
