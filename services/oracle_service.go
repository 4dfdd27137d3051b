package services

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/metrics"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/oracle"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// OracleService is the standalone decryption oracle. It accepts batch
// decryption requests, fulfills them asynchronously, and posts a proven
// callback to the coordinator's callback endpoint. Its verification key is
// published with a TEE attestation binding it.
type OracleService struct {
	oracle      *oracle.SigningOracle
	tee         oracle.TEEProvider
	callbackURL string
	client      *http.Client
	log         *slog.Logger
}

// NewOracleService wires a signing oracle to a coordinator callback URL.
// The TEE provider may be a DummyProvider outside confidential hardware.
func NewOracleService(so *oracle.SigningOracle, tee oracle.TEEProvider, callbackURL string, log *slog.Logger) *OracleService {
	return &OracleService{
		oracle:      so,
		tee:         tee,
		callbackURL: callbackURL,
		client:      http.DefaultClient,
		log:         log,
	}
}

// RegisterRoutes registers the oracle endpoints.
func (s *OracleService) RegisterRoutes(r chi.Router) {
	r.Post("/oracle/decrypt", s.decrypt)
	r.Post("/oracle/encrypt", s.encrypt)
	r.Get("/oracle/key", s.key)
}

func (s *OracleService) decrypt(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	req, err := protocol.DecodeMessage[oracle.DecryptRequest](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	requestID, err := s.oracle.RequestDecryption(r.Context(), req.Handles)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Respond with the request id first; fulfillment and the callback run
	// on their own schedule.
	go s.fulfillAndDeliver(requestID)

	writeJSON(w, http.StatusOK, oracle.DecryptResponse{RequestID: requestID})
}

func (s *OracleService) fulfillAndDeliver(requestID protocol.RequestID) {
	plaintexts, proof, err := s.oracle.Fulfill(requestID)
	if err != nil {
		s.log.Error("fulfillment failed", "request", requestID, "err", err)
		return
	}
	metrics.IncOracleFulfillments()

	body, err := protocol.SerializeMessage(&CallbackRequest{
		RequestID:  requestID,
		Plaintexts: plaintexts,
		Proof:      proof,
	})
	if err != nil {
		s.log.Error("serializing callback failed", "request", requestID, "err", err)
		return
	}

	resp, err := s.client.Post(s.callbackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		metrics.IncOracleDeliveryErrors()
		s.log.Error("callback delivery failed", "request", requestID, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IncOracleDeliveryErrors()
		s.log.Warn("coordinator rejected callback", "request", requestID, "status", resp.StatusCode)
		return
	}
	s.log.Info("callback delivered", "request", requestID)
}

func (s *OracleService) encrypt(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	req, err := protocol.DecodeMessage[oracle.EncryptRequest](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	handle, err := s.oracle.Encrypt(req.Value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, oracle.EncryptResponse{Handle: handle})
}

func (s *OracleService) key(w http.ResponseWriter, r *http.Request) {
	verifyKey := s.oracle.VerificationKey()

	attestation, err := oracle.AttestVerificationKey(s.tee, verifyKey)
	if err != nil {
		http.Error(w, fmt.Sprintf("attestation failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, oracle.KeyResponse{
		PublicKey:       verifyKey.String(),
		AttestationType: s.tee.AttestationType(),
		Attestation:     attestation,
	})
}
