package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/coordinator"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/metrics"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// CoordinatorHandler exposes the engine over HTTP.
type CoordinatorHandler struct {
	engine *coordinator.Engine
	log    *slog.Logger
}

// NewCoordinatorHandler creates the coordinator's HTTP handler.
func NewCoordinatorHandler(engine *coordinator.Engine, log *slog.Logger) *CoordinatorHandler {
	return &CoordinatorHandler{engine: engine, log: log}
}

// RegisterRoutes registers all coordinator endpoints.
func (h *CoordinatorHandler) RegisterRoutes(r chi.Router) {
	r.Post("/cells", h.submitCell)

	r.Post("/admin/providers/add", h.addProvider)
	r.Post("/admin/providers/remove", h.removeProvider)
	r.Post("/admin/pause", h.setPaused)
	r.Post("/admin/cooldown", h.setCooldown)
	r.Post("/admin/batch/open", h.openBatch)
	r.Post("/admin/batch/close", h.closeBatch)

	r.Post("/decryption/request", h.requestDecryption)
	r.Post("/decryption/callback", h.decryptionCallback)

	r.Get("/status", h.status)
	r.Get("/config", h.config)
	r.Get("/board/{batch_id}", h.boardSnapshot)
	r.Get("/decryption/result/{request_id}", h.decryptionResult)
}

// statusForError maps the protocol error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, protocol.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, protocol.ErrSystemPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, protocol.ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, protocol.ErrInvalidCoordinates),
		errors.Is(err, protocol.ErrInvalidBatch),
		errors.Is(err, protocol.ErrBatchStillOpen),
		errors.Is(err, protocol.ErrInvalidBatchState):
		return http.StatusBadRequest
	case errors.Is(err, protocol.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, protocol.ErrReplayDetected),
		errors.Is(err, protocol.ErrStateMismatch),
		errors.Is(err, protocol.ErrInvalidProof):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *CoordinatorHandler) submitCell(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	signed, err := protocol.DecodeMessage[protocol.Signed[SubmitCellRequest]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	req, actor, err := signed.RecoverAddress()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusForbidden)
		return
	}

	if err := h.engine.SubmitCell(actor, req.X, req.Y, req.Handle); err != nil {
		metrics.IncSubmissionsRejected()
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	metrics.IncCellsSubmitted()
	writeJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

func (h *CoordinatorHandler) addProvider(w http.ResponseWriter, r *http.Request) {
	h.providerAdmin(w, r, h.engine.AddProvider)
}

func (h *CoordinatorHandler) removeProvider(w http.ResponseWriter, r *http.Request) {
	h.providerAdmin(w, r, h.engine.RemoveProvider)
}

func (h *CoordinatorHandler) providerAdmin(w http.ResponseWriter, r *http.Request,
	apply func(caller, provider crypto.Address) error) {
	defer r.Body.Close()
	signed, err := protocol.DecodeMessage[protocol.Signed[ProviderRequest]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	req, caller, err := signed.RecoverAddress()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusForbidden)
		return
	}

	if err := apply(caller, req.Provider); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CoordinatorHandler) setPaused(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	signed, err := protocol.DecodeMessage[protocol.Signed[PauseRequest]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	req, caller, err := signed.RecoverAddress()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusForbidden)
		return
	}

	if err := h.engine.SetPaused(caller, req.Paused); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CoordinatorHandler) setCooldown(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	signed, err := protocol.DecodeMessage[protocol.Signed[CooldownRequest]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	req, caller, err := signed.RecoverAddress()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusForbidden)
		return
	}

	if err := h.engine.SetCooldown(caller, req.Action, req.Cooldown); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CoordinatorHandler) openBatch(w http.ResponseWriter, r *http.Request) {
	h.batchAdmin(w, r, "open")
}

func (h *CoordinatorHandler) closeBatch(w http.ResponseWriter, r *http.Request) {
	h.batchAdmin(w, r, "close")
}

func (h *CoordinatorHandler) batchAdmin(w http.ResponseWriter, r *http.Request, op string) {
	defer r.Body.Close()
	signed, err := protocol.DecodeMessage[protocol.Signed[BatchCommand]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	req, caller, err := signed.RecoverAddress()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusForbidden)
		return
	}

	if req.Op != op {
		http.Error(w, fmt.Sprintf("op mismatch: URL says %s, body says %s", op, req.Op), http.StatusBadRequest)
		return
	}

	var batchID uint64
	if op == "open" {
		batchID, err = h.engine.OpenBatch(caller)
		if err == nil {
			metrics.IncBatchesOpened()
		}
	} else {
		batchID, err = h.engine.CloseBatch(caller)
	}
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	_, phase := h.engine.CurrentBatch()
	writeJSON(w, http.StatusOK, BatchResponse{BatchID: batchID, Phase: phase})
}

func (h *CoordinatorHandler) requestDecryption(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	signed, err := protocol.DecodeMessage[protocol.Signed[DecryptionRequestBody]](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	req, actor, err := signed.RecoverAddress()
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid signature: %v", err), http.StatusForbidden)
		return
	}

	requestID, err := h.engine.RequestDecryption(r.Context(), actor, req.BatchID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	metrics.IncDecryptionRequests()
	writeJSON(w, http.StatusOK, DecryptionRequestResponse{RequestID: requestID})
}

func (h *CoordinatorHandler) decryptionCallback(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	req, err := protocol.DecodeMessage[CallbackRequest](r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	outcome, err := h.engine.HandleDecryptionCallback(req.RequestID, req.Plaintexts, req.Proof)
	if err != nil {
		metrics.IncCallbacksRejected()
		h.log.Warn("callback rejected", "request", req.RequestID, "err", err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	metrics.IncCallbacksAccepted()
	writeJSON(w, http.StatusOK, CallbackResponse{Outcome: outcome})
}

func (h *CoordinatorHandler) status(w http.ResponseWriter, r *http.Request) {
	batchID, phase := h.engine.CurrentBatch()
	writeJSON(w, http.StatusOK, StatusResponse{
		BatchID:   batchID,
		Phase:     phase,
		Paused:    h.engine.IsPaused(),
		Providers: len(h.engine.Providers()),
	})
}

func (h *CoordinatorHandler) config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Config())
}

func (h *CoordinatorHandler) boardSnapshot(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseUint(chi.URLParam(r, "batch_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid batch id", http.StatusBadRequest)
		return
	}

	cfg := h.engine.Config()
	writeJSON(w, http.StatusOK, BoardResponse{
		BatchID: batchID,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Handles: h.engine.BoardSnapshot(batchID),
	})
}

func (h *CoordinatorHandler) decryptionResult(w http.ResponseWriter, r *http.Request) {
	requestID := protocol.RequestID(chi.URLParam(r, "request_id"))

	pending, ok := h.engine.Context(requestID)
	if !ok {
		http.Error(w, "unknown request", http.StatusNotFound)
		return
	}

	resp := ResultResponse{
		RequestID: requestID,
		BatchID:   pending.BatchID,
		StateHash: pending.StateHash,
		Processed: pending.Processed,
	}
	if outcome, ok := h.engine.Outcome(requestID); ok {
		resp.Outcome = outcome
	}
	writeJSON(w, http.StatusOK, resp)
}
