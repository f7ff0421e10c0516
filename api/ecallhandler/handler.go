// Package ecallhandler serves the enclave entry points to the untrusted host
// and accepts contract code uploads for the code store.
package ecallhandler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/secret-contract-enclave/api"
	"github.com/ruteri/secret-contract-enclave/enclave"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// Enclave is the set of ecalls the handler forwards to.
type Enclave interface {
	Init(ctx context.Context, req enclave.CallRequest) ffi.InitResult
	Handle(ctx context.Context, req enclave.CallRequest) ffi.HandleResult
	Query(ctx context.Context, req enclave.CallRequest) ffi.QueryResult
	GenerateKey() ffi.KeyGenResult
}

// Memory is the host view of the memory bridge.
type Memory interface {
	CopyOut(buf ffi.UserSpaceBuffer) ([]byte, error)
	ReleaseUserSpaceBuffer(buf ffi.UserSpaceBuffer) error
}

type Handler struct {
	enclave   Enclave
	memory    Memory
	codeStore interfaces.StorageBackend
	log       *slog.Logger
}

// NewHandler creates the ecall handler. codeStore may be nil, in which case
// code uploads are refused.
func NewHandler(e Enclave, memory Memory, codeStore interfaces.StorageBackend, log *slog.Logger) *Handler {
	return &Handler{
		enclave:   e,
		memory:    memory,
		codeStore: codeStore,
		log:       log,
	}
}

// RegisterRoutes mounts:
//   - POST /api/ecall/init, /api/ecall/handle, /api/ecall/query: CallRequest in, CallResponse out
//   - POST /api/ecall/keygen: KeyGenResponse
//   - POST /api/code: raw contract code in, CodeUploadResponse out
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/ecall/init", h.HandleInit)
	r.Post("/api/ecall/handle", h.HandleHandle)
	r.Post("/api/ecall/query", h.HandleQuery)
	r.Post("/api/ecall/keygen", h.HandleKeyGen)
	r.Post("/api/code", h.HandleCodeUpload)
}

func (h *Handler) decodeCall(w http.ResponseWriter, r *http.Request) (enclave.CallRequest, bool) {
	var body api.CallRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("Invalid ecall request body", "err", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return enclave.CallRequest{}, false
	}

	req, err := body.ToEnclave()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return enclave.CallRequest{}, false
	}
	return req, true
}

func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCall(w, r)
	if !ok {
		return
	}
	res := h.enclave.Init(r.Context(), req)
	h.respond(w, res.Failure(), res.Output, res.UsedGas, res.Signature)
}

func (h *Handler) HandleHandle(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCall(w, r)
	if !ok {
		return
	}
	res := h.enclave.Handle(r.Context(), req)
	h.respond(w, res.Failure(), res.Output, res.UsedGas, res.Signature)
}

func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCall(w, r)
	if !ok {
		return
	}
	res := h.enclave.Query(r.Context(), req)
	h.respond(w, res.Failure(), res.Output, res.UsedGas, res.Signature)
}

// respond takes ownership of the output buffer and releases it.
func (h *Handler) respond(w http.ResponseWriter, failure error, output ffi.UserSpaceBuffer, usedGas uint64, sig ffi.Signature) {
	if failure != nil {
		writeJSON(w, h.log, api.NewFailureResponse(failure))
		return
	}

	out, err := h.takeOutput(output)
	if err != nil {
		writeJSON(w, h.log, api.NewFailureResponse(err))
		return
	}
	writeJSON(w, h.log, api.NewSuccessResponse(out, usedGas, sig))
}

func (h *Handler) takeOutput(buf ffi.UserSpaceBuffer) ([]byte, error) {
	out, err := h.memory.CopyOut(buf)
	if err != nil {
		h.log.Error("Failed to read ecall output", "err", err)
		return nil, err
	}
	if err := h.memory.ReleaseUserSpaceBuffer(buf); err != nil {
		h.log.Warn("Failed to release ecall output", "err", err)
	}
	return out, nil
}

func (h *Handler) HandleKeyGen(w http.ResponseWriter, r *http.Request) {
	res := h.enclave.GenerateKey()
	if !res.IsSuccess() {
		writeJSON(w, h.log, api.KeyGenResponse{Result: api.ResultFailure, Error: res.Failure().Error()})
		return
	}

	pubKey, err := h.takeOutput(res.Output)
	if err != nil {
		writeJSON(w, h.log, api.KeyGenResponse{Result: api.ResultFailure, Error: ffi.ErrMemoryReadError.Error()})
		return
	}

	writeJSON(w, h.log, api.KeyGenResponse{
		Result:    api.ResultSuccess,
		PubKey:    pubKey,
		Signature: hex.EncodeToString(res.Signature[:]),
	})
}

// HandleCodeUpload stores contract code in the code store. The response carries
// the code hash that ecalls reference.
func (h *Handler) HandleCodeUpload(w http.ResponseWriter, r *http.Request) {
	if h.codeStore == nil {
		http.Error(w, "Code store not configured", http.StatusServiceUnavailable)
		return
	}

	code, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(code) == 0 {
		http.Error(w, "Empty contract code", http.StatusBadRequest)
		return
	}

	id, err := h.codeStore.Store(r.Context(), code, interfaces.CodeType)
	if err != nil {
		h.log.Error("Failed to store contract code", "err", err, slog.Int("size", len(code)))
		status := http.StatusInternalServerError
		if errors.Is(err, interfaces.ErrBackendUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "Failed to store contract code", status)
		return
	}

	h.log.Info("Stored contract code", slog.String("code_hash", id.String()), slog.Int("size", len(code)))
	writeJSON(w, h.log, api.CodeUploadResponse{CodeHash: id.String()})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
