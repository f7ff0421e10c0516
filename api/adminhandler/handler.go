// Package adminhandler lets key holders unlock a locked key manager by
// submitting their Shamir shares over HTTP.
package adminhandler

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/secret-contract-enclave/api"
	"github.com/ruteri/secret-contract-enclave/keymanager"
)

const (
	AdminIDHeader        = "X-Admin-ID"
	AdminSignatureHeader = "X-Admin-Signature"
)

// ShareCollector is the part of the key manager the admin API drives.
type ShareCollector interface {
	SubmitShare(adminID string, share, signature []byte) error
	AdminPubKey(adminID string) ([]byte, bool)
	IsUnlocked() bool
	Threshold() int
	ReceivedShares() int
}

type AdminHandler struct {
	km  ShareCollector
	log *slog.Logger
}

func NewAdminHandler(km ShareCollector, log *slog.Logger) *AdminHandler {
	return &AdminHandler{km: km, log: log}
}

// RegisterRoutes mounts:
//   - GET /admin/status: key manager state
//   - POST /admin/share: submit a share, authenticated with the admin headers
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/status", h.handleStatus)
	r.Post("/admin/share", h.handleSubmitShare)
}

func (h *AdminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := api.AdminStatusResponse{Unlocked: h.km.IsUnlocked()}
	if !resp.Unlocked {
		resp.Threshold = h.km.Threshold()
		resp.ReceivedShares = h.km.ReceivedShares()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *AdminHandler) handleSubmitShare(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.verifyAdmin(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var submission api.ShareSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.km.SubmitShare(adminID, submission.Share, submission.Signature)
	switch {
	case errors.Is(err, keymanager.ErrAlreadyUnlocked):
		http.Error(w, "Key manager already unlocked", http.StatusConflict)
		return
	case err != nil:
		h.log.Warn("Share submission failed", "err", err, "adminID", adminID)
		http.Error(w, "Share submission failed", http.StatusBadRequest)
		return
	}

	h.log.Info("Share accepted", "adminID", adminID, "unlocked", h.km.IsUnlocked())
	h.handleStatus(w, r)
}

// verifyAdmin checks the admin signature over SHA256(path || body). The body is
// restored for the handler.
func (h *AdminHandler) verifyAdmin(r *http.Request) (string, bool) {
	adminID := r.Header.Get(AdminIDHeader)
	adminSignatureStr := r.Header.Get(AdminSignatureHeader)
	if adminID == "" || adminSignatureStr == "" {
		return "", false
	}

	pubKeyPEM, exists := h.km.AdminPubKey(adminID)
	if !exists {
		h.log.Warn("Authentication failed: unknown admin ID", "adminID", adminID)
		return adminID, false
	}

	adminSignature, err := base64.StdEncoding.DecodeString(adminSignatureStr)
	if err != nil {
		h.log.Warn("Authentication failed: invalid signature encoding", "adminID", adminID)
		return adminID, false
	}

	pubKey, err := keymanager.ParseAdminPubKey(pubKeyPEM)
	if err != nil {
		h.log.Error("Failed to parse admin public key", "adminID", adminID, "err", err)
		return adminID, false
	}

	var bodyBytes []byte
	if r.Body != nil {
		bodyBytes, err = io.ReadAll(r.Body)
		if err != nil {
			h.log.Error("Failed to read request body", "err", err)
			return adminID, false
		}
		r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	if !ecdsa.VerifyASN1(pubKey, RequestDigest(r.URL.Path, bodyBytes), adminSignature) {
		h.log.Warn("Authentication failed: invalid signature", "adminID", adminID)
		return adminID, false
	}

	h.log.Debug("Admin authentication successful", "adminID", adminID)
	return adminID, true
}

// RequestDigest is what admins sign to authenticate a request.
func RequestDigest(path string, body []byte) []byte {
	digest := sha256.Sum256(append([]byte(path), body...))
	return digest[:]
}
