package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/custodix/evidence-engine/custody"
	"github.com/custodix/evidence-engine/merkle"
)

// Handler implements the verification endpoints. All endpoints are
// stateless and read-only: callers submit the artifacts to check and get
// the full diagnostic back, never a bare boolean for the failure cases.
type Handler struct {
	log               *slog.Logger
	signatureVerifier custody.SignatureVerifier
}

// NewHandler creates a verification handler. The signature verifier is
// optional; without one, signed custody events verify with a warning.
func NewHandler(log *slog.Logger, signatureVerifier custody.SignatureVerifier) *Handler {
	return &Handler{
		log:               log,
		signatureVerifier: signatureVerifier,
	}
}

// proofResponse is the outcome of a Merkle proof check.
type proofResponse struct {
	Valid bool `json:"valid"`
}

// integrityRequest submits integrity metadata plus the per-file hashes
// observed by the caller.
type integrityRequest struct {
	Integrity   merkle.IntegrityMetadata `json:"integrity"`
	PerFileHash map[string]string        `json:"perFileHash"`
}

// HandleVerifyProof checks a self-contained Merkle inclusion proof.
//
// POST /api/v1/verify/proof, body: a merkle proof document. The check is
// pure recomputation; no pack state is consulted.
func (h *Handler) HandleVerifyProof(w http.ResponseWriter, r *http.Request) {
	var proof merkle.Proof
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid proof document: "+err.Error())
		return
	}

	valid := proof.Verify()
	h.log.Debug("verified inclusion proof",
		slog.String("filePath", proof.FilePath),
		slog.Bool("valid", valid))

	h.writeJSON(w, http.StatusOK, proofResponse{Valid: valid})
}

// HandleVerifyChain re-validates a chain of custody.
//
// POST /api/v1/verify/chain, body: the ordered custody event array as
// persisted in a pack manifest. Responds with the full
// ChainVerificationResult including broken-link and tampered-event indices.
func (h *Handler) HandleVerifyChain(w http.ResponseWriter, r *http.Request) {
	var events []custody.CustodyEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid custody events: "+err.Error())
		return
	}

	result := custody.NewChainVerifier(h.signatureVerifier).Verify(events)
	h.log.Debug("verified custody chain",
		slog.Int("totalEvents", result.TotalEvents),
		slog.Bool("valid", result.Valid))

	h.writeJSON(w, http.StatusOK, result)
}

// HandleVerifyIntegrity diffs submitted per-file hashes against integrity
// metadata and independently rebuilds the Merkle root from them.
//
// POST /api/v1/verify/integrity, body: {integrity, perFileHash}. Responds
// with the full tamper report.
func (h *Handler) HandleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	var req integrityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid integrity request: "+err.Error())
		return
	}

	report := merkle.VerifyHashes(req.PerFileHash, req.Integrity)
	h.log.Debug("verified integrity metadata",
		slog.Int("files", len(req.PerFileHash)),
		slog.Bool("isTampered", report.IsTampered))

	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
