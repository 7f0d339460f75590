package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/network"
	"github.com/proofofsteak/steakboard/internal/submission"
)

// walletHeader carries the submitter's wallet address.
const walletHeader = "X-Wallet-Address"

type submitRequest struct {
	submission.Payload
	Identity string `json:"identity"`
	Wait     bool   `json:"wait"`
}

type submitResponse struct {
	submission.Pending
	// Error is set when the write went through but confirmation did not.
	Error string `json:"error,omitempty"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.submissions == nil {
		h.writeError(w, "Submissions are not enabled", http.StatusServiceUnavailable)
		return
	}

	var request submitRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	identity := strings.TrimSpace(r.Header.Get(walletHeader))
	if identity == "" {
		identity = request.Identity
	}
	if strings.TrimSpace(identity) == "" {
		h.writeError(w, submission.ErrMissingIdentity.Error(), http.StatusBadRequest)
		return
	}

	if h.guard != nil && h.wallet != nil {
		var mismatch *network.MismatchError
		err := h.guard.Ensure(r.Context(), h.wallet)
		switch {
		case errors.As(err, &mismatch):
			h.writeError(w, mismatch.Error(), http.StatusConflict)
			return
		case err != nil:
			h.writeError(w, "Failed to check network: "+err.Error(), http.StatusBadGateway)
			return
		}
	}

	pending, err := h.submissions.Submit(r.Context(), request.Payload, identity, submission.Options{Wait: request.Wait})

	var confErr *submission.ConfirmationError
	switch {
	case err == nil:
		code := http.StatusAccepted
		if pending.Outcome != nil {
			code = http.StatusOK
		}
		h.writeJSONStatus(w, code, submitResponse{Pending: pending})
	case errors.As(err, &confErr):
		// the handle is still valid; the client can recheck later
		h.writeJSONStatus(w, http.StatusAccepted, submitResponse{Pending: pending, Error: err.Error()})
	case errors.Is(err, submission.ErrMissingIdentity), errors.Is(err, submission.ErrMissingImage):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrUnknownIdentity), errors.Is(err, ledger.ErrInvalidAddress):
		h.writeError(w, err.Error(), http.StatusForbidden)
	default:
		h.writeError(w, err.Error(), http.StatusBadGateway)
	}
}

func (h *Handler) HandleSubmissions(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		identity = r.Header.Get(walletHeader)
	}
	h.writeJSON(w, h.store.GetAll(identity))
}

func (h *Handler) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	pending, ok := h.store.Get(mux.Vars(r)["handle"])
	if !ok {
		h.writeError(w, "Submission not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, pending)
}

// HandleDismissSubmission removes a resolved submission from the store.
// Pending submissions stay until they resolve.
func (h *Handler) HandleDismissSubmission(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	pending, ok := h.store.Get(handle)
	if !ok {
		h.writeError(w, "Submission not found", http.StatusNotFound)
		return
	}
	if !pending.Resolved() {
		h.writeError(w, "Submission is still pending", http.StatusConflict)
		return
	}
	h.store.Delete(handle)
	w.WriteHeader(http.StatusNoContent)
}

// HandleConfirm checks a handle once more. It is the manual recheck path for
// submissions whose wait timed out.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	if h.submissions == nil {
		h.writeError(w, "Submissions are not enabled", http.StatusServiceUnavailable)
		return
	}
	handle := mux.Vars(r)["handle"]

	outcome, err := h.submissions.Recheck(r.Context(), handle)
	if errors.Is(err, submission.ErrTimeout) {
		var confErr *submission.ConfirmationError
		status := ""
		if errors.As(err, &confErr) {
			status = confErr.Status
		}
		h.writeJSONStatus(w, http.StatusAccepted, map[string]any{
			"handle":  handle,
			"status":  status,
			"pending": true,
		})
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, outcome)
}
