package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/proofofsteak/steakboard/internal/categories"
	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/paginator"
	"github.com/proofofsteak/steakboard/internal/records"
)

// pageResponse is one page plus the cursor needed to ask for the next one.
type pageResponse struct {
	Key        string            `json:"key"`
	Records    []records.Display `json:"records"`
	StartIndex int               `json:"start_index"`
	NextStart  int               `json:"next_start"`
	Returned   int               `json:"returned_count"`
	HasMore    bool              `json:"has_more"`
	TotalCount int               `json:"total_count"`
}

func newPageResponse(key string, start int, page paginator.Page) pageResponse {
	recs := page.Records
	if recs == nil {
		recs = []records.Display{}
	}
	return pageResponse{
		Key:        key,
		Records:    recs,
		StartIndex: start,
		NextStart:  start + page.ReturnedCount,
		Returned:   page.ReturnedCount,
		HasMore:    page.HasMore,
		TotalCount: page.TotalCount,
	}
}

func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, categories.All())
}

func (h *Handler) HandleCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["category"]
	if !categories.Valid(id) {
		h.writeError(w, "Unknown category: "+id, http.StatusNotFound)
		return
	}
	h.writeJSON(w, categories.Lookup(id))
}

// HandleCategoryRecords serves one leaderboard page without server state.
func (h *Handler) HandleCategoryRecords(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]
	if !categories.Valid(category) {
		h.writeError(w, "Unknown category: "+category, http.StatusNotFound)
		return
	}
	start, count, ok := h.pageParams(r)
	if !ok {
		h.writeError(w, "start and count must be non-negative integers", http.StatusBadRequest)
		return
	}

	page, err := h.categoryReader.FetchPage(r.Context(), category, start, count)
	if err != nil {
		h.writeError(w, "Failed to load leaderboard: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, newPageResponse(category, start, page))
}

// HandleCategoryRefresh reloads the server-held cursor for a category.
func (h *Handler) HandleCategoryRefresh(w http.ResponseWriter, r *http.Request) {
	h.advanceCategory(w, r, false)
}

// HandleCategoryMore appends the next page to the server-held cursor.
func (h *Handler) HandleCategoryMore(w http.ResponseWriter, r *http.Request) {
	h.advanceCategory(w, r, true)
}

// HandleCategoryReset forgets the server-held cursor; the next refresh or
// more starts from the first page.
func (h *Handler) HandleCategoryReset(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]
	if !categories.Valid(category) {
		h.writeError(w, "Unknown category: "+category, http.StatusNotFound)
		return
	}
	h.categoryPages.Drop(category)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) advanceCategory(w http.ResponseWriter, r *http.Request, more bool) {
	category := mux.Vars(r)["category"]
	if !categories.Valid(category) {
		h.writeError(w, "Unknown category: "+category, http.StatusNotFound)
		return
	}

	p, created := h.categoryPages.Get(category)
	var err error
	if more && !created {
		err = p.LoadMore(r.Context())
	} else {
		err = p.Refresh(r.Context())
	}

	switch {
	case err == nil, errors.Is(err, paginator.ErrNoMore):
		h.writeJSON(w, p.State())
	case errors.Is(err, paginator.ErrBusy):
		h.writeJSONStatus(w, http.StatusAccepted, p.State())
	default:
		// category cursors keep their last good records on failure
		h.writeJSONStatus(w, http.StatusBadGateway, p.State())
	}
}

func (h *Handler) HandleWalletRecords(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	start, count, ok := h.pageParams(r)
	if !ok {
		h.writeError(w, "start and count must be non-negative integers", http.StatusBadRequest)
		return
	}

	page, err := h.walletReader.FetchPage(r.Context(), address, start, count)
	if errors.Is(err, ledger.ErrInvalidAddress) {
		h.writeError(w, "Invalid wallet address: "+address, http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to load contributions: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, newPageResponse(address, start, page))
}

func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, "Invalid analysis id", http.StatusBadRequest)
		return
	}

	reader, err := h.cache.Reader(r.Context())
	if err != nil {
		h.writeError(w, "Failed to connect to ledger: "+err.Error(), http.StatusBadGateway)
		return
	}
	raw, found, err := reader.AnalysisByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to load analysis: "+err.Error(), http.StatusBadGateway)
		return
	}
	if !found {
		h.writeError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, h.transformer.Transform(raw))
}
