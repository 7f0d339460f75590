package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/proofofsteak/steakboard/internal/images"
	"github.com/proofofsteak/steakboard/internal/ledger"
	"github.com/proofofsteak/steakboard/internal/metrics"
	"github.com/proofofsteak/steakboard/internal/network"
	"github.com/proofofsteak/steakboard/internal/paginator"
	"github.com/proofofsteak/steakboard/internal/records"
	"github.com/proofofsteak/steakboard/internal/storage"
	"github.com/proofofsteak/steakboard/internal/submission"
	"github.com/proofofsteak/steakboard/internal/upload"
)

// Deps are the collaborators built by the composition root.
type Deps struct {
	Cache       *ledger.Cache
	Transformer *records.Transformer
	Submissions *submission.Client
	Store       *storage.PendingStore
	// Uploads is nil when image storage is not configured.
	Uploads  upload.Storage
	Fetcher  *images.Fetcher
	PageSize int
	// Guard checks Wallet's chain before every write. Both nil skips the check.
	Guard  *network.Guard
	Wallet network.Wallet
}

type Handler struct {
	cache          *ledger.Cache
	transformer    *records.Transformer
	categoryPages  *paginator.Registry
	categoryReader *ledger.PageFetcher
	walletReader   *ledger.PageFetcher
	submissions    *submission.Client
	store          *storage.PendingStore
	uploads        upload.Storage
	fetcher        *images.Fetcher
	pageSize       int
	guard          *network.Guard
	wallet         network.Wallet
}

func New(d Deps) *Handler {
	if d.Transformer == nil {
		d.Transformer = records.NewTransformer()
	}
	if d.PageSize <= 0 {
		d.PageSize = paginator.DefaultPageSize
	}
	if d.Fetcher == nil {
		d.Fetcher = images.NewFetcher(upload.MaxSize)
	}
	if d.Store == nil {
		d.Store = storage.New()
	}
	categoryReader := ledger.NewPageFetcher(d.Cache, d.Transformer, paginator.ScopeCategory)
	return &Handler{
		cache:          d.Cache,
		transformer:    d.Transformer,
		categoryPages:  paginator.NewRegistry(categoryReader, paginator.ScopeCategory, d.PageSize),
		categoryReader: categoryReader,
		walletReader:   ledger.NewPageFetcher(d.Cache, d.Transformer, paginator.ScopeWallet),
		submissions:    d.Submissions,
		store:          d.Store,
		uploads:        d.Uploads,
		fetcher:        d.Fetcher,
		pageSize:       d.PageSize,
		guard:          d.Guard,
		wallet:         d.Wallet,
	}
}

// Router builds the API routes wrapped in CORS and panic recovery.
func (h *Handler) Router(corsOrigins []string) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	// Leaderboards
	api.HandleFunc("/categories", h.HandleCategories).Methods("GET")
	api.HandleFunc("/categories/{category}", h.HandleCategory).Methods("GET")
	api.HandleFunc("/categories/{category}/records", h.HandleCategoryRecords).Methods("GET")
	api.HandleFunc("/categories/{category}/refresh", h.HandleCategoryRefresh).Methods("POST")
	api.HandleFunc("/categories/{category}/more", h.HandleCategoryMore).Methods("POST")
	api.HandleFunc("/categories/{category}/cursor", h.HandleCategoryReset).Methods("DELETE")

	// Contributions and details
	api.HandleFunc("/wallets/{address}/records", h.HandleWalletRecords).Methods("GET")
	api.HandleFunc("/analyses/{id:[0-9]+}", h.HandleAnalysis).Methods("GET")

	// Upload and submission
	api.HandleFunc("/upload", h.HandleUpload).Methods("POST")
	api.HandleFunc("/upload", h.HandleUploadStatus).Methods("GET")
	api.HandleFunc("/submissions", h.HandleSubmit).Methods("POST")
	api.HandleFunc("/submissions", h.HandleSubmissions).Methods("GET")
	api.HandleFunc("/submissions/{handle}", h.HandleSubmission).Methods("GET")
	api.HandleFunc("/submissions/{handle}", h.HandleDismissSubmission).Methods("DELETE")
	api.HandleFunc("/submissions/{handle}/confirm", h.HandleConfirm).Methods("POST")

	r.HandleFunc("/placeholder.svg", h.HandlePlaceholder).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	}).Methods("GET")

	r.Use(metricsMiddleware)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(corsOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", walletHeader}),
	)
	recovery := gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{}),
		gorillahandlers.PrintRecoveryStack(false),
	)
	return recovery(cors(r))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware tracks request latency by route template
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequest(route, r.Method, rec.status, time.Since(start).Seconds())
	})
}

type recoveryLogger struct{}

func (recoveryLogger) Println(args ...interface{}) {
	slog.Error("Recovered from panic in handler", "panic", args)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	h.writeJSONStatus(w, code, errorResponse{Error: message})
}

// pageParams reads start and count query parameters
func (h *Handler) pageParams(r *http.Request) (int, int, bool) {
	start, count := 0, h.pageSize
	q := r.URL.Query()
	if s := q.Get("start"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		start = n
	}
	if s := q.Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		count = n
	}
	if count > ledger.MaxPageSize {
		count = ledger.MaxPageSize
	}
	return start, count, true
}
