package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclaw/qrbatch/encoder"
	"github.com/openclaw/qrbatch/metrics"
	"github.com/openclaw/qrbatch/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 20

// Server holds the dependencies for all HTTP handlers.
type Server struct {
	Generator *service.Generator
	Defaults  encoder.Options
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	Version   string
	StartTime time.Time
}

// NewRouter returns a fully configured chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(requestLogger(s.Log))
	if s.Metrics != nil {
		r.Use(s.Metrics.Middleware)
		r.Handle("/metrics", s.Metrics.Handler())
	}

	// Form UI
	r.Get("/", s.handleFormPage)

	// Encoding
	r.Post("/generate", s.handleGenerate)
	r.Post("/encode", s.handleEncode)

	// Batches
	r.Get("/batches", s.handleListBatches)
	r.Get("/batches/{id}", s.handleGetBatch)
	r.Get("/batches/{id}/download", s.handleDownload)

	// Status
	r.Get("/status", s.handleStatus)

	return r
}

// --- helpers ----------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// --- middleware --------------------------------------------------------------

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}
