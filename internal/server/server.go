// Package server exposes the ingestion, chat and bill pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fbuddy/rag/internal/bill"
	"github.com/fbuddy/rag/internal/documents"
	"github.com/fbuddy/rag/internal/logger"
	"github.com/fbuddy/rag/internal/rag"
	"github.com/fbuddy/rag/internal/vectorindex"
)

// DefaultMaxUploadBytes bounds multipart request bodies.
const DefaultMaxUploadBytes = 50 << 20

// Ingester stores uploaded documents.
type Ingester interface {
	IngestBatch(ctx context.Context, uploads []documents.Upload, ownerID string) documents.BatchResult
}

// Answerer answers chat questions.
type Answerer interface {
	Answer(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

// BillScanner extracts bill records from images.
type BillScanner interface {
	Extract(ctx context.Context, image []byte) (*bill.Record, error)
}

// Deps are the components the handlers call.
type Deps struct {
	Ingester  Ingester
	Answerer  Answerer
	Bills     BillScanner
	Index     vectorindex.Index
	IndexName string
}

// Server routes HTTP requests to the pipelines.
type Server struct {
	deps           Deps
	maxUploadBytes int64
	now            func() time.Time
	mux            *http.ServeMux
}

// New creates a server. A non-positive maxUploadBytes uses
// DefaultMaxUploadBytes.
func New(deps Deps, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		deps:           deps,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
		mux:            http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /upload-documents", s.handleUpload)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("POST /scan-bill", s.handleScanBill)

	return s
}

// Handler returns the routed handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return logRequests(allowCORS(s.mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("RAG service listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to serve on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down RAG service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
