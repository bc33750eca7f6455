package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/fbuddy/rag/internal/documents"
	"github.com/fbuddy/rag/internal/logger"
	"github.com/fbuddy/rag/internal/rag"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type uploadResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	Results     []documents.FileResult `json:"results"`
	TotalChunks int                    `json:"total_chunks"`
}

type chatRequest struct {
	Query   *string        `json:"query"`
	UserID  any            `json:"user_id"`
	Context map[string]any `json:"context"`
}

type chatResponse struct {
	Success bool `json:"success"`
	*rag.Answer
}

type statsResponse struct {
	Success      bool   `json:"success"`
	TotalVectors int64  `json:"total_vectors"`
	Dimension    int    `json:"dimension"`
	IndexName    string `json:"index_name"`
}

type billResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// multipartMemory is how much of a multipart body is buffered before
// spilling to temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   "RAG Service is running",
		Timestamp: s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, ok := r.MultipartForm.File["files"]
	if !ok {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}
	if len(files) == 0 || files[0].Filename == "" {
		writeError(w, http.StatusBadRequest, "No files selected")
		return
	}

	uploads := make([]documents.Upload, len(files))
	for i, fh := range files {
		uploads[i] = documents.Upload{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}

	ownerID := r.MultipartForm.Value["user_id"]
	owner := ""
	if len(ownerID) > 0 {
		owner = ownerID[0]
	}

	result := s.deps.Ingester.IngestBatch(r.Context(), uploads, owner)
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:     true,
		Message:     fmt.Sprintf("Processed %d files, ingested %d chunks", len(files), result.TotalChunks),
		Results:     result.Results,
		TotalChunks: result.TotalChunks,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == nil {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	answer, err := s.deps.Answerer.Answer(r.Context(), rag.Request{
		Query:    *req.Query,
		UserID:   userIDString(req.UserID),
		Realtime: req.Context,
	})
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "Query is required")
			return
		}
		logger.Error("Chat error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Success: true, Answer: answer})
}

// userIDString accepts string or numeric owner ids from JSON clients.
func userIDString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Index.Stats(r.Context())
	if err != nil {
		logger.Error("Stats error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Success:      true,
		TotalVectors: stats.TotalVectorCount,
		Dimension:    stats.Dimension,
		IndexName:    s.deps.IndexName,
	})
}

func (s *Server) handleScanBill(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	if files[0].Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	image, err := readAll(files[0])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec, err := s.deps.Bills.Extract(r.Context(), image)
	if err != nil {
		logger.Error("Scan error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, billResponse{Success: true, Data: rec})
}

// parseMultipart bounds and parses the body, writing the error response
// itself when parsing fails.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", s.maxUploadBytes))
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		writeError(w, http.StatusBadRequest, "No files provided")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
	return false
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}
