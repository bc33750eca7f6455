package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbuddy/rag/internal/bill"
	"github.com/fbuddy/rag/internal/documents"
	"github.com/fbuddy/rag/internal/rag"
	"github.com/fbuddy/rag/internal/vectorindex"
)

type fakeIngester struct {
	owner    string
	names    []string
	contents []string
}

func (f *fakeIngester) IngestBatch(_ context.Context, uploads []documents.Upload, ownerID string) documents.BatchResult {
	f.owner = ownerID
	var res documents.BatchResult
	for _, u := range uploads {
		f.names = append(f.names, u.Filename)
		rc, err := u.Open()
		if err != nil {
			res.Results = append(res.Results, documents.FileResult{Filename: u.Filename, Error: err.Error()})
			continue
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		f.contents = append(f.contents, string(data))

		if strings.HasSuffix(u.Filename, ".txt") {
			res.Results = append(res.Results, documents.FileResult{Filename: u.Filename, Error: "Invalid file type"})
			continue
		}
		res.Results = append(res.Results, documents.FileResult{Filename: u.Filename, Chunks: 4, Success: true})
		res.TotalChunks += 4
	}
	return res
}

type fakeAnswerer struct {
	last rag.Request
	err  error
}

func (f *fakeAnswerer) Answer(_ context.Context, req rag.Request) (*rag.Answer, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, rag.ErrEmptyQuery
	}
	return &rag.Answer{
		Answer:              "Keep six months of expenses.",
		Sources:             []string{"guide.pdf"},
		ContextUsed:         2,
		UsedDocumentContext: true,
	}, nil
}

type fakeBills struct {
	got []byte
	err error
}

func (f *fakeBills) Extract(_ context.Context, image []byte) (*bill.Record, error) {
	f.got = image
	if f.err != nil {
		return nil, f.err
	}
	date := "2025-12-31"
	return &bill.Record{Merchant: "Zudio", Amount: 799, Category: "clothes", Date: &date, Status: bill.StatusSuccess}, nil
}

type statsIndex struct {
	vectorindex.Index
	err error
}

func (s statsIndex) Stats(context.Context) (vectorindex.Stats, error) {
	return vectorindex.Stats{TotalVectorCount: 42, Dimension: 768}, s.err
}

type fixture struct {
	ingester *fakeIngester
	answerer *fakeAnswerer
	bills    *fakeBills
	handler  http.Handler
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	f := &fixture{
		ingester: &fakeIngester{},
		answerer: &fakeAnswerer{},
		bills:    &fakeBills{},
	}
	s := New(Deps{
		Ingester:  f.ingester,
		Answerer:  f.answerer,
		Bills:     f.bills,
		Index:     statsIndex{},
		IndexName: "rag1",
	}, maxUpload)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	f.handler = s.Handler()
	return f
}

func (f *fixture) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

type part struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, path string, parts []part, fields map[string]string) *http.Request {
	t.Helper()
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 0)
	rec, body := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, map[string]any{
		"status":    "OK",
		"message":   "RAG Service is running",
		"timestamp": "2026-01-02T03:04:05Z",
	}, body)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, 0)
	rec, _ := f.do(httptest.NewRequest(http.MethodOptions, "/chat", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestUploadDocuments(t *testing.T) {
	f := newFixture(t, 0)
	req := multipartRequest(t, "/upload-documents", []part{
		{"files", "guide.pdf", "pdf bytes"},
		{"files", "notes.txt", "text"},
	}, map[string]string{"user_id": "u-42"})

	rec, body := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Processed 2 files, ingested 4 chunks", body["message"])
	assert.EqualValues(t, 4, body["total_chunks"])
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "Invalid file type", results[1].(map[string]any)["error"])

	assert.Equal(t, "u-42", f.ingester.owner)
	assert.Equal(t, []string{"guide.pdf", "notes.txt"}, f.ingester.names)
	assert.Equal(t, []string{"pdf bytes", "text"}, f.ingester.contents)
}

func TestUploadDocumentsClientErrors(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		code int
		msg  string
	}{
		{
			name: "no files field",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/upload-documents", []part{{"other", "a.pdf", "x"}}, nil)
			},
			code: http.StatusBadRequest,
			msg:  "No files provided",
		},
		{
			name: "empty filename",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/upload-documents", []part{{"files", "", "x"}}, nil)
			},
			code: http.StatusBadRequest,
			msg:  "No files provided",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload-documents", strings.NewReader("{}"))
			},
			code: http.StatusBadRequest,
			msg:  "No files provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			rec, body := f.do(tt.req(t))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.msg, body["message"])
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, 1024)
	req := multipartRequest(t, "/upload-documents", []part{{"files", "big.pdf", strings.Repeat("x", 4096)}}, nil)

	rec, body := f.do(req)
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Empty(t, f.ingester.names)
}

func TestChat(t *testing.T) {
	f := newFixture(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(
		`{"query":"How big should my emergency fund be?","user_id":"u-1","context":{"current_balance":1500,"currency":"INR"}}`))

	rec, body := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, map[string]any{
		"success":               true,
		"answer":                "Keep six months of expenses.",
		"sources":               []any{"guide.pdf"},
		"context_used":          float64(2),
		"used_document_context": true,
	}, body)
	assert.Equal(t, "u-1", f.answerer.last.UserID)
	assert.Equal(t, map[string]any{"current_balance": float64(1500), "currency": "INR"}, f.answerer.last.Realtime)
}

func TestChatNumericUserID(t *testing.T) {
	f := newFixture(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"hi","user_id":1001}`))
	rec, _ := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1001", f.answerer.last.UserID)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
		msg  string
	}{
		{"missing query", `{"user_id":"u-1"}`, nil, http.StatusBadRequest, "Query is required"},
		{"blank query", `{"query":"   "}`, nil, http.StatusBadRequest, "Query is required"},
		{"invalid json", `{"query":`, nil, http.StatusBadRequest, "Query is required"},
		{
			name: "provider failure",
			body: `{"query":"hi"}`,
			err:  errors.New("failed to generate answer: quota exceeded"),
			code: http.StatusInternalServerError,
			msg:  "failed to generate answer: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			f.answerer.err = tt.err
			rec, body := f.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.msg, body["message"])
		})
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, 0)
	rec, body := f.do(httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"success":       true,
		"total_vectors": float64(42),
		"dimension":     float64(768),
		"index_name":    "rag1",
	}, body)
}

func TestStatsError(t *testing.T) {
	s := New(Deps{Index: statsIndex{err: errors.New("connection refused")}}, 0)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestScanBill(t *testing.T) {
	f := newFixture(t, 0)
	rec, body := f.do(multipartRequest(t, "/scan-bill", []part{{"file", "bill.jpg", "jpeg bytes"}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "Zudio", data["merchant"])
	assert.Equal(t, float64(799), data["amount"])
	assert.Equal(t, "clothes", data["category"])
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, []byte("jpeg bytes"), f.bills.got)
}

func TestScanBillErrors(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		f := newFixture(t, 0)
		rec, body := f.do(multipartRequest(t, "/scan-bill", nil, map[string]string{"note": "x"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file provided", body["message"])
	})

	t.Run("extraction failure", func(t *testing.T) {
		f := newFixture(t, 0)
		f.bills.err = errors.New("bill extraction failed: invalid JSON from model")
		rec, body := f.do(multipartRequest(t, "/scan-bill", []part{{"file", "bill.jpg", "x"}}, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "bill extraction failed: invalid JSON from model", body["message"])
	})
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, 0)
	rec, _ := f.do(httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
