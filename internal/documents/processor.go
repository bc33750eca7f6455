// Package documents loads uploaded files, splits them into chunks and writes
// the embedded chunks to the vector index.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fbuddy/rag/internal/embeddings"
	"github.com/fbuddy/rag/internal/logger"
	"github.com/fbuddy/rag/internal/textproc"
	"github.com/fbuddy/rag/internal/vectorindex"
)

// ErrInvalidFileType is returned for extensions outside the allowed set.
var ErrInvalidFileType = errors.New("invalid file type")

// Options configures a Processor.
type Options struct {
	UploadDir         string
	AllowedExtensions []string
	BatchSize         int
	ChunkSize         int
	ChunkOverlap      int
}

// Upload is one file of a multipart request.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// FileResult reports the outcome for one file.
type FileResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BatchResult aggregates a multi-file upload.
type BatchResult struct {
	Results     []FileResult `json:"results"`
	TotalChunks int          `json:"total_chunks"`
}

// Processor runs the ingestion pipeline.
type Processor struct {
	index     vectorindex.Index
	embedder  embeddings.Embedder
	splitter  *Splitter
	uploadDir string
	allowed   map[string]bool
	batchSize int
	now       func() time.Time
}

// NewProcessor creates a new document processor
func NewProcessor(index vectorindex.Index, embedder embeddings.Embedder, opts Options) (*Processor, error) {
	splitter, err := NewSplitter(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}

	allowed := make(map[string]bool, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Processor{
		index:     index,
		embedder:  embedder,
		splitter:  splitter,
		uploadDir: opts.UploadDir,
		allowed:   allowed,
		batchSize: opts.BatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Allowed reports whether filename has an accepted extension.
func (p *Processor) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext != "" && p.allowed[ext]
}

// IngestBatch ingests uploads one after another. A failing file is recorded
// in its FileResult and does not stop the rest.
func (p *Processor) IngestBatch(ctx context.Context, uploads []Upload, ownerID string) BatchResult {
	result := BatchResult{Results: make([]FileResult, 0, len(uploads))}

	for _, u := range uploads {
		fr := FileResult{Filename: u.Filename}

		// n counts chunks already stored, even when a later batch failed.
		n, err := p.ingestUpload(ctx, u, ownerID)
		fr.Chunks = n
		result.TotalChunks += n
		if err != nil {
			logger.Warn("Failed to ingest %s after storing %d chunks: %v", u.Filename, n, err)
			fr.Error = errorMessage(err)
		} else {
			fr.Success = true
		}
		result.Results = append(result.Results, fr)
	}

	return result
}

func (p *Processor) ingestUpload(ctx context.Context, u Upload, ownerID string) (int, error) {
	if !p.Allowed(u.Filename) {
		return 0, ErrInvalidFileType
	}
	rc, err := u.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open upload: %w", err)
	}
	defer rc.Close()

	return p.IngestUpload(ctx, rc, u.Filename, ownerID)
}

// IngestUpload stores src under a unique temporary name, ingests it and
// removes the copy. The sanitized filename becomes the chunk source.
func (p *Processor) IngestUpload(ctx context.Context, src io.Reader, filename, ownerID string) (int, error) {
	name := SecureFilename(filename)
	if !p.Allowed(name) {
		return 0, ErrInvalidFileType
	}

	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	tmpPath := filepath.Join(p.uploadDir, uuid.NewString()+"_"+name)
	defer os.Remove(tmpPath)

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to save upload: %w", err)
	}

	return p.ingestPath(ctx, tmpPath, name, ownerID)
}

// IngestFile ingests a file in place. The base name becomes the chunk source.
func (p *Processor) IngestFile(ctx context.Context, path, ownerID string) (int, error) {
	name := filepath.Base(path)
	if !p.Allowed(name) {
		return 0, ErrInvalidFileType
	}
	return p.ingestPath(ctx, path, name, ownerID)
}

func (p *Processor) ingestPath(ctx context.Context, path, source, ownerID string) (int, error) {
	parser, err := parserFor(source)
	if err != nil {
		return 0, err
	}

	logger.Debug("Loading document: %s", source)
	text, err := parser.Parse(path)
	if err != nil {
		return 0, fmt.Errorf("failed to parse document: %w", err)
	}

	var texts []string
	for _, chunk := range p.splitter.Split(text) {
		if clean := textproc.Sanitize(chunk); clean != "" {
			texts = append(texts, clean)
		}
	}
	logger.Debug("Split %s into %d chunks", source, len(texts))

	stored := 0
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := p.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return stored, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return stored, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		uploadedAt := p.now()
		records := make([]vectorindex.Record, len(batch))
		for i, t := range batch {
			records[i] = vectorindex.Record{
				ID:         uuid.NewString(),
				Vector:     vectors[i],
				Text:       t,
				Source:     source,
				UploadedAt: uploadedAt,
				UserID:     ownerID,
			}
		}

		if err := p.index.Upsert(ctx, records); err != nil {
			return stored, fmt.Errorf("failed to upsert batch %d: %w", start/p.batchSize+1, err)
		}
		stored += len(records)
	}

	logger.Info("Ingested %d chunks from %s", stored, source)
	return stored, nil
}

// SecureFilename reduces a client-supplied name to a safe base name made of
// ASCII letters, digits, dots, dashes and underscores.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

func errorMessage(err error) string {
	if errors.Is(err, ErrInvalidFileType) {
		return "Invalid file type"
	}
	return err.Error()
}
