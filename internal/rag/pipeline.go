// Package rag answers finance questions from retrieved document chunks,
// falling back to general knowledge when nothing relevant is visible to the
// caller.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fbuddy/rag/internal/llm"
	"github.com/fbuddy/rag/internal/logger"
	"github.com/fbuddy/rag/internal/textproc"
)

// GeneralKnowledgeSource is reported as the only source when no document
// context was used.
const GeneralKnowledgeSource = "General Knowledge"

var (
	// ErrEmptyQuery is returned for a blank question.
	ErrEmptyQuery = errors.New("query is required")
	// ErrGeneration wraps generation provider failures.
	ErrGeneration = errors.New("failed to generate answer")
)

// Request is one question. UserID may be empty for anonymous callers.
// Realtime holds live figures such as balances keyed by snake_case names.
type Request struct {
	Query    string
	UserID   string
	Realtime map[string]any
}

// Answer is the pipeline result.
type Answer struct {
	Answer              string   `json:"answer"`
	Sources             []string `json:"sources"`
	ContextUsed         int      `json:"context_used"`
	UsedDocumentContext bool     `json:"used_document_context"`
}

// Pipeline runs retrieval, prompting, generation and cleanup.
type Pipeline struct {
	retriever *Retriever
	prompts   PromptBuilder
	generator llm.Generator
	cleaner   *textproc.Cleaner
}

// NewPipeline wires a pipeline. A nil cleaner uses the default rules.
func NewPipeline(retriever *Retriever, generator llm.Generator, cleaner *textproc.Cleaner) *Pipeline {
	if cleaner == nil {
		cleaner = textproc.NewCleaner()
	}
	return &Pipeline{retriever: retriever, generator: generator, cleaner: cleaner}
}

// Answer runs one question through the pipeline. Provider failures abort the
// request with ErrEmbedding, ErrSearch or ErrGeneration.
func (p *Pipeline) Answer(ctx context.Context, req Request) (*Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	logger.Section("Retrieval")
	retrieval, err := p.retriever.Retrieve(ctx, query, req.UserID)
	if err != nil {
		return nil, err
	}
	grounded := len(retrieval.Texts) > 0

	prompt := p.prompts.Build(query, retrieval.Texts, req.Realtime)
	logger.Section("Generation")
	logger.Debug("Generating answer (document context: %t, prompt %d chars)", grounded, len(prompt))

	raw, err := p.generator.Generate(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer := &Answer{
		Answer:              p.cleaner.Clean(raw),
		Sources:             retrieval.Sources,
		ContextUsed:         len(retrieval.Texts),
		UsedDocumentContext: grounded,
	}
	if !grounded {
		answer.Sources = []string{GeneralKnowledgeSource}
	}
	logger.Debug("Generated answer (%d chars)", len(answer.Answer))

	return answer, nil
}
