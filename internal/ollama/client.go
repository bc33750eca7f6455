// Package ollama talks to a local Ollama server for text and vision
// generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fbuddy/rag/internal/llm"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:11434"

// Client wraps Ollama API interactions
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Ollama client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GenerateRequest is the body of POST /api/generate. Images are base64
// encoded and require a vision-capable model.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is one object of the /api/generate response stream.
type GenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
}

// Generate runs a completion and returns the concatenated response. It
// accepts both streamed and single-object replies.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	url := fmt.Sprintf("%s/api/generate", c.baseURL)

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	var result strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var genResp GenerateResponse
		if err := decoder.Decode(&genResp); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if genResp.Error != "" {
			return "", fmt.Errorf("ollama API error: %s", genResp.Error)
		}

		result.WriteString(genResp.Response)

		if genResp.Done {
			break
		}
	}

	return result.String(), nil
}

// Generator adapts a Client and a model to llm.Generator. The model can be
// switched while requests are in flight.
type Generator struct {
	client      *Client
	temperature *float64

	mu    sync.RWMutex
	model string
}

// NewGenerator creates a generator for model. A nil temperature leaves the
// model default in place.
func NewGenerator(client *Client, model string, temperature *float64) *Generator {
	return &Generator{client: client, model: model, temperature: temperature}
}

// Model returns the model name requests are sent to.
func (g *Generator) Model() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model
}

// SetModel switches later requests to model.
func (g *Generator) SetModel(model string) {
	g.mu.Lock()
	g.model = model
	g.mu.Unlock()
}

// ListModels lists the models available on the generator's server.
func (g *Generator) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return g.client.ListModels(ctx)
}

// Generate implements llm.Generator.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	model := g.Model()
	if model == "" {
		return "", llm.ErrNotConfigured
	}

	genReq := &GenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
	}
	for _, img := range req.Images {
		genReq.Images = append(genReq.Images, base64.StdEncoding.EncodeToString(img.Data))
	}
	if g.temperature != nil {
		genReq.Options = map[string]any{"temperature": *g.temperature}
	}

	return g.client.Generate(ctx, genReq)
}
