package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// ErrNoModels is returned when the server has no models pulled.
var ErrNoModels = errors.New("no models available")

// ModelInfo describes a locally available model.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

type listModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// Model families tried in order when no model is configured.
var preferredFamilies = []string{
	"llama3.2",
	"llama3.1",
	"qwen2.5",
	"mistral",
	"llama3",
	"llama2",
}

// ListModels lists the models pulled on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	url := fmt.Sprintf("%s/api/tags", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	var result listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Models, nil
}

// SelectModel returns configured if the server has it. Otherwise it picks the
// first model of a preferred family, falling back to the largest model.
func (c *Client) SelectModel(ctx context.Context, configured string) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}
	return pickModel(models, configured)
}

func pickModel(models []ModelInfo, configured string) (string, error) {
	if len(models) == 0 {
		return "", ErrNoModels
	}

	if configured != "" {
		for _, m := range models {
			if m.Name == configured || strings.TrimSuffix(m.Name, ":latest") == configured {
				return m.Name, nil
			}
		}
	}

	for _, family := range preferredFamilies {
		for _, m := range models {
			if strings.Contains(strings.ToLower(m.Name), family) {
				return m.Name, nil
			}
		}
	}

	sorted := append([]ModelInfo(nil), models...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size > sorted[j].Size
	})
	return sorted[0].Name, nil
}
