// Package openai adapts OpenAI-compatible chat completion APIs to
// llm.Generator, including image inputs for vision models.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fbuddy/rag/internal/llm"
)

// Config selects the endpoint and model.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// Generator sends one user message per request.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewGenerator returns llm.ErrNotConfigured without an API key or model.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, llm.ErrNotConfigured
	}
	return &Generator{
		client:      NewClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// NewClient builds a go-openai client, pointing it at baseURL when set.
func NewClient(apiKey, baseURL string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Generate implements llm.Generator.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		msg.Content = req.Prompt
	} else {
		msg.MultiContent = []openai.ChatMessagePart{{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		}}
		for _, img := range req.Images {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(img),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessage{msg},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func dataURL(img llm.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
