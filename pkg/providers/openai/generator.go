package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wicara-ai/wicara/pkg/llm"
	"github.com/wicara-ai/wicara/pkg/resilience"
)

type Generator struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewGenerator(apiKey, model string) *Generator {
	return &Generator{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://api.openai.com/v1",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *Generator) Name() string { return "openai" }

func (g *Generator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	body, err := g.buildRequest(req)
	if err != nil {
		return llm.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/chat/completions", body)
	if err != nil {
		return llm.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.client().Do(httpReq)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		return llm.Response{}, resilience.RateLimitError{Vendor: "openai", Message: string(msg)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errors.New(string(msg))
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return llm.Response{}, err
	}
	if len(payload.Choices) == 0 {
		return llm.Response{}, errors.New("no choices")
	}
	return llm.Response{
		Text:         strings.TrimSpace(payload.Choices[0].Message.Content),
		FinishReason: payload.Choices[0].FinishReason,
		Usage: llm.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}, nil
}

func (g *Generator) buildRequest(req llm.Request) (*bytes.Buffer, error) {
	messages := make([]map[string]any, 0, len(req.Turns)+1)
	if prompt := systemPrompt(req); prompt != "" {
		messages = append(messages, map[string]any{"role": llm.RoleSystem, "content": prompt})
	}
	for _, t := range req.Turns {
		messages = append(messages, map[string]any{"role": t.Role, "content": t.Content})
	}
	body := map[string]any{
		"model":    g.Model,
		"messages": messages,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func systemPrompt(req llm.Request) string {
	var parts []string
	if req.Persona != "" {
		parts = append(parts, req.Persona)
	}
	if req.Style != "" {
		parts = append(parts, "Style: "+req.Style)
	}
	if req.Language != "" {
		parts = append(parts, "Reply in language: "+req.Language)
	}
	return strings.Join(parts, "\n")
}

func (g *Generator) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

var _ llm.Generator = (*Generator)(nil)
