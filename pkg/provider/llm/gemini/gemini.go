// Package gemini provides an LLM provider backed by Google's Gemini API through
// the official google.golang.org/genai SDK.
//
// The any-llm backend can also reach Gemini; this package exists for callers
// that want the native SDK (Vertex AI backends, genai HTTP options).
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/ideacritic/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// DefaultModel is used when New is called with an empty model name.
const DefaultModel = "gemini-2.5-flash"

// Provider implements llm.Provider using google.golang.org/genai.
type Provider struct {
	client *genai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// New constructs a Gemini provider. apiKey must not be empty.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	contents, genCfg, err := buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}

	stream := p.client.Models.GenerateContentStream(ctx, p.model, contents, genCfg)

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		for resp, err := range stream {
			out := llm.Chunk{}
			if err != nil {
				out = llm.Chunk{FinishReason: llm.FinishReasonError, Text: err.Error()}
			} else {
				out.Text, out.FinishReason = responseText(resp)
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents, genCfg, err := buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: empty candidates in response")
	}

	text, _ := responseText(resp)
	out := &llm.CompletionResponse{Content: text}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// buildRequest converts a CompletionRequest into genai contents and config.
// System messages and the SystemPrompt are merged into SystemInstruction.
func buildRequest(req llm.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if len(req.Messages) == 0 {
		return nil, nil, fmt.Errorf("request has no messages")
	}

	genCfg := &genai.GenerateContentConfig{}
	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "user":
			contents = append(contents, textContent("user", m.Content))
		case "assistant":
			contents = append(contents, textContent("model", m.Content))
		default:
			return nil, nil, fmt.Errorf("unknown message role %q", m.Role)
		}
	}

	if len(system) > 0 {
		genCfg.SystemInstruction = textContent("", strings.Join(system, "\n\n"))
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		genCfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return contents, genCfg, nil
}

func textContent(role, text string) *genai.Content {
	return &genai.Content{
		Role:  role,
		Parts: []*genai.Part{{Text: text}},
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (text, finishReason string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]
	finishReason = strings.ToLower(string(cand.FinishReason))
	if cand.Content == nil {
		return "", finishReason
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String(), finishReason
}
