package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements Client for Google's Gemini API via the genai SDK.
// Gemini supports multiple candidates per request through CandidateCount,
// which maps directly onto Request.N.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Generate requests req.N candidates in a single GenerateContent call.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	config := &genai.GenerateContentConfig{
		CandidateCount: int32(req.N),
		Temperature:    genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("no user message in request")
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	out := &Response{}
	for _, cand := range resp.Candidates {
		var sb strings.Builder
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				sb.WriteString(part.Text)
			}
		}
		out.Choices = append(out.Choices, Choice{Content: sb.String()})
	}
	if um := resp.UsageMetadata; um != nil {
		out.Usage.PromptTokens = int(um.PromptTokenCount)
		out.Usage.CompletionTokens = int(um.CandidatesTokenCount)
	}
	return out, nil
}
