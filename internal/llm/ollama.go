package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient implements Client for a locally hosted Ollama server. The
// Ollama generate API returns one completion per call, so N candidates are
// drawn as N sequential requests with their usage summed.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

// OllamaConfig holds configuration for the Ollama client.
type OllamaConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultOllamaConfig returns sensible defaults for a local server.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: "http://localhost:11434",
		Timeout: 10 * time.Minute,
	}
}

// NewOllamaClient creates a client with custom config.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	return &OllamaClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Generate draws req.N completions one request at a time.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Instruction-tuned local models take a flat prompt; roles collapse
	// into concatenated text.
	var prompt strings.Builder
	for _, m := range req.Messages {
		prompt.WriteString(m.Content)
		prompt.WriteString("\n")
	}

	n := req.N
	if n < 1 {
		n = 1
	}

	out := &Response{}
	for i := 0; i < n; i++ {
		gen, err := c.generateOne(ctx, req, prompt.String())
		if err != nil {
			return nil, err
		}
		out.Choices = append(out.Choices, Choice{Content: gen.Response})
		out.Usage.PromptTokens += gen.PromptEvalCount
		out.Usage.CompletionTokens += gen.EvalCount
	}
	return out, nil
}

func (c *OllamaClient) generateOne(ctx context.Context, req Request, prompt string) (*ollamaResponse, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  req.Model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var gen ollamaResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if gen.Error != "" {
		return nil, fmt.Errorf("API error: %s", gen.Error)
	}
	return &gen, nil
}

// ListModels returns the names of models available on the server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var names []string
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
