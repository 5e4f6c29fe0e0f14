// Package llm abstracts the text-generation backends behind one request and
// response shape. Every adapter (hosted chat API, Gemini, local Ollama)
// accepts the same Request and returns the same Response, so the
// acquisition engine never inspects which backend it is talking to.
package llm

import "context"

// Message roles. Only system and user messages are ever sent.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one entry of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request asks a backend for N independent candidate completions of the
// same conversation.
type Request struct {
	Model       string
	Messages    []Message
	N           int
	MaxTokens   int
	Temperature float64
}

// Choice is one candidate completion's text content.
type Choice struct {
	Content string
}

// Usage reports backend token accounting for one request. Backends without
// accounting report zeros, in which case cost estimation is meaningless and
// should stay disabled.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the uniform result shape shared by every backend adapter.
type Response struct {
	Choices []Choice
	Usage   Usage
}

// Client is the generation boundary consumed by the acquisition engine.
// Implementations own their transport, timeout and cancellation behavior;
// failures propagate unmodified to the caller.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
