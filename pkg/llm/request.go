package llm

// ChatRequest represents a provider-agnostic chat completion request.
// Providers translate this internal representation into their specific
// wire format when building the upstream HTTP request.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini", "claude-3-5-haiku-latest").
	// Empty means the provider default.
	Model string `json:"model,omitempty"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// System prompt (some providers handle this separately from messages)
	System string `json:"system,omitempty"`

	// Whether to stream the response
	Stream *bool `json:"stream,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}
