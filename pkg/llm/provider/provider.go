// Package provider
package provider

import (
	"context"
	"net/http"

	"github.com/spoolworks/spool/pkg/llm"
)

// Provider defines the interface for talking to an upstream LLM API.
// Each implementation knows its provider's endpoint layout, auth headers,
// and streaming chunk format.
type Provider interface {
	// Name returns the canonical provider name (e.g., "anthropic", "openai")
	Name() string

	// BuildRequest converts the internal request into a provider-specific
	// HTTP request against the given target base URL. An empty target or
	// model selects the provider's default.
	BuildRequest(ctx context.Context, target, apiKey string, req *llm.ChatRequest) (*http.Request, error)

	// ParseChunk converts a single streaming data payload into the internal
	// format. Returns (nil, nil) if the chunk should be skipped (e.g.,
	// keep-alive pings).
	ParseChunk(payload []byte) (*llm.StreamChunk, error)
}
