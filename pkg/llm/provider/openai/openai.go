// Package openai
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spoolworks/spool/pkg/llm"
)

const (
	// DefaultTarget is the OpenAI API base URL.
	DefaultTarget = "https://api.openai.com"

	// DefaultModel is used when the request doesn't name one.
	DefaultModel = "gpt-4o-mini"

	completionsPath = "/v1/chat/completions"

	// doneSentinel terminates an OpenAI event stream.
	doneSentinel = "[DONE]"
)

// provider implements the Provider interface for OpenAI's Chat Completions API.
type provider struct{}

func New() *provider { return &provider{} }

func (p *provider) Name() string {
	return "openai"
}

func (p *provider) BuildRequest(ctx context.Context, target, apiKey string, req *llm.ChatRequest) (*http.Request, error) {
	if target == "" {
		target = DefaultTarget
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	// OpenAI carries the system prompt as a leading message.
	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openaiMessage{Role: msg.Role, Content: msg.GetText()})
	}

	body := openaiRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.Stream != nil && *req.Stream {
		body.Stream = true
		// Ask for usage in the final chunk; plain streams omit it.
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimRight(target, "/") + completionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return httpReq, nil
}

func (p *provider) ParseChunk(payload []byte) (*llm.StreamChunk, error) {
	if string(bytes.TrimSpace(payload)) == doneSentinel {
		return &llm.StreamChunk{Done: true}, nil
	}

	var chunk openaiChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, fmt.Errorf("parsing stream chunk: %w", err)
	}

	out := &llm.StreamChunk{Model: chunk.Model}
	if chunk.Created > 0 {
		out.CreatedAt = time.Unix(chunk.Created, 0)
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			out.Message = llm.NewTextMessage("assistant", choice.Delta.Content)
		}
		if choice.FinishReason != "" {
			out.StopReason = choice.FinishReason
		}
	}

	if chunk.Usage != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	return out, nil
}
