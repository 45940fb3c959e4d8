// Package anthropic
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spoolworks/spool/pkg/llm"
)

const (
	// DefaultTarget is the Anthropic API base URL.
	DefaultTarget = "https://api.anthropic.com"

	// DefaultModel is used when the request doesn't name one.
	DefaultModel = "claude-3-5-haiku-latest"

	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"

	// max_tokens is required by the Messages API.
	defaultMaxTokens = 1024
)

// provider implements the Provider interface for Anthropic's Messages API.
type provider struct{}

// New
func New() *provider { return &provider{} }

// Name
func (p *provider) Name() string {
	return "anthropic"
}

func (p *provider) BuildRequest(ctx context.Context, target, apiKey string, req *llm.ChatRequest) (*http.Request, error) {
	if target == "" {
		target = DefaultTarget
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, anthropicMessage{Role: msg.Role, Content: msg.GetText()})
	}

	body := anthropicRequest{
		Model:       model,
		Messages:    messages,
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	if req.Stream != nil && *req.Stream {
		body.Stream = true
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimRight(target, "/") + messagesPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return httpReq, nil
}

// ParseChunk dispatches on the event's type field. Anthropic splits a
// response across message_start, content_block_delta, message_delta, and
// message_stop events; usage arrives in pieces on the first and
// second-to-last of those.
func (p *provider) ParseChunk(payload []byte) (*llm.StreamChunk, error) {
	var ev anthropicEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parsing stream event: %w", err)
	}

	switch ev.Type {
	case "message_start":
		out := &llm.StreamChunk{}
		if ev.Message != nil {
			out.Model = ev.Message.Model
			if u := ev.Message.Usage; u != nil {
				out.Usage = &llm.Usage{
					PromptTokens:             u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens,
					CacheCreationInputTokens: u.CacheCreationInputTokens,
					CacheReadInputTokens:     u.CacheReadInputTokens,
				}
			}
		}
		return out, nil

	case "content_block_delta":
		out := &llm.StreamChunk{}
		if ev.Delta != nil && ev.Delta.Text != "" {
			out.Message = llm.NewTextMessage("assistant", ev.Delta.Text)
		}
		return out, nil

	case "message_delta":
		out := &llm.StreamChunk{}
		if ev.Delta != nil {
			out.StopReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			out.Usage = &llm.Usage{CompletionTokens: ev.Usage.OutputTokens}
		}
		return out, nil

	case "message_stop":
		return &llm.StreamChunk{Done: true}, nil

	case "error":
		msg := "unknown stream error"
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		return nil, fmt.Errorf("upstream error: %s", msg)

	default:
		// ping, content_block_start, content_block_stop
		return nil, nil
	}
}
