package llm

import (
	"strings"
	"time"
)

// StreamChunk represents a single chunk in a streaming response.
// This is the internal representation produced by providers after parsing
// their specific streaming formats.
type StreamChunk struct {
	// Model that generated the chunk
	Model string `json:"model,omitempty"`

	// Chunk timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// The content of this chunk (typically a partial message)
	Message Message `json:"message"`

	// Whether this is the final chunk
	Done bool `json:"done"`

	// Stop reason (only present on final chunk)
	StopReason string `json:"stop_reason,omitempty"`

	// Usage metrics (typically only present near the end of the stream)
	Usage *Usage `json:"usage,omitempty"`
}

// Accumulator folds a sequence of StreamChunks into a complete ChatResponse.
// Callers feed every parsed chunk through Add and call Response once the
// stream ends.
type Accumulator struct {
	model      string
	createdAt  time.Time
	content    strings.Builder
	stopReason string
	usage      Usage
	done       bool
}

// Add folds a single chunk into the accumulator. Nil chunks (skipped
// keep-alives) are ignored.
func (a *Accumulator) Add(chunk *StreamChunk) {
	if chunk == nil {
		return
	}
	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if a.createdAt.IsZero() && !chunk.CreatedAt.IsZero() {
		a.createdAt = chunk.CreatedAt
	}
	a.content.WriteString(chunk.Message.GetText())
	if chunk.StopReason != "" {
		a.stopReason = chunk.StopReason
	}
	a.usage.Merge(chunk.Usage)
	if chunk.Done {
		a.done = true
	}
}

// Done reports whether a final chunk has been observed.
func (a *Accumulator) Done() bool {
	return a.done
}

// Text returns the content accumulated so far.
func (a *Accumulator) Text() string {
	return a.content.String()
}

// Response builds the reassembled ChatResponse from the accumulated chunks.
func (a *Accumulator) Response() *ChatResponse {
	resp := &ChatResponse{
		Model:      a.model,
		CreatedAt:  a.createdAt,
		Message:    NewTextMessage("assistant", a.content.String()),
		Done:       a.done,
		StopReason: a.stopReason,
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now()
	}
	if a.usage.PromptTokens > 0 || a.usage.CompletionTokens > 0 {
		usage := a.usage
		if usage.TotalTokens == 0 {
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		}
		resp.Usage = &usage
	}
	return resp
}
