package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/capture"
)

var (
	streamListToolName    = "stream_list"
	streamListDescription = "List all captured event streams with their event counts and last-capture times."

	streamGetToolName    = "stream_get"
	streamGetDescription = "Fetch stored events from one capture stream in sequence order, optionally resuming after a sequence number."
)

// StreamListInput represents the input arguments for the stream_list tool.
type StreamListInput struct{}

// StreamListOutput represents the output of the stream_list tool.
type StreamListOutput struct {
	Streams []capture.StreamInfo `json:"streams"`
	Count   int                  `json:"count"`
}

// StreamGetInput represents the input arguments for the stream_get tool.
type StreamGetInput struct {
	Stream string `json:"stream" jsonschema:"the name of the capture stream to read"`
	After  int64  `json:"after,omitempty" jsonschema:"return only events with a sequence number greater than this (default: 0)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of events to return (default: 100)"`
}

// StreamGetOutput represents the output of the stream_get tool.
type StreamGetOutput struct {
	Stream string          `json:"stream"`
	Events []capture.Event `json:"events"`
	Count  int             `json:"count"`
}

// handleStreamList processes a stream_list request.
func (s *Server) handleStreamList(ctx context.Context, req *mcp.CallToolRequest, input StreamListInput) (*mcp.CallToolResult, StreamListOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP stream_list request")

	infos, err := s.config.Store.Streams(ctx)
	if err != nil {
		logger.Error("failed to list streams", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to list streams: %v", err)), StreamListOutput{}, nil
	}

	output := StreamListOutput{
		Streams: infos,
		Count:   len(infos),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal stream list output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), StreamListOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// handleStreamGet processes a stream_get request.
func (s *Server) handleStreamGet(ctx context.Context, req *mcp.CallToolRequest, input StreamGetInput) (*mcp.CallToolResult, StreamGetOutput, error) {
	logger := s.config.Logger

	if input.Stream == "" {
		return toolError("stream is required"), StreamGetOutput{}, nil
	}

	logger.Debug("MCP stream_get request",
		zap.String("stream", input.Stream),
		zap.Int64("after", input.After),
		zap.Int("limit", input.Limit),
	)

	events, err := s.config.Store.List(ctx, input.Stream, input.After, input.Limit)
	if err != nil {
		logger.Error("failed to list events",
			zap.String("stream", input.Stream),
			zap.Error(err),
		)
		return toolError(fmt.Sprintf("Failed to list events: %v", err)), StreamGetOutput{}, nil
	}

	output := StreamGetOutput{
		Stream: input.Stream,
		Events: events,
		Count:  len(events),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal stream get output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), StreamGetOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// toolError builds an error-carrying tool result.
func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
