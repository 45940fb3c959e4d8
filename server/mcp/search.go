package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/utils"
)

var (
	streamSearchToolName    = "stream_search"
	streamSearchDescription = "Search over captured events by data substring across all streams. Returns matching events in capture order with a short preview."
)

// SearchInput represents the input arguments for the stream_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the substring to search event data for (case-insensitive)"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default: 100)"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Seq     int64  `json:"seq"`
	Stream  string `json:"stream"`
	Type    string `json:"type,omitempty"`
	Preview string `json:"preview"`
}

// SearchOutput represents the output of the stream_search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// previewLen caps how much event data a search result carries.
const previewLen = 200

// handleStreamSearch processes a stream_search request.
func (s *Server) handleStreamSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return toolError("query is required"), SearchOutput{}, nil
	}

	logger.Debug("MCP stream_search request",
		zap.String("query", input.Query),
		zap.Int("limit", input.Limit),
	)

	events, err := s.config.Store.Search(ctx, input.Query, input.Limit)
	if err != nil {
		logger.Error("failed to search events", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to search events: %v", err)), SearchOutput{}, nil
	}

	results := make([]SearchResult, 0, len(events))
	for _, ev := range events {
		results = append(results, SearchResult{
			Seq:     ev.Seq,
			Stream:  ev.Stream,
			Type:    ev.Type,
			Preview: utils.Truncate(ev.Data, previewLen),
		})
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
