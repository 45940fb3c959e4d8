// Package mcp provides an MCP (Model Context Protocol) server for querying
// captured event streams.
package mcp

import (
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/capture"
	"github.com/spoolworks/spool/pkg/utils"
)

type Config struct {
	// Store is the capture store the tools read from
	Store capture.Store

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the stream query tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "spool",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Store == nil {
		return nil, errors.New("capture store is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	// Add tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        streamListToolName,
		Description: streamListDescription,
	}, s.handleStreamList)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        streamGetToolName,
		Description: streamGetDescription,
	}, s.handleStreamGet)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        streamSearchToolName,
		Description: streamSearchDescription,
	}, s.handleStreamSearch)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server. It is nil for a
// noop server, which exposes no endpoint.
func (s *Server) Handler() http.Handler {
	if s.handler == nil {
		return nil
	}
	return s.handler
}
