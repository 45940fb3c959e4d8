package server

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/capture"
	"github.com/spoolworks/spool/server/mcp"
	"github.com/spoolworks/spool/server/worker"
)

// Server is the HTTP server for capturing and replaying event streams.
type Server struct {
	config      Config
	store       capture.Store
	pool        *worker.Pool
	broadcaster *Broadcaster
	logger      *zap.Logger
	app         *fiber.App
}

// NewServer creates a new capture server. The store, pool, and broadcaster
// are injected to allow sharing with other components; mcpServer may be nil
// to disable the /mcp endpoint.
func NewServer(config Config, store capture.Store, pool *worker.Pool, broadcaster *Broadcaster, mcpServer *mcp.Server, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	s := &Server{
		config:      config,
		store:       store,
		pool:        pool,
		broadcaster: broadcaster,
		logger:      logger,
		app:         app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/streams", s.handleListStreams)
	app.Post("/streams/:stream/events", s.handleIngest)
	app.Get("/streams/:stream/events", s.handleListEvents)
	app.Get("/streams/:stream/replay", s.handleReplay)

	if mcpServer != nil {
		if h := mcpServer.Handler(); h != nil {
			app.All("/mcp", adaptor.HTTPHandler(h))
		}
	}

	return s
}

// Run starts the capture server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting capture server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the capture server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
