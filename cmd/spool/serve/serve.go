// Package servecmder provides the serve command for running the capture server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/capture"
	"github.com/spoolworks/spool/pkg/capture/inmemory"
	"github.com/spoolworks/spool/pkg/capture/postgres"
	"github.com/spoolworks/spool/pkg/capture/sqlite"
	"github.com/spoolworks/spool/pkg/config"
	"github.com/spoolworks/spool/pkg/dotdir"
	"github.com/spoolworks/spool/pkg/eventstream"
	"github.com/spoolworks/spool/pkg/eventstream/kafka"
	"github.com/spoolworks/spool/pkg/eventstream/nop"
	"github.com/spoolworks/spool/pkg/logger"
	"github.com/spoolworks/spool/server"
	"github.com/spoolworks/spool/server/mcp"
	"github.com/spoolworks/spool/server/worker"
)

type ServeCommander struct {
	listen       string
	workers      uint
	driver       string
	dsn          string
	kafkaBrokers []string
	kafkaTopic   string
	noMCP        bool
	debug        bool
	configDir    string
	v            *viper.Viper
	logger       *zap.Logger
}

// serveFlags defines the flags this command registers and the viper keys
// they bind to.
var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the capture server to listen on",
	},
	config.FlagWorkers: {
		Name:        "workers",
		Shorthand:   "w",
		ViperKey:    "server.workers",
		Description: "Number of capture workers",
	},
	config.FlagDriver: {
		Name:        "driver",
		ViperKey:    "database.driver",
		Description: "Capture store driver (sqlite, postgres, memory)",
	},
	config.FlagDSN: {
		Name:        "dsn",
		ViperKey:    "database.dsn",
		Description: "Capture store DSN (sqlite path or postgres connection string)",
	},
	config.FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "kafka.brokers",
		Description: "Kafka broker addresses; publishing is enabled when set",
	},
	config.FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "kafka.topic",
		Description: "Kafka topic for captured events",
	},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagWorkers,
	config.FlagDriver,
	config.FlagDSN,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the spool capture server.

The server ingests raw SSE streams on POST /streams/<stream>/events,
persists every message with a monotonic sequence number, and replays them
on GET /streams/<stream>/replay. Replay honors Last-Event-ID for resume
and ?follow=true to stay attached for live events.

Storage is selected by database.driver (sqlite, postgres, or memory).
Configuring kafka.brokers additionally publishes every captured event to
Kafka. MCP tools for browsing streams are served at /mcp.

Examples:
  spool serve
  spool serve --listen :9090 --driver memory
  spool serve --driver postgres --dsn postgres://localhost/spool
  spool serve --kafka-brokers broker1:9092,broker2:9092`

const serveShortDesc string = "Run the spool capture server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddUintFlag(cmd, serveFlags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, serveFlags, config.FlagDriver, &cmder.driver)
	config.AddStringFlag(cmd, serveFlags, config.FlagDSN, &cmder.dsn)
	config.AddStringSliceFlag(cmd, serveFlags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the /mcp tool endpoint")

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	// Effective settings after flag > env > file > default resolution.
	listen := c.v.GetString("server.listen")
	workers := c.v.GetUint("server.workers")
	driver := c.v.GetString("database.driver")
	dsn := c.v.GetString("database.dsn")
	brokers := c.v.GetStringSlice("kafka.brokers")
	topic := c.v.GetString("kafka.topic")

	// Create shared capture store
	store, err := c.createStore(driver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	// Create event publisher
	publisher, err := c.createPublisher(brokers, topic)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Broadcaster relays captured events to live replay followers.
	broadcaster := server.NewBroadcaster()

	pool, err := worker.NewPool(&worker.Config{
		Store:      store,
		Publisher:  publisher,
		Notifier:   broadcaster,
		NumWorkers: workers,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Store:  store,
		Noop:   c.noMCP,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	serverConfig := server.Config{
		ListenAddr: listen,
	}
	srv := server.NewServer(serverConfig, store, pool, broadcaster, mcpServer, c.logger)

	c.logger.Info("starting server",
		zap.String("listen", listen),
		zap.String("driver", driver),
		zap.Uint("workers", workers),
		zap.Bool("kafka", len(brokers) > 0),
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 1)

	go func() {
		if err := srv.Run(); err != nil {
			errChan <- fmt.Errorf("capture server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := srv.Shutdown(); err != nil {
			c.logger.Warn("shutdown error", zap.Error(err))
		}
		return nil
	}
}

func (c *ServeCommander) createStore(driver, dsn string) (capture.Store, error) {
	switch driver {
	case "sqlite", "":
		path := dsn
		if path == "" {
			ddm := dotdir.NewManager()
			target, err := ddm.Ensure(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving sqlite path: %w", err)
			}
			path = filepath.Join(target, "spool.db")
		}
		store, err := sqlite.NewStore(path)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		c.logger.Info("using sqlite storage", zap.String("path", path))
		return store, nil

	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN (--dsn or database.dsn)")
		}
		store, err := postgres.NewStore(context.Background(), dsn)
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		c.logger.Info("using postgres storage")
		return store, nil

	case "memory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown database driver: %q (supported: sqlite, postgres, memory)", driver)
	}
}

func (c *ServeCommander) createPublisher(brokers []string, topic string) (eventstream.Publisher, error) {
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing captured events to kafka",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)
	return publisher, nil
}
