package config

import "time"

const (
	defaultServerListen  = ":8080"
	defaultServerWorkers = 4

	defaultDatabaseDriver = "sqlite"

	defaultKafkaTopic = "spool-events"

	defaultAIProvider = "openai"

	defaultClientServerTarget = "http://localhost:8080"

	defaultTailRetry         = "3s"
	defaultTailRetryInterval = 3 * time.Second
)

// defaultBuildWatch is the default watch list for build --watch. fsnotify
// watches directories, so entries are paths rather than glob patterns.
var defaultBuildWatch = []string{"."}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. AI model and
// target stay empty here so the selected provider's own defaults apply.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:  defaultServerListen,
			Workers: defaultServerWorkers,
		},
		Database: DatabaseConfig{
			Driver: defaultDatabaseDriver,
		},
		Kafka: KafkaConfig{
			Topic: defaultKafkaTopic,
		},
		AI: AIConfig{
			Provider: defaultAIProvider,
		},
		Client: ClientConfig{
			ServerTarget: defaultClientServerTarget,
		},
		Tail: TailConfig{
			Retry: defaultTailRetry,
		},
		Build: BuildConfig{
			Watch: append([]string(nil), defaultBuildWatch...),
		},
	}
}
