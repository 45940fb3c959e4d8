// Package server provides the HTTP server for capturing and replaying
// event streams.
package server

// Config is the capture server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
