package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultListenAddr matches the port the studio front end expects.
	DefaultListenAddr = "0.0.0.0:3000"
	DefaultVoiceID    = "21m00Tcm4TlvDq8ikWAM" // Rachel
	DefaultModel      = "eleven_multilingual_v2"
	DefaultLogLevel   = "info"
	DefaultStaticDir  = "dist"

	DefaultMockDelay   = 1500 * time.Millisecond
	DefaultListTimeout = 5 * time.Second

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config captures bootstrap configuration extracted from environment
// variables or the injected JSON payload (`STUDIO_CONFIG`).
type Config struct {
	ListenAddr     string
	GRPCListenAddr string // empty disables the NAP gRPC surface
	LogLevel       string

	// APIKey is the process-wide default credential. It is optional; without
	// it every request lacking its own key is served from mock data.
	APIKey  string
	BaseURL string

	// Defaults for gRPC synthesis requests that carry no voice or model.
	VoiceID string
	Model   string

	Environment string
	Managed     bool
	StaticDir   string

	UseStubSample bool
	SampleURL     string
	MockDelay     time.Duration
	ListTimeout   time.Duration
}

// ServesAssets reports whether the HTTP server should serve the built front
// end. Development builds leave assets to the front-end dev server.
func (c Config) ServesAssets() bool {
	return c.Environment == EnvProduction || c.Managed
}

// Validate applies defaults and raises an error when fields are invalid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.VoiceID == "" {
		c.VoiceID = DefaultVoiceID
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.StaticDir == "" {
		c.StaticDir = DefaultStaticDir
	}

	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	// Anything other than production (test, staging, ...) runs as development.
	if c.Environment != EnvProduction {
		c.Environment = EnvDevelopment
	}

	if c.MockDelay < 0 {
		return fmt.Errorf("config: mock_delay_ms must not be negative, got %s", c.MockDelay)
	}
	if c.ListTimeout < 0 {
		return fmt.Errorf("config: list_timeout_ms must not be negative, got %s", c.ListTimeout)
	}
	if c.ListTimeout == 0 {
		c.ListTimeout = DefaultListTimeout
	}

	if c.GRPCListenAddr != "" && c.GRPCListenAddr == c.ListenAddr {
		return fmt.Errorf("config: grpc listen address must differ from http listen address")
	}

	return nil
}
