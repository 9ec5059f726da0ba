package offlinesync

import (
	"context"
	"time"
)

// Plugin extends a Service with optional background behavior.
// Plugins are initialized in registration order when the service starts and
// shut down in reverse order when it stops.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// Syncer starts queue drains.
type Syncer interface {
	// Trigger asks the running service to handle a background tag.
	Trigger(tag string) bool
}

// TokenReloader re-reads the session token from disk.
type TokenReloader interface {
	Reload() error
	Path() string
	Token() string
}

// NetworkReporter accepts connectivity observations.
type NetworkReporter interface {
	Report(online bool, effectiveType string, rtt time.Duration) bool
}

// PluginConfig is what a plugin receives on Initialize.
type PluginConfig struct {
	BaseURL    string
	HTTPClient HTTPClient
	Logger     Logger

	Syncer  Syncer
	Network NetworkReporter

	// Tokens is nil when the service uses a fixed token.
	Tokens TokenReloader
}

// BasePlugin provides no-op Initialize and Shutdown for embedding.
type BasePlugin struct {
	PluginName string
}

func (b BasePlugin) Name() string                                   { return b.PluginName }
func (b BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (b BasePlugin) Shutdown(context.Context) error                 { return nil }
