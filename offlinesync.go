// Package offlinesync provides an offline-first sync agent that stores
// writes locally and replays them against a remote API when connectivity
// returns.
//
// Example usage:
//
//	cfg := offlinesync.DefaultConfig()
//	cfg.DBPath = "/var/lib/app/offlinesync.db"
//	cfg.BaseURL = "https://api.example.com"
//	cfg.Token = "your-api-token"
//	if err := offlinesync.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Applications that need the client or the queue directly should use
// the pkg/offlinesync package.
package offlinesync

import (
	"context"
	"errors"
	"io"

	"github.com/bft-labs/offlinesync/pkg/log"
	core "github.com/bft-labs/offlinesync/pkg/offlinesync"
)

// Config holds the service configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = core.Config

// Option configures the service.
type Option = core.Option

// Service is the embeddable sync service.
type Service = core.Service

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set DBPath and BaseURL before calling Run.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// New creates a service without starting it.
func New(cfg Config, opts ...Option) (*Service, error) {
	return core.New(cfg, opts...)
}

// Run starts the sync service and blocks until ctx is cancelled.
// The service is stopped and its store closed before Run returns.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	svc, err := core.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return errors.Join(err, svc.Close())
	}
	<-ctx.Done()
	return svc.Close()
}

// NewLogger returns a zerolog-backed logger for use with WithLogger.
func NewLogger(out io.Writer, level string, jsonOutput bool) log.Logger {
	return log.NewZerologAdapterWithOptions(out, level, jsonOutput)
}
