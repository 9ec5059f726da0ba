package tokenwatcher

import "github.com/bft-labs/offlinesync/pkg/offlinesync"

// WithTokenWatcher returns an Option that reloads the token file on change.
//
// Usage:
//
//	svc, err := offlinesync.New(cfg,
//	    tokenwatcher.WithTokenWatcher(tokenwatcher.DefaultConfig()),
//	)
func WithTokenWatcher(cfg Config) offlinesync.Option {
	return offlinesync.WithPlugin(New(cfg))
}
