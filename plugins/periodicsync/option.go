package periodicsync

import "github.com/bft-labs/offlinesync/pkg/offlinesync"

// WithPeriodicSync returns an Option that drains the queue on an interval.
//
// Usage:
//
//	svc, err := offlinesync.New(cfg,
//	    periodicsync.WithPeriodicSync(periodicsync.Config{Interval: time.Minute}),
//	)
func WithPeriodicSync(cfg Config) offlinesync.Option {
	return offlinesync.WithPlugin(New(cfg))
}
