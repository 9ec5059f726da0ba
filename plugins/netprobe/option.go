package netprobe

import "github.com/bft-labs/offlinesync/pkg/offlinesync"

// WithNetProbe returns an Option that derives connectivity from HTTP probes.
//
// Usage:
//
//	svc, err := offlinesync.New(cfg, netprobe.WithNetProbe(netprobe.DefaultConfig()))
func WithNetProbe(cfg Config) offlinesync.Option {
	return offlinesync.WithPlugin(New(cfg))
}
