package app

import (
	"github.com/bft-labs/offlinesync/internal/ports"
	"github.com/bft-labs/offlinesync/pkg/log"
)

// scoped tags logger with the component name. A nil logger discards.
func scoped(logger ports.Logger, component string) ports.Logger {
	return log.OrNoop(logger).With(ports.Component(component))
}
