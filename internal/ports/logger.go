package ports

import (
	"time"

	"github.com/bft-labs/offlinesync/pkg/log"
)

// Logger and Field are re-exported so adapters need not import pkg/log.
type (
	Logger = log.Logger
	Field  = log.Field
)

func Component(name string) Field { return log.Component(name) }
func String(key, value string) Field { return log.String(key, value) }
func Int(key string, value int) Field { return log.Int(key, value) }
func Bool(key string, value bool) Field { return log.Bool(key, value) }
func Duration(key string, value time.Duration) Field { return log.Duration(key, value) }
func Err(err error) Field { return log.Err(err) }
func Any(key string, value any) Field { return log.Any(key, value) }
