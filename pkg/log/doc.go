// Package log is the logging abstraction shared by offlinesync components.
//
// Components accept a Logger and scope it with With(Component(...)) so each
// entry names its origin. ZerologAdapter backs the CLI; NoopLogger is the
// library default.
//
//	logger := log.NewZerologAdapterWithOptions(os.Stderr, "debug", true)
//	svc, err := offlinesync.New(cfg, offlinesync.WithLogger(logger))
//
// Any type with the four level methods and With can be passed instead.
package log
