package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/offlinesync/internal/cliconfig"
	"github.com/bft-labs/offlinesync/pkg/log"
	"github.com/bft-labs/offlinesync/pkg/offlinesync"
)

const helpDescription = `
Keep an application's writes safe while the network comes and goes.

Highlights:
  - Every write lands in a local SQLite database before any network attempt.
  - Undelivered mutations wait in a durable, priority-ordered queue.
  - The queue drains itself when connectivity returns, with bounded retries.
  - Server copies are reconciled with local edits after delivery.
`

var exampleUsage = strings.TrimSpace(`
  offlinesync run --base-url https://api.example.com --token-file ~/.offlinesync/token.json
  offlinesync stats --db ~/.offlinesync/offlinesync.db
  offlinesync enqueue --url /api/journals/j-1 --method PUT --body '{"content":"..."}'
  offlinesync dead-letters
  offlinesync requeue <item-id>
  kill -USR1 $(pidof offlinesync)   # drain now
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the resolved configuration into subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  *log.ZerologAdapter
	stderr  io.Writer
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "offlinesync:", err)
		os.Exit(1)
	}
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig(), stderr: stderr}

	root := &cobra.Command{
		Use:           "offlinesync",
		Short:         "Offline-first sync queue for an application's remote API",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file, TOML or YAML (default: $HOME/.offlinesync/config.toml)")
	f.StringVar(&c.cfg.DBPath, "db", c.cfg.DBPath, "SQLite database path (default: $HOME/.offlinesync/offlinesync.db)")
	f.StringVar(&c.cfg.BaseURL, "base-url", c.cfg.BaseURL, "remote API base URL")
	f.StringVar(&c.cfg.TokenFile, "token-file", c.cfg.TokenFile, "session token file (default: $HOME/.offlinesync/token.json)")
	f.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "HTTP timeout per request")
	f.IntVar(&c.cfg.MaxRetries, "max-retries", c.cfg.MaxRetries, "delivery attempts before an item is dead-lettered")
	f.DurationVar(&c.cfg.BaseDelay, "base-delay", c.cfg.BaseDelay, "first retry delay")
	f.DurationVar(&c.cfg.MaxDelay, "max-delay", c.cfg.MaxDelay, "retry delay cap")
	f.DurationVar(&c.cfg.SkewTolerance, "skew", c.cfg.SkewTolerance, "clock skew within which edits are merged")
	f.StringVar(&c.cfg.Lease, "lease", c.cfg.Lease, "drain lease backend: sqlite, redis or none")
	f.DurationVar(&c.cfg.LeaseTTL, "lease-ttl", c.cfg.LeaseTTL, "drain lease time to live")
	f.StringVar(&c.cfg.RedisURL, "redis-url", c.cfg.RedisURL, "Redis URL for the redis lease")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&c.cfg.LogFormat, "log-format", c.cfg.LogFormat, "log format: console or json")

	root.AddCommand(
		newRunCmd(c),
		newDrainCmd(c),
		newStatsCmd(c),
		newEnqueueCmd(c),
		newDeadLettersCmd(c),
		newRequeueCmd(c),
		newClearCmd(c),
	)
	return root
}

// load applies file, then env, then validates. Flags set explicitly win
// over both.
func (c *cli) load(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = log.NewZerologAdapterWithOptions(c.stderr, c.cfg.LogLevel, c.cfg.LogFormat == "json")
	c.logger.Debug("configuration",
		log.String("db", c.cfg.DBPath),
		log.String("base_url", c.cfg.BaseURL),
		log.String("lease", c.cfg.Lease),
	)
	return nil
}

// serviceConfig converts CLI configuration to the library's.
func (c *cli) serviceConfig(startOffline bool) offlinesync.Config {
	return offlinesync.Config{
		DBPath:         c.cfg.DBPath,
		BaseURL:        c.cfg.BaseURL,
		TokenFile:      c.cfg.TokenFile,
		HTTPTimeout:    c.cfg.HTTPTimeout,
		MaxRetries:     c.cfg.MaxRetries,
		BaseDelay:      c.cfg.BaseDelay,
		MaxDelay:       c.cfg.MaxDelay,
		OnlineDebounce: c.cfg.OnlineDebounce,
		SkewTolerance:  c.cfg.SkewTolerance,
		Lease:          c.cfg.Lease,
		LeaseTTL:       c.cfg.LeaseTTL,
		RedisURL:       c.cfg.RedisURL,
		StartOffline:   startOffline,
	}
}

// openService opens the store without network activity. Commands that only
// inspect or edit the queue use it so AddItem does not start a drain.
func (c *cli) openService(opts ...offlinesync.Option) (*offlinesync.Service, error) {
	opts = append([]offlinesync.Option{offlinesync.WithLogger(c.logger)}, opts...)
	return offlinesync.New(c.serviceConfig(true), opts...)
}
