// Package tokenwatcher reloads the session token file when it changes and
// triggers a drain once a token is available, so mutations queued while
// logged out are delivered after login.
package tokenwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/offlinesync/pkg/log"
	"github.com/bft-labs/offlinesync/pkg/offlinesync"
)

// Plugin watches the token file's directory. The file itself is replaced by
// rename on save, so watching the file directly would lose it.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	tokens offlinesync.TokenReloader
	syncer offlinesync.Syncer
	logger offlinesync.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the token watcher.
type Config struct {
	// DebounceDelay is the delay after the last change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{DebounceDelay: 100 * time.Millisecond}
}

// New creates a token watcher.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "tokenwatcher"
}

// Initialize starts watching. Without a token file the plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg offlinesync.PluginConfig) error {
	p.mu.Lock()
	p.tokens = cfg.Tokens
	p.syncer = cfg.Syncer
	p.logger = log.OrNoop(cfg.Logger).With(log.Component("tokenwatcher"))
	p.mu.Unlock()

	if p.tokens == nil {
		p.logger.Warn("token watcher disabled: no token file configured")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.tokens.Path())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("token watcher started", log.String("dir", dir))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.tokens.Path())
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("token watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

func (p *Plugin) reload() {
	if err := p.tokens.Reload(); err != nil {
		p.logger.Error("token reload failed", log.Err(err))
		return
	}
	if p.tokens.Token() == "" {
		p.logger.Info("session token cleared")
		return
	}
	p.logger.Info("session token reloaded")
	if p.syncer != nil {
		p.syncer.Trigger(offlinesync.BackgroundSyncTag)
	}
}

var _ offlinesync.Plugin = (*Plugin)(nil)
