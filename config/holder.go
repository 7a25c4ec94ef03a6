package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/scality/utapi/adapters/metrics"
)

// Holder provides thread-safe access to configuration with hot reload
// support. Reload replaces the whole Config returned by Get and runs the
// OnChange callbacks; a changed field listed in NonReloadableFields is
// also logged as needing a restart. Anything that copied a value out of
// an earlier Config keeps that copy.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	stopCh   chan struct{}
	metrics  *metrics.Collector // nil disables metrics recording
}

// NewHolder creates a config holder and loads the initial configuration.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := LoadWithFallback(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reloads configuration from disk. On failure the previous
// configuration is kept in place.
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	h.mu.RLock()
	m := h.metrics
	h.mu.RUnlock()

	newCfg, err := LoadWithFallback(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		if m != nil {
			m.ConfigReloadErrors.Inc()
		}
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	h.mu.Unlock()

	h.warnNonReloadableChanges(oldCfg, newCfg)
	h.logChanges(oldCfg, newCfg)

	for _, fn := range h.onChange {
		fn(newCfg)
	}

	if m != nil {
		m.ConfigReloads.Inc()
	}
	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// SetMetrics attaches a metrics collector, recording every reload from
// that point on. It's separate from NewHolder because the collector is
// constructed after the holder, once configuration has been loaded.
func (h *Holder) SetMetrics(m *metrics.Collector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = m
}

// OnChange registers a callback invoked after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// WatchFile starts watching the config file for changes and reloading
// automatically.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger a reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	close(h.stopCh)
	if h.watcher != nil {
		h.watcher.Close()
	}
}

func (h *Holder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("config file changed")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")
		case <-h.stopCh:
			return
		}
	}
}

// warnNonReloadableChanges logs a warning for any field listed in
// NonReloadableFields that differs between old and new. The new value is
// still applied in memory (Reload already swapped h.config by the time
// this runs) but nothing re-reads these fields after startup — the
// datastore, HTTP server, and authenticator were all built once from the
// original config — so a change here has no effect until the process is
// restarted. A field added to NonReloadableFields is only reported once
// it also has an entry in the changed map below.
func (h *Holder) warnNonReloadableChanges(old, new *Config) {
	changed := map[string]bool{
		"datastore.driver":     old.Datastore.Driver != new.Datastore.Driver,
		"datastore.sqlite.dsn": old.Datastore.SQLite.DSN != new.Datastore.SQLite.DSN,
		"server.host":          old.Server.Host != new.Server.Host,
		"server.port":          old.Server.Port != new.Server.Port,
		"auth.region":          old.Auth.Region != new.Auth.Region,
		"auth.service":         old.Auth.Service != new.Auth.Service,
	}
	for _, field := range NonReloadableFields() {
		if changed[field] {
			h.logger.Warn().Str("field", field).Msg("config field changed on reload but requires a process restart to take effect")
		}
	}
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Component != new.Component {
		h.logger.Info().Str("old", old.Component).Str("new", new.Component).Msg("component changed")
	}
	if strings.Join(old.Metrics, ",") != strings.Join(new.Metrics, ",") {
		h.logger.Info().Strs("old", old.Metrics).Strs("new", new.Metrics).Msg("metrics granularities changed")
	}
	if old.Log.Level != new.Log.Level {
		h.logger.Info().Str("old", old.Log.Level).Str("new", new.Log.Level).Msg("log level changed")
	}
}

// ReloadableFields returns the fields a reload swaps in without logging a
// restart warning.
func ReloadableFields() []string {
	return []string{"component", "metrics", "log.level", "log.dumpLevel"}
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return []string{"datastore.driver", "datastore.sqlite.dsn", "server.host", "server.port", "auth.region", "auth.service"}
}
