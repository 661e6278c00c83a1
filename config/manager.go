package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay coalesces bursts of file events into one reload.
const DebounceDelay = 300 * time.Millisecond

// Manager holds the current configuration and reloads it when the config
// file changes.
type Manager struct {
	config   atomic.Pointer[Config]
	path     string
	opts     []Option
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	onChange []func(*Config)
	logger   *slog.Logger
}

// NewManager loads the configuration at path.
func NewManager(path string, logger *slog.Logger, opts ...Option) (*Manager, error) {
	cfg, err := Load(path, opts...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		path:   cfg.File,
		opts:   opts,
		logger: logger,
	}
	m.config.Store(cfg)

	return m, nil
}

// Get returns the current configuration.
// This is safe to call concurrently from multiple goroutines.
func (m *Manager) Get() *Config {
	return m.config.Load()
}

// OnChange registers a callback invoked after each successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Watch starts watching the config file until ctx is done. The parent
// directory is watched so editors that replace the file are handled.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return errors.New("no config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	m.watcher = watcher

	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	var debounce *time.Timer
	target := filepath.Clean(m.path)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			_ = m.watcher.Close()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(DebounceDelay, m.Reload)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("config watcher error", "error", err)
		}
	}
}

// Reload re-reads the config file. On error the current configuration is
// kept.
func (m *Manager) Reload() {
	cfg, err := Load(m.path, m.opts...)
	if err != nil {
		m.logger.Error("failed to reload config, keeping current", "error", err)
		return
	}

	m.config.Store(cfg)
	m.logger.Info("configuration reloaded", "file", m.path)

	m.mu.Lock()
	callbacks := append([]func(*Config)(nil), m.onChange...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

// Close stops the watcher.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
