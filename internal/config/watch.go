package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce coalesces the write bursts editors and atomic renames
// produce into one reload.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the configuration file when it changes and hands the new
// configuration to a callback. Reload failures keep the previous
// configuration; a broken edit must not take a running daemon down.
type Watcher struct {
	path     string
	onReload func(*Config)
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
	started  bool
	logger   *zap.Logger
}

// NewWatcher creates a watcher for configPath. onReload runs on the watcher
// goroutine after every successful reload.
func NewWatcher(configPath string, onReload func(*Config), logger *zap.Logger) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if onReload == nil {
		return nil, fmt.Errorf("reload callback is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	return &Watcher{
		path:     configPath,
		onReload: onReload,
		watcher:  fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins watching. The parent directory is watched rather than the file
// itself so atomic replace-by-rename keeps working.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.started = true
	go w.processEvents(ctx)
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadWithFile(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous configuration",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("configuration reloaded", zap.String("path", w.path))
	w.onReload(cfg)
}

// Stop stops the watcher and waits for the event goroutine to exit.
func (w *Watcher) Stop() error {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}
