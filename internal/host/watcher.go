package host

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadDebounce coalesces bursts of editor writes into one reload.
const ReloadDebounce = 200 * time.Millisecond

// Watch reloads the document whenever its file changes, until ctx is
// cancelled. The parent directory is watched so that editors replacing the
// file via rename are picked up. A failed reload keeps the previous
// contents and is only logged.
func (d *Document) Watch(ctx context.Context) error {
	if d.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("host: watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(d.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("host: watch %s: %w", dir, err)
	}
	d.logger.Info("host: watching document", slog.String("path", d.path))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(ReloadDebounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(ReloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			d.logger.Info("host: watcher stopped")
			return nil

		case <-reloadCh:
			if err := d.Reload(); err != nil {
				d.logger.Warn("host: reload failed", slog.String("path", d.path), slog.String("error", err.Error()))
				continue
			}
			d.logger.Debug("host: document reloaded", slog.String("path", d.path))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != d.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("host: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
