package frames

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn once, then again each time dir settles after a change. Events
// arriving within debounce of each other trigger a single call. Because fn is
// expected to be idempotent, the changes fn itself makes converge after one
// extra call. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, debounce time.Duration, fn func(context.Context) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	run := func() {
		if err := fn(ctx); err != nil {
			slog.Error("frame watch run failed", "dir", dir, "error", err)
		}
	}
	run()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("frame corpus changed", "path", evt.Name, "op", evt.Op.String())
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("frame watcher error", "dir", dir, "error", err)

		case <-timer.C:
			run()
		}
	}
}
