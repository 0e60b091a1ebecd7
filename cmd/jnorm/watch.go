// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/creachadair/jnorm/internal/config"
	"github.com/fsnotify/fsnotify"
)

// watch reruns the conversion each time the source file is written, until ctx
// ends. Changes arriving within the debounce interval of each other trigger a
// single run. Runs never overlap.
func watch(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) error {
	src, err := filepath.Abs(cfg.Source)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, since editors often replace the file.
	if err := w.Add(filepath.Dir(src)); err != nil {
		return err
	}
	log.Warn("watching for changes", "source", src)

	rerun := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if p, _ := filepath.Abs(ev.Name); p != src {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cfg.Debounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			log.Info("source changed", "source", src)
			if err := runOnce(ctx, cfg, log, out); err != nil {
				log.Error("run failed", "err", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "err", err)
		}
	}
}
