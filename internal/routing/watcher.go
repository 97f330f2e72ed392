/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/friendsincode/ratatosk/internal/events"
	"github.com/friendsincode/ratatosk/internal/telemetry"
)

// Watcher reloads the route config file when it changes and swaps the new
// tree into the table. A file that fails to parse or build keeps the
// previous tree active.
type Watcher struct {
	path    string
	factory *Factory
	table   *Table
	bus     *events.Bus
	logger  zerolog.Logger
}

// NewWatcher creates a watcher for the given route config file.
func NewWatcher(path string, factory *Factory, table *Table, bus *events.Bus, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:    path,
		factory: factory,
		table:   table,
		bus:     bus,
		logger:  logger.With().Str("component", "route_watcher").Logger(),
	}
}

// Run watches the config file until ctx is cancelled. The parent directory
// is watched rather than the file itself so atomic rename-into-place saves
// (editors, configuration management) are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info().Str("path", w.path).Msg("watching route config")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.Reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("fs watcher error")
		}
	}
}

// Reload rebuilds the route tree from the config file and swaps it in on
// success.
func (w *Watcher) Reload() {
	root, err := w.factory.LoadFile(w.path)
	if err != nil {
		telemetry.RouteReloadsTotal.WithLabelValues("error").Inc()
		w.logger.Error().Err(err).Msg("route config reload failed, keeping previous tree")
		w.bus.Publish(events.EventRoutesReloadError, events.Payload{
			"path":  w.path,
			"error": err.Error(),
		})
		return
	}

	w.table.Store(root)
	telemetry.RouteReloadsTotal.WithLabelValues("ok").Inc()
	w.logger.Info().Str("root", root.Name()).Msg("route config reloaded")
	w.bus.Publish(events.EventRoutesReloaded, events.Payload{
		"path": w.path,
		"root": root.Name(),
	})
}
