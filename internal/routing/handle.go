/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handle is a destination in the route tree. Handles are immutable after
// construction and may be shared between several parent strategies; the
// same backend subtree commonly appears under more than one route.
type Handle interface {
	// Name identifies the handle for logs, metrics and introspection.
	Name() string

	// Route dispatches the request and returns the reply. A non-nil
	// error means the dispatch could not run at all; backend-level
	// failures come back as error-class reply results.
	Route(ctx context.Context, req *Request) (*Reply, error)

	// CouldRouteTo returns the child handles Route would dispatch to for
	// this request, without dispatching. Leaves return nil.
	CouldRouteTo(req *Request) []Handle
}

// routeAll dispatches req to every handle concurrently and waits for all of
// them. Replies and errors are recorded by slot, so callers can apply
// slot-deterministic policies no matter which dispatch finished first. Each
// handle receives exactly one Route call.
//
// errgroup is deliberately not used here: it surfaces whichever error
// happens first in completion order, and the migrate strategy needs the
// first-slot error regardless of timing.
func routeAll(ctx context.Context, handles []Handle, req *Request) ([]*Reply, []error) {
	replies := make([]*Reply, len(handles))
	errs := make([]error, len(handles))

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(slot int, h Handle) {
			defer wg.Done()
			replies[slot], errs[slot] = h.Route(ctx, req)
		}(i, h)
	}
	wg.Wait()

	return replies, errs
}

// Table holds the active route tree root and supports atomic replacement
// when the route config is reloaded.
type Table struct {
	root atomic.Value // Handle
}

// NewTable creates a table with the given root.
func NewTable(root Handle) *Table {
	t := &Table{}
	t.root.Store(&root)
	return t
}

// Load returns the active root handle.
func (t *Table) Load() Handle {
	return *t.root.Load().(*Handle)
}

// Store replaces the active root handle.
func (t *Table) Store(root Handle) {
	t.root.Store(&root)
}
