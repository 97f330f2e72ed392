/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package backend

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/ratatosk/internal/routing"
)

// Registry builds and caches backend handles for the route factory. Two
// route nodes naming the same server share one handle, so reconnect state
// and pools are shared exactly like the subtree sharing the route tree
// expects.
type Registry struct {
	defaults Config
	logger   zerolog.Logger

	mu       sync.Mutex
	backends map[string]*Backend
}

// NewRegistry creates a backend registry with connection defaults applied
// to every server.
func NewRegistry(defaults Config, logger zerolog.Logger) *Registry {
	return &Registry{
		defaults: defaults,
		logger:   logger,
		backends: make(map[string]*Backend),
	}
}

// Get returns the shared handle for addr, creating it on first use.
func (r *Registry) Get(addr string) *Backend {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[addr]; ok {
		return b
	}

	cfg := r.defaults
	cfg.Addr = addr
	b := New(cfg, r.logger)
	r.backends[addr] = b
	return b
}

// Close closes every backend created through the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, b := range r.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RegisterBuilders wires the backend leaf node types into a route factory:
//
//	{type: backend, addr: "host:port"}
//	{type: pool, pool: "name"}            — named pool from the pools section
//	{type: pool, servers: ["host:port"]}  — inline server list
//
// A pool of one server is that server's handle; larger pools partition
// keys by hash.
func (r *Registry) RegisterBuilders(f *routing.Factory) {
	f.Register("backend", func(_ *routing.Factory, node map[string]any) (routing.Handle, error) {
		addr, ok := node["addr"].(string)
		if !ok || addr == "" {
			return nil, fmt.Errorf("backend route requires string 'addr'")
		}
		return r.Get(addr), nil
	})

	f.Register("pool", func(f *routing.Factory, node map[string]any) (routing.Handle, error) {
		servers, err := r.poolServers(f, node)
		if err != nil {
			return nil, err
		}

		handles := make([]routing.Handle, 0, len(servers))
		for _, addr := range servers {
			handles = append(handles, r.Get(addr))
		}
		if len(handles) == 1 {
			return handles[0], nil
		}
		return routing.NewHashRoute(handles), nil
	})
}

func (r *Registry) poolServers(f *routing.Factory, node map[string]any) ([]string, error) {
	if name, ok := node["pool"].(string); ok {
		pool, found := f.Pool(name)
		if !found {
			return nil, fmt.Errorf("pool %q not defined in pools section", name)
		}
		if len(pool.Servers) == 0 {
			return nil, fmt.Errorf("pool %q has no servers", name)
		}
		return pool.Servers, nil
	}

	raw, ok := node["servers"]
	if !ok {
		return nil, fmt.Errorf("pool route requires 'pool' name or 'servers' list")
	}
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("pool 'servers' must be a non-empty list")
	}

	servers := make([]string, 0, len(items))
	for i, item := range items {
		addr, ok := item.(string)
		if !ok || addr == "" {
			return nil, fmt.Errorf("pool servers[%d] must be a non-empty string", i)
		}
		servers = append(servers, addr)
	}
	return servers, nil
}
