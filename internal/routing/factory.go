/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// BuilderFunc constructs a handle from a decoded config node. The factory
// is passed in so builders can resolve child nodes and named pools.
type BuilderFunc func(f *Factory, node map[string]any) (Handle, error)

// PoolConfig names a set of backend servers referenced from route nodes.
type PoolConfig struct {
	Servers []string `yaml:"servers"`
}

// RouteFile is the top-level shape of a route config file.
type RouteFile struct {
	Pools map[string]PoolConfig `yaml:"pools"`
	Route map[string]any        `yaml:"route"`
}

// Factory builds route trees from config nodes. Strategy types register a
// builder under their identifier; backend leaf builders are registered by
// the wiring layer so this package stays transport-agnostic.
type Factory struct {
	builders   map[string]BuilderFunc
	pools      map[string]PoolConfig
	timeSource TimeSource
	logger     zerolog.Logger
}

// NewFactory creates a factory with the built-in strategies registered.
func NewFactory(now TimeSource, logger zerolog.Logger) *Factory {
	f := &Factory{
		builders:   make(map[string]BuilderFunc),
		pools:      make(map[string]PoolConfig),
		timeSource: now,
		logger:     logger.With().Str("component", "route_factory").Logger(),
	}

	f.Register("migrate", newMigrateFromConfig)
	f.Register("failover", newFailoverFromConfig)
	f.Register("hash", newHashFromConfig)
	f.Register("allsync", newAllSyncFromConfig)
	f.Register("null", newNullFromConfig)
	f.Register("error", newErrorFromConfig)

	return f
}

// Register adds a builder for the given strategy identifier.
func (f *Factory) Register(name string, builder BuilderFunc) {
	f.builders[name] = builder
}

// TimeSource returns the time source handles built by this factory use.
func (f *Factory) TimeSource() TimeSource {
	return f.timeSource
}

// Pool resolves a named pool from the loaded route file.
func (f *Factory) Pool(name string) (PoolConfig, bool) {
	cfg, ok := f.pools[name]
	return cfg, ok
}

// Build constructs a handle from a config node. The node must be a mapping
// with a string "type" selecting a registered strategy.
func (f *Factory) Build(node any) (Handle, error) {
	mapping, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("route node must be a mapping, got %T", node)
	}

	typeName, ok := mapping["type"].(string)
	if !ok {
		return nil, fmt.Errorf("route node missing string 'type' field")
	}

	builder, ok := f.builders[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown route type %q", typeName)
	}

	handle, err := builder(f, mapping)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Parse decodes a route file and builds the tree it describes.
func (f *Factory) Parse(data []byte) (Handle, error) {
	var file RouteFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse route config: %w", err)
	}
	if file.Route == nil {
		return nil, fmt.Errorf("route config has no 'route' section")
	}

	f.pools = file.Pools
	if f.pools == nil {
		f.pools = make(map[string]PoolConfig)
	}

	root, err := f.Build(file.Route)
	if err != nil {
		return nil, err
	}

	f.logger.Info().
		Str("root", root.Name()).
		Int("pools", len(f.pools)).
		Msg("route tree built")

	return root, nil
}

// LoadFile reads and builds a route config file.
func (f *Factory) LoadFile(path string) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route config %s: %w", path, err)
	}
	return f.Parse(data)
}

// intField extracts an optional integer field. It distinguishes "absent"
// from "present but not an integer": the latter is a config error. YAML
// decodes integers as int, int64 or uint64 depending on magnitude.
func intField(node map[string]any, key string) (int64, bool, error) {
	raw, ok := node[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case uint64:
		return int64(v), true, nil
	default:
		return 0, false, fmt.Errorf("field %q must be an integer, got %T", key, raw)
	}
}

// childList extracts a required list of child route nodes and builds them.
func childList(f *Factory, node map[string]any, key string) ([]Handle, error) {
	raw, ok := node[key]
	if !ok {
		return nil, fmt.Errorf("route node requires %q list", key)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q must be a list of route nodes, got %T", key, raw)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("field %q must not be empty", key)
	}

	children := make([]Handle, 0, len(items))
	for i, item := range items {
		child, err := f.Build(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		children = append(children, child)
	}
	return children, nil
}
