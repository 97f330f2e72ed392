/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import (
	"context"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// HashRoute partitions keys across its children by key hash. The same key
// always lands on the same child for a fixed child count.
type HashRoute struct {
	children []Handle
}

// NewHashRoute builds a hash route over children.
func NewHashRoute(children []Handle) *HashRoute {
	if len(children) == 0 {
		panic("routing: hash route requires at least one child")
	}
	for _, c := range children {
		if c == nil {
			panic("routing: hash route child must be non-nil")
		}
	}
	return &HashRoute{children: children}
}

func newHashFromConfig(f *Factory, node map[string]any) (Handle, error) {
	children, err := childList(f, node, "children")
	if err != nil {
		return nil, fmt.Errorf("hash route: %w", err)
	}
	return NewHashRoute(children), nil
}

// Name implements Handle.
func (r *HashRoute) Name() string { return "hash" }

func (r *HashRoute) pick(req *Request) Handle {
	idx := murmur3.Sum32([]byte(req.Key)) % uint32(len(r.children))
	return r.children[idx]
}

// Route implements Handle.
func (r *HashRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	return r.pick(req).Route(ctx, req)
}

// CouldRouteTo implements Handle.
func (r *HashRoute) CouldRouteTo(req *Request) []Handle {
	return []Handle{r.pick(req)}
}
