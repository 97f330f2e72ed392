/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import (
	"context"
	"fmt"
)

// AllSyncRoute dispatches every request to all children concurrently and
// replies with the worst answer. Useful for mirrored writes where the
// caller must learn about any replica that did not take the operation.
type AllSyncRoute struct {
	children []Handle
}

// NewAllSyncRoute builds an all-sync route over children.
func NewAllSyncRoute(children []Handle) *AllSyncRoute {
	if len(children) == 0 {
		panic("routing: allsync route requires at least one child")
	}
	for _, c := range children {
		if c == nil {
			panic("routing: allsync route child must be non-nil")
		}
	}
	return &AllSyncRoute{children: children}
}

func newAllSyncFromConfig(f *Factory, node map[string]any) (Handle, error) {
	children, err := childList(f, node, "children")
	if err != nil {
		return nil, fmt.Errorf("allsync route: %w", err)
	}
	return NewAllSyncRoute(children), nil
}

// Name implements Handle.
func (r *AllSyncRoute) Name() string { return "allsync" }

// Route implements Handle. Every child gets exactly one dispatch; the
// folded result is slot-ordered so completion order cannot change it. Any
// dispatch error fails the operation, lowest slot first.
func (r *AllSyncRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	replies, errs := routeAll(ctx, r.children, req)

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("allsync child %d (%s): %w", i, r.children[i].Name(), err)
		}
	}

	worst := replies[0]
	for _, reply := range replies[1:] {
		worst = WorstOf(worst, reply)
	}
	return worst, nil
}

// CouldRouteTo implements Handle.
func (r *AllSyncRoute) CouldRouteTo(req *Request) []Handle {
	return append([]Handle(nil), r.children...)
}
