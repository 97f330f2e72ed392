/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import (
	"context"
	"fmt"
)

// FailoverRoute tries its children in order until one produces a
// definitive answer. Error-class results (timeouts, connection failures,
// remote errors) trigger failover to the next child; misses do not, since
// a miss is a real answer. The last reply is returned when every child
// fails.
type FailoverRoute struct {
	children []Handle
}

// NewFailoverRoute builds a failover route over children. Panics on an
// empty child list; that is a wiring bug.
func NewFailoverRoute(children []Handle) *FailoverRoute {
	if len(children) == 0 {
		panic("routing: failover route requires at least one child")
	}
	for _, c := range children {
		if c == nil {
			panic("routing: failover route child must be non-nil")
		}
	}
	return &FailoverRoute{children: children}
}

func newFailoverFromConfig(f *Factory, node map[string]any) (Handle, error) {
	children, err := childList(f, node, "children")
	if err != nil {
		return nil, fmt.Errorf("failover route: %w", err)
	}
	return NewFailoverRoute(children), nil
}

// Name implements Handle.
func (r *FailoverRoute) Name() string { return "failover" }

// Route implements Handle.
func (r *FailoverRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	var last *Reply
	for _, child := range r.children {
		reply, err := child.Route(ctx, req)
		if err != nil {
			return nil, err
		}
		if !reply.Result.IsError() {
			return reply, nil
		}
		last = reply
	}
	return last, nil
}

// CouldRouteTo implements Handle. Failover may touch any child, so all of
// them are reported in order.
func (r *FailoverRoute) CouldRouteTo(req *Request) []Handle {
	return append([]Handle(nil), r.children...)
}
