/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import (
	"context"
	"fmt"

	"github.com/friendsincode/ratatosk/internal/telemetry"
)

// defaultMigrateInterval is the schedule interval applied when the route
// config omits "interval".
const defaultMigrateInterval = 3600

type destMask uint8

const (
	maskFrom destMask = 1 << iota
	maskTo
)

// MigrateRoute moves traffic from one backend to another on a schedule.
//
// Non-delete operations see a single cutover at startTime+interval: before
// it they go to "from", after it to "to". Delete-like operations are sent
// to both backends for the whole window [startTime, startTime+2*interval)
// so an invalidation issued against either backend also lands in the other
// one; replying with the worse of the two answers keeps a failed delete
// visible to the caller. Before the window everything goes to "from",
// after it everything goes to "to".
//
// Thresholds belong to the newer region: comparisons are strictly < on the
// left and >= on the right. A zero or negative interval is not rejected;
// the window simply collapses and delete-like traffic cuts over at
// startTime.
type MigrateRoute struct {
	from Handle
	to   Handle

	startTime int64 // epoch seconds
	interval  int64 // seconds

	now TimeSource
}

// NewMigrateRoute builds a migrate route with explicit parameters. Nil
// handles are a wiring bug in the caller, not a runtime condition, and
// panic immediately rather than surfacing later mid-request.
func NewMigrateRoute(from, to Handle, startTime, interval int64, now TimeSource) *MigrateRoute {
	if from == nil || to == nil {
		panic("routing: migrate route requires non-nil from and to handles")
	}
	if now == nil {
		panic("routing: migrate route requires a time source")
	}
	return &MigrateRoute{
		from:      from,
		to:        to,
		startTime: startTime,
		interval:  interval,
		now:       now,
	}
}

// newMigrateFromConfig builds a migrate route from a config node. All
// schema violations are recoverable errors so a bad route file never takes
// the proxy down.
func newMigrateFromConfig(f *Factory, node map[string]any) (Handle, error) {
	startTime, ok, err := intField(node, "start_time")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("migrate route requires integer start_time")
	}

	interval := int64(defaultMigrateInterval)
	if v, ok, err := intField(node, "interval"); err != nil {
		return nil, err
	} else if ok {
		interval = v
	}

	fromNode, ok := node["from"]
	if !ok {
		return nil, fmt.Errorf("migrate route has no 'from' route")
	}
	toNode, ok := node["to"]
	if !ok {
		return nil, fmt.Errorf("migrate route has no 'to' route")
	}

	from, err := f.Build(fromNode)
	if err != nil {
		return nil, fmt.Errorf("migrate 'from': %w", err)
	}
	to, err := f.Build(toNode)
	if err != nil {
		return nil, fmt.Errorf("migrate 'to': %w", err)
	}

	return NewMigrateRoute(from, to, startTime, interval, f.timeSource), nil
}

// Name implements Handle.
func (r *MigrateRoute) Name() string { return "migrate" }

// mask computes the destination set for the request at its current time.
func (r *MigrateRoute) mask(req *Request) destMask {
	now := r.now(req)

	if req.Op.DeleteLike() {
		switch {
		case now < r.startTime:
			return maskFrom
		case now < r.startTime+2*r.interval:
			return maskFrom | maskTo
		default:
			return maskTo
		}
	}

	if now < r.startTime+r.interval {
		return maskFrom
	}
	return maskTo
}

// Route implements Handle. Single-destination requests delegate directly
// and their reply passes through untouched. When both destinations apply,
// the two dispatches run concurrently, each exactly once, and the replies
// reconcile to the worse one independent of completion order.
func (r *MigrateRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	switch r.mask(req) {
	case maskFrom:
		return r.from.Route(ctx, req)
	case maskTo:
		return r.to.Route(ctx, req)
	}

	telemetry.MigrateDualDispatchTotal.WithLabelValues(req.Op.String()).Inc()

	replies, errs := routeAll(ctx, []Handle{r.from, r.to}, req)

	// Reconciliation needs both replies. If either dispatch failed the
	// whole operation fails; the "from" slot's error wins when both do.
	if errs[0] != nil {
		return nil, fmt.Errorf("migrate 'from' route: %w", errs[0])
	}
	if errs[1] != nil {
		return nil, fmt.Errorf("migrate 'to' route: %w", errs[1])
	}

	reply := WorstOf(replies[0], replies[1])
	telemetry.MigrateReconcileTotal.WithLabelValues(reconcileWinner(reply, replies[0])).Inc()
	return reply, nil
}

func reconcileWinner(winner, fromReply *Reply) string {
	if winner == fromReply {
		return "from"
	}
	return "to"
}

// CouldRouteTo implements Handle. It evaluates the same destination mask as
// Route and returns the would-be targets in [from, to] order without
// dispatching.
func (r *MigrateRoute) CouldRouteTo(req *Request) []Handle {
	mask := r.mask(req)
	targets := make([]Handle, 0, 2)
	if mask&maskFrom != 0 {
		targets = append(targets, r.from)
	}
	if mask&maskTo != 0 {
		targets = append(targets, r.to)
	}
	return targets
}
