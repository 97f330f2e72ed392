/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import "github.com/benbjohnson/clock"

// TimeSource extracts the current time (epoch seconds) for a request. It is
// evaluated on every routed and inspected request, never cached, so
// strategies that depend on time stay consistent between Route and
// CouldRouteTo for the same request.
type TimeSource func(req *Request) int64

// WallClock returns a time source backed by clk, ignoring the request.
// Pass a mock clock for deterministic tests.
func WallClock(clk clock.Clock) TimeSource {
	return func(*Request) int64 {
		return clk.Now().Unix()
	}
}

// RequestTime returns a time source that reads the request's receive
// timestamp. Useful for replaying recorded traffic: routing decisions
// depend only on the request, not on when it is replayed.
func RequestTime() TimeSource {
	return func(req *Request) int64 {
		return req.ReceivedAt.Unix()
	}
}
