/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package routing implements the route-handle tree that decides which cache
// backend(s) receive each operation. Strategies are composable: inner nodes
// (migrate, failover, hash, all-sync) delegate to child handles, leaves talk
// to actual backends.
package routing

import (
	"fmt"
	"time"
)

// Operation identifies a cache operation type.
type Operation int

const (
	OpGet Operation = iota
	OpGets
	OpSet
	OpAdd
	OpReplace
	OpAppend
	OpPrepend
	OpDelete
	OpTouch
	OpIncr
	OpDecr
)

var operationNames = map[Operation]string{
	OpGet:     "get",
	OpGets:    "gets",
	OpSet:     "set",
	OpAdd:     "add",
	OpReplace: "replace",
	OpAppend:  "append",
	OpPrepend: "prepend",
	OpDelete:  "delete",
	OpTouch:   "touch",
	OpIncr:    "incr",
	OpDecr:    "decr",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// DeleteLike reports whether the operation invalidates data. Delete-like
// operations follow the double-width migration window so an invalidation
// issued during a migration reaches both backends.
func (op Operation) DeleteLike() bool {
	return op == OpDelete
}

// ParseOperation resolves an operation name as used in the API and route
// config files.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", name)
}

// Request is a single cache operation travelling through the route tree.
// Requests are never mutated by route handles.
type Request struct {
	ID    string
	Op    Operation
	Key   string
	Value []byte
	Flags uint32

	// Expire is the TTL in seconds for set/touch class operations.
	Expire int64

	// Delta is the adjustment for incr/decr.
	Delta uint64

	// ReceivedAt is stamped when the request enters the proxy. The
	// request-backed time source reads migration time from it.
	ReceivedAt time.Time
}
