/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import "context"

// NullRoute answers every operation with its miss-class result without
// talking to any backend. Handy as a migration target placeholder or to
// blackhole a subtree in config.
type NullRoute struct{}

func newNullFromConfig(*Factory, map[string]any) (Handle, error) {
	return NullRoute{}, nil
}

// Name implements Handle.
func (NullRoute) Name() string { return "null" }

// Route implements Handle.
func (NullRoute) Route(_ context.Context, req *Request) (*Reply, error) {
	result := ResultNotFound
	switch req.Op {
	case OpSet, OpAdd, OpReplace, OpAppend, OpPrepend:
		result = ResultNotStored
	}
	return &Reply{Result: result, Origin: "null"}, nil
}

// CouldRouteTo implements Handle.
func (NullRoute) CouldRouteTo(*Request) []Handle { return nil }

// ErrorRoute answers every operation with a fixed remote error. Used in
// config to fail traffic for a subtree explicitly.
type ErrorRoute struct {
	message string
}

// NewErrorRoute builds an error route with the given message.
func NewErrorRoute(message string) *ErrorRoute {
	return &ErrorRoute{message: message}
}

func newErrorFromConfig(_ *Factory, node map[string]any) (Handle, error) {
	message, _ := node["message"].(string)
	if message == "" {
		message = "route configured to fail"
	}
	return NewErrorRoute(message), nil
}

// Name implements Handle.
func (r *ErrorRoute) Name() string { return "error" }

// Route implements Handle.
func (r *ErrorRoute) Route(context.Context, *Request) (*Reply, error) {
	return ErrorReply(ResultRemoteError, "error", r.message), nil
}

// CouldRouteTo implements Handle.
func (r *ErrorRoute) CouldRouteTo(*Request) []Handle { return nil }
