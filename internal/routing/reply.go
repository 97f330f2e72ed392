/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package routing

import "fmt"

// Result is the outcome class of a reply. Transport failures are carried as
// results rather than Go errors so that strategies can compare and
// reconcile them; a Go error from Route means the dispatch itself could not
// run (cancelled context, broken tree), not that the backend said no.
type Result int

const (
	ResultFound Result = iota
	ResultStored
	ResultDeleted
	ResultTouched
	ResultNotStored
	ResultExists
	ResultNotFound
	ResultTimeout
	ResultConnectError
	ResultRemoteError
)

var resultNames = map[Result]string{
	ResultFound:        "found",
	ResultStored:       "stored",
	ResultDeleted:      "deleted",
	ResultTouched:      "touched",
	ResultNotStored:    "not_stored",
	ResultExists:       "exists",
	ResultNotFound:     "not_found",
	ResultTimeout:      "timeout",
	ResultConnectError: "connect_error",
	ResultRemoteError:  "remote_error",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// severity ranks results from best to worst. Hits and acks rank lowest,
// misses above them, transport failures worst. Equal severity means the
// results tie under WorseThan.
func (r Result) severity() int {
	switch r {
	case ResultFound, ResultStored, ResultDeleted, ResultTouched:
		return 0
	case ResultNotStored, ResultExists:
		return 1
	case ResultNotFound:
		return 2
	case ResultTimeout:
		return 3
	case ResultConnectError:
		return 4
	default: // ResultRemoteError and anything unclassified
		return 5
	}
}

// IsError reports whether the result represents a failed dispatch rather
// than a definitive backend answer.
func (r Result) IsError() bool {
	return r.severity() >= ResultTimeout.severity()
}

// Reply is a backend's answer to a single operation.
type Reply struct {
	Result Result
	Value  []byte
	Flags  uint32

	// Message carries detail for error results.
	Message string

	// Origin names the handle that produced the reply.
	Origin string
}

// WorseThan reports whether r ranks strictly worse than other.
func (r *Reply) WorseThan(other *Reply) bool {
	return r.Result.severity() > other.Result.severity()
}

// WorstOf reconciles two replies for the same logical operation, returning
// whichever is worse. Ties keep a: the first argument is the incumbent, so
// callers passing replies in slot order get the same answer regardless of
// which dispatch completed first.
func WorstOf(a, b *Reply) *Reply {
	if b.WorseThan(a) {
		return b
	}
	return a
}

// ErrorReply builds a reply for a failed dispatch.
func ErrorReply(result Result, origin, message string) *Reply {
	return &Reply{Result: result, Origin: origin, Message: message}
}
