package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// stubHandle is a scriptable leaf for strategy tests. A non-nil gate makes
// the dispatch block until the gate closes; done is closed when the first
// dispatch returns. Chaining one stub's done into another's gate forces a
// specific completion order for concurrent fan-out.
type stubHandle struct {
	name  string
	reply *Reply
	err   error
	gate  <-chan struct{}
	done  chan struct{}

	closeDone sync.Once
	calls     atomic.Int32
}

func (h *stubHandle) Name() string { return h.name }

func (h *stubHandle) Route(ctx context.Context, req *Request) (*Reply, error) {
	h.calls.Add(1)
	defer func() {
		if h.done != nil {
			h.closeDone.Do(func() { close(h.done) })
		}
	}()
	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.reply, nil
}

func (h *stubHandle) CouldRouteTo(*Request) []Handle { return nil }

func okStub(name string, result Result) *stubHandle {
	return &stubHandle{name: name, reply: &Reply{Result: result, Origin: name}}
}

func errStub(name string, msg string) *stubHandle {
	return &stubHandle{name: name, err: errors.New(msg)}
}

// fixedTime returns a time source pinned at sec, ignoring the request.
func fixedTime(sec int64) TimeSource {
	return func(*Request) int64 { return sec }
}

func testRequest(op Operation) *Request {
	return &Request{ID: "test", Op: op, Key: "squirrel"}
}
