package routing

import (
	"context"
	"strings"
	"testing"
)

const (
	testStart    = 1000
	testInterval = 100
)

func newTestMigrate(from, to Handle, now int64) *MigrateRoute {
	return NewMigrateRoute(from, to, testStart, testInterval, fixedTime(now))
}

func TestMigrateSchedulePicksDestinations(t *testing.T) {
	cases := []struct {
		name     string
		now      int64
		op       Operation
		wantFrom bool
		wantTo   bool
	}{
		{"before start, get", 500, OpGet, true, false},
		{"before start, delete", 500, OpDelete, true, false},
		{"in first half, delete", 1050, OpDelete, true, true},
		{"in first half, get", 1050, OpGet, true, false},
		{"in first half, set", 1050, OpSet, true, false},
		{"in second half, delete", 1150, OpDelete, true, true},
		{"in second half, get", 1150, OpGet, false, true},
		{"after window, delete", 1300, OpDelete, false, true},
		{"after window, set", 1300, OpSet, false, true},

		// Thresholds belong to the newer region.
		{"at start, delete", 1000, OpDelete, true, true},
		{"at start, get", 1000, OpGet, true, false},
		{"at midpoint, get", 1100, OpGet, false, true},
		{"just before midpoint, get", 1099, OpGet, true, false},
		{"at window end, delete", 1200, OpDelete, false, true},
		{"just before window end, delete", 1199, OpDelete, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from := okStub("from", ResultDeleted)
			to := okStub("to", ResultDeleted)
			route := newTestMigrate(from, to, tc.now)

			if _, err := route.Route(context.Background(), testRequest(tc.op)); err != nil {
				t.Fatalf("route: %v", err)
			}

			wantCalls := func(want bool) int32 {
				if want {
					return 1
				}
				return 0
			}
			if got := from.calls.Load(); got != wantCalls(tc.wantFrom) {
				t.Fatalf("from called %d times, want %d", got, wantCalls(tc.wantFrom))
			}
			if got := to.calls.Load(); got != wantCalls(tc.wantTo) {
				t.Fatalf("to called %d times, want %d", got, wantCalls(tc.wantTo))
			}
		})
	}
}

func TestMigrateSingleDestinationReplyPassesThrough(t *testing.T) {
	from := okStub("from", ResultFound)
	to := okStub("to", ResultFound)
	route := newTestMigrate(from, to, 500)

	reply, err := route.Route(context.Background(), testRequest(OpGet))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if reply != from.reply {
		t.Fatal("expected from's reply returned unchanged")
	}
}

func TestMigrateDualDispatchReconcilesToWorst(t *testing.T) {
	// Either completion order must produce the same reconciled reply.
	orders := []string{"from_first", "to_first"}

	for _, order := range orders {
		t.Run(order, func(t *testing.T) {
			from := okStub("from", ResultDeleted)
			to := okStub("to", ResultNotFound)

			if order == "from_first" {
				from.done = make(chan struct{})
				to.gate = from.done
			} else {
				to.done = make(chan struct{})
				from.gate = to.done
			}

			route := newTestMigrate(from, to, 1050)
			reply, err := route.Route(context.Background(), testRequest(OpDelete))
			if err != nil {
				t.Fatalf("route: %v", err)
			}

			if reply != to.reply {
				t.Fatalf("expected to's not_found reply (worse), got %s from %s", reply.Result, reply.Origin)
			}
			if from.calls.Load() != 1 || to.calls.Load() != 1 {
				t.Fatalf("expected exactly one call each, got from=%d to=%d", from.calls.Load(), to.calls.Load())
			}
		})
	}
}

func TestMigrateDualDispatchTiePrefersFrom(t *testing.T) {
	for _, order := range []string{"from_first", "to_first"} {
		t.Run(order, func(t *testing.T) {
			from := okStub("from", ResultDeleted)
			to := okStub("to", ResultDeleted)

			if order == "from_first" {
				from.done = make(chan struct{})
				to.gate = from.done
			} else {
				to.done = make(chan struct{})
				from.gate = to.done
			}

			route := newTestMigrate(from, to, 1050)
			reply, err := route.Route(context.Background(), testRequest(OpDelete))
			if err != nil {
				t.Fatalf("route: %v", err)
			}
			if reply != from.reply {
				t.Fatal("tied replies must reconcile to the from slot")
			}
		})
	}
}

func TestMigrateDualDispatchErrorFailsOperation(t *testing.T) {
	t.Run("from fails", func(t *testing.T) {
		from := errStub("from", "from broke")
		to := okStub("to", ResultDeleted)
		route := newTestMigrate(from, to, 1050)

		_, err := route.Route(context.Background(), testRequest(OpDelete))
		if err == nil {
			t.Fatal("expected error when one dual-dispatch slot fails")
		}
		if !strings.Contains(err.Error(), "'from'") {
			t.Fatalf("expected from slot error, got: %v", err)
		}
		if to.calls.Load() != 1 {
			t.Fatal("to must still receive its single dispatch")
		}
	})

	t.Run("to fails", func(t *testing.T) {
		from := okStub("from", ResultDeleted)
		to := errStub("to", "to broke")
		route := newTestMigrate(from, to, 1050)

		_, err := route.Route(context.Background(), testRequest(OpDelete))
		if err == nil {
			t.Fatal("expected error when one dual-dispatch slot fails")
		}
		if !strings.Contains(err.Error(), "'to'") {
			t.Fatalf("expected to slot error, got: %v", err)
		}
	})

	t.Run("both fail prefers from slot", func(t *testing.T) {
		// The from error must win no matter which dispatch finished
		// first.
		from := errStub("from", "from broke")
		to := errStub("to", "to broke")
		to.done = make(chan struct{})
		from.gate = to.done

		route := newTestMigrate(from, to, 1050)
		_, err := route.Route(context.Background(), testRequest(OpDelete))
		if err == nil || !strings.Contains(err.Error(), "from broke") {
			t.Fatalf("expected from slot error, got: %v", err)
		}
	})
}

func TestMigrateCouldRouteToMatchesRoute(t *testing.T) {
	times := []int64{500, 1000, 1050, 1099, 1100, 1150, 1199, 1200, 1300}
	ops := []Operation{OpGet, OpSet, OpDelete, OpIncr, OpTouch}

	for _, now := range times {
		for _, op := range ops {
			from := okStub("from", ResultDeleted)
			to := okStub("to", ResultDeleted)
			route := newTestMigrate(from, to, now)
			req := testRequest(op)

			targets := route.CouldRouteTo(req)
			if _, err := route.Route(context.Background(), req); err != nil {
				t.Fatalf("route now=%d op=%s: %v", now, op, err)
			}

			dispatched := make([]Handle, 0, 2)
			if from.calls.Load() > 0 {
				dispatched = append(dispatched, from)
			}
			if to.calls.Load() > 0 {
				dispatched = append(dispatched, to)
			}

			if len(targets) != len(dispatched) {
				t.Fatalf("now=%d op=%s: introspection reported %d targets, route dispatched to %d",
					now, op, len(targets), len(dispatched))
			}
			for i := range targets {
				if targets[i] != dispatched[i] {
					t.Fatalf("now=%d op=%s: target %d mismatch", now, op, i)
				}
			}
		}
	}
}

func TestMigrateCouldRouteToOrdersFromBeforeTo(t *testing.T) {
	from := okStub("from", ResultDeleted)
	to := okStub("to", ResultDeleted)
	route := newTestMigrate(from, to, 1050)

	targets := route.CouldRouteTo(testRequest(OpDelete))
	if len(targets) != 2 || targets[0] != from || targets[1] != to {
		t.Fatal("dual-dispatch introspection must report [from, to]")
	}
}

func TestMigrateZeroIntervalCollapsesWindow(t *testing.T) {
	from := okStub("from", ResultDeleted)
	to := okStub("to", ResultDeleted)
	route := NewMigrateRoute(from, to, testStart, 0, fixedTime(testStart))

	// With interval 0 the dual-dispatch window is empty: everything at
	// or after start goes straight to the new backend.
	if _, err := route.Route(context.Background(), testRequest(OpDelete)); err != nil {
		t.Fatalf("route: %v", err)
	}
	if from.calls.Load() != 0 || to.calls.Load() != 1 {
		t.Fatalf("expected to only, got from=%d to=%d", from.calls.Load(), to.calls.Load())
	}
}

func TestNewMigrateRoutePanicsOnNilHandle(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil handle")
		}
	}()
	NewMigrateRoute(nil, okStub("to", ResultDeleted), testStart, testInterval, fixedTime(0))
}
