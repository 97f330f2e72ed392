package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/ratatosk/internal/events"
)

func writeRoutes(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write routes file: %v", err)
	}
}

func TestWatcherReloadSwapsTableOnValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, "route:\n  type: \"null\"\n")

	factory := newTestFactory()
	root, err := factory.LoadFile(path)
	if err != nil {
		t.Fatalf("load initial config: %v", err)
	}
	table := NewTable(root)

	bus := events.NewBus()
	reloaded := bus.Subscribe(events.EventRoutesReloaded)

	w := NewWatcher(path, factory, table, bus, zerolog.Nop())

	writeRoutes(t, path, "route:\n  type: error\n  message: draining\n")
	w.Reload()

	if _, ok := table.Load().(*ErrorRoute); !ok {
		t.Fatalf("expected table to hold the new error route, got %T", table.Load())
	}

	select {
	case payload := <-reloaded:
		if payload["root"] != "error" {
			t.Fatalf("reload event root = %v", payload["root"])
		}
	default:
		t.Fatal("expected a reload event")
	}
}

func TestWatcherReloadKeepsPreviousTreeOnBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, "route:\n  type: \"null\"\n")

	factory := newTestFactory()
	root, err := factory.LoadFile(path)
	if err != nil {
		t.Fatalf("load initial config: %v", err)
	}
	table := NewTable(root)

	bus := events.NewBus()
	failed := bus.Subscribe(events.EventRoutesReloadError)

	w := NewWatcher(path, factory, table, bus, zerolog.Nop())

	writeRoutes(t, path, "route:\n  type: no-such-strategy\n")
	w.Reload()

	if table.Load() != root {
		t.Fatal("a bad config must not replace the active tree")
	}

	select {
	case payload := <-failed:
		if payload["error"] == "" {
			t.Fatal("reload error event should carry the error text")
		}
	default:
		t.Fatal("expected a reload error event")
	}
}
