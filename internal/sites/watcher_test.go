package sites

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/webstead/foyer/internal/logger"
)

func TestWatcherHandleInvalidates(t *testing.T) {
	r, root := newTestResolver(t)
	w := NewWatcher(r, logger.New("error", false))

	// Prime a negative entry, then deploy the site behind the cache's back.
	if r.Exists("shop.example.com") {
		t.Fatal("site should not exist yet")
	}
	if err := os.MkdirAll(filepath.Join(root, "shop.example.com"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if r.Exists("shop.example.com") {
		t.Fatal("negative entry should still be cached")
	}

	w.handle(fsnotify.Event{
		Name: filepath.Join(root, "shop.example.com"),
		Op:   fsnotify.Create,
	})

	if !r.Exists("shop.example.com") {
		t.Error("create event should invalidate the cached miss")
	}
}

func TestWatcherHandleIgnoresWrites(t *testing.T) {
	r, root := newTestResolver(t)
	w := NewWatcher(r, logger.New("error", false))

	if err := os.MkdirAll(filepath.Join(root, "shop.example.com"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if !r.Exists("shop.example.com") {
		t.Fatal("site should exist")
	}
	if err := os.RemoveAll(filepath.Join(root, "shop.example.com")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// A content write must not drop the entry.
	w.handle(fsnotify.Event{
		Name: filepath.Join(root, "shop.example.com"),
		Op:   fsnotify.Write,
	})
	if !r.Exists("shop.example.com") {
		t.Error("write event should leave the cache untouched")
	}

	// Removal does.
	w.handle(fsnotify.Event{
		Name: filepath.Join(root, "shop.example.com"),
		Op:   fsnotify.Remove,
	})
	if r.Exists("shop.example.com") {
		t.Error("remove event should invalidate the cached hit")
	}
}

func TestWatcherStartAndStop(t *testing.T) {
	r, _ := newTestResolver(t)
	w := NewWatcher(r, logger.New("error", false))

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
}

func TestWatcherStartMissingRoot(t *testing.T) {
	log := logger.New("error", false)
	r := NewResolver(filepath.Join(t.TempDir(), "does-not-exist"), 0, 0, log)
	w := NewWatcher(r, log)

	if err := w.Start(context.Background()); err == nil {
		t.Error("Start on a missing root should fail")
		w.Stop()
	}
}
