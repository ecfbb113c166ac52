package sites

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/webstead/foyer/internal/logger"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	r := NewResolver(root, 30*time.Second, 5*time.Second, logger.New("error", false))
	return r, root
}

func TestExists(t *testing.T) {
	r, root := newTestResolver(t)

	if err := os.MkdirAll(filepath.Join(root, "shop.example.com"), 0o755); err != nil {
		t.Fatalf("failed to create site dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "not-a-dir"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	tests := []struct {
		name     string
		id       string
		expected bool
	}{
		{"deployed site", "shop.example.com", true},
		{"unknown site", "blog.example.com", false},
		{"regular file is not a site", "not-a-dir", false},
		{"empty id", "", false},
		{"traversal id", "../..", false},
		{"traversal inside id", "shop..example.com", false},
		{"null byte id", "shop\x00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Exists(tt.id); got != tt.expected {
				t.Errorf("Exists(%q) = %v, want %v", tt.id, got, tt.expected)
			}
		})
	}
}

func TestExistsTraversalNeverEscapes(t *testing.T) {
	r, root := newTestResolver(t)

	// A sibling of the root that a traversal identifier would reach if the
	// validator let it through.
	sibling := filepath.Join(filepath.Dir(root), "outside")
	if err := os.MkdirAll(sibling, 0o755); err != nil {
		t.Fatalf("failed to create sibling dir: %v", err)
	}

	id := "../" + filepath.Base(sibling)
	if r.Exists(id) {
		t.Errorf("Exists(%q) = true, traversal identifier resolved outside the root", id)
	}
}

func TestExistsCachesMisses(t *testing.T) {
	r, root := newTestResolver(t)

	if r.Exists("late.example.com") {
		t.Fatal("Exists() = true before the site was deployed")
	}

	// The negative result is cached: deploying the directory must not be
	// visible until the entry is invalidated.
	if err := os.MkdirAll(filepath.Join(root, "late.example.com"), 0o755); err != nil {
		t.Fatalf("failed to create site dir: %v", err)
	}
	if r.Exists("late.example.com") {
		t.Fatal("Exists() = true while the negative probe was still cached")
	}

	r.Invalidate("late.example.com")
	if !r.Exists("late.example.com") {
		t.Error("Exists() = false after Invalidate()")
	}
}

func TestFlush(t *testing.T) {
	r, root := newTestResolver(t)

	if err := os.MkdirAll(filepath.Join(root, "shop.example.com"), 0o755); err != nil {
		t.Fatalf("failed to create site dir: %v", err)
	}
	if !r.Exists("shop.example.com") {
		t.Fatal("Exists() = false for deployed site")
	}

	if err := os.RemoveAll(filepath.Join(root, "shop.example.com")); err != nil {
		t.Fatalf("failed to remove site dir: %v", err)
	}
	if !r.Exists("shop.example.com") {
		t.Fatal("Exists() = false while the positive probe was still cached")
	}

	r.Flush()
	if r.Exists("shop.example.com") {
		t.Error("Exists() = true after Flush() with the directory gone")
	}
}
