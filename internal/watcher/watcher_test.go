package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) onChange(paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func startWatcher(t *testing.T, roots []string, exts []string, rec *recorder) *Watcher {
	t.Helper()
	w := New(roots, exts, rec.onChange, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_coalescesBurst(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, []string{dir}, []string{".md"}, rec)

	for _, name := range []string{"a.md", "b.md", "c.md"} {
		if err := writeFile(filepath.Join(dir, name), "note"); err != nil {
			t.Fatal(err)
		}
	}
	paths := rec.wait(t)
	if len(paths) != 3 {
		t.Errorf("expected 3 paths in one batch, got %v", paths)
	}
	time.Sleep(300 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("expected one notification, got %d", n)
	}
}

func TestWatcher_ignoresOtherExtensionsAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, []string{dir}, []string{".md"}, rec)

	if err := writeFile(filepath.Join(dir, "image.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, ".draft.md"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("expected no notification, got %d", n)
	}

	if err := writeFile(filepath.Join(dir, "real.md"), "x"); err != nil {
		t.Fatal(err)
	}
	paths := rec.wait(t)
	if len(paths) != 1 || !strings.HasSuffix(paths[0], "real.md") {
		t.Errorf("unexpected paths %v", paths)
	}
}

func TestWatcher_newSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, []string{dir}, []string{".txt"}, rec)

	nested := filepath.Join(dir, "level1")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	rec.wait(t)

	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	paths := rec.wait(t)
	found := false
	for _, p := range paths {
		if strings.HasSuffix(p, "deep.txt") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected deep.txt, got %v", paths)
	}
}

func TestWatcher_removalIsReported(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "gone.md")
	if err := writeFile(f, "x"); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	startWatcher(t, []string{dir}, []string{".md"}, rec)

	if err := os.Remove(f); err != nil {
		t.Fatal(err)
	}
	paths := rec.wait(t)
	if len(paths) != 1 || paths[0] != f {
		t.Errorf("unexpected paths %v", paths)
	}
}

func TestWatcher_Start_missingRoot(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "missing")}, nil, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("expected error for missing root")
	}
}

func TestWatcher_StopDropsPending(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w := New([]string{dir}, nil, rec.onChange, WithDebounce(200*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "a.md"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()
	time.Sleep(400 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("expected no notification after Stop, got %d", n)
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
