package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func basenames(files []FileInfo) []string {
	var out []string
	for _, f := range files {
		out = append(out, filepath.Base(f.Path))
	}
	return out
}

func TestWalkDefaults(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.jsonl", "nested/b.jsonl", "notes.txt", "image.png", "skip/c.jsonl")

	files, err := NewWalker(nil, []string{"skip/"}).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	got := basenames(files)
	want := []string{"a.jsonl", "b.jsonl", "notes.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "x/one.jsonl", "x/two.jsonl", "y/three.jsonl", "single.jsonl")

	w := NewWalker(nil, nil)
	files, err := w.Expand([]string{
		filepath.Join(root, "single.jsonl"),
		filepath.Join(root, "x", "*.jsonl"),
		filepath.Join(root, "**", "one.jsonl"), // duplicate
		filepath.Join(root, "y"),
	})
	if err != nil {
		t.Fatal(err)
	}
	got := basenames(files)
	want := []string{"single.jsonl", "one.jsonl", "two.jsonl", "three.jsonl"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExpandNoMatch(t *testing.T) {
	if _, err := NewWalker(nil, nil).Expand([]string{filepath.Join(t.TempDir(), "*.jsonl")}); err == nil {
		t.Error("expected error for pattern without matches")
	}
}

func TestGlobNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "profile_state_old.json", "profile_state_new.json", "other.json")

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "profile_state_old.json"), old, old); err != nil {
		t.Fatal(err)
	}

	files, err := Glob(dir, "profile_state_*.json")
	if err != nil {
		t.Fatal(err)
	}
	got := basenames(files)
	if len(got) != 2 || got[0] != "profile_state_new.json" || got[1] != "profile_state_old.json" {
		t.Errorf("unexpected order %v", got)
	}
}
