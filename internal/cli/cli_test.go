package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"perspective/internal/adapter/fs"
	"perspective/internal/adapter/profile"
	"perspective/internal/adapter/store"
)

const testConfig = `embedding:
  provider: mock
  dimension: 32
logging:
  level: error
`

const testPosts = `{"text": "Rust makes compiler errors a teaching tool.", "summary": "Praises Rust compiler errors.", "category": "technology"}
{"text": "Remote teams need written culture.", "summary": "Remote work needs writing.", "category": "industry"}
not json
{"text": "Housing policy shapes the economy.", "summary": "Housing and economy.", "category": null}
`

func resetFlags() {
	cfgFile, rootDir, debug = "", "", false
	searchQuery, searchTopK, searchKeyword, searchJSON = "", 0, false, false
	ingestExcludes, ingestNoCache, ingestNoMirror = nil, false, false
	inspectJSON = false
	profilePromptFile = ""
}

func execute(t *testing.T, args ...string) {
	t.Helper()
	resetFlags()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
}

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "perspective.yaml"), []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "posts.jsonl"), []byte(testPosts), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestIngestThenSearchAndInspect(t *testing.T) {
	dir := setupWorkspace(t)

	execute(t, "--dir", dir, "ingest", filepath.Join(dir, "posts.jsonl"))

	dataDir := filepath.Join(dir, "data")
	info, err := store.ReadInfo(filepath.Join(dataDir, "embeddings.index"), filepath.Join(dataDir, "embeddings_metadata.json"))
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.Count != 3 {
		t.Errorf("expected 3 fragments, got %d", info.Count)
	}
	if info.Categories["world"] != 1 {
		t.Errorf("null category should default to world, got %v", info.Categories)
	}

	execute(t, "--dir", dir, "inspect")
	execute(t, "--dir", dir, "search", "-q", "rust compiler", "-k", "2")
	execute(t, "--dir", dir, "search", "-q", "housing", "--keyword")
}

func TestIngestExtendsExistingStore(t *testing.T) {
	dir := setupWorkspace(t)
	posts := filepath.Join(dir, "posts.jsonl")

	execute(t, "--dir", dir, "ingest", posts)
	execute(t, "--dir", dir, "ingest", posts)

	dataDir := filepath.Join(dir, "data")
	info, err := store.ReadInfo(filepath.Join(dataDir, "embeddings.index"), filepath.Join(dataDir, "embeddings_metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Count != 6 {
		t.Errorf("expected 6 fragments after two ingests, got %d", info.Count)
	}
}

func TestProfileSetAndLatest(t *testing.T) {
	dir := setupWorkspace(t)

	execute(t, "--dir", dir, "profile", "set", "alice", "Write tersely.")
	time.Sleep(10 * time.Millisecond)
	execute(t, "--dir", dir, "profile", "set", "bob smith", "Write warmly.")

	st := profile.NewFileStore(filepath.Join(dir, "data"))
	latest, err := st.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Name != "bob smith" || latest.TextPrompt != "Write warmly." {
		t.Errorf("unexpected latest profile: %+v", latest)
	}

	execute(t, "--dir", dir, "profile", "show", "alice")
	execute(t, "--dir", dir, "profile", "list")
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"ingest", "label", "ask", "search", "serve", "inspect", "history", "profile"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestNeedsLabeling(t *testing.T) {
	tests := []struct {
		files []string
		want  bool
	}{
		{[]string{"a.jsonl", "b.JSONL"}, false},
		{[]string{"a.jsonl", "raw.txt"}, true},
		{nil, false},
	}
	for _, tt := range tests {
		var files []fs.FileInfo
		for _, f := range tt.files {
			files = append(files, fs.FileInfo{Path: f})
		}
		if got := needsLabeling(files); got != tt.want {
			t.Errorf("needsLabeling(%v) = %v, want %v", tt.files, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 20, "line one"},
		{"héllo wörld", 5, "héllo..."},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in, tt.max); got != tt.want {
			t.Errorf("firstLine(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
