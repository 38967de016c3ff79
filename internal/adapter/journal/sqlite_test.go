package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"perspective/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		err := db.Record(ctx, domain.JournalEntry{
			Query:       q,
			Answer:      "answer to " + q,
			SourceCount: i,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Record(ctx, domain.JournalEntry{Query: "broken", Degraded: true, Error: "llm down", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	entries, err := db.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Query != "broken" || !entries[0].Degraded || entries[0].Error != "llm down" {
		t.Errorf("unexpected newest entry %+v", entries[0])
	}
	if entries[1].Query != "third" || entries[1].SourceCount != 2 {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Errorf("expected unique generated IDs")
	}
	if !entries[1].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("timestamp not preserved: %v", entries[1].CreatedAt)
	}

	n, err := db.Count(ctx)
	if err != nil || n != 4 {
		t.Errorf("expected count 4, got %d (%v)", n, err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Record(context.Background(), domain.JournalEntry{ID: "fixed", Query: "q"}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	entries, err := db.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "fixed" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestRecentEmpty(t *testing.T) {
	entries, err := openTestDB(t).Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", entries)
	}
}
