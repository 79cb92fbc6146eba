package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagewatch/dbopen"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	return NewSQLite(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, testSQLite(t)) })
}

func mustObserve(t *testing.T, s Store, id, content string) *Change {
	t.Helper()
	ch, err := s.Observe(context.Background(), id, content)
	if err != nil {
		t.Fatalf("observe %s=%q: %v", id, content, err)
	}
	return ch
}

func mustGet(t *testing.T, s Store, id string) string {
	t.Helper()
	v, ok, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	if !ok {
		t.Fatalf("get %s: not found", id)
	}
	return v
}

func TestObserve_Lifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if ch := mustObserve(t, s, "page", "v1"); ch != nil {
			t.Fatalf("first observation: got change %+v, want none", ch)
		}
		if got := mustGet(t, s, "page"); got != "v1" {
			t.Fatalf("baseline: got %q, want v1", got)
		}

		if ch := mustObserve(t, s, "page", "v1"); ch != nil {
			t.Fatalf("identical observation: got change %+v, want none", ch)
		}

		ch := mustObserve(t, s, "page", "v2")
		if ch == nil {
			t.Fatal("expected a change for v1 -> v2")
		}
		if ch.PageID != "page" || ch.Old != "v1" || ch.New != "v2" {
			t.Fatalf("change: got %+v, want {page v1 v2}", *ch)
		}
		if got := mustGet(t, s, "page"); got != "v2" {
			t.Fatalf("after change: got %q, want v2", got)
		}
	})
}

func TestClear_ResetsBaseline(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustObserve(t, s, "page", "v1")
		mustObserve(t, s, "other", "x")

		if err := s.Clear(context.Background()); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if _, ok, _ := s.Get(context.Background(), "page"); ok {
			t.Fatal("page still present after clear")
		}
		if ch := mustObserve(t, s, "page", "v1"); ch != nil {
			t.Fatalf("after clear: got change %+v, want baseline", ch)
		}
	})
}

func TestGet_NeverObserved(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		v, ok, err := s.Get(context.Background(), "nope")
		if err != nil {
			t.Fatal(err)
		}
		if ok || v != "" {
			t.Fatalf("got (%q, %v), want (\"\", false)", v, ok)
		}
	})
}

func TestObserve_ConcurrentPages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		const pages, rounds = 8, 25
		var wg sync.WaitGroup
		errs := make(chan error, pages)
		for p := 0; p < pages; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				id := fmt.Sprintf("page-%d", p)
				for r := 0; r < rounds; r++ {
					if _, err := s.Observe(context.Background(), id, fmt.Sprintf("%s-v%d", id, r)); err != nil {
						errs <- err
						return
					}
				}
			}(p)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent observe: %v", err)
		}

		for p := 0; p < pages; p++ {
			id := fmt.Sprintf("page-%d", p)
			want := fmt.Sprintf("%s-v%d", id, rounds-1)
			if got := mustGet(t, s, id); got != want {
				t.Errorf("%s: got %q, want %q", id, got, want)
			}
		}
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "snapshots.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	mustObserve(t, s, "page", "v1")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ch := mustObserve(t, s, "page", "v2")
	if ch == nil || ch.Old != "v1" {
		t.Fatalf("after reopen: got %+v, want change from v1", ch)
	}
}

func TestSQLite_List(t *testing.T) {
	s := testSQLite(t)
	mustObserve(t, s, "b", "2")
	mustObserve(t, s, "a", "1")

	entries, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("list: got %d entries, want 2", len(entries))
	}
	if entries[0].PageID != "a" || entries[1].Content != "2" {
		t.Errorf("list order/content: got %+v", entries)
	}
	if entries[0].ObservedAt.IsZero() || entries[0].ChangedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestSQLite_ObserveAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := s.Observe(context.Background(), "page", "v1"); err == nil {
		t.Fatal("expected error observing on a closed store")
	}
}

func TestOpen_Kinds(t *testing.T) {
	s, err := Open(KindMemory, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("memory kind: got %T", s)
	}

	if _, err := Open("tinydb", ""); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
