package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"todosync/provider"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	lists := []provider.TaskList{
		{ID: "p1", Name: "Inbox", Color: "#95ef63", Removable: false},
		{ID: "p2", Name: "Errands", Color: "#f9ec75", Removable: true},
	}
	tasks := map[string][]provider.Task{
		"p1": {{ID: "i1", Title: "Buy milk", ListID: "p1", Priority: 1}},
		"p2": {{ID: "i2", Title: "Post letter", ListID: "p2", Complete: true, DueDate: &due}},
	}

	if err := s.Save(ctx, "acct-1", lists, tasks); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	gotLists, gotTasks, err := s.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(gotLists) != 2 {
		t.Fatalf("got %d lists, want 2", len(gotLists))
	}
	// Lists come back in saved order
	if gotLists[0].ID != "p1" || gotLists[1].ID != "p2" {
		t.Errorf("list order = %s, %s", gotLists[0].ID, gotLists[1].ID)
	}
	if gotLists[0].Removable || !gotLists[1].Removable {
		t.Errorf("removable flags lost: %+v", gotLists)
	}

	p2 := gotTasks["p2"]
	if len(p2) != 1 {
		t.Fatalf("got %d tasks in p2, want 1", len(p2))
	}
	if !p2[0].Complete {
		t.Error("complete flag lost")
	}
	if p2[0].DueDate == nil || !p2[0].DueDate.Equal(due) {
		t.Errorf("due date = %v, want %v", p2[0].DueDate, due)
	}
	if gotTasks["p1"][0].DueDate != nil {
		t.Error("task without due date came back with one")
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []provider.TaskList{{ID: "p1", Name: "Old"}}
	if err := s.Save(ctx, "acct-1", first, nil); err != nil {
		t.Fatal(err)
	}
	second := []provider.TaskList{{ID: "p2", Name: "New"}}
	if err := s.Save(ctx, "acct-1", second, nil); err != nil {
		t.Fatal(err)
	}

	lists, _, err := s.Load(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 || lists[0].ID != "p2" {
		t.Errorf("snapshot not replaced: %+v", lists)
	}
}

func TestLoadNeverSavedAccount(t *testing.T) {
	s := newTestStore(t)

	lists, tasks, err := s.Load(context.Background(), "nonesuch")
	if err != nil {
		t.Fatalf("Load of unknown account failed: %v", err)
	}
	if len(lists) != 0 || len(tasks) != 0 {
		t.Errorf("unknown account snapshot not empty: %v %v", lists, tasks)
	}
}

func TestSnapshotsAreIsolatedPerAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "acct-1", []provider.TaskList{{ID: "p1", Name: "A"}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "acct-2", []provider.TaskList{{ID: "p9", Name: "B"}}, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, "acct-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	lists, _, err := s.Load(ctx, "acct-1")
	if err != nil || len(lists) != 0 {
		t.Errorf("deleted account still has snapshot: %v err=%v", lists, err)
	}
	lists, _, err = s.Load(ctx, "acct-2")
	if err != nil || len(lists) != 1 {
		t.Errorf("other account's snapshot affected: %v err=%v", lists, err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "snapshots.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = s.Close()
}
