package journal

import (
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestBeginFinish(t *testing.T) {
	j := openTest(t)

	id := j.Begin(KindCommit, "aaa", "bbb")
	if id == "" {
		t.Fatal("Begin returned empty id")
	}

	// Intent row is visible before the cycle finishes.
	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Outcome != "" {
		t.Errorf("running cycle outcome = %q, want empty", entries[0].Outcome)
	}
	if !entries[0].FinishedAt.IsZero() {
		t.Error("running cycle has a finish time")
	}

	j.Finish(id, OutcomeOK, "2 chunks")

	entries, err = j.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	e := entries[0]
	if e.Outcome != OutcomeOK || e.Detail != "2 chunks" {
		t.Errorf("finished entry = %+v", e)
	}
	if e.FinishedAt.IsZero() {
		t.Error("finished cycle missing finish time")
	}
	if e.FromRev != "aaa" || e.ToRev != "bbb" {
		t.Errorf("revisions = %s..%s, want aaa..bbb", e.FromRev, e.ToRev)
	}
}

func TestRecent_LimitAndOrder(t *testing.T) {
	j := openTest(t)
	for i := 0; i < 5; i++ {
		id := j.Begin(KindCommit, "", "rev")
		j.Finish(id, OutcomeOK, "")
	}

	entries, err := j.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("entries = %d, want 3", len(entries))
	}
}

func TestRecent_Empty(t *testing.T) {
	j := openTest(t)
	entries, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}
