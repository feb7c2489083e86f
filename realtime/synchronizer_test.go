package realtime

import (
	"testing"
	"time"

	"studioflow-project/backend/models"
)

func entryIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func sameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSynchronizerOrdering(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewViewSynchronizer(0)

	v.Apply(models.ChangeEvent{Type: models.EventInsert, ID: "b", CreatedAt: base})
	v.Apply(models.ChangeEvent{Type: models.EventInsert, ID: "a", CreatedAt: base})
	v.Apply(models.ChangeEvent{Type: models.EventInsert, ID: "c", CreatedAt: base.Add(time.Minute)})

	// Newest first, ties broken by ascending id.
	want := []string{"c", "a", "b"}
	if got := entryIDs(v.Snapshot()); !sameIDs(got, want) {
		t.Errorf("snapshot order = %v, want %v", got, want)
	}
}

func TestSynchronizerLimit(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewViewSynchronizer(2)

	for i, id := range []string{"a", "b", "c"} {
		v.Apply(models.ChangeEvent{Type: models.EventInsert, ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	want := []string{"c", "b"}
	if got := entryIDs(v.Snapshot()); !sameIDs(got, want) {
		t.Errorf("snapshot = %v, want %v", got, want)
	}
}

func TestSynchronizerRedeliveryIdempotent(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewViewSynchronizer(0)

	insert := models.ChangeEvent{Type: models.EventInsert, ID: "a", CreatedAt: base, Record: "v1"}
	v.Apply(insert)
	v.Apply(insert)
	v.Apply(insert)

	if v.Len() != 1 {
		t.Fatalf("redelivered insert duplicated the record: len = %d", v.Len())
	}

	del := models.ChangeEvent{Type: models.EventDelete, ID: "a"}
	v.Apply(del)
	v.Apply(del)
	if v.Len() != 0 {
		t.Errorf("redelivered delete left %d entries", v.Len())
	}
}

func TestSynchronizerUpdateReplacesByID(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewViewSynchronizer(0)

	v.Apply(models.ChangeEvent{Type: models.EventInsert, ID: "a", CreatedAt: base, Record: "old"})
	v.Apply(models.ChangeEvent{Type: models.EventUpdate, ID: "a", CreatedAt: base, Record: "new"})

	snapshot := v.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Record != "new" {
		t.Errorf("update did not replace record: %+v", snapshot)
	}
}

func TestSynchronizerDeleteUnknownIsNoop(t *testing.T) {
	v := NewViewSynchronizer(0)
	v.Apply(models.ChangeEvent{Type: models.EventDelete, ID: "ghost"})
	if v.Len() != 0 {
		t.Error("delete of unknown id changed the snapshot")
	}
}

func TestSynchronizerOptimisticWriteReconciled(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewViewSynchronizer(0)

	// Local write lands before the server assigns the timestamp.
	v.ApplyLocal(Entry{ID: "a", Record: "local"})
	// Authoritative insert for the same id arrives later.
	v.Apply(models.ChangeEvent{Type: models.EventInsert, ID: "a", CreatedAt: base, Record: "server"})

	snapshot := v.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("optimistic write duplicated on reconcile: %v", entryIDs(snapshot))
	}
	if snapshot[0].Record != "server" || !snapshot[0].CreatedAt.Equal(base) {
		t.Errorf("authoritative record did not win: %+v", snapshot[0])
	}
}

func TestSynchronizerRefreshFlow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewViewSynchronizer(0)

	v.Apply(models.ChangeEvent{Type: models.EventInsert, ID: "stale", CreatedAt: base})
	v.Apply(models.ChangeEvent{Type: models.EventRefresh})

	if !v.RefreshNeeded() {
		t.Fatal("refresh event did not flag the snapshot stale")
	}
	// Snapshot is retained until the re-fetch lands.
	if v.Len() != 1 {
		t.Fatal("refresh event discarded the snapshot")
	}

	v.Refresh([]Entry{
		{ID: "x", CreatedAt: base.Add(time.Hour)},
		{ID: "y", CreatedAt: base},
	})
	if v.RefreshNeeded() {
		t.Error("Refresh did not clear the stale flag")
	}
	if got := entryIDs(v.Snapshot()); !sameIDs(got, []string{"x", "y"}) {
		t.Errorf("refreshed snapshot = %v", got)
	}
}

func TestSynchronizerStateMachine(t *testing.T) {
	v := NewViewSynchronizer(0)
	if v.State() != StateUnsubscribed {
		t.Fatalf("initial state = %s", v.State())
	}

	if err := v.Activate(); err == nil {
		t.Error("Activate from Unsubscribed must fail")
	}
	if err := v.Subscribing(); err != nil {
		t.Fatalf("Subscribing: %v", err)
	}
	if err := v.Subscribing(); err == nil {
		t.Error("double Subscribing must fail")
	}
	if err := v.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := v.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !v.RefreshNeeded() {
		t.Error("disconnect must flag a refresh")
	}
	if err := v.Activate(); err != nil {
		t.Fatalf("reconnect Activate: %v", err)
	}

	v.Unsubscribe()
	if v.State() != StateUnsubscribed || v.Len() != 0 {
		t.Error("Unsubscribe must discard the snapshot")
	}
}
