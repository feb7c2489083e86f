package realtime

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"studioflow-project/backend/models"
)

// SubscriptionState tracks a synchronizer's position in its lifecycle:
// Unsubscribed -> Subscribing -> Active -> (Disconnected -> Active | Unsubscribed).
type SubscriptionState string

const (
	StateUnsubscribed SubscriptionState = "unsubscribed"
	StateSubscribing  SubscriptionState = "subscribing"
	StateActive       SubscriptionState = "active"
	StateDisconnected SubscriptionState = "disconnected"
)

// Entry is one record held in a snapshot.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Record    any
}

// ViewSynchronizer keeps the last known snapshot of a bounded result set
// (e.g. messages of one project, unread notifications of one recipient)
// consistent as change events arrive. The snapshot is ordered newest first,
// ties broken by ascending id.
//
// Optimistic local writes are inserted through ApplyLocal and reconciled
// against the authoritative event for the same id: merging matches by id,
// not content, so server-assigned timestamps do not duplicate the record.
type ViewSynchronizer struct {
	mu      sync.Mutex
	state   SubscriptionState
	limit   int
	entries []Entry

	// set once a refresh event arrived; cleared by Refresh
	refreshNeeded bool
}

// NewViewSynchronizer builds a synchronizer holding at most limit entries
// (0 means unbounded).
func NewViewSynchronizer(limit int) *ViewSynchronizer {
	return &ViewSynchronizer{state: StateUnsubscribed, limit: limit}
}

// State returns the current subscription state.
func (v *ViewSynchronizer) State() SubscriptionState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Subscribing marks the start of a subscription attempt.
func (v *ViewSynchronizer) Subscribing() error {
	return v.transition(StateSubscribing, StateUnsubscribed)
}

// Activate marks the subscription live, from either the initial attempt or a
// reconnect.
func (v *ViewSynchronizer) Activate() error {
	return v.transition(StateActive, StateSubscribing, StateDisconnected)
}

// Disconnect marks a transient loss of the feed. The accumulated snapshot is
// retained until the next authoritative refresh.
func (v *ViewSynchronizer) Disconnect() error {
	if err := v.transition(StateDisconnected, StateActive); err != nil {
		return err
	}
	v.mu.Lock()
	v.refreshNeeded = true
	v.mu.Unlock()
	return nil
}

// Unsubscribe is terminal; the snapshot is discarded.
func (v *ViewSynchronizer) Unsubscribe() {
	v.mu.Lock()
	v.state = StateUnsubscribed
	v.entries = nil
	v.refreshNeeded = false
	v.mu.Unlock()
}

func (v *ViewSynchronizer) transition(to SubscriptionState, from ...SubscriptionState) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range from {
		if v.state == s {
			v.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid subscription state transition %s -> %s", v.state, to)
}

// Apply merges one change event into the snapshot. Applying the same event
// twice yields the same snapshot (redelivery safety). A refresh event only
// flags the snapshot as stale; the caller re-fetches and calls Refresh.
func (v *ViewSynchronizer) Apply(ev models.ChangeEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case models.EventInsert, models.EventUpdate:
		v.upsert(Entry{ID: ev.ID, CreatedAt: ev.CreatedAt, Record: ev.Record})
	case models.EventDelete:
		v.remove(ev.ID)
	case models.EventRefresh:
		v.refreshNeeded = true
	}
}

// ApplyLocal inserts an optimistic local write before the authoritative
// event arrives.
func (v *ViewSynchronizer) ApplyLocal(entry Entry) {
	v.mu.Lock()
	v.upsert(entry)
	v.mu.Unlock()
}

// RefreshNeeded reports whether events may have been lost since the last
// full refresh.
func (v *ViewSynchronizer) RefreshNeeded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refreshNeeded
}

// Refresh replaces the whole snapshot with an authoritative result set
// (initial load, reconnect re-fetch).
func (v *ViewSynchronizer) Refresh(entries []Entry) {
	v.mu.Lock()
	v.entries = make([]Entry, len(entries))
	copy(v.entries, entries)
	v.sortAndTrim()
	v.refreshNeeded = false
	v.mu.Unlock()
}

// Snapshot returns a copy of the current entries, newest first.
func (v *ViewSynchronizer) Snapshot() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Len returns the number of entries held.
func (v *ViewSynchronizer) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

func (v *ViewSynchronizer) upsert(entry Entry) {
	for i := range v.entries {
		if v.entries[i].ID == entry.ID {
			// Reconcile by id: the authoritative record wins, but a zero
			// timestamp never clobbers a known one.
			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = v.entries[i].CreatedAt
			}
			if entry.Record == nil {
				entry.Record = v.entries[i].Record
			}
			v.entries[i] = entry
			v.sortAndTrim()
			return
		}
	}
	v.entries = append(v.entries, entry)
	v.sortAndTrim()
}

func (v *ViewSynchronizer) remove(id string) {
	for i := range v.entries {
		if v.entries[i].ID == id {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			return
		}
	}
}

func (v *ViewSynchronizer) sortAndTrim() {
	sort.SliceStable(v.entries, func(i, j int) bool {
		if !v.entries[i].CreatedAt.Equal(v.entries[j].CreatedAt) {
			return v.entries[i].CreatedAt.After(v.entries[j].CreatedAt)
		}
		return v.entries[i].ID < v.entries[j].ID
	})
	if v.limit > 0 && len(v.entries) > v.limit {
		v.entries = v.entries[:v.limit]
	}
}
