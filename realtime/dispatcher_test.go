package realtime

import (
	"sync"
	"testing"
	"time"

	"studioflow-project/backend/models"
)

func collect(buf chan models.ChangeEvent, n int, t *testing.T) []models.ChangeEvent {
	t.Helper()
	events := make([]models.ChangeEvent, 0, n)
	for len(events) < n {
		select {
		case ev := <-buf:
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events: got %d, want %d", len(events), n)
		}
	}
	return events
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	d := NewDispatcher()
	buf := make(chan models.ChangeEvent, 16)

	sub := d.Subscribe(ChannelKey{Collection: "messages"}, func(ev models.ChangeEvent) {
		buf <- ev
	})
	defer sub.Release()

	for _, id := range []string{"1", "2", "3"} {
		d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: id})
	}

	events := collect(buf, 3, t)
	for i, want := range []string{"1", "2", "3"} {
		if events[i].ID != want {
			t.Errorf("event %d = %s, want %s", i, events[i].ID, want)
		}
	}
}

func TestDispatcherFiltersByField(t *testing.T) {
	d := NewDispatcher()
	buf := make(chan models.ChangeEvent, 16)

	sub := d.Subscribe(ChannelKey{Collection: "messages", FilterField: "projectId", FilterValue: "p1"}, func(ev models.ChangeEvent) {
		buf <- ev
	})
	defer sub.Release()

	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "other", Fields: map[string]string{"projectId": "p2"}})
	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "tasks", ID: "wrong-collection", Fields: map[string]string{"projectId": "p1"}})
	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "mine", Fields: map[string]string{"projectId": "p1"}})

	events := collect(buf, 1, t)
	if events[0].ID != "mine" {
		t.Errorf("got event %s, want mine", events[0].ID)
	}

	select {
	case ev := <-buf:
		t.Errorf("unexpected extra event %s", ev.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherFieldlessEventFansOut(t *testing.T) {
	d := NewDispatcher()
	buf := make(chan models.ChangeEvent, 16)

	sub := d.Subscribe(ChannelKey{Collection: "messages", FilterField: "projectId", FilterValue: "p1"}, func(ev models.ChangeEvent) {
		buf <- ev
	})
	defer sub.Release()

	// Deletes carry no record fields; they must still reach filtered channels.
	d.Publish(models.ChangeEvent{Type: models.EventDelete, Collection: "messages", ID: "gone"})

	events := collect(buf, 1, t)
	if events[0].Type != models.EventDelete || events[0].ID != "gone" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestDispatcherEmptyFieldStaysOffFilteredChannels(t *testing.T) {
	d := NewDispatcher()
	buf := make(chan models.ChangeEvent, 16)

	sub := d.Subscribe(ChannelKey{Collection: "tasks", FilterField: "assignedTo", FilterValue: "user-b"}, func(ev models.ChangeEvent) {
		buf <- ev
	})
	defer sub.Release()

	// An unassigned task carries assignedTo as a present-but-empty field; it
	// belongs to no assignee channel, unlike a fieldless delete.
	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "tasks", ID: "unassigned", Fields: map[string]string{"projectId": "p1", "assignedTo": ""}})
	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "tasks", ID: "assigned", Fields: map[string]string{"projectId": "p1", "assignedTo": "user-b"}})

	events := collect(buf, 1, t)
	if events[0].ID != "assigned" {
		t.Errorf("got event %s, want assigned", events[0].ID)
	}

	select {
	case ev := <-buf:
		t.Errorf("unexpected extra event %s", ev.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherRefreshReachesAllChannels(t *testing.T) {
	d := NewDispatcher()
	buf1 := make(chan models.ChangeEvent, 1)
	buf2 := make(chan models.ChangeEvent, 1)

	s1 := d.Subscribe(ChannelKey{Collection: "tasks", FilterField: "projectId", FilterValue: "p1"}, func(ev models.ChangeEvent) { buf1 <- ev })
	defer s1.Release()
	s2 := d.Subscribe(ChannelKey{Collection: "tasks", FilterField: "projectId", FilterValue: "p2"}, func(ev models.ChangeEvent) { buf2 <- ev })
	defer s2.Release()

	d.Publish(models.ChangeEvent{Type: models.EventRefresh, Collection: "tasks"})

	if ev := collect(buf1, 1, t)[0]; ev.Type != models.EventRefresh {
		t.Errorf("channel 1 got %v", ev.Type)
	}
	if ev := collect(buf2, 1, t)[0]; ev.Type != models.EventRefresh {
		t.Errorf("channel 2 got %v", ev.Type)
	}
}

func TestDispatcherReleaseStopsDelivery(t *testing.T) {
	d := NewDispatcher()
	buf := make(chan models.ChangeEvent, 16)

	sub := d.Subscribe(ChannelKey{Collection: "messages"}, func(ev models.ChangeEvent) {
		buf <- ev
	})
	sub.Release()
	sub.Release() // safe to call twice

	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "late"})

	select {
	case ev := <-buf:
		t.Errorf("released subscription received event %s", ev.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherSharedChannel(t *testing.T) {
	d := NewDispatcher()
	buf1 := make(chan models.ChangeEvent, 1)
	buf2 := make(chan models.ChangeEvent, 1)

	key := ChannelKey{Collection: "messages", FilterField: "projectId", FilterValue: "p1"}
	s1 := d.Subscribe(key, func(ev models.ChangeEvent) { buf1 <- ev })
	s2 := d.Subscribe(key, func(ev models.ChangeEvent) { buf2 <- ev })
	defer s2.Release()

	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "1", Fields: map[string]string{"projectId": "p1"}})
	collect(buf1, 1, t)
	collect(buf2, 1, t)

	// Releasing one subscriber keeps the channel alive for the other.
	s1.Release()
	d.Publish(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "2", Fields: map[string]string{"projectId": "p1"}})
	if ev := collect(buf2, 1, t)[0]; ev.ID != "2" {
		t.Errorf("remaining subscriber got %s", ev.ID)
	}
}

func TestDispatcherPublishDuringChannelTeardown(t *testing.T) {
	d := NewDispatcher()
	key := ChannelKey{Collection: "tasks", FilterField: "projectId", FilterValue: "p1"}
	ev := models.ChangeEvent{Type: models.EventInsert, Collection: "tasks", ID: "t1", Fields: map[string]string{"projectId": "p1"}}

	// Publish in a tight loop while the last subscriber churns through
	// create/teardown, so publishers keep hitting channels mid-release.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			d.Publish(ev)
		}
	}()
	for i := 0; i < 1000; i++ {
		sub := d.Subscribe(key, func(models.ChangeEvent) {})
		sub.Release()
	}
	<-done

	// The channel must still be usable after the churn.
	buf := make(chan models.ChangeEvent, 1)
	sub := d.Subscribe(key, func(e models.ChangeEvent) { buf <- e })
	defer sub.Release()
	d.Publish(ev)
	collect(buf, 1, t)
}

func TestDispatcherSubscribeDuringChannelTeardown(t *testing.T) {
	d := NewDispatcher()
	key := ChannelKey{Collection: "messages", FilterField: "projectId", FilterValue: "p1"}
	ev := models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "m1", Fields: map[string]string{"projectId": "p1"}}

	// A subscription registered while the previous last subscriber is being
	// released must land on a live channel, never an orphaned one.
	for i := 0; i < 200; i++ {
		old := d.Subscribe(key, func(models.ChangeEvent) {})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			old.Release()
		}()
		buf := make(chan models.ChangeEvent, 1)
		sub := d.Subscribe(key, func(e models.ChangeEvent) { buf <- e })
		wg.Wait()

		d.Publish(ev)
		collect(buf, 1, t)
		sub.Release()
	}
}

func TestChannelOverflowCollapsesToRefresh(t *testing.T) {
	c := &channel{queue: make(chan models.ChangeEvent, 2)}

	c.enqueue(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "1"})
	c.enqueue(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "2"})
	// Queue full: backlog is dropped and replaced by a single refresh.
	c.enqueue(models.ChangeEvent{Type: models.EventInsert, Collection: "messages", ID: "3"})

	ev := <-c.queue
	if ev.Type != models.EventRefresh {
		t.Fatalf("expected refresh after overflow, got %+v", ev)
	}
	select {
	case extra := <-c.queue:
		t.Errorf("unexpected queued event after overflow: %+v", extra)
	default:
	}
}
