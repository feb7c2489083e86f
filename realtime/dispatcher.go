package realtime

import (
	"context"
	"sync"
	"time"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Handler receives change events for one channel. Handlers must be
// idempotent: delivery is at least once and redelivery happens after
// reconnects and queue overflows.
type Handler func(models.ChangeEvent)

// ChannelKey identifies a pub/sub channel: a collection plus an optional
// filter on one record field (e.g. {messages, projectId, <id>}).
type ChannelKey struct {
	Collection  string
	FilterField string
	FilterValue string
}

// Matches reports whether an event belongs on this channel. Events that do
// not carry the filter field at all (deletes expose only the record id) fan
// out to every channel of the collection; removal by id is a no-op for
// snapshots that never held the record. A field that is present but empty,
// such as the assignee of an unassigned task, only matches channels
// filtering on the empty value.
func (k ChannelKey) Matches(ev models.ChangeEvent) bool {
	if ev.Collection != k.Collection {
		return false
	}
	if k.FilterField == "" || ev.Type == models.EventRefresh {
		return true
	}
	value, ok := ev.Fields[k.FilterField]
	if !ok {
		return true
	}
	return value == k.FilterValue
}

// Subscription is the handle returned by Subscribe. Release stops delivery
// and frees the channel once it has no other subscribers. Release is safe to
// call more than once.
type Subscription struct {
	id         uint64
	key        ChannelKey
	dispatcher *Dispatcher
	once       sync.Once
}

func (s *Subscription) Release() {
	s.once.Do(func() {
		s.dispatcher.release(s)
	})
}

type subEntry struct {
	id      uint64
	handler Handler
}

type channel struct {
	key   ChannelKey
	queue chan models.ChangeEvent

	mu   sync.Mutex
	subs []subEntry
	dead bool
}

// run drains the channel queue, invoking every currently registered handler
// for each event in arrival order. The loop ends when the queue is closed.
func (c *channel) run() {
	for ev := range c.queue {
		c.mu.Lock()
		subs := make([]subEntry, len(c.subs))
		copy(subs, c.subs)
		c.mu.Unlock()

		for _, sub := range subs {
			sub.handler(ev)
		}
	}
}

// enqueue hands an event to the channel without blocking the mutator. If the
// queue is full the backlog is discarded and replaced with a single refresh
// event so subscribers re-fetch the authoritative snapshot instead of
// working from a gapped feed. A channel already torn down by its last
// Release drops the event; the lock keeps the send and the teardown check
// atomic so the queue is never closed under a sender.
func (c *channel) enqueue(ev models.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return
	}

	select {
	case c.queue <- ev:
		return
	default:
	}

	for {
		select {
		case <-c.queue:
		default:
			select {
			case c.queue <- models.ChangeEvent{Type: models.EventRefresh, Collection: ev.Collection}:
			default:
			}
			return
		}
	}
}

const channelQueueSize = 256

// Dispatcher fans committed mutations out to per-channel subscribers.
// Delivery is asynchronous relative to the mutation: Publish never waits for
// subscriber execution. Within one channel events arrive in publish order;
// across channels there is no ordering guarantee.
type Dispatcher struct {
	mu       sync.Mutex
	nextID   uint64
	channels map[ChannelKey]*channel
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{channels: make(map[ChannelKey]*channel)}
}

// Subscribe registers a handler on a channel, creating the channel on first
// use.
func (d *Dispatcher) Subscribe(key ChannelKey, handler Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[key]
	if !ok {
		ch = &channel{key: key, queue: make(chan models.ChangeEvent, channelQueueSize)}
		d.channels[key] = ch
		go ch.run()
	}
	d.nextID++
	sub := &Subscription{id: d.nextID, key: key, dispatcher: d}

	// The append stays under d.mu so a concurrent release of the channel's
	// last subscriber cannot tear the channel down between the map lookup
	// and the registration.
	ch.mu.Lock()
	ch.subs = append(ch.subs, subEntry{id: sub.id, handler: handler})
	ch.mu.Unlock()
	return sub
}

func (d *Dispatcher) release(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[sub.key]
	if !ok {
		return
	}

	ch.mu.Lock()
	for i, entry := range ch.subs {
		if entry.id == sub.id {
			ch.subs = append(ch.subs[:i], ch.subs[i+1:]...)
			break
		}
	}
	empty := len(ch.subs) == 0
	if empty {
		// Mark before closing so a publisher holding a stale reference
		// drops its event instead of sending on a closed queue.
		ch.dead = true
	}
	ch.mu.Unlock()

	if empty {
		delete(d.channels, sub.key)
		close(ch.queue)
	}
}

// Publish delivers a committed mutation to every matching channel. Services
// call this after the store write succeeds.
func (d *Dispatcher) Publish(ev models.ChangeEvent) {
	d.mu.Lock()
	var targets []*channel
	for key, ch := range d.channels {
		if key.Matches(ev) {
			targets = append(targets, ch)
		}
	}
	d.mu.Unlock()

	for _, ch := range targets {
		ch.enqueue(ev)
	}
}

type streamEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

// Watch bridges MongoDB change streams into the dispatcher so mutations
// committed by other server instances reach local subscribers too. Missed
// events during a stream gap are not replayed; a refresh event is published
// after every reconnect so subscribers re-fetch their snapshots.
func (d *Dispatcher) Watch(ctx context.Context, db *mongo.Database, collections ...string) {
	for _, name := range collections {
		go d.watchCollection(ctx, db.Collection(name))
	}
}

func (d *Dispatcher) watchCollection(ctx context.Context, coll *mongo.Collection) {
	backoff := time.Second
	for {
		stream, err := coll.Watch(ctx, mongo.Pipeline{},
			options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Logger.Warnf("Event ID: CHANGE_STREAM_OPEN_FAILED, Description: Failed to open change stream on %s, retrying in %s: %v", coll.Name(), backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		logging.Logger.Infof("Event ID: CHANGE_STREAM_ACTIVE, Description: Watching collection %s for committed mutations.", coll.Name())

		for stream.Next(ctx) {
			var raw streamEvent
			if err := stream.Decode(&raw); err != nil {
				logging.Logger.Warnf("Event ID: CHANGE_STREAM_DECODE_FAILED, Description: Skipping undecodable event on %s: %v", coll.Name(), err)
				continue
			}
			if ev, ok := toChangeEvent(coll.Name(), raw); ok {
				d.Publish(ev)
			}
		}

		err = stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		logging.Logger.Warnf("Event ID: CHANGE_STREAM_INTERRUPTED, Description: Change stream on %s interrupted, resubscribing: %v", coll.Name(), err)

		// Events during the gap are lost; tell subscribers to re-fetch.
		d.Publish(models.ChangeEvent{Type: models.EventRefresh, Collection: coll.Name()})
	}
}

// toChangeEvent converts a raw stream event into the typed ChangeEvent the
// rest of the system consumes. Unknown operation types are dropped.
func toChangeEvent(collection string, raw streamEvent) (models.ChangeEvent, bool) {
	ev := models.ChangeEvent{
		Collection: collection,
		ID:         raw.DocumentKey.ID.Hex(),
	}

	switch raw.OperationType {
	case "insert":
		ev.Type = models.EventInsert
	case "update", "replace":
		ev.Type = models.EventUpdate
	case "delete":
		ev.Type = models.EventDelete
		return ev, true
	default:
		return models.ChangeEvent{}, false
	}

	record, fields, createdAt, err := decodeRecord(collection, raw.FullDocument)
	if err != nil {
		logging.Logger.Warnf("Event ID: CHANGE_STREAM_RECORD_INVALID, Description: Record on %s failed schema validation: %v", collection, err)
		return models.ChangeEvent{}, false
	}
	ev.Record = record
	ev.Fields = fields
	ev.CreatedAt = createdAt
	return ev, true
}

// decodeRecord validates the payload against the closed set of record types
// at the store boundary. Payloads for unknown collections are rejected.
func decodeRecord(collection string, raw bson.Raw) (any, map[string]string, time.Time, error) {
	switch collection {
	case "projects":
		var p models.Project
		if err := bson.Unmarshal(raw, &p); err != nil {
			return nil, nil, time.Time{}, err
		}
		return p, nil, p.CreatedAt, nil
	case "project_stages":
		var s models.ProjectStage
		if err := bson.Unmarshal(raw, &s); err != nil {
			return nil, nil, time.Time{}, err
		}
		return s, map[string]string{"projectId": s.ProjectID}, s.CreatedAt, nil
	case "tasks":
		var t models.Task
		if err := bson.Unmarshal(raw, &t); err != nil {
			return nil, nil, time.Time{}, err
		}
		return t, map[string]string{"projectId": t.ProjectID, "assignedTo": t.AssignedTo}, t.CreatedAt, nil
	case "messages":
		var m models.Message
		if err := bson.Unmarshal(raw, &m); err != nil {
			return nil, nil, time.Time{}, err
		}
		return m, map[string]string{"projectId": m.ProjectID}, m.CreatedAt, nil
	case "activity_logs":
		var a models.ActivityLog
		if err := bson.Unmarshal(raw, &a); err != nil {
			return nil, nil, time.Time{}, err
		}
		return a, map[string]string{"projectId": a.ProjectID}, a.CreatedAt, nil
	case "files":
		var f models.File
		if err := bson.Unmarshal(raw, &f); err != nil {
			return nil, nil, time.Time{}, err
		}
		return f, map[string]string{"projectId": f.ProjectID}, f.CreatedAt, nil
	case "support_tickets":
		var t models.SupportTicket
		if err := bson.Unmarshal(raw, &t); err != nil {
			return nil, nil, time.Time{}, err
		}
		return t, map[string]string{"userId": t.UserID}, t.CreatedAt, nil
	}
	return nil, nil, time.Time{}, errUnknownCollection(collection)
}

type errUnknownCollection string

func (e errUnknownCollection) Error() string {
	return "no record type registered for collection " + string(e)
}
