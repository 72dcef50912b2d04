package queue

import (
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// EventType says which handler a dispatched event is routed to.
type EventType string

const (
	EventAgentAction   EventType = "agent_action"
	EventBillDue       EventType = "bill_due"
	EventMarketChange  EventType = "market_change"
	EventMerchantOffer EventType = "merchant_offer"
	EventUserTrigger   EventType = "user_trigger"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventAgentAction, EventBillDue, EventMarketChange, EventMerchantOffer, EventUserTrigger:
		return true
	}
	return false
}

// Event is a scheduled unit of simulation work. ScheduledTime is simulated
// milliseconds; higher Priority is more urgent.
type Event struct {
	ID            string    `json:"id"`
	ScheduledTime int64     `json:"scheduled_time"`
	Type          EventType `json:"type"`
	Priority      int       `json:"priority"`
	Payload       any       `json:"payload,omitempty"`
	Processed     bool      `json:"processed"`

	seq uint64
}

// Spec describes an event to schedule.
type Spec struct {
	ScheduledTime int64
	Type          EventType
	Priority      int
	Payload       any
}

type Stats struct {
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
}

// Queue keeps pending events ordered by scheduled time ascending, then
// priority descending, then insertion order. Processed events move to an
// append-only history. Unknown ids are reported with false, never errors.
type Queue struct {
	mu        sync.Mutex
	pending   []Event
	processed []Event
	seq       uint64
	newID     func() string
}

type Option func(*Queue)

// WithIDGenerator replaces the event id source.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) {
		q.newID = fn
	}
}

func New(opts ...Option) *Queue {
	q := &Queue{newID: func() string { return "evt_" + uuid.NewString() }}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// before is the dispatch order.
func before(a, b Event) bool {
	if a.ScheduledTime != b.ScheduledTime {
		return a.ScheduledTime < b.ScheduledTime
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

// AddEvent schedules an event and returns its id.
func (q *Queue) AddEvent(spec Spec) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.insert(spec)
}

// AddEvents schedules events in order and returns their ids.
func (q *Queue) AddEvents(specs []Spec) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, q.insert(spec))
	}
	return ids
}

func (q *Queue) insert(spec Spec) string {
	q.seq++
	ev := Event{
		ID:            q.newID(),
		ScheduledTime: spec.ScheduledTime,
		Type:          spec.Type,
		Priority:      spec.Priority,
		Payload:       spec.Payload,
		seq:           q.seq,
	}
	i := sort.Search(len(q.pending), func(i int) bool {
		return before(ev, q.pending[i])
	})
	q.pending = slices.Insert(q.pending, i, ev)
	return ev.ID
}

// NextEvent returns the first pending event due at or before now.
func (q *Queue) NextEvent(now int64) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 || q.pending[0].ScheduledTime > now {
		return Event{}, false
	}
	return q.pending[0], true
}

// ReadyEvents returns every pending event due at or before now, in order.
func (q *Queue) ReadyEvents(now int64) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].ScheduledTime > now
	})
	return slices.Clone(q.pending[:n])
}

// ProcessEvent moves an event from pending to history and returns the
// processed copy. A second call with the same id returns false.
func (q *Queue) ProcessEvent(id string) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexOf(id)
	if i < 0 {
		return Event{}, false
	}
	ev := q.pending[i]
	ev.Processed = true
	q.pending = slices.Delete(q.pending, i, i+1)
	q.processed = append(q.processed, ev)
	return ev, true
}

// RemoveEvent drops a pending event without recording it.
func (q *Queue) RemoveEvent(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexOf(id)
	if i < 0 {
		return false
	}
	q.pending = slices.Delete(q.pending, i, i+1)
	return true
}

func (q *Queue) PendingEvents() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

func (q *Queue) ProcessedEvents() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.processed)
}

// EventByID looks an event up in pending first, then in history.
func (q *Queue) EventByID(id string) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.indexOf(id); i >= 0 {
		return q.pending[i], true
	}
	for _, ev := range q.processed {
		if ev.ID == id {
			return ev, true
		}
	}
	return Event{}, false
}

// Clear empties pending events and history so the queue can be reused.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.processed = nil
}

// Reset empties the queue for a fresh simulation. It is equivalent to Clear.
func (q *Queue) Reset() {
	q.Clear()
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Pending: len(q.pending), Processed: len(q.processed)}
}

func (q *Queue) indexOf(id string) int {
	return slices.IndexFunc(q.pending, func(ev Event) bool { return ev.ID == id })
}
