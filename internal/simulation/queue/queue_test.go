package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Event Queue Test Suite
// =============================================================================
// Justification for unit tests: dispatch order and the pending/processed
// split are what keep the simulation deterministic. Tests verify ordering with
// ties, readiness queries, idempotent processing and bookkeeping.

type QueueSuite struct {
	suite.Suite
	queue *Queue
	next  int
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupTest() {
	s.next = 0
	s.queue = New(WithIDGenerator(func() string {
		s.next++
		return fmt.Sprintf("evt_%d", s.next)
	}))
}

func (s *QueueSuite) ids(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func (s *QueueSuite) TestOrdering() {
	s.queue.AddEvent(Spec{ScheduledTime: 300, Priority: 1})  // evt_1
	s.queue.AddEvent(Spec{ScheduledTime: 100, Priority: 1})  // evt_2
	s.queue.AddEvent(Spec{ScheduledTime: 100, Priority: 10}) // evt_3
	s.queue.AddEvent(Spec{ScheduledTime: 200, Priority: 5})  // evt_4
	s.queue.AddEvent(Spec{ScheduledTime: 100, Priority: 10}) // evt_5

	s.Equal([]string{"evt_3", "evt_5", "evt_2", "evt_4", "evt_1"}, s.ids(s.queue.PendingEvents()))
}

func (s *QueueSuite) TestAddEvents() {
	ids := s.queue.AddEvents([]Spec{
		{ScheduledTime: 5000, Type: EventAgentAction, Priority: 5},
		{ScheduledTime: 45000, Type: EventBillDue, Priority: 10},
	})
	s.Equal([]string{"evt_1", "evt_2"}, ids)

	ev, ok := s.queue.EventByID("evt_2")
	s.Require().True(ok)
	s.Equal(EventBillDue, ev.Type)
	s.False(ev.Processed)
}

func (s *QueueSuite) TestReadiness() {
	s.queue.AddEvent(Spec{ScheduledTime: 100, Priority: 1})
	s.queue.AddEvent(Spec{ScheduledTime: 200, Priority: 1})
	s.queue.AddEvent(Spec{ScheduledTime: 300, Priority: 1})

	s.Run("nothing is due before the first event", func() {
		_, ok := s.queue.NextEvent(99)
		s.False(ok)
		s.Empty(s.queue.ReadyEvents(99))
	})

	s.Run("due events are returned in order", func() {
		ev, ok := s.queue.NextEvent(200)
		s.Require().True(ok)
		s.Equal("evt_1", ev.ID)
		s.Equal([]string{"evt_1", "evt_2"}, s.ids(s.queue.ReadyEvents(200)))
	})

	s.Run("queries do not consume events", func() {
		s.Equal(3, s.queue.Stats().Pending)
	})
}

func (s *QueueSuite) TestProcessEvent() {
	id := s.queue.AddEvent(Spec{ScheduledTime: 100, Type: EventAgentAction, Priority: 5, Payload: "milo"})

	ev, ok := s.queue.ProcessEvent(id)
	s.Require().True(ok)
	s.True(ev.Processed)
	s.Equal("milo", ev.Payload)
	s.Equal(Stats{Pending: 0, Processed: 1}, s.queue.Stats())

	_, ok = s.queue.ProcessEvent(id)
	s.False(ok, "second call must report the id as unknown")
	s.Equal(Stats{Pending: 0, Processed: 1}, s.queue.Stats())

	found, ok := s.queue.EventByID(id)
	s.Require().True(ok)
	s.True(found.Processed)
}

func (s *QueueSuite) TestRemoveEvent() {
	id := s.queue.AddEvent(Spec{ScheduledTime: 100})
	s.True(s.queue.RemoveEvent(id))
	s.False(s.queue.RemoveEvent(id))
	s.False(s.queue.RemoveEvent("evt_missing"))
	s.Empty(s.queue.ProcessedEvents())
}

func (s *QueueSuite) TestClearAndReset() {
	a := s.queue.AddEvent(Spec{ScheduledTime: 100})
	s.queue.AddEvent(Spec{ScheduledTime: 200})
	_, _ = s.queue.ProcessEvent(a)

	s.queue.Clear()
	s.Equal(Stats{}, s.queue.Stats())

	b := s.queue.AddEvent(Spec{ScheduledTime: 100})
	_, _ = s.queue.ProcessEvent(b)
	s.queue.Reset()
	s.Equal(Stats{}, s.queue.Stats())
	_, ok := s.queue.EventByID(b)
	s.False(ok)
}

func (s *QueueSuite) TestReturnedSlicesAreCopies() {
	s.queue.AddEvent(Spec{ScheduledTime: 100})
	pending := s.queue.PendingEvents()
	pending[0].ScheduledTime = 999

	ev, ok := s.queue.NextEvent(100)
	s.True(ok)
	s.Equal(int64(100), ev.ScheduledTime)
}

func TestEventType_IsValid(t *testing.T) {
	for _, et := range []EventType{EventAgentAction, EventBillDue, EventMarketChange, EventMerchantOffer, EventUserTrigger} {
		if !et.IsValid() {
			t.Errorf("%s should be valid", et)
		}
	}
	if EventType("tick").IsValid() {
		t.Error("unknown type reported valid")
	}
}
