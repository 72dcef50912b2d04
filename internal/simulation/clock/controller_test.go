package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type tick struct {
	delta, now int64
}

// =============================================================================
// Time Controller Test Suite
// =============================================================================
// Justification for unit tests: the controller is the only source of forward
// progress. Tests drive it with a manual heartbeat and a fake wall clock to
// verify linear scaling by speed, that paused time is never charged, and the
// state machine transitions.

type ControllerSuite struct {
	suite.Suite
	wall  time.Time
	ticks []tick
	clock *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.wall = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s.ticks = nil
	s.clock = New(func(delta, now int64) {
		s.ticks = append(s.ticks, tick{delta, now})
	}, WithManualHeartbeat(), WithNow(func() time.Time { return s.wall }))
}

// advance moves the fake wall clock forward in heartbeat-sized steps.
func (s *ControllerSuite) advance(total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		s.wall = s.wall.Add(step)
		s.clock.Beat(s.wall)
	}
}

func (s *ControllerSuite) TestLinearInSpeed() {
	for _, speed := range []Speed{Speed1x, Speed2x, Speed5x, Speed10x} {
		s.Run(speed.String(), func() {
			s.SetupTest()
			s.clock.SetSpeed(speed)
			s.clock.Start()
			s.advance(10*time.Second, 100*time.Millisecond)
			s.Equal(int64(10_000)*int64(speed), s.clock.CurrentTime())
			s.Equal(s.clock.CurrentTime(), s.clock.ElapsedTime())
		})
	}
}

func (s *ControllerSuite) TestBeatsUnderTheIntervalAccumulate() {
	s.clock.Start()
	s.wall = s.wall.Add(60 * time.Millisecond)
	s.False(s.clock.Beat(s.wall))
	s.wall = s.wall.Add(60 * time.Millisecond)
	s.True(s.clock.Beat(s.wall))

	s.Require().Len(s.ticks, 1)
	s.Equal(tick{delta: 120, now: 120}, s.ticks[0])
}

func (s *ControllerSuite) TestFractionalMillisecondsCarryOver() {
	s.clock.Start()
	s.advance(1000*100900*time.Microsecond, 100900*time.Microsecond)

	// 1000 beats of 100.9ms: only the sub-millisecond tail of the last beat
	// may be missing.
	s.Equal(int64(100_900), s.clock.CurrentTime())

	var sum int64
	for _, t := range s.ticks {
		sum += t.delta
	}
	s.Equal(s.clock.CurrentTime(), sum)
}

func (s *ControllerSuite) TestPauseChargesNothing() {
	s.clock.SetSpeed(Speed2x)
	s.clock.Start()
	s.advance(time.Second, 100*time.Millisecond)
	before := s.clock.CurrentTime()

	s.clock.Pause()
	s.False(s.clock.IsActive())
	s.advance(time.Hour, time.Minute)
	s.Equal(before, s.clock.CurrentTime())

	s.clock.Resume()
	s.wall = s.wall.Add(100 * time.Millisecond)
	s.True(s.clock.Beat(s.wall))
	s.Equal(before+200, s.clock.CurrentTime(), "only the post-resume interval counts")
}

func (s *ControllerSuite) TestSpeedChangesApplyFromNextTick() {
	s.clock.Start()
	s.advance(time.Second, 100*time.Millisecond)
	s.clock.SetSpeed(Speed10x)
	s.advance(time.Second, 100*time.Millisecond)
	s.Equal(int64(1000+10_000), s.clock.CurrentTime())
}

func (s *ControllerSuite) TestSetSpeedIgnoresUnsupportedValues() {
	s.clock.SetSpeed(Speed(3))
	s.Equal(Speed1x, s.clock.Speed())

	s.clock.Pause()
	s.clock.SetSpeed(Speed5x)
	s.Equal(Speed5x, s.clock.Speed(), "speed can change while paused")
}

func (s *ControllerSuite) TestStateMachine() {
	s.Run("beats while stopped do nothing", func() {
		s.advance(time.Second, 100*time.Millisecond)
		s.Empty(s.ticks)
		s.Equal(State{Speed: Speed1x}, s.clock.State())
	})

	s.Run("start is a no-op while running", func() {
		s.clock.Start()
		s.advance(time.Second, 100*time.Millisecond)
		s.clock.Start()
		s.Equal(int64(0), s.clock.State().StartTime)
	})

	s.Run("resume while stopped stays stopped", func() {
		s.clock.Stop()
		s.clock.Resume()
		s.False(s.clock.State().IsRunning)
	})

	s.Run("stop keeps the current time", func() {
		s.Equal(int64(1000), s.clock.CurrentTime())
	})

	s.Run("restart continues from the current time", func() {
		s.clock.Start()
		s.Equal(int64(1000), s.clock.State().StartTime)
		s.advance(500*time.Millisecond, 100*time.Millisecond)
		s.Equal(int64(1500), s.clock.CurrentTime())
		s.Equal(int64(500), s.clock.ElapsedTime())
	})

	s.Run("reset zeroes time", func() {
		s.clock.Reset()
		st := s.clock.State()
		s.False(st.IsRunning)
		s.Equal(int64(0), st.CurrentTime)
		s.Equal(int64(0), st.StartTime)
	})
}

func TestController_TickerHeartbeat(t *testing.T) {
	var mu sync.Mutex
	var total int64
	c := New(func(delta, _ int64) {
		mu.Lock()
		total += delta
		mu.Unlock()
	}, WithTickInterval(5*time.Millisecond), WithSpeed(Speed10x))

	c.Start()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return total >= 100
	}, 2*time.Second, 5*time.Millisecond)
	c.Stop()

	stopped := c.CurrentTime()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, c.CurrentTime(), "no ticks after stop")
	assert.False(t, c.IsActive())
}

func TestController_StopAsyncFromCallback(t *testing.T) {
	var c *Controller
	done := make(chan struct{})
	var once sync.Once
	c = New(func(int64, int64) {
		c.StopAsync()
		once.Do(func() { close(done) })
	}, WithTickInterval(time.Millisecond))

	c.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never fired")
	}
	assert.Eventually(t, func() bool { return !c.State().IsRunning }, time.Second, time.Millisecond)
	c.Stop()
}

func TestController_StopFromCallback(t *testing.T) {
	var c *Controller
	returned := make(chan struct{})
	var once sync.Once
	c = New(func(int64, int64) {
		once.Do(func() {
			c.Stop()
			close(returned)
		})
	}, WithTickInterval(5*time.Millisecond))

	c.Start()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop called from the tick callback did not return")
	}
	assert.False(t, c.State().IsRunning)

	c.Reset()
	assert.Equal(t, int64(0), c.CurrentTime())
}
