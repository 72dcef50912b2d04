package clock

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Speed is the simulated-time multiplier.
type Speed int

const (
	Speed1x  Speed = 1
	Speed2x  Speed = 2
	Speed5x  Speed = 5
	Speed10x Speed = 10
)

// IsValid reports whether s is a supported multiplier.
func (s Speed) IsValid() bool {
	switch s {
	case Speed1x, Speed2x, Speed5x, Speed10x:
		return true
	}
	return false
}

func (s Speed) String() string {
	return strconv.Itoa(int(s)) + "x"
}

const DefaultTickInterval = 100 * time.Millisecond

// TickFunc receives the simulated milliseconds added by a tick and the new
// simulated time.
type TickFunc func(delta, now int64)

// State is a snapshot of the controller.
type State struct {
	Speed       Speed `json:"speed"`
	IsRunning   bool  `json:"is_running"`
	IsPaused    bool  `json:"is_paused"`
	CurrentTime int64 `json:"current_time"`
	StartTime   int64 `json:"start_time"`
}

// Controller turns wall-clock heartbeats into simulated time.
// Stopped -> Running -> {Paused <-> Running} -> Stopped.
// Simulated time only advances in steps of at least one tick interval of
// real time, scaled by the speed in effect at that tick.
type Controller struct {
	mu           sync.Mutex
	onTick       TickFunc
	speed        Speed
	tickInterval time.Duration
	now          func() time.Time
	manual       bool
	logger       *slog.Logger

	running     bool
	paused      bool
	currentTime int64
	startTime   int64
	lastTick    time.Time
	// ticking counts heartbeat goroutines inside the tick callback. A restart
	// can overlap a goroutine that is still returning from a stopped run.
	ticking int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type Option func(*Controller)

func WithSpeed(s Speed) Option {
	return func(c *Controller) {
		if s.IsValid() {
			c.speed = s
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithManualHeartbeat disables the ticker goroutine; the host drives the
// controller by calling Beat.
func WithManualHeartbeat() Option {
	return func(c *Controller) {
		c.manual = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(onTick TickFunc, opts ...Option) *Controller {
	c := &Controller{
		onTick:       onTick,
		speed:        Speed1x,
		tickInterval: DefaultTickInterval,
		now:          time.Now,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnTick replaces the tick callback.
func (c *Controller) OnTick(fn TickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

// Start begins running from the current simulated time. It is a no-op while
// already running.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.paused = false
	c.startTime = c.currentTime
	c.lastTick = c.now()
	if !c.manual {
		c.stopCh = make(chan struct{})
		c.wg.Add(1)
		go c.heartbeat(c.stopCh)
	}
	c.logger.Debug("clock started", "speed", int(c.speed), "current_time", c.currentTime)
}

// Pause only flags the paused bit; heartbeats are ignored until Resume.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume clears the paused bit and restarts the real-time reference so the
// paused interval is not charged as simulated time.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.paused = false
	c.lastTick = c.now()
}

// Stop halts the heartbeat and keeps the current simulated time. It waits for
// the heartbeat goroutine to exit unless a tick callback is in flight: the
// caller may be that callback, so the goroutine is left to exit on its own
// once the callback returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	stopCh := c.stopCh
	c.stopCh = nil
	wasRunning := c.running
	inTick := c.ticking > 0
	c.running = false
	c.paused = false
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		if !inTick {
			c.wg.Wait()
		}
	}
	if wasRunning {
		c.logger.Debug("clock stopped", "current_time", c.CurrentTime())
	}
}

// StopAsync halts the heartbeat without waiting for the ticker goroutine. It
// is safe to call from inside the tick callback.
func (c *Controller) StopAsync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	c.running = false
	c.paused = false
}

// Reset stops the controller and zeroes simulated time.
func (c *Controller) Reset() {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = 0
	c.startTime = 0
	c.lastTick = time.Time{}
}

// SetSpeed changes the multiplier from the next tick on. Unsupported speeds
// are ignored.
func (c *Controller) SetSpeed(s Speed) {
	if !s.IsValid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = s
}

func (c *Controller) Speed() Speed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

func (c *Controller) CurrentTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// ElapsedTime is the simulated time since the last Start.
func (c *Controller) ElapsedTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime - c.startTime
}

// IsActive reports whether heartbeats currently advance time.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && !c.paused
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Speed:       c.speed,
		IsRunning:   c.running,
		IsPaused:    c.paused,
		CurrentTime: c.currentTime,
		StartTime:   c.startTime,
	}
}

// Beat is one heartbeat at wall time now. When at least one tick interval has
// passed since the last tick, simulated time advances by the real elapsed
// milliseconds times the speed and the tick callback runs outside the lock.
// Only whole milliseconds are charged; the remainder carries into the next
// tick. It reports whether a tick was emitted.
func (c *Controller) Beat(now time.Time) bool {
	return c.beat(now, false)
}

func (c *Controller) beat(now time.Time, heartbeat bool) bool {
	c.mu.Lock()
	if !c.running || c.paused {
		c.mu.Unlock()
		return false
	}
	elapsed := now.Sub(c.lastTick)
	if elapsed < c.tickInterval {
		c.mu.Unlock()
		return false
	}
	ms := elapsed.Milliseconds()
	delta := ms * int64(c.speed)
	c.currentTime += delta
	c.lastTick = c.lastTick.Add(time.Duration(ms) * time.Millisecond)
	current := c.currentTime
	onTick := c.onTick
	if heartbeat {
		c.ticking++
	}
	c.mu.Unlock()

	if onTick != nil {
		onTick(delta, current)
	}
	if heartbeat {
		c.mu.Lock()
		c.ticking--
		c.mu.Unlock()
	}
	return true
}

func (c *Controller) heartbeat(stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.beat(c.now(), true)
		}
	}
}
