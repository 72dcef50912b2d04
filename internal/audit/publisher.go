package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// Publisher captures agent actions. It is append-only and uses the storage
// layer for persistence so tests can swap sinks easily. With an async buffer
// actions are handed to a background Worker and drained on Close.
type Publisher struct {
	store   Store
	logger  *slog.Logger
	now     func() time.Time
	buffer  int
	inbox   chan Action
	pending sync.WaitGroup
	stopped chan struct{}
	mu      sync.RWMutex
	closed  bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer enables background persistence with a channel of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

// WithClock overrides the wall clock used for RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.inbox = make(chan Action, p.buffer)
		p.stopped = make(chan struct{})
		w := NewWorker(store, p.inbox, func(a Action, err error) {
			p.logger.Error("failed to persist agent action", "action_id", a.ID, "error", err)
		})
		w.done = p.pending.Done
		go func() {
			defer close(p.stopped)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit appends an action, assigning an id and wall-clock time when missing.
func (p *Publisher) Emit(ctx context.Context, action Action) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.RecordedAt.IsZero() {
		action.RecordedAt = p.now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.inbox == nil {
		if err := p.store.Append(ctx, action); err != nil {
			return fmt.Errorf("append action: %w", err)
		}
		return nil
	}

	p.pending.Add(1)
	select {
	case p.inbox <- action:
		return nil
	case <-ctx.Done():
		p.pending.Done()
		return ctx.Err()
	}
}

// Flush blocks until every buffered action has been persisted.
func (p *Publisher) Flush() {
	p.pending.Wait()
}

// Clear flushes buffered actions and empties the store.
func (p *Publisher) Clear(ctx context.Context) error {
	p.Flush()
	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear actions: %w", err)
	}
	return nil
}

func (p *Publisher) List(ctx context.Context) ([]Action, error) {
	p.Flush()
	return p.store.ListAll(ctx)
}

func (p *Publisher) ListByAgent(ctx context.Context, agentID string) ([]Action, error) {
	p.Flush()
	return p.store.ListByAgent(ctx, agentID)
}

// Close stops accepting actions and drains the async buffer.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.inbox != nil {
		close(p.inbox)
		<-p.stopped
	}
}
