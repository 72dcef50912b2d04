package audit

import "context"

// Worker consumes actions from a channel and persists them. It stops when the
// inbox is closed or the context is cancelled.
type Worker struct {
	store   Store
	inbox   <-chan Action
	onError func(Action, error)
	done    func()
}

func NewWorker(store Store, inbox <-chan Action, onError func(Action, error)) *Worker {
	return &Worker{store: store, inbox: inbox, onError: onError}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, action); err != nil && w.onError != nil {
				w.onError(action, err)
			}
			if w.done != nil {
				w.done()
			}
		}
	}
}
