package submission

import (
	"context"
	"sync"
)

// Task is a confirmation poll running in the background. Cancel stops the
// poll before its next attempt; a cancelled task never invokes its callback.
type Task struct {
	Handle string

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	outcome   Outcome
	err       error
}

// Watch polls handle in the background. onResult, if non-nil, is called once
// with the final result unless the task was cancelled first.
func (p *Poller) Watch(ctx context.Context, handle string, onResult func(Outcome, error)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{Handle: handle, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		outcome, err := p.Poll(ctx, handle)

		t.mu.Lock()
		t.outcome, t.err = outcome, err
		cancelled := t.cancelled
		t.mu.Unlock()

		if !cancelled && onResult != nil {
			onResult(outcome, err)
		}
	}()
	return t
}

func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.cancel()
}

func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done is closed when the poll loop has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the task finishes.
func (t *Task) Result() (Outcome, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.err
}
