package item

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ErrSubscriptionClosed is returned by Next after the observer cancelled.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is one observer's view of the live collection.
// Snapshots are queued per observer, so every observer sees the same
// sequence in the same order no matter how fast it reads.
type Subscription struct {
	svc     *Service
	stopCtx func() bool

	mu        sync.Mutex
	queue     [][]Item
	err       error
	cancelled bool

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(svc *Service) *Subscription {
	return &Subscription{
		svc:    svc,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Next blocks until the next snapshot is available.
// It returns the terminal live-query error once the queued snapshots are
// drained, ErrSubscriptionClosed after Cancel, or ctx.Err().
func (sub *Subscription) Next(ctx context.Context) ([]Item, error) {
	for {
		sub.mu.Lock()
		switch {
		case sub.cancelled:
			sub.mu.Unlock()
			return nil, ErrSubscriptionClosed
		case len(sub.queue) > 0:
			snap := sub.queue[0]
			sub.queue[0] = nil
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()
			return snap, nil
		case sub.err != nil:
			err := sub.err
			sub.mu.Unlock()
			return nil, err
		}
		sub.mu.Unlock()

		select {
		case <-sub.notify:
		case <-sub.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// All ranges over the snapshots until the subscription ends.
// A live-query failure is yielded once as the final element.
func (sub *Subscription) All(ctx context.Context) iter.Seq2[[]Item, error] {
	return func(yield func([]Item, error) bool) {
		for {
			snap, err := sub.Next(ctx)
			if err != nil {
				if errors.Is(err, ErrSubscriptionClosed) || errors.Is(err, ctx.Err()) {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(snap, nil) {
				return
			}
		}
	}
}

// Err returns the terminal live-query error, if the subscription failed.
func (sub *Subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

// Cancel stops delivery to this observer. It is safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.cancelled = true
		sub.queue = nil
		stop := sub.stopCtx
		sub.mu.Unlock()

		if stop != nil {
			stop()
		}
		close(sub.done)
		sub.svc.remove(sub)
	})
}

// bind ties the subscription to ctx; cancelling ctx cancels the subscription.
func (sub *Subscription) bind(ctx context.Context) {
	stop := context.AfterFunc(ctx, sub.Cancel)

	sub.mu.Lock()
	ended := sub.cancelled || sub.err != nil
	if !ended {
		sub.stopCtx = stop
	}
	sub.mu.Unlock()

	if ended {
		stop()
	}
}

func (sub *Subscription) push(snap []Item) {
	sub.mu.Lock()
	if sub.cancelled || sub.err != nil {
		sub.mu.Unlock()
		return
	}
	sub.queue = append(sub.queue, snap)
	sub.mu.Unlock()
	sub.wake()
}

func (sub *Subscription) terminate(err error) {
	sub.mu.Lock()
	if sub.cancelled || sub.err != nil {
		sub.mu.Unlock()
		return
	}
	sub.err = err
	stop := sub.stopCtx
	sub.mu.Unlock()

	if stop != nil {
		stop()
	}
	sub.wake()
}

func (sub *Subscription) wake() {
	select {
	case sub.notify <- struct{}{}:
	default:
	}
}
