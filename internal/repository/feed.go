package repository

import (
	"context"
	"sync"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/metrics"
)

// Snapshot is one complete result set delivered by a Feed. Err is set when the reload
// failed; the feed keeps running and retries on the next change.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Loader reloads the complete, ordered result set a feed watches.
type Loader[T any] func(ctx context.Context) (T, error)

// Feed is a live subscription that emits the full current result set initially and after
// every committed change to a watched topic. A slow consumer only ever sees the newest
// snapshot.
type Feed[T any] struct {
	C <-chan Snapshot[T]

	out    chan Snapshot[T]
	sub    *changefeed.Subscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Watch subscribes to topics and starts reloading through load. The subscription is
// registered before the initial load so no committed change can slip between them.
func Watch[T any](ctx context.Context, broker changefeed.Broker, topics []string, load Loader[T]) *Feed[T] {
	feedCtx, cancel := context.WithCancel(ctx)
	out := make(chan Snapshot[T], 1)
	feed := &Feed[T]{
		C:      out,
		out:    out,
		sub:    broker.Subscribe(topics...),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	metrics.LiveSubscriptions.Inc()

	go feed.run(feedCtx, load)
	return feed
}

func (f *Feed[T]) run(ctx context.Context, load Loader[T]) {
	defer close(f.done)
	defer close(f.out)

	f.emit(ctx, load)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-f.sub.C:
			if !ok {
				return
			}
			f.drain()
			f.emit(ctx, load)
		}
	}
}

// drain folds queued change signals into the reload about to happen.
func (f *Feed[T]) drain() {
	for {
		select {
		case _, ok := <-f.sub.C:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (f *Feed[T]) emit(ctx context.Context, load Loader[T]) {
	value, err := load(ctx)
	if ctx.Err() != nil {
		return
	}
	snap := Snapshot[T]{Value: value, Err: err}

	select {
	case f.out <- snap:
		return
	default:
	}
	// replace the unread snapshot with the newer one
	select {
	case <-f.out:
	default:
	}
	select {
	case f.out <- snap:
	case <-ctx.Done():
	}
}

// Close detaches the feed. It returns only after the feed has stopped delivering, so a
// caller switching to another feed never receives stale snapshots from this one.
func (f *Feed[T]) Close() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		f.cancel()
		f.sub.Close()
		<-f.done
		metrics.LiveSubscriptions.Dec()
	})
}
