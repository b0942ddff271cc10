package remote

import (
	"context"
	"sync"
)

// produceFunc runs a snapshot producer until ctx is cancelled or it fails.
// emit blocks until the consumer receives the snapshot and returns false
// once the subscription is being closed.
type produceFunc func(ctx context.Context, emit func(Snapshot) bool) error

// feed is the Subscription shared by every backend. The producer runs on
// its own goroutine; Close cancels it and waits for it to exit.
type feed struct {
	ch     chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// startFeed launches produce on a new goroutine. The channel is unbuffered
// so a snapshot is either received before Close returns or never.
func startFeed(ctx context.Context, produce produceFunc) *feed {
	ctx, cancel := context.WithCancel(ctx)
	f := &feed{
		ch:     make(chan Snapshot),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(f.done)
		defer close(f.ch)

		emit := func(s Snapshot) bool {
			select {
			case f.ch <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := produce(ctx, emit)
		if err != nil && ctx.Err() == nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
		}
	}()

	return f
}

func (f *feed) Snapshots() <-chan Snapshot {
	return f.ch
}

func (f *feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *feed) Close() error {
	f.cancel()
	<-f.done
	return nil
}
