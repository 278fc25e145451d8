package lifecycle

import (
	"context"
	"time"
)

// Scheduler runs a task repeatedly at a fixed interval until the returned Handle
// is stopped. The first run happens one interval after Every is called.
type Scheduler interface {
	Every(interval time.Duration, task func(ctx context.Context)) Handle
}

// Handle cancels a repeating task. Stop never blocks and is safe to call from
// inside the task itself.
type Handle interface {
	Stop()
}

// TickerScheduler drives each task from its own goroutine and time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, task func(ctx context.Context)) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &tickerHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if ctx.Err() != nil {
					return
				}
				task(ctx)
			}
		}
	}()

	return h
}

type tickerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *tickerHandle) Stop() { h.cancel() }

// Done is closed once the loop goroutine has exited.
func (h *tickerHandle) Done() <-chan struct{} { return h.done }
