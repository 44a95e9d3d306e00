package svcdeploy

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// adoptionGrace is how long watchWake's cleanup waits for the watcher
// goroutine to drain before giving up.
const adoptionGrace = 100 * time.Millisecond

// watchWake watches a live service directory and signals on the returned
// channel whenever its contents change. The supervision daemon adopts a
// new directory by creating supervise/ inside it, so a signal here lets
// an adoption wait recheck immediately instead of on its next tick.
//
// A watcher that cannot be established degrades to a nil channel (the
// caller's select then simply never wakes early); the cleanup func is
// always safe to call.
func watchWake(ctx context.Context, dir string) (<-chan struct{}, func() error) {
	nop := func() error { return nil }

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nop
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, nop
	}

	ch := make(chan struct{}, 1)

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil

			case _, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				// Coalesce bursts; one pending wake is enough
				select {
				case ch <- struct{}{}:
				default:
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	})

	cleanup := func() error {
		sctx.Stop(adoptionGrace)
		return sctx.Wait()
	}
	return ch, cleanup
}

// waitResult says why a poll pause ended.
type waitResult int

const (
	// waitCancelled means the context was cancelled mid-pause
	waitCancelled waitResult = iota
	// waitElapsed means the full duration passed
	waitElapsed
	// waitWoken means the wake channel fired before the duration passed
	waitWoken
)

// sleepOrWake pauses for the given duration, ending early when the wake
// channel signals or the context is cancelled, and reports which of the
// three happened.
func sleepOrWake(ctx context.Context, d time.Duration, wake <-chan struct{}) waitResult {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return waitCancelled
	case <-timer.C:
		return waitElapsed
	case <-wake:
		return waitWoken
	}
}
