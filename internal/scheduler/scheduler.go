// Package scheduler provides the periodic callbacks the host uses to drive
// animations (a fine-grained Ticker) and to start whole sessions on a
// calendar schedule (Cron).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStop can be returned by a tick callback to end Every without error.
var ErrStop = errors.New("scheduler: stop")

// Scheduler calls fn every period with tick = 0, 1, 2, ...
//
// Calls never overlap: the next tick is only delivered after fn returned.
// Every returns when ctx is done (ctx.Err()), when fn returns ErrStop (nil)
// or when fn returns any other error (that error).
type Scheduler interface {
	Every(ctx context.Context, period time.Duration, fn func(tick int) error) error
}

// Ticker is the time.Ticker backed Scheduler. Ticks that would fire while fn
// is still running are dropped by the ticker rather than queued.
type Ticker struct{}

// Every implements Scheduler.
func (Ticker) Every(ctx context.Context, period time.Duration, fn func(tick int) error) error {
	if period <= 0 {
		return fmt.Errorf("scheduler: period must be positive, got %s", period)
	}

	t := time.NewTicker(period)
	defer t.Stop()

	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		// A pending tick can win the select after cancellation.
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(tick); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}
