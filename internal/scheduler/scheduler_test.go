package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestTickerCountsUp(t *testing.T) {
	c := qt.New(t)

	var got []int
	err := Ticker{}.Every(context.Background(), time.Millisecond, func(tick int) error {
		got = append(got, tick)
		if tick == 4 {
			return ErrStop
		}
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []int{0, 1, 2, 3, 4})
}

func TestTickerPropagatesError(t *testing.T) {
	c := qt.New(t)

	boom := errors.New("write failed")
	calls := 0
	err := Ticker{}.Every(context.Background(), time.Millisecond, func(tick int) error {
		calls++
		if tick == 2 {
			return boom
		}
		return nil
	})
	c.Assert(err, qt.Equals, boom)
	c.Assert(calls, qt.Equals, 3)
}

func TestTickerStopsOnCancel(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	err := Ticker{}.Every(ctx, time.Millisecond, func(tick int) error {
		if atomic.AddInt32(&calls, 1) == 3 {
			cancel()
		}
		return nil
	})
	c.Assert(errors.Is(err, context.Canceled), qt.IsTrue)
	c.Assert(atomic.LoadInt32(&calls), qt.Equals, int32(3))
}

func TestTickerNeverOverlaps(t *testing.T) {
	c := qt.New(t)

	var running int32
	err := Ticker{}.Every(context.Background(), time.Millisecond, func(tick int) error {
		c.Assert(atomic.AddInt32(&running, 1), qt.Equals, int32(1))
		time.Sleep(3 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		if tick == 5 {
			return ErrStop
		}
		return nil
	})
	c.Assert(err, qt.IsNil)
}

func TestTickerRejectsBadPeriod(t *testing.T) {
	c := qt.New(t)

	err := Ticker{}.Every(context.Background(), 0, func(int) error { return nil })
	c.Assert(err, qt.ErrorMatches, `scheduler: period must be positive, got 0s`)
}

func TestCronValidate(t *testing.T) {
	c := qt.New(t)

	c.Assert(ValidateSpec("*/15 * * * *"), qt.IsNil)
	c.Assert(ValidateSpec("@hourly"), qt.IsNil)
	c.Assert(ValidateSpec("every now and then"), qt.ErrorMatches, `scheduler: invalid cron spec .*`)

	cr := NewCron()
	c.Assert(cr.Add("nope", func() {}), qt.Not(qt.IsNil))
	c.Assert(cr.Add("@every 1h", func() {}), qt.IsNil)
	c.Assert(cr.Len(), qt.Equals, 1)
}

func TestCronRunsJob(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a one second cron slot")
	}
	c := qt.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan struct{}, 1)
	cr := NewCron()
	c.Assert(cr.Add("@every 1s", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}), qt.IsNil)

	done := make(chan struct{})
	go func() {
		cr.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-ctx.Done():
		c.Fatal("cron job did not fire")
	}
	cancel()
	<-done
}
