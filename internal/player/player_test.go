package player

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"senseled/internal/anim"
	"senseled/internal/device"
	"senseled/internal/display"
	"senseled/internal/frame"
	"senseled/internal/scheduler"
)

// syncScheduler delivers ticks back to back without waiting.
type syncScheduler struct {
	// onTick runs before each callback.
	onTick func(tick int)
}

func (s syncScheduler) Every(ctx context.Context, _ time.Duration, fn func(int) error) error {
	for tick := 0; ; tick++ {
		if s.onTick != nil {
			s.onTick(tick)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(tick); err != nil {
			if errors.Is(err, scheduler.ErrStop) {
				return nil
			}
			return err
		}
	}
}

// blockingScheduler waits for cancellation without ever ticking.
type blockingScheduler struct {
	started chan struct{}
}

func (s blockingScheduler) Every(ctx context.Context, _ time.Duration, _ func(int) error) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

// flakySink fails WriteFrame on one tick.
type flakySink struct {
	failAt  int
	writes  int
	cleared bool
}

func (s *flakySink) WriteFrame(frame.Buffer) error {
	if s.writes == s.failAt {
		return &device.TransportError{Addr: device.DefaultAddr, Len: frame.Size, Err: errors.New("nack")}
	}
	s.writes++
	return nil
}

func (s *flakySink) Clear() error {
	s.cleared = true
	return nil
}

func newPlayer(sched scheduler.Scheduler, ticks int) (*Player, *device.Recorder) {
	rec := device.NewRecorder(0)
	enc := frame.Encoder{Depth: frame.Depth565}
	m := display.New(rec, enc)
	return New(anim.NewDriver(enc), m, sched, time.Millisecond, ticks), rec
}

func TestPlayRunsBudgetThenClears(t *testing.T) {
	c := qt.New(t)

	p, rec := newPlayer(syncScheduler{}, 30)
	st, err := p.Play(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(st.Frames, qt.Equals, 30)

	frames := rec.Frames()
	c.Assert(frames, qt.HasLen, 31)

	// Tick 0 lights (1,0).
	first := frames[0]
	c.Assert(first[1+1], qt.Equals, colorOf(0).R)
	c.Assert(first[65+1], qt.Equals, colorOf(0).G)

	blank := frame.Clear()
	c.Assert(frames[30], qt.DeepEquals, blank.Bytes())
	c.Assert(p.Running(), qt.IsFalse)
}

func TestPlayRestartsFromOrigin(t *testing.T) {
	c := qt.New(t)

	p, rec := newPlayer(syncScheduler{}, 5)
	_, err := p.Play(context.Background())
	c.Assert(err, qt.IsNil)
	_, err = p.Play(context.Background())
	c.Assert(err, qt.IsNil)

	frames := rec.Frames()
	c.Assert(frames, qt.HasLen, 12)
	c.Assert(frames[6], qt.DeepEquals, frames[0])
}

func TestPlayWithTicker(t *testing.T) {
	c := qt.New(t)

	p, rec := newPlayer(scheduler.Ticker{}, 10)
	st, err := p.Play(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(st.Frames, qt.Equals, 10)
	c.Assert(rec.Len(), qt.Equals, 11)
}

func TestPlayWriteErrorStillClears(t *testing.T) {
	c := qt.New(t)

	sink := &flakySink{failAt: 3}
	p := New(anim.NewDriver(frame.Default), sink, syncScheduler{}, time.Millisecond, 100)

	st, err := p.Play(context.Background())
	c.Assert(err, qt.ErrorMatches, `player: tick 3: device: write 193 bytes to 0x46: nack`)
	var te *device.TransportError
	c.Assert(errors.As(err, &te), qt.IsTrue)
	c.Assert(st.Frames, qt.Equals, 3)
	c.Assert(sink.cleared, qt.IsTrue)
}

func TestPlayCancelIsNotAnError(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := syncScheduler{onTick: func(tick int) {
		if tick == 7 {
			cancel()
		}
	}}
	p, rec := newPlayer(sched, 1000)
	st, err := p.Play(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(st.Frames, qt.Equals, 7)
	c.Assert(rec.Len(), qt.Equals, 8)
}

func TestPlayClearErrorJoined(t *testing.T) {
	c := qt.New(t)

	p, rec := newPlayer(syncScheduler{onTick: nil}, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.FailWith(errors.New("bus gone"))

	_, err := p.Play(ctx)
	c.Assert(err, qt.ErrorMatches, `(?s)player: final clear: .*bus gone`)
}

func TestPlayBusy(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	sched := blockingScheduler{started: make(chan struct{})}
	p, _ := newPlayer(sched, 10)

	done := make(chan error, 1)
	go func() {
		_, err := p.Play(ctx)
		done <- err
	}()
	<-sched.started

	c.Assert(p.Running(), qt.IsTrue)
	_, err := p.Play(context.Background())
	c.Assert(err, qt.Equals, ErrBusy)

	cancel()
	c.Assert(<-done, qt.IsNil)
	c.Assert(p.Running(), qt.IsFalse)
}

func TestStart(t *testing.T) {
	c := qt.New(t)

	p, rec := newPlayer(syncScheduler{}, 4)
	results, err := p.Start(context.Background())
	c.Assert(err, qt.IsNil)

	res := <-results
	c.Assert(res.Err, qt.IsNil)
	c.Assert(res.Stats.Frames, qt.Equals, 4)
	c.Assert(p.Running(), qt.IsFalse)
	c.Assert(rec.Len(), qt.Equals, 5)

	_, ok := <-results
	c.Assert(ok, qt.IsFalse)
}

func TestStartBusy(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	sched := blockingScheduler{started: make(chan struct{})}
	p, _ := newPlayer(sched, 10)

	results, err := p.Start(ctx)
	c.Assert(err, qt.IsNil)
	<-sched.started

	_, err = p.Start(ctx)
	c.Assert(err, qt.Equals, ErrBusy)

	cancel()
	c.Assert((<-results).Err, qt.IsNil)
}

func TestExclusiveHoldsOffSessions(t *testing.T) {
	c := qt.New(t)

	p, rec := newPlayer(syncScheduler{}, 3)

	started := make(chan error, 1)
	var results <-chan Result
	err := p.Exclusive(func() error {
		go func() {
			var err error
			results, err = p.Start(context.Background())
			started <- err
		}()
		time.Sleep(20 * time.Millisecond)
		c.Check(p.Running(), qt.IsFalse)
		return rec.Write([]byte{0xAA})
	})
	c.Assert(err, qt.IsNil)
	c.Assert(<-started, qt.IsNil)
	c.Assert((<-results).Err, qt.IsNil)

	// The edit lands before the first animation frame.
	frames := rec.Frames()
	c.Assert(frames, qt.HasLen, 5)
	c.Assert(frames[0], qt.DeepEquals, []byte{0xAA})
}

func TestExclusiveBusy(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	sched := blockingScheduler{started: make(chan struct{})}
	p, _ := newPlayer(sched, 10)

	results, err := p.Start(ctx)
	c.Assert(err, qt.IsNil)
	<-sched.started

	called := false
	err = p.Exclusive(func() error {
		called = true
		return nil
	})
	c.Assert(err, qt.Equals, ErrBusy)
	c.Assert(called, qt.IsFalse)

	cancel()
	<-results
	c.Assert(p.Exclusive(func() error { return nil }), qt.IsNil)
}

func TestHold(t *testing.T) {
	c := qt.New(t)

	rec := device.NewRecorder(0)
	m := display.New(rec, frame.Default)
	g, err := frame.FromMask(frame.DefaultMask, frame.Color{G: 15, B: 15})
	c.Assert(err, qt.IsNil)

	c.Assert(Hold(context.Background(), m, g, 0), qt.IsNil)
	frames := rec.Frames()
	c.Assert(frames, qt.HasLen, 2)
	want := frame.EncodeFull(g)
	c.Assert(frames[0], qt.DeepEquals, want.Bytes())

	// A cancelled context cuts the hold short.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	c.Assert(Hold(ctx, m, g, time.Hour), qt.IsNil)
	c.Assert(time.Since(start) < time.Second, qt.IsTrue)
	c.Assert(rec.Len(), qt.Equals, 4)
}

// colorOf is the oscillator colour as written by a 565 encoder.
func colorOf(tick int) frame.Color {
	return frame.Depth565.Mask(anim.ColorAt(tick))
}
