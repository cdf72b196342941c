// Package player is the host side of the animation: it wires an
// anim.Driver to a frame sink through a Scheduler, enforces the tick budget
// and always blanks the display at the end of a session.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"senseled/internal/anim"
	"senseled/internal/frame"
	appLog "senseled/internal/log"
	"senseled/internal/scheduler"
)

// Defaults for a session.
const (
	DefaultPeriod = 50 * time.Millisecond
	DefaultTicks  = 1000

	// reportEvery is how often frame timing is logged at DEBUG.
	reportEvery = 25
)

// ErrBusy is returned by Play while another session is running.
var ErrBusy = errors.New("player: session already running")

// Sink receives encoded frames. *display.Matrix implements it.
type Sink interface {
	WriteFrame(buf frame.Buffer) error
	Clear() error
}

// Canvas shows whole grids. *display.Matrix implements it.
type Canvas interface {
	Show(g frame.Grid) error
	Clear() error
}

// Player runs animation sessions. Only one session runs at a time, so the
// driver's cursor is never stepped concurrently.
type Player struct {
	driver *anim.Driver
	sink   Sink
	sched  scheduler.Scheduler
	period time.Duration
	ticks  int

	// mu orders session starts against Exclusive callers.
	mu      sync.Mutex
	running atomic.Bool
}

// New returns a player. period <= 0 and ticks <= 0 select the defaults.
func New(d *anim.Driver, sink Sink, sched scheduler.Scheduler, period time.Duration, ticks int) *Player {
	if period <= 0 {
		period = DefaultPeriod
	}
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	return &Player{
		driver: d,
		sink:   sink,
		sched:  sched,
		period: period,
		ticks:  ticks,
	}
}

// Running reports whether a session is in progress.
func (p *Player) Running() bool { return p.running.Load() }

// Stats summarises one session.
type Stats struct {
	Frames  int
	Elapsed time.Duration
}

// Play runs one session from the start position: one Step per tick until
// the tick budget is spent, the context is done or a write fails. The
// display is cleared afterwards in every case. Cancellation is a normal
// stop and is not reported as an error; a failed write is, joined with any
// error from the final clear.
func (p *Player) Play(ctx context.Context) (Stats, error) {
	if !p.acquire() {
		return Stats{}, ErrBusy
	}
	defer p.running.Store(false)
	return p.run(ctx)
}

// Result is the outcome of a session started with Start.
type Result struct {
	Stats Stats
	Err   error
}

// Start runs a session in a new goroutine. It fails with ErrBusy without
// starting anything if a session is running. The channel yields exactly one
// Result and is closed; Running is already false when the Result arrives.
func (p *Player) Start(ctx context.Context) (<-chan Result, error) {
	if !p.acquire() {
		return nil, ErrBusy
	}
	ch := make(chan Result, 1)
	go func() {
		st, err := p.run(ctx)
		p.running.Store(false)
		ch <- Result{Stats: st, Err: err}
		close(ch)
	}()
	return ch, nil
}

// Exclusive runs fn while no session can start, so writes made by fn are
// never interleaved with animation frames. It returns ErrBusy without
// calling fn if a session is running. A Play or Start issued meanwhile
// waits for fn to return.
func (p *Player) Exclusive(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running.Load() {
		return ErrBusy
	}
	return fn()
}

func (p *Player) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running.CompareAndSwap(false, true)
}

func (p *Player) run(ctx context.Context) (Stats, error) {
	p.driver.Reset()

	var st Stats
	start := time.Now()
	appLog.Info("animation session start", "ticks", p.ticks, "period", p.period.String())

	err := p.sched.Every(ctx, p.period, func(tick int) error {
		t0 := time.Now()
		buf, err := p.driver.Step(tick)
		if err != nil {
			return fmt.Errorf("player: step %d: %w", tick, err)
		}
		if err := p.sink.WriteFrame(buf); err != nil {
			return fmt.Errorf("player: tick %d: %w", tick, err)
		}
		st.Frames++

		if st.Frames%reportEvery == 0 {
			appLog.Debug("frame", "tick", tick, "cursor", p.driver.Cursor().String(), "took", time.Since(t0).String())
		}
		if tick+1 >= p.ticks {
			return scheduler.ErrStop
		}
		return nil
	})
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		appLog.Info("animation session cancelled", "frames", st.Frames)
		err = nil
	}

	if cerr := p.sink.Clear(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("player: final clear: %w", cerr))
	}
	st.Elapsed = time.Since(start)

	if err != nil {
		appLog.Error("animation session failed", err, "frames", st.Frames)
		return st, err
	}
	appLog.Info("animation session done", "frames", st.Frames, "elapsed", st.Elapsed.String())
	return st, nil
}

// Hold shows g, waits for hold (or until ctx is done) and clears. hold <= 0
// clears right after the write.
func Hold(ctx context.Context, c Canvas, g frame.Grid, hold time.Duration) error {
	if err := c.Show(g); err != nil {
		// Still try to leave the display dark.
		return errors.Join(err, c.Clear())
	}

	if hold > 0 {
		t := time.NewTimer(hold)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}

	return c.Clear()
}
