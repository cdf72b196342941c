// Package anim drives the perimeter-walking cursor animation: one lit pixel
// moves clockwise around the outer ring of the matrix while its colour
// cycles through three detuned sine oscillators.
package anim

import (
	"fmt"
	"math"

	"senseled/internal/frame"
)

// Heading is the edge the cursor is currently travelling along.
type Heading int

const (
	Right Heading = iota
	Down
	Left
	Up
)

func (h Heading) String() string {
	switch h {
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("Heading(%d)", int(h))
	}
}

// next returns the heading that follows h clockwise.
func (h Heading) next() Heading { return (h + 1) % 4 }

// delta is the one-cell move for h.
func (h Heading) delta() (dx, dy int) {
	switch h {
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	default:
		return 0, -1
	}
}

// CursorState is the position of the lit pixel and its heading.
type CursorState struct {
	X, Y    int
	Heading Heading
}

func (c CursorState) String() string {
	return fmt.Sprintf("(%d,%d %s)", c.X, c.Y, c.Heading)
}

// blocked reports whether the cursor stands on the edge its heading runs into.
func (c CursorState) blocked() bool {
	switch c.Heading {
	case Right:
		return c.X == frame.Width-1
	case Down:
		return c.Y == frame.Height-1
	case Left:
		return c.X == 0
	default:
		return c.Y == 0
	}
}

// turn advances the heading until the next move stays on the grid. A corner
// can need more than one turn, so the check is re-evaluated after each one.
func (c CursorState) turn() CursorState {
	for i := 0; i < 4 && c.blocked(); i++ {
		c.Heading = c.Heading.next()
	}
	return c
}

// Oscillator frequencies (radians per tick) and channel scales. The scales
// map sin()+1 (0..2) onto 5/6/5-bit channels.
const (
	FreqRed   = 1.1234
	FreqGreen = 0.9876
	FreqBlue  = 1.3780

	scaleRed   = 15.5
	scaleGreen = 31.5
	scaleBlue  = 15.5
)

// ColorAt returns the oscillator colour for tick.
func ColorAt(tick int) frame.Color {
	t := float64(tick)
	return frame.Color{
		R: uint8(scaleRed * (math.Sin(t*FreqRed) + 1.0)),
		G: uint8(scaleGreen * (math.Sin(t*FreqGreen) + 1.0)),
		B: uint8(scaleBlue * (math.Sin(t*FreqBlue) + 1.0)),
	}
}

// Driver owns the cursor. It is not safe for concurrent use; the host
// calls Step from one goroutine at a time.
type Driver struct {
	enc    frame.Encoder
	cursor CursorState
}

// NewDriver returns a driver at (0,0) heading Right. Frames are encoded with
// enc; the oscillator output is 5/6/5-bit, so enc.Depth only matters for
// masking.
func NewDriver(enc frame.Encoder) *Driver {
	return &Driver{enc: enc}
}

// Reset moves the cursor back to (0,0) heading Right.
func (d *Driver) Reset() {
	d.cursor = CursorState{}
}

// Cursor reports the position and the heading the next move will take.
func (d *Driver) Cursor() CursorState {
	return d.cursor.turn()
}

// Advance moves the cursor one tick and returns the new state.
//
// Order per tick:
//   - if the heading runs into the edge, turn clockwise (possibly twice)
//   - move one cell along the (possibly new) heading
//
// So the tick that reaches a corner does not turn; the following tick turns
// and takes the first step of the new edge.
func (d *Driver) Advance() CursorState {
	c := d.cursor.turn()
	dx, dy := c.Heading.delta()
	c.X += dx
	c.Y += dy
	d.cursor = c
	return c
}

// Step advances the cursor, computes the colour for tick and returns the
// single-pixel frame.
func (d *Driver) Step(tick int) (frame.Buffer, error) {
	c := d.Advance()
	return d.enc.EncodeSingle(c.X, c.Y, ColorAt(tick))
}
