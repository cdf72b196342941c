// Package display keeps an editable 8x8 canvas in front of a device
// Transport. It is the surface used by the CLI, the web editor and the
// animation player, and it satisfies TinyGo's drivers.Displayer.
package display

import (
	"image/color"
	"sync"

	"tinygo.org/x/drivers"

	"senseled/internal/device"
	"senseled/internal/frame"
)

// Matrix is a canvas plus the transport it flushes to. All methods are
// safe for concurrent use.
type Matrix struct {
	mu   sync.Mutex
	enc  frame.Encoder
	tr   device.Transport
	grid frame.Grid
	last frame.Buffer

	// err is the last error seen by SetPixel through the Displayer
	// interface, which cannot return one.
	err error
}

var _ drivers.Displayer = (*Matrix)(nil)

// New returns a dark canvas writing through tr.
func New(tr device.Transport, enc frame.Encoder) *Matrix {
	return &Matrix{
		enc:  enc,
		tr:   tr,
		last: enc.Clear(),
	}
}

// Encoder returns the encoder frames are built with.
func (m *Matrix) Encoder() frame.Encoder { return m.enc }

// SetCell sets one cell of the canvas. It does not write to the device;
// call Flush.
func (m *Matrix) SetCell(x, y int, c frame.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grid.Set(x, y, m.enc.Depth.Mask(c))
}

// Cell returns one cell of the canvas.
func (m *Matrix) Cell(x, y int) (frame.Color, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grid.At(x, y)
}

// Fill sets every cell of the canvas.
func (m *Matrix) Fill(c frame.Color) {
	m.mu.Lock()
	m.grid.Fill(m.enc.Depth.Mask(c))
	m.mu.Unlock()
}

// Snapshot returns a copy of the canvas.
func (m *Matrix) Snapshot() frame.Grid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grid
}

// LastFrame returns the last frame written to the device.
func (m *Matrix) LastFrame() frame.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Flush encodes the whole canvas and writes it.
func (m *Matrix) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(m.enc.EncodeFull(m.grid))
}

// Show replaces the canvas with g and writes it.
func (m *Matrix) Show(g frame.Grid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for y := range g {
		for x := range g[y] {
			g[y][x] = m.enc.Depth.Mask(g[y][x])
		}
	}
	m.grid = g
	return m.writeLocked(m.enc.EncodeFull(m.grid))
}

// Clear blanks the canvas and the device.
func (m *Matrix) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grid = frame.Grid{}
	return m.writeLocked(m.enc.Clear())
}

// WriteFrame sends an already encoded frame. The canvas is left alone: a
// pre-encoded frame may come from a different drawing model (the animation
// only lights one pixel per frame).
func (m *Matrix) WriteFrame(buf frame.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(buf)
}

func (m *Matrix) writeLocked(buf frame.Buffer) error {
	if err := m.tr.Write(buf.Bytes()); err != nil {
		return err
	}
	m.last = buf
	return nil
}

// Size implements drivers.Displayer.
func (m *Matrix) Size() (x, y int16) {
	return frame.Width, frame.Height
}

// SetPixel implements drivers.Displayer. Colours are quantised to the
// encoder depth; out-of-range coordinates are recorded and reported by the next Display.
func (m *Matrix) SetPixel(x, y int16, c color.RGBA) {
	col := m.enc.Depth.FromRGB255(c.R, c.G, c.B)
	if err := m.SetCell(int(x), int(y), col); err != nil {
		m.mu.Lock()
		m.err = err
		m.mu.Unlock()
	}
}

// Display implements drivers.Displayer by flushing the canvas.
func (m *Matrix) Display() error {
	m.mu.Lock()
	err := m.err
	m.err = nil
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Flush()
}
