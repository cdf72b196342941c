// Package frame encodes 8x8 RGB grids into the 193-byte write used by the
// LED matrix controller.
//
// Wire format (planar layout):
//
//	byte 0        command/register byte, always 0x00
//	bytes 1..64   red plane
//	bytes 65..128 green plane
//	bytes 129..192 blue plane
//
// Each plane is row-major: plane[y*8+x].
package frame

import (
	"errors"
	"fmt"
)

// Matrix geometry.
const (
	Width     = 8
	Height    = 8
	PlaneSize = Width * Height // 64 bytes per channel
	Size      = 1 + 3*PlaneSize

	// Command is the leading register byte of every frame.
	Command = 0x00
)

// Plane offsets for LayoutPlanar.
const (
	redOffset   = 1
	greenOffset = redOffset + PlaneSize
	blueOffset  = greenOffset + PlaneSize
)

// ErrOutOfBounds is returned (wrapped in *BoundsError) for coordinates
// outside 0..7.
var ErrOutOfBounds = errors.New("frame: coordinate out of bounds")

// BoundsError reports the offending coordinate.
type BoundsError struct {
	X, Y int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("frame: coordinate (%d,%d) out of bounds (0..%d, 0..%d)", e.X, e.Y, Width-1, Height-1)
}

func (e *BoundsError) Unwrap() error { return ErrOutOfBounds }

// checkBounds rejects anything outside the grid before an offset is computed.
func checkBounds(x, y int) error {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return &BoundsError{X: x, Y: y}
	}
	return nil
}

// Buffer is one complete frame. It is a fixed-size array so a partial frame
// cannot be built.
type Buffer [Size]byte

// Bytes returns the frame as a slice backed by b.
func (b *Buffer) Bytes() []byte { return b[:] }

// Layout selects where each channel of a cell lands in the buffer.
type Layout int

const (
	// LayoutPlanar writes three 64-byte planes (R, G, B).
	LayoutPlanar Layout = iota
	// LayoutRowInterleaved writes 24 bytes per row: 8 R, 8 G, 8 B.
	// This is what the Sense HAT firmware expects on real hardware.
	LayoutRowInterleaved
)

func (l Layout) String() string {
	switch l {
	case LayoutPlanar:
		return "planar"
	case LayoutRowInterleaved:
		return "row"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout accepts "planar" and "row".
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "planar":
		return LayoutPlanar, nil
	case "row", "interleaved":
		return LayoutRowInterleaved, nil
	default:
		return LayoutPlanar, fmt.Errorf("frame: unknown layout %q", s)
	}
}

// Offsets returns the byte offsets of the red, green and blue values of
// cell (x, y).
func (l Layout) Offsets(x, y int) (r, g, b int, err error) {
	if err := checkBounds(x, y); err != nil {
		return 0, 0, 0, err
	}
	r, g, b = l.offsets(x, y)
	return r, g, b, nil
}

// offsets is Offsets for coordinates already known to be on the grid.
func (l Layout) offsets(x, y int) (r, g, b int) {
	switch l {
	case LayoutRowInterleaved:
		r = 1 + y*3*Width + x
		return r, r + Width, r + 2*Width
	default:
		i := y*Width + x
		return redOffset + i, greenOffset + i, blueOffset + i
	}
}

// Encoder carries the per-frame encoding options. The zero value encodes
// full 8-bit channels in the planar layout.
type Encoder struct {
	Depth  Depth
	Layout Layout
}

// Default is the encoder used by the package-level helpers.
var Default = Encoder{}

// Clear returns the all-zero frame. Every call returns a fresh copy.
func (e Encoder) Clear() Buffer {
	var b Buffer
	b[0] = Command
	return b
}

// EncodeFull encodes every cell of g.
func (e Encoder) EncodeFull(g Grid) Buffer {
	buf := e.Clear()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			// Grid 범위 안이므로 검사 없이 offset 을 계산한다.
			ri, gi, bi := e.Layout.offsets(x, y)
			e.set(&buf, ri, gi, bi, g[y][x])
		}
	}
	return buf
}

// EncodeSingle encodes one lit pixel on an otherwise dark frame.
func (e Encoder) EncodeSingle(x, y int, c Color) (Buffer, error) {
	return e.EncodeSingleOn(e.Clear(), x, y, c)
}

// EncodeSingleOn overlays one pixel onto base. base is passed by value and
// left untouched.
func (e Encoder) EncodeSingleOn(base Buffer, x, y int, c Color) (Buffer, error) {
	if err := e.put(&base, x, y, c); err != nil {
		return Buffer{}, err
	}
	return base, nil
}

func (e Encoder) put(buf *Buffer, x, y int, c Color) error {
	ri, gi, bi, err := e.Layout.Offsets(x, y)
	if err != nil {
		return err
	}
	e.set(buf, ri, gi, bi, c)
	return nil
}

func (e Encoder) set(buf *Buffer, ri, gi, bi int, c Color) {
	c = e.Depth.Mask(c)
	buf[ri] = c.R
	buf[gi] = c.G
	buf[bi] = c.B
}

// Clear returns the all-zero frame.
func Clear() Buffer { return Default.Clear() }

// EncodeFull encodes g with the default encoder.
func EncodeFull(g Grid) Buffer { return Default.EncodeFull(g) }

// EncodeSingle encodes a single pixel with the default encoder.
func EncodeSingle(x, y int, c Color) (Buffer, error) { return Default.EncodeSingle(x, y, c) }
