package frame

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Grid is the 8x8 pixel matrix, indexed [y][x]. The zero value is all black.
type Grid [Height][Width]Color

// Set writes c at (x, y).
func (g *Grid) Set(x, y int, c Color) error {
	if err := checkBounds(x, y); err != nil {
		return err
	}
	g[y][x] = c
	return nil
}

// At returns the colour at (x, y).
func (g *Grid) At(x, y int) (Color, error) {
	if err := checkBounds(x, y); err != nil {
		return Color{}, err
	}
	return g[y][x], nil
}

// Fill sets every cell to c.
func (g *Grid) Fill(c Color) {
	for y := range g {
		for x := range g[y] {
			g[y][x] = c
		}
	}
}

// Lit counts the non-black cells.
func (g Grid) Lit() int {
	n := 0
	for y := range g {
		for x := range g[y] {
			if !g[y][x].IsBlack() {
				n++
			}
		}
	}
	return n
}

// DefaultMask is the "A" bitmap shown by the static variant.
var DefaultMask = []string{
	"..####..",
	".##..##.",
	".##..##.",
	".##..##.",
	".######.",
	".##..##.",
	".##..##.",
	".##..##.",
}

// FromMask builds a grid from 8 rows of 8 cells. '#', 'X', 'x', '1' and '*'
// are lit with on; '.', '0', ' ' and '_' stay dark.
func FromMask(rows []string, on Color) (Grid, error) {
	var g Grid
	if len(rows) != Height {
		return g, fmt.Errorf("frame: mask needs %d rows, got %d", Height, len(rows))
	}
	for y, row := range rows {
		if len(row) != Width {
			return g, fmt.Errorf("frame: mask row %d needs %d cells, got %d", y, Width, len(row))
		}
		for x := 0; x < Width; x++ {
			switch row[x] {
			case '#', 'X', 'x', '1', '*':
				g[y][x] = on
			case '.', '0', ' ', '_':
			default:
				return g, fmt.Errorf("frame: mask row %d: unexpected cell %q", y, row[x])
			}
		}
	}
	return g, nil
}

// FromImage samples img onto the grid (nearest neighbour) and quantises each
// sample to d.
//
// Behavior:
//   - the whole image bounds are mapped onto 8x8 cells, sampling the centre
//     of each cell
//   - transparent pixels (alpha < 128) stay black
func FromImage(img image.Image, d Depth) Grid {
	var g Grid
	b := img.Bounds()
	if b.Empty() {
		return g
	}
	for y := 0; y < Height; y++ {
		sy := b.Min.Y + (2*y+1)*b.Dy()/(2*Height)
		for x := 0; x < Width; x++ {
			sx := b.Min.X + (2*x+1)*b.Dx()/(2*Width)
			px := img.At(sx, sy)
			if _, _, _, a := px.RGBA(); a < 0x8000 {
				continue
			}
			cf, ok := colorful.MakeColor(px)
			if !ok {
				continue
			}
			r, gg, bb := cf.Clamped().RGB255()
			g[y][x] = d.FromRGB255(r, gg, bb)
		}
	}
	return g
}

// Image renders g as an NRGBA preview, each cell a scale×scale square.
func (g *Grid) Image(d Depth, scale int) *image.NRGBA {
	if scale <= 0 {
		scale = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, Width*scale, Height*scale))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			r, gg, b := d.ToRGB255(g[y][x])
			c := color.NRGBA{R: r, G: gg, B: b, A: 0xFF}
			for py := y * scale; py < (y+1)*scale; py++ {
				off := py*img.Stride + x*scale*4
				for px := 0; px < scale; px++ {
					i := off + px*4
					img.Pix[i+0] = c.R
					img.Pix[i+1] = c.G
					img.Pix[i+2] = c.B
					img.Pix[i+3] = c.A
				}
			}
		}
	}
	return img
}
