package frame

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is one cell. Channel widths depend on the Depth used to encode it.
type Color struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// Black is the zero colour.
var Black = Color{}

// RGB565 packs c into a 16-bit 5/6/5 value. Channels are masked first.
func (c Color) RGB565() uint16 {
	return uint16(c.R&0x1F)<<11 | uint16(c.G&0x3F)<<5 | uint16(c.B&0x1F)
}

// IsBlack reports whether every channel is zero.
func (c Color) IsBlack() bool { return c == Black }

// Depth is the channel width used for a frame.
type Depth int

const (
	// Depth888 writes full 8-bit channel values.
	Depth888 Depth = iota
	// Depth565 masks red/blue to 5 bits and green to 6 bits.
	Depth565
)

func (d Depth) String() string {
	switch d {
	case Depth888:
		return "rgb888"
	case Depth565:
		return "rgb565"
	default:
		return fmt.Sprintf("Depth(%d)", int(d))
	}
}

// ParseDepth accepts "rgb565"/"565" and "rgb888"/"888".
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(s) {
	case "", "rgb888", "888":
		return Depth888, nil
	case "rgb565", "565":
		return Depth565, nil
	default:
		return Depth888, fmt.Errorf("frame: unknown depth %q", s)
	}
}

// Mask clamps c to the channel widths of d.
func (d Depth) Mask(c Color) Color {
	if d != Depth565 {
		return c
	}
	return Color{R: c.R & 0x1F, G: c.G & 0x3F, B: c.B & 0x1F}
}

// Max returns the brightest value each channel can hold.
func (d Depth) Max() Color {
	if d == Depth565 {
		return Color{R: 0x1F, G: 0x3F, B: 0x1F}
	}
	return Color{R: 0xFF, G: 0xFF, B: 0xFF}
}

// FromRGB255 quantises an 8-bit colour to d.
func (d Depth) FromRGB255(r, g, b uint8) Color {
	if d == Depth565 {
		return Color{R: r >> 3, G: g >> 2, B: b >> 3}
	}
	return Color{R: r, G: g, B: b}
}

// ToRGB255 expands c back to 8-bit channels, replicating the high bits into
// the low bits for 565.
func (d Depth) ToRGB255(c Color) (r, g, b uint8) {
	if d != Depth565 {
		return c.R, c.G, c.B
	}
	c = d.Mask(c)
	return c.R<<3 | c.R>>2, c.G<<2 | c.G>>4, c.B<<3 | c.B>>2
}

// ParseColor parses "#rrggbb" (or "#rgb") and quantises it to d.
func ParseColor(s string, d Depth) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	cf, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("frame: parse color %q: %w", s, err)
	}
	r, g, b := cf.RGB255()
	return d.FromRGB255(r, g, b), nil
}

// Hex formats c as "#rrggbb" after expanding it from d.
func (d Depth) Hex(c Color) string {
	r, g, b := d.ToRGB255(c)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
