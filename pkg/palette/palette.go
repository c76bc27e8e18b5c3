package palette

import (
	"image"
	"image/color"
	"sort"

	"github.com/ericpauley/go-quantize/quantize"

	cfg "github.com/Dennisjoch/frame-video-streamer/pkg/config"
)

// Palette is an ordered set of exactly four RGB triples. It is built once
// per streaming session and shared by reference; it never changes after
// construction.
type Palette struct {
	levels [cfg.PaletteColors]color.RGBA
	wire   []byte
}

// Grayscale returns the fixed 4-level grayscale palette: black, two mid
// grays and white, evenly spaced for the best information/size trade-off
// at 2 bits per pixel.
func Grayscale() *Palette {
	p := &Palette{}
	for i := range p.levels {
		v := uint8(i * 255 / (cfg.PaletteColors - 1))
		p.levels[i] = color.RGBA{v, v, v, 0xff}
	}
	p.wire = pack(p.levels)
	return p
}

// FromImage derives a session palette from a sample frame using median cut
// quantization. The result still has exactly four colors, ordered dark to
// light so index 0 stays the darkest level.
func FromImage(img image.Image) *Palette {
	q := quantize.MedianCutQuantizer{}
	colors := q.Quantize(make(color.Palette, 0, cfg.PaletteColors), img)
	if len(colors) == 0 {
		return Grayscale()
	}

	p := &Palette{}
	for i := range p.levels {
		// flat sample images can yield fewer than 4 colors,
		// repeat the last one to keep the palette full
		c := colors[min(i, len(colors)-1)]
		r, g, b, _ := c.RGBA()
		p.levels[i] = color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff}
	}
	sort.Slice(p.levels[:], func(i, j int) bool {
		return luma(p.levels[i]) < luma(p.levels[j])
	})
	p.wire = pack(p.levels)
	return p
}

// Bytes returns the palette in wire order, 3 bytes per color. Callers must
// treat the slice as read-only.
func (p *Palette) Bytes() []byte {
	return p.wire
}

func (p *Palette) NumColors() int {
	return len(p.levels)
}

// BitsPerPixel is the index width on the wire, ceil(log2(NumColors)).
func (p *Palette) BitsPerPixel() int {
	bits := 1
	for 1<<bits < len(p.levels) {
		bits++
	}
	return bits
}

func (p *Palette) Color(i byte) color.RGBA {
	return p.levels[int(i)%len(p.levels)]
}

// Index returns the palette entry closest to c by squared RGB distance.
// Deterministic: on a tie the lower index wins.
func (p *Palette) Index(c color.Color) byte {
	r, g, b, _ := c.RGBA()
	best, bestSum := 0, uint32(1<<32-1)
	for i, l := range p.levels {
		lr, lg, lb, _ := l.RGBA()
		sum := sqDiff(r, lr) + sqDiff(g, lg) + sqDiff(b, lb)
		if sum < bestSum {
			best, bestSum = i, sum
		}
	}
	return byte(best)
}

// Copied from color.sqDiff
func sqDiff(x, y uint32) uint32 {
	d := x - y
	return (d * d) >> 2
}

func luma(c color.RGBA) int {
	return 299*int(c.R) + 587*int(c.G) + 114*int(c.B)
}

func pack(levels [cfg.PaletteColors]color.RGBA) []byte {
	wire := make([]byte, 0, len(levels)*3)
	for _, c := range levels {
		wire = append(wire, c.R, c.G, c.B)
	}
	return wire
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
