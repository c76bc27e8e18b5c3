/*
Package sprite implements the image sprite block wire format understood by
the device-side sprite player.

One still image travels as a header packet followed by one packet per
scanline group, all tagged with the same message id. The header carries the
sprite geometry, the index width in bits per pixel, the palette as packed
RGB triples and the total number of line packets to expect. Each line
packet carries its line group index and the packed pixel rows for that
group. Pixel indices are packed most-significant-bit first in row-major
order and every row is padded to a byte boundary, so a line group is always
a whole number of bytes.
*/
package sprite

import (
	"fmt"
	"image"

	"github.com/Dennisjoch/frame-video-streamer/pkg/palette"
)

// Sprite is one quantized still image: per-pixel indices into a small
// palette, already packed for the wire.
type Sprite struct {
	Width, Height int
	NumColors     int
	PaletteData   []byte
	PixelData     []byte
}

// Quantize maps every pixel of img to its nearest palette entry and packs
// the indices. The palette is shared by reference, never copied or rebuilt.
func Quantize(img image.Image, pal *palette.Palette) *Sprite {
	b := img.Bounds()
	s := &Sprite{
		Width:       b.Dx(),
		Height:      b.Dy(),
		NumColors:   pal.NumColors(),
		PaletteData: pal.Bytes(),
	}
	bpp := pal.BitsPerPixel()
	s.PixelData = make([]byte, s.RowBytes()*s.Height)
	for y := 0; y < s.Height; y++ {
		row := s.PixelData[y*s.RowBytes():]
		for x := 0; x < s.Width; x++ {
			idx := pal.Index(img.At(b.Min.X+x, b.Min.Y+y))
			shift := uint(8 - bpp - x*bpp%8)
			row[x*bpp/8] |= idx << shift
		}
	}
	return s
}

// BitsPerPixel is ceil(log2(NumColors)).
func (s *Sprite) BitsPerPixel() int {
	bits := 1
	for 1<<bits < s.NumColors {
		bits++
	}
	return bits
}

// RowBytes is the packed size of one pixel row.
func (s *Sprite) RowBytes() int {
	return (s.Width*s.BitsPerPixel() + 7) / 8
}

// PixelIndex unpacks the palette index at (x, y).
func (s *Sprite) PixelIndex(x, y int) byte {
	bpp := s.BitsPerPixel()
	pos := x * bpp
	shift := uint(8 - bpp - pos%8)
	mask := byte(1<<bpp - 1)
	return s.PixelData[y*s.RowBytes()+pos/8] >> shift & mask
}

// Validate checks the packed data against the sprite geometry.
func (s *Sprite) Validate() error {
	if want := s.RowBytes() * s.Height; len(s.PixelData) != want {
		return fmt.Errorf("sprite: pixel data is %d bytes, want %d for %dx%d", len(s.PixelData), want, s.Width, s.Height)
	}
	if len(s.PaletteData) != s.NumColors*3 {
		return fmt.Errorf("sprite: palette data is %d bytes, want %d", len(s.PaletteData), s.NumColors*3)
	}
	return nil
}
