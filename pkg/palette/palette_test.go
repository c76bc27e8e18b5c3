package palette

import (
	"image"
	"image/color"
	"reflect"
	"testing"
)

func TestGrayscaleLevels(t *testing.T) {
	p := Grayscale()
	want := []byte{
		0, 0, 0,
		85, 85, 85,
		170, 170, 170,
		255, 255, 255,
	}
	if !reflect.DeepEqual(p.Bytes(), want) {
		t.Errorf("got % x, want % x", p.Bytes(), want)
	}
	if p.NumColors() != 4 {
		t.Errorf("got %d colors, want 4", p.NumColors())
	}
	if p.BitsPerPixel() != 2 {
		t.Errorf("got %d bits per pixel, want 2", p.BitsPerPixel())
	}
}

func TestIndexNearestLevel(t *testing.T) {
	p := Grayscale()
	testCases := []struct {
		gray uint8
		want byte
	}{
		{0, 0},
		{42, 0},
		{43, 1},
		{85, 1},
		{127, 1},
		{128, 2},
		{170, 2},
		{212, 2},
		{213, 3},
		{255, 3},
	}
	for _, tc := range testCases {
		got := p.Index(color.Gray{Y: tc.gray})
		if got != tc.want {
			t.Errorf("gray %d: got index %d, want %d", tc.gray, got, tc.want)
		}
	}
}

// mapping a palette color back through Index must return its own index
func TestIndexIdempotent(t *testing.T) {
	p := Grayscale()
	for i := 0; i < p.NumColors(); i++ {
		got := p.Index(p.Color(byte(i)))
		if got != byte(i) {
			t.Errorf("index %d round-tripped to %d", i, got)
		}
	}
}

func TestFromImage(t *testing.T) {
	// two-tone sample, the derived palette is padded to 4 entries
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{0, 0, 0, 0xff}
			if y >= 2 {
				c = color.RGBA{0xff, 0xff, 0xff, 0xff}
			}
			img.SetRGBA(x, y, c)
		}
	}

	p := FromImage(img)
	if p.NumColors() != 4 {
		t.Fatalf("got %d colors, want 4", p.NumColors())
	}
	if len(p.Bytes()) != 12 {
		t.Fatalf("got %d palette bytes, want 12", len(p.Bytes()))
	}
	for i := 1; i < p.NumColors(); i++ {
		if luma(p.Color(byte(i))) < luma(p.Color(byte(i-1))) {
			t.Errorf("palette not ordered dark to light: % x", p.Bytes())
		}
	}
}
