package video

import "image"

// Frame is one decoded grayscale frame. The decoder allocates a fresh pixel
// buffer per emitted frame, so ownership moves with the frame through the
// pipeline queue.
type Frame struct {
	Pix           []byte
	Width, Height int
	Index         int
}

// Gray wraps the pixel buffer as an image without copying.
func (f *Frame) Gray() *image.Gray {
	return &image.Gray{
		Pix:    f.Pix,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}
