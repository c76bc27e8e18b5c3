package encoder

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/gift"

	"github.com/Dennisjoch/frame-video-streamer/pkg/logger"
	"github.com/Dennisjoch/frame-video-streamer/pkg/palette"
	"github.com/Dennisjoch/frame-video-streamer/pkg/sprite"
	"github.com/Dennisjoch/frame-video-streamer/pkg/video"
)

var log = logger.Log

// ErrEncoding is an internal consistency failure while resizing or
// quantizing a frame. It is session-fatal, the encode path is
// deterministic so retrying the same frame cannot help.
var ErrEncoding = errors.New("frame encoding failed")

// FrameEncoder turns raw grayscale frames into sprite blocks for one
// streaming session. Geometry, resize filter and palette are fixed at
// construction. Not safe for concurrent use.
type FrameEncoder struct {
	width, height int
	lineHeight    int
	pal           *palette.Palette
	filter        *gift.GIFT
}

func NewFrameEncoder(width, height, lineHeight int) *FrameEncoder {
	return &FrameEncoder{
		width:      width,
		height:     height,
		lineHeight: lineHeight,
		pal:        palette.Grayscale(),
		// nearest-neighbor is good enough, the source is already
		// resolution-bound and it keeps the per-frame cost low
		filter: gift.New(gift.Resize(width, height, gift.NearestNeighborResampling)),
	}
}

// NewAdaptiveFrameEncoder defers the palette to the first frame: it is
// derived once by median cut and then reused for the whole session.
func NewAdaptiveFrameEncoder(width, height, lineHeight int) *FrameEncoder {
	e := NewFrameEncoder(width, height, lineHeight)
	e.pal = nil
	return e
}

// Palette returns the session palette, nil until the first adaptive frame.
func (e *FrameEncoder) Palette() *palette.Palette {
	return e.pal
}

// EncodeFrame resizes, quantizes and packetizes one frame.
func (e *FrameEncoder) EncodeFrame(f *video.Frame) (*sprite.Block, error) {
	if len(f.Pix) != f.Width*f.Height {
		return nil, fmt.Errorf("%w: frame %d has %d samples, want %dx%d", ErrEncoding, f.Index, len(f.Pix), f.Width, f.Height)
	}

	// resize and promote to RGB in one draw; the wire format fixes the
	// palette to RGB triples even for a gray source
	dst := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	e.filter.Draw(dst, f.Gray())

	if e.pal == nil {
		e.pal = palette.FromImage(dst)
		log.Debugf("derived session palette from frame %d: % x", f.Index, e.pal.Bytes())
	}

	s := sprite.Quantize(dst, e.pal)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", ErrEncoding, f.Index, err)
	}
	block, err := sprite.NewBlock(s, e.lineHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", ErrEncoding, f.Index, err)
	}
	return block, nil
}
