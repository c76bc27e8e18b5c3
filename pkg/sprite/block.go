package sprite

import (
	"encoding/binary"
	"fmt"
)

// Block splits a sprite into a header packet and line packets. Progressive
// render is off: the device composites only once all lines arrived, which
// costs a frame of latency but never tears.
type Block struct {
	Sprite     *Sprite
	LineHeight int
}

// NewBlock wraps a sprite for transmission. lineHeight <= 0 sends the whole
// sprite as a single line group.
func NewBlock(s *Sprite, lineHeight int) (*Block, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if lineHeight <= 0 || lineHeight > s.Height {
		lineHeight = s.Height
	}
	return &Block{Sprite: s, LineHeight: lineHeight}, nil
}

// Lines is the number of line packets, the last group may be short.
func (b *Block) Lines() int {
	return (b.Sprite.Height + b.LineHeight - 1) / b.LineHeight
}

// Packets returns the header payload followed by the line payloads in
// increasing line order. The whole slice must be sent in order, without
// packets of another sprite in between.
func (b *Block) Packets() [][]byte {
	packets := make([][]byte, 0, 1+b.Lines())
	packets = append(packets, b.header())

	s := b.Sprite
	groupBytes := b.LineHeight * s.RowBytes()
	for i := 0; i < b.Lines(); i++ {
		start := i * groupBytes
		end := start + groupBytes
		if end > len(s.PixelData) {
			end = len(s.PixelData)
		}
		line := make([]byte, 2+end-start)
		binary.BigEndian.PutUint16(line, uint16(i))
		copy(line[2:], s.PixelData[start:end])
		packets = append(packets, line)
	}
	return packets
}

func (b *Block) header() []byte {
	s := b.Sprite
	h := make([]byte, 0, 11+len(s.PaletteData))
	h = binary.BigEndian.AppendUint16(h, uint16(s.Width))
	h = binary.BigEndian.AppendUint16(h, uint16(s.Height))
	h = append(h, byte(s.BitsPerPixel()), byte(s.NumColors))
	h = append(h, s.PaletteData...)
	h = binary.BigEndian.AppendUint16(h, uint16(b.LineHeight))
	h = binary.BigEndian.AppendUint16(h, uint16(b.Lines()))
	h = append(h, 0) // progressive render disabled
	return h
}

// Header is the decoded form of a header packet.
type Header struct {
	Width, Height int
	BitsPerPixel  int
	NumColors     int
	PaletteData   []byte
	LineHeight    int
	TotalLines    int
	Progressive   bool
}

// ParseHeader decodes a header payload, the device-side view of a sprite.
func ParseHeader(p []byte) (*Header, error) {
	if len(p) < 6 {
		return nil, fmt.Errorf("sprite: header too short: %d bytes", len(p))
	}
	h := &Header{
		Width:        int(binary.BigEndian.Uint16(p)),
		Height:       int(binary.BigEndian.Uint16(p[2:])),
		BitsPerPixel: int(p[4]),
		NumColors:    int(p[5]),
	}
	if len(p) != 6+h.NumColors*3+5 {
		return nil, fmt.Errorf("sprite: header is %d bytes, want %d", len(p), 6+h.NumColors*3+5)
	}
	h.PaletteData = p[6 : 6+h.NumColors*3]
	rest := p[6+h.NumColors*3:]
	h.LineHeight = int(binary.BigEndian.Uint16(rest))
	h.TotalLines = int(binary.BigEndian.Uint16(rest[2:]))
	h.Progressive = rest[4] != 0
	return h, nil
}

// Line is the decoded form of a line packet.
type Line struct {
	Index     int
	PixelData []byte
}

// ParseLine decodes a line payload.
func ParseLine(p []byte) (*Line, error) {
	if len(p) < 2 {
		return nil, fmt.Errorf("sprite: line packet too short: %d bytes", len(p))
	}
	return &Line{
		Index:     int(binary.BigEndian.Uint16(p)),
		PixelData: p[2:],
	}, nil
}
