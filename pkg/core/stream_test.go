package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/Dennisjoch/frame-video-streamer/pkg/config"
	"github.com/Dennisjoch/frame-video-streamer/pkg/encoder"
	"github.com/Dennisjoch/frame-video-streamer/pkg/sprite"
	"github.com/Dennisjoch/frame-video-streamer/pkg/transport"
	"github.com/Dennisjoch/frame-video-streamer/pkg/video"
)

type message struct {
	tag     byte
	payload []byte
}

type fakeTransport struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	sendErr     error
	connects    int
	disconnects int
	msgs        []message
	onSend      func(n int)
	gate        chan struct{} // when set, sends wait here first
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SendMessage(tag byte, payload []byte) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	if f.sendErr != nil {
		f.mu.Unlock()
		return f.sendErr
	}
	f.msgs = append(f.msgs, message{tag, append([]byte(nil), payload...)})
	n := len(f.msgs)
	cb := f.onSend
	f.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (f *fakeTransport) messages() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message(nil), f.msgs...)
}

type fakeSource struct {
	frames []*video.Frame
	pos    int
	pulls  atomic.Int32
	closed atomic.Int32
}

func (s *fakeSource) Next() (*video.Frame, error) {
	s.pulls.Add(1)
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

// alternating solid black/white frames, the classic synthetic clip
func alternatingFrames(n, w, h int) []*video.Frame {
	frames := make([]*video.Frame, n)
	for i := range frames {
		pix := make([]byte, w*h)
		if i%2 == 1 {
			for j := range pix {
				pix[j] = 255
			}
		}
		frames[i] = &video.Frame{Pix: pix, Width: w, Height: h, Index: i}
	}
	return frames
}

// parseBlocks walks the recorded messages and fails unless they form a
// clean sequence of complete sprite blocks: header first, all lines in
// increasing order, no interleaving, nothing dangling.
func parseBlocks(t *testing.T, msgs []message) []*sprite.Header {
	t.Helper()
	var headers []*sprite.Header
	i := 0
	for i < len(msgs) {
		require.Equal(t, cfg.MsgImageSpriteBlock, msgs[i].tag)
		h, err := sprite.ParseHeader(msgs[i].payload)
		require.NoError(t, err, "message %d is not a header", i)
		i++
		for l := 0; l < h.TotalLines; l++ {
			require.Less(t, i, len(msgs), "header missing line %d", l)
			line, err := sprite.ParseLine(msgs[i].payload)
			require.NoError(t, err)
			require.Equal(t, l, line.Index)
			i++
		}
		headers = append(headers, h)
	}
	return headers
}

func TestStreamEndToEnd(t *testing.T) {
	// a 2s 30fps alternating clip decimated by stride 2 arrives here
	// as 30 frames; all of them must go out, in order
	src := &fakeSource{frames: alternatingFrames(30, 4, 4)}
	tr := &fakeTransport{}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(4, 4, 0))

	require.Equal(t, StateIdle, c.State())
	require.NoError(t, c.Stream(src))
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 1, tr.connects)
	assert.Equal(t, 1, tr.disconnects)
	assert.EqualValues(t, 1, src.closed.Load())

	headers := parseBlocks(t, tr.messages())
	require.Len(t, headers, 30)
	for _, h := range headers {
		assert.Equal(t, 4, h.Width)
		assert.Equal(t, 4, h.Height)
		assert.Equal(t, 2, h.BitsPerPixel)
		assert.Len(t, h.PaletteData, 12)
		assert.False(t, h.Progressive)
	}

	// even frames are all index 0, odd frames all index 3
	msgs := tr.messages()
	for i := 0; i < 30; i++ {
		line, err := sprite.ParseLine(msgs[i*2+1].payload)
		require.NoError(t, err)
		want := byte(0x00)
		if i%2 == 1 {
			want = 0xff // four 2-bit indices of 3
		}
		for _, b := range line.PixelData {
			assert.Equal(t, want, b, "frame %d", i)
		}
	}
}

func TestStreamScanlineGroups(t *testing.T) {
	src := &fakeSource{frames: alternatingFrames(3, 8, 8)}
	tr := &fakeTransport{}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(8, 8, 2))

	require.NoError(t, c.Stream(src))

	headers := parseBlocks(t, tr.messages())
	require.Len(t, headers, 3)
	for _, h := range headers {
		assert.Equal(t, 2, h.LineHeight)
		assert.Equal(t, 4, h.TotalLines)
	}
	assert.Len(t, tr.messages(), 3*5)
}

func TestStreamBackpressure(t *testing.T) {
	src := &fakeSource{frames: alternatingFrames(20, 4, 4)}
	tr := &fakeTransport{gate: make(chan struct{})}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(4, 4, 0))

	done := make(chan error, 1)
	go func() { done <- c.Stream(src) }()

	// with the sender stalled the producer may hold the queue, one frame
	// in the consumer and one frame in hand, nothing beyond that
	time.Sleep(200 * time.Millisecond)
	pulls := src.pulls.Load()
	assert.LessOrEqual(t, pulls, int32(cfg.QueueSize+2))
	assert.GreaterOrEqual(t, pulls, int32(cfg.QueueSize))

	close(tr.gate)
	require.NoError(t, <-done)
	assert.Len(t, parseBlocks(t, tr.messages()), 20)
}

func TestStreamStopMidStream(t *testing.T) {
	src := &fakeSource{frames: alternatingFrames(100, 4, 4)}
	tr := &fakeTransport{}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(4, 4, 0))
	tr.onSend = func(n int) {
		if n == 6 {
			c.Stop()
		}
	}

	require.NoError(t, c.Stream(src))
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 1, tr.disconnects)
	assert.EqualValues(t, 1, src.closed.Load())

	// every header must be matched by its full set of lines, a stop
	// never splits a frame's packet sequence
	headers := parseBlocks(t, tr.messages())
	assert.Less(t, len(headers), 100)
	assert.NotEmpty(t, headers)
}

func TestStreamConnectFailure(t *testing.T) {
	src := &fakeSource{frames: alternatingFrames(5, 4, 4)}
	boom := errors.New("no device in range")
	tr := &fakeTransport{connectErr: boom}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(4, 4, 0))

	err := c.Stream(src)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateStopped, c.State())

	// neither loop started and the never-connected transport was not
	// disconnected
	assert.EqualValues(t, 0, src.pulls.Load())
	assert.Equal(t, 0, tr.disconnects)
	assert.Empty(t, tr.messages())
}

func TestStreamTransportFailure(t *testing.T) {
	src := &fakeSource{frames: alternatingFrames(10, 4, 4)}
	tr := &fakeTransport{sendErr: transport.ErrTransport}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(4, 4, 0))

	err := c.Stream(src)
	assert.ErrorIs(t, err, transport.ErrTransport)
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 1, tr.disconnects)
	assert.EqualValues(t, 1, src.closed.Load())
}

func TestStreamEncodeFailure(t *testing.T) {
	// a frame whose buffer disagrees with its geometry
	broken := &video.Frame{Pix: make([]byte, 3), Width: 4, Height: 4}
	src := &fakeSource{frames: []*video.Frame{broken}}
	tr := &fakeTransport{}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(4, 4, 0))

	err := c.Stream(src)
	assert.ErrorIs(t, err, encoder.ErrEncoding)
	assert.Equal(t, 1, tr.disconnects)
	assert.Empty(t, tr.messages())
}

func TestStreamEmptySource(t *testing.T) {
	src := &fakeSource{}
	tr := &fakeTransport{}
	c := New(context.Background(), tr, encoder.NewFrameEncoder(4, 4, 0))

	require.NoError(t, c.Stream(src))
	assert.Equal(t, StateStopped, c.State())
	assert.Empty(t, tr.messages())
	assert.Equal(t, 1, tr.disconnects)
}
