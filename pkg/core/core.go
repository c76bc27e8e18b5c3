package core

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Dennisjoch/frame-video-streamer/pkg/encoder"
	"github.com/Dennisjoch/frame-video-streamer/pkg/logger"
	"github.com/Dennisjoch/frame-video-streamer/pkg/transport"
	"github.com/Dennisjoch/frame-video-streamer/pkg/video"
)

var log = logger.Log

// State of the streaming session.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// FrameSource is the producer side of the pipeline, satisfied by
// *video.Source.
type FrameSource interface {
	Next() (*video.Frame, error)
	Close() error
}

// Core owns one streaming session: the transport connection for its whole
// duration, the session encoder and the cancellation of both pipeline
// tasks.
type Core struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tr      transport.Transport
	enc     *encoder.FrameEncoder
	session string
	state   atomic.Int32
}

func New(ctx context.Context, tr transport.Transport, enc *encoder.FrameEncoder) *Core {
	ctx, cancel := context.WithCancel(ctx)
	return &Core{
		ctx:     ctx,
		cancel:  cancel,
		tr:      tr,
		enc:     enc,
		session: uuid.NewString(),
	}
}

func (c *Core) State() State {
	return State(c.state.Load())
}

func (c *Core) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		log.Debugf("session %s: %s -> %s", c.session, old, s)
	}
}

// Stop cancels the session. Both pipeline tasks observe it at their next
// loop iteration; a manual stop is handled like a clean end of stream.
func (c *Core) Stop() {
	c.cancel()
}
