package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	cfg "github.com/Dennisjoch/frame-video-streamer/pkg/config"
	p "github.com/Dennisjoch/frame-video-streamer/pkg/core/progress"
	"github.com/Dennisjoch/frame-video-streamer/pkg/video"
)

// Stream runs the producer/consumer pipeline until the source is
// exhausted, the session is stopped or a failure aborts it. Every failure
// is session-fatal; the transport is released exactly once on every exit
// path and never touched if Connect failed.
func (c *Core) Stream(src FrameSource) error {
	defer c.cancel()
	defer src.Close()

	if err := c.tr.Connect(); err != nil {
		// never connected, nothing to disconnect
		c.setState(StateStopped)
		return err
	}
	defer func() {
		if c.tr.IsConnected() {
			log.Debugf("session %s: disconnecting", c.session)
			_ = c.tr.Disconnect()
		}
	}()

	c.setState(StateStreaming)
	p.Spinner("Streaming... ")

	// bounded queue: decode never runs more than QueueSize+1 frames
	// ahead of the network-bound sender
	queue := make(chan *video.Frame, cfg.QueueSize)
	err := waitForPipeline(c.produce(src, queue), c.consume(queue))

	c.setState(StateStopped)
	p.Finish()
	return err
}

// produce pulls frames from the source into the queue. Closing the queue
// is the terminal end-of-stream marker, nothing is enqueued afterwards.
func (c *Core) produce(src FrameSource, queue chan<- *video.Frame) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(queue)
		for {
			select {
			case <-c.ctx.Done():
				errc <- c.ctx.Err()
				return
			default:
			}
			f, err := src.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					log.Debugf("session %s: source exhausted", c.session)
					c.setState(StateDraining)
					return
				}
				errc <- err
				return
			}
			select {
			case queue <- f:
			case <-c.ctx.Done():
				errc <- c.ctx.Err()
				return
			}
		}
	}()
	return errc
}

// consume drains the queue, encodes each frame and sends its packets
// header-first in line order. Cancellation is polled between frames only,
// a packet sequence is never split.
func (c *Core) consume(queue <-chan *video.Frame) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		var sent int
		start := time.Now()
		lastReport := start
		for {
			select {
			case <-c.ctx.Done():
				errc <- c.ctx.Err()
				return
			case f, ok := <-queue:
				if !ok {
					log.Debugf("session %s: sent %d frames", c.session, sent)
					return
				}
				block, err := c.enc.EncodeFrame(f)
				if err != nil {
					c.cancel()
					errc <- err
					return
				}
				for _, pkt := range block.Packets() {
					if err := c.tr.SendMessage(cfg.MsgImageSpriteBlock, pkt); err != nil {
						c.cancel()
						errc <- fmt.Errorf("frame %d: %w", f.Index, err)
						return
					}
				}
				sent++
				if time.Since(lastReport) > time.Second {
					fps := float64(sent) / time.Since(start).Seconds()
					p.Describe(fmt.Sprintf("Sent frames: %d, FPS: %.2f ", sent, fps))
					p.Add(1) // spin
					lastReport = time.Now()
				}
			}
		}
	}()
	return errc
}

// waitForPipeline drains both error channels and reports the first real
// failure. Cancellation noise from the co-operating loop is not a failure
// by itself.
func waitForPipeline(errs ...<-chan error) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
